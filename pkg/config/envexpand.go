package config

import "os"

// ExpandEnv expands ${VAR} and $VAR references in raw YAML content using the
// standard library, before the content is parsed. Missing variables expand
// to the empty string; Validate is expected to catch any field that then
// comes up empty.
func ExpandEnv(data []byte) []byte {
	return []byte(os.ExpandEnv(string(data)))
}
