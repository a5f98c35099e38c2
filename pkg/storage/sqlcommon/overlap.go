package sqlcommon

// StringsOverlap reports whether any element of a appears in b. Both
// backends apply tag/entity "any of" filters with this exact function
// after the SQL-pushdown hard filters run, so a JSON text column's contents
// never have to round-trip through a dialect-specific array operator that
// sqlite and postgres would otherwise disagree on.
func StringsOverlap(a, b []string) bool {
	if len(a) == 0 {
		return true
	}
	set := make(map[string]struct{}, len(b))
	for _, v := range b {
		set[v] = struct{}{}
	}
	for _, v := range a {
		if _, ok := set[v]; ok {
			return true
		}
	}
	return false
}
