package sqlitestore

import "github.com/engramhq/engram/pkg/storage"

var _ storage.Backend = (*Store)(nil)
