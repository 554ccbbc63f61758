package store

import "github.com/gear6io/cnpj-pipeline/pkg/errors"

var (
	ErrConnectFailed     = errors.MustNewCode("store.connect_failed")
	ErrUpsertFailed      = errors.MustNewCode("store.upsert_failed")
	ErrKeyLookupFailed   = errors.MustNewCode("store.key_lookup_failed")
	ErrTrackerFailed     = errors.MustNewCode("store.tracker_failed")
	ErrUnsupportedDriver = errors.MustNewCode("store.unsupported_driver")
)
