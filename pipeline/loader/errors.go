package loader

import "github.com/gear6io/cnpj-pipeline/pkg/errors"

// Loader-specific error codes
var (
	ErrComponentInitFailed = errors.MustNewCode("loader.component_init_failed")
	ErrSnapshotNotFound    = errors.MustNewCode("loader.snapshot_not_found")
	ErrListingFailed       = errors.MustNewCode("loader.listing_failed")
	ErrFileFailed          = errors.MustNewCode("loader.file_failed")
	ErrRunCancelled        = errors.MustNewCode("loader.run_cancelled")
	ErrStagingFailed       = errors.MustNewCode("loader.staging_failed")
)
