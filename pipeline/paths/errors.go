package paths

import "github.com/gear6io/cnpj-pipeline/pkg/errors"

var (
	ErrDirectoryCreationFailed = errors.MustNewCode("paths.directory_creation_failed")
	ErrCleanupFailed           = errors.MustNewCode("paths.cleanup_failed")
)
