package config

import "github.com/gear6io/cnpj-pipeline/pkg/errors"

// Config-specific error codes
var (
	ErrConfigFileReadFailed  = errors.MustNewCode("config.file_read_failed")
	ErrConfigFileParseFailed = errors.MustNewCode("config.file_parse_failed")
	ErrDatabaseURLRequired   = errors.MustNewCode("config.database_url_required")
	ErrInvalidValue          = errors.MustNewCode("config.invalid_value")
	ErrEnvInvalid            = errors.MustNewCode("config.env_invalid")
	ErrMirrorIncomplete      = errors.MustNewCode("config.mirror_incomplete")

	// Logging-specific error codes
	ErrLogDirectoryCreationFailed = errors.MustNewCode("config.log_directory_creation_failed")
	ErrLogFileOpenFailed          = errors.MustNewCode("config.log_file_open_failed")
	ErrLogFileStatFailed          = errors.MustNewCode("config.log_file_stat_failed")
	ErrLogRotationFailed          = errors.MustNewCode("config.log_rotation_failed")
	ErrLogBackupReadFailed        = errors.MustNewCode("config.log_backup_read_failed")
	ErrLogBackupRemoveFailed      = errors.MustNewCode("config.log_backup_remove_failed")
	ErrLogFileWriterSetupFailed   = errors.MustNewCode("config.log_file_writer_setup_failed")
)
