package supplement

import "github.com/gear6io/cnpj-pipeline/pkg/errors"

var (
	ErrDownloadFailed = errors.MustNewCode("supplement.download_failed")
	ErrParseFailed    = errors.MustNewCode("supplement.parse_failed")
	ErrLoadFailed     = errors.MustNewCode("supplement.load_failed")
)
