package transform

import "github.com/gear6io/cnpj-pipeline/pkg/errors"

var (
	ErrOpenFailed   = errors.MustNewCode("transform.open_failed")
	ErrDecodeFailed = errors.MustNewCode("transform.decode_failed")
)
