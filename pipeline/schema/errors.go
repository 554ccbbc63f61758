package schema

import "github.com/gear6io/cnpj-pipeline/pkg/errors"

var (
	ErrInvalidSnapshot = errors.MustNewCode("schema.invalid_snapshot")
)
