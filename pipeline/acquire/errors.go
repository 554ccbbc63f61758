package acquire

import "github.com/gear6io/cnpj-pipeline/pkg/errors"

var (
	ErrDiscovery       = errors.MustNewCode("acquire.discovery")
	ErrListingFailed   = errors.MustNewCode("acquire.listing_failed")
	ErrUnexpectedReply = errors.MustNewCode("acquire.unexpected_status")
	ErrDownloadFailed  = errors.MustNewCode("acquire.download_failed")
	ErrIdleTimeout     = errors.MustNewCode("acquire.idle_timeout")
	ErrExtractFailed   = errors.MustNewCode("acquire.extract_failed")
	ErrMirrorFailed    = errors.MustNewCode("acquire.mirror_failed")
	ErrStagingFailed   = errors.MustNewCode("acquire.staging_failed")
)
