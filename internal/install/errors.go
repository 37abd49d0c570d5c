package install

import "errors"

var (
	ErrInvalidShop              = errors.New("install: invalid shop domain")
	ErrInvalidState             = errors.New("install: invalid oauth state")
	ErrInvalidCallbackSignature = errors.New("install: invalid callback signature")
	ErrMissingCode              = errors.New("install: missing authorization code")
	ErrExchangeTransient        = errors.New("install: token exchange failed (transient)")
	ErrExchangeRejected         = errors.New("install: token exchange rejected")
	ErrPersist                  = errors.New("install: persisting tenant failed")
)

// IsAuthFailure reports whether err means the callback itself could not be trusted.
func IsAuthFailure(err error) bool {
	return errors.Is(err, ErrInvalidState) || errors.Is(err, ErrInvalidCallbackSignature)
}
