package httperr

import "errors"

// BusinessError is an expected rejection (validation, rate limit, slot
// conflict, ...). It is returned, never panicked, and mapped to an HTTP
// status at the handler boundary. It is not an operational fault.
type BusinessError struct {
	Code string
}

func (e BusinessError) Error() string {
	return e.Code
}

func ErrBusiness(code string) error {
	return BusinessError{Code: code}
}

func IsBusiness(err error, code string) bool {
	var be BusinessError
	if errors.As(err, &be) {
		return be.Code == code
	}
	return false
}
