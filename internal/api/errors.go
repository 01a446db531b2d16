package api

import "errors"

var ErrInvalidRequest = errors.New("invalid_request")

// invalidRequestError carries the offending request field so it can be
// reported in the error body.
type invalidRequestError struct {
	msg   string
	param string
}

func (e invalidRequestError) Error() string {
	return e.msg
}

func (e invalidRequestError) Unwrap() error {
	return ErrInvalidRequest
}

func newInvalidRequest(param, msg string) error {
	return invalidRequestError{msg: msg, param: param}
}

func invalidParam(err error) string {
	var ire invalidRequestError
	if errors.As(err, &ire) {
		return ire.param
	}
	return ""
}
