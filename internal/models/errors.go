package models

import "errors"

var (
	ErrMalformedFrame = errors.New("malformed frame")
	ErrUnauthorized   = errors.New("unauthorized")
)
