package biz

import "errors"

var (
	ErrInvalidAPIKey      = errors.New("invalid API key")
	ErrInvalidJWT         = errors.New("invalid JWT token")
	ErrInvalidCredentials = errors.New("invalid username or password")
	ErrInternal           = errors.New("internal error")
)
