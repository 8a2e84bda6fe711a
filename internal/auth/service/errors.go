package service

import "errors"

var (
	ErrInvalidArgument      = errors.New("invalid argument")
	ErrIncorrectCredentials = errors.New("incorrect credentials")
	ErrExpiredSecret        = errors.New("verification code expired")
	ErrInvalidCode          = errors.New("invalid verification code")
	ErrAPIKeyNotFound       = errors.New("api key not found")
	ErrBootstrapAlready     = errors.New("system already bootstrapped")
)
