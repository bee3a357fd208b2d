package service

import "errors"

var (
	ErrInvalidUserID = errors.New("user_id is required")
	ErrInvalidCode   = errors.New("code is required")

	ErrInvalidEmail    = errors.New("a valid email is required")
	ErrInvalidPassword = errors.New("password must be at least 8 characters")
	ErrInvalidWindow   = errors.New("invalid access window")

	ErrBadCredentials    = errors.New("invalid email or password")
	ErrEmailNotConfirmed = errors.New("email not confirmed")
	ErrForbidden         = errors.New("forbidden")
	ErrUserNotFound      = errors.New("user not found")
	ErrWindowNotFound    = errors.New("access window not found")
	ErrInvalidTransition = errors.New("status change not allowed")
)
