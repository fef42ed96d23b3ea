package service

import "errors"

var (
	ErrInvalidDraftKey = errors.New("invalid draft key")
	ErrServiceClosed   = errors.New("draft service is shut down")
)
