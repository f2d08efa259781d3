package apperrors

import "errors"

var (
	ErrNotFound           = errors.New("not found")
	ErrConflict           = errors.New("conflict")
	ErrRunNotFound        = errors.New("ingestion run not found")
	ErrInvalidConnString  = errors.New("unsupported connection string scheme")
	ErrEnrichmentDisabled = errors.New("enrichment backend not configured")
	ErrTargetUnreachable  = errors.New("target database unreachable")
	ErrUnsafeIdentifier   = errors.New("identifier failed safety check")
)
