package notification

import "errors"

var (
	ErrDefinitionNotFound  = errors.New("notification definition not found")
	ErrLogNotFound         = errors.New("notification log entry not found")
	ErrDuplicateLog        = errors.New("duplicate notification log entry")
	ErrInvalidTimeFormat   = errors.New("invalid time format, expected HH:MM")
	ErrInvalidDefinition   = errors.New("invalid notification definition")
	ErrUnknownDefinitionID = errors.New("unknown notification definition id")
	ErrPermissionDenied    = errors.New("notification permission not granted")
	ErrStoreUnavailable    = errors.New("notification store unavailable")
)
