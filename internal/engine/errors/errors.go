package errors

import sterrors "errors"

var (
	ErrConfigRequired  = sterrors.New("recordgate: config is required")
	ErrSchemaRequired  = sterrors.New("recordgate: schema descriptor is required")
	ErrRouterRequired  = sterrors.New("recordgate: router is required")
	ErrLoggerRequired  = sterrors.New("recordgate: logger is required")
	ErrSourceRequired  = sterrors.New("recordgate: source is required")
	ErrSinkRequired    = sterrors.New("recordgate: every routing destination needs a sink")
	ErrPipelineNotIdle = sterrors.New("recordgate: pipeline already started")

	// ErrSourceExhausted is the clean end-of-stream signal. Sources return
	// it from Next once no further records will arrive.
	ErrSourceExhausted = sterrors.New("recordgate: source exhausted")
)
