package pipeline

import "errors"

var (
	// ErrUnknownRun indicates the pipeline id is not in the live registry.
	ErrUnknownRun = errors.New("unknown pipeline run")
	// ErrUnknownStage indicates a stage name outside the fixed stage set.
	ErrUnknownStage = errors.New("unknown pipeline stage")
	// ErrDuplicateRun indicates a run with the same id is already registered.
	ErrDuplicateRun = errors.New("pipeline run already exists")
	// ErrTerminalStage indicates an attempt to move a stage out of a terminal state.
	ErrTerminalStage = errors.New("stage already terminal")
	// ErrInvalidStatus indicates an unsupported stage status in an update.
	ErrInvalidStatus = errors.New("invalid stage status")
)
