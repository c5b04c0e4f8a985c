package cli

import "errors"

var (
	// ErrAborted is returned when the user declines a confirmation.
	// It is a normal abort, not a failure to report loudly.
	ErrAborted = errors.New("operation aborted by user")

	// ErrAdvancedCommand is returned when an advanced command is used
	// while training_wheels is enabled.
	ErrAdvancedCommand = errors.New("this command is disabled by training_wheels; set training_wheels = false in the configuration to use the advanced front-end")

	// ErrPendingChanges is returned when an operation cannot run while
	// unmerged scratch changes exist.
	ErrPendingChanges = errors.New("there are pending changes; run merge first")

	// ErrNoPatterns is returned when no package patterns are specified.
	ErrNoPatterns = errors.New("no packages specified")
)
