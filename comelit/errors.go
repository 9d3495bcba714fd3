package comelit

import (
	"errors"
	"fmt"
)

var (
	// ErrConnection is returned when the bridge cannot be reached
	ErrConnection = errors.New("comelit: bridge unreachable")

	// ErrSessionExpired is returned when the bridge rejects the session
	ErrSessionExpired = errors.New("comelit: session expired")

	// ErrCommand is returned when the bridge rejects a single command
	ErrCommand = errors.New("comelit: command rejected")
)

// CommandError carries the command the bridge refused
type CommandError struct {
	Command Command
	Err     error
}

func (e *CommandError) Error() string {
	return fmt.Sprintf("%s: %s on %s#%s: %v", ErrCommand, e.Command.Action, e.Command.Type, e.Command.ID, e.Err)
}

func (e *CommandError) Unwrap() []error {
	return []error{ErrCommand, e.Err}
}

func isSessionExpired(err error) bool {
	return errors.Is(err, ErrSessionExpired)
}

func isConnection(err error) bool {
	return errors.Is(err, ErrConnection)
}
