package supervisor

import (
	"errors"

	"github.com/smazurov/chesscast/internal/ffmpeg"
)

// Exit statuses of the orchestrator itself.
const (
	ExitFailure = 1
	ExitUsage   = 2
)

// ErrConsumerExited ends a run under PolicyFatal.
var ErrConsumerExited = errors.New("consumer exited before primary")

// ExitCode maps the outcome of a run to the orchestrator's exit status.
// A nil error propagates the primary's own status. Usage errors exit with
// ExitUsage; configuration, environment, spawn and fatal consumer errors
// with ExitFailure.
func ExitCode(primaryStatus int, err error) int {
	switch {
	case err == nil:
		return primaryStatus
	case errors.Is(err, ErrUnknownMode), errors.Is(err, ErrUnknownPolicy), errors.Is(err, ErrInvalidTimeout),
		errors.Is(err, ffmpeg.ErrUnknownFrameFormat):
		return ExitUsage
	default:
		return ExitFailure
	}
}
