package supervisor

import (
	"errors"
	"fmt"
	"strings"
)

// ErrUnknownMode is returned for a mode string that is not recognized.
var ErrUnknownMode = errors.New("unknown mode")

// ErrUnknownPolicy is returned for an unrecognized consumer exit policy.
var ErrUnknownPolicy = errors.New("unknown consumer policy")

// ErrInvalidTimeout is returned for an unparseable stop or kill timeout.
var ErrInvalidTimeout = errors.New("invalid timeout")

// Mode selects which frame consumer runs next to the primary.
type Mode int

// Modes.
const (
	ModePreview Mode = iota + 1
	ModeLiveStream
)

// ParseMode validates a mode name. "preview" and "stream" are accepted,
// "livestream" is an alias for "stream".
func ParseMode(s string) (Mode, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "preview":
		return ModePreview, nil
	case "stream", "livestream":
		return ModeLiveStream, nil
	default:
		return 0, fmt.Errorf("%w %q (want preview or stream)", ErrUnknownMode, s)
	}
}

func (m Mode) String() string {
	switch m {
	case ModePreview:
		return "preview"
	case ModeLiveStream:
		return "stream"
	default:
		return fmt.Sprintf("mode(%d)", int(m))
	}
}

// Valid reports whether m is one of the defined modes.
func (m Mode) Valid() bool {
	return m == ModePreview || m == ModeLiveStream
}

// ConsumerPolicy decides what happens when the consumer exits while the
// primary is still running.
type ConsumerPolicy string

// Consumer policies.
const (
	// PolicyWarn logs and reports the exit and lets the primary run on.
	PolicyWarn ConsumerPolicy = "warn"
	// PolicyFatal stops the primary and ends the run with an error.
	PolicyFatal ConsumerPolicy = "fatal"
)

// ParseConsumerPolicy validates a policy name; empty selects PolicyWarn.
func ParseConsumerPolicy(s string) (ConsumerPolicy, error) {
	switch ConsumerPolicy(strings.ToLower(strings.TrimSpace(s))) {
	case "", PolicyWarn:
		return PolicyWarn, nil
	case PolicyFatal:
		return PolicyFatal, nil
	default:
		return "", fmt.Errorf("%w %q (want warn or fatal)", ErrUnknownPolicy, s)
	}
}
