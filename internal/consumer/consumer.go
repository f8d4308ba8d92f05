// Package consumer builds the processes that read rendered frames from the
// frame channel: a local preview window or a live-stream encoder.
package consumer

import (
	"github.com/smazurov/chesscast/internal/process"
)

// Adapter describes one frame consumer. The supervisor asks it for a
// command line and lets it hook the spawned process before Start.
type Adapter interface {
	// Name identifies the consumer in logs and events.
	Name() string
	// Command returns the argv (binary first) reading from framePath.
	Command(framePath string) ([]string, error)
	// Attach configures output parsing on the not-yet-started process.
	Attach(p *process.Process)
}
