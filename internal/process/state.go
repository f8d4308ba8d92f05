package process

// State represents the lifecycle state of a supervised process.
type State string

// Process states.
const (
	StateIdle     State = "idle"     // Not started
	StateRunning  State = "running"  // Spawned and not yet reaped
	StateStopping State = "stopping" // Stop requested
	StateExited   State = "exited"   // Reaped
	StateError    State = "error"    // Failed to spawn
)

// Role distinguishes the two kinds of process a run owns.
type Role string

// Process roles.
const (
	RolePrimary  Role = "primary"
	RoleConsumer Role = "consumer"
)
