// Package playback defines the playback driver contract and a headless timer driver.
package playback

// DriverState represents the lifecycle state of a playback driver.
type DriverState int

const (
	DriverIdle    DriverState = iota // Never started
	DriverRunning                    // Started; plays whatever file it is told to
	DriverClosed                     // Shut down
)

// String returns the string representation of the state.
func (s DriverState) String() string {
	switch s {
	case DriverIdle:
		return "idle"
	case DriverRunning:
		return "running"
	case DriverClosed:
		return "closed"
	default:
		return "unknown"
	}
}
