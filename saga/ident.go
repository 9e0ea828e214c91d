package saga

import (
	"time"

	"github.com/google/uuid"
)

// IDGenerator issues instance ids. Ids must be collision-free across the
// engine lifetime. Tests inject deterministic generators.
type IDGenerator interface {
	NewInstanceID() string
}

// UUIDGenerator is the default IDGenerator, issuing random UUIDs.
type UUIDGenerator struct{}

// NewInstanceID returns a fresh UUIDv4 string.
func (UUIDGenerator) NewInstanceID() string {
	return uuid.NewString()
}

// Clock is the engine's wall-clock source, abstracted so tests can inject a
// deterministic version.
type Clock interface {
	Now() time.Time
}

// systemClock reads the real wall clock.
type systemClock struct{}

func (systemClock) Now() time.Time { return time.Now() }

// ClockFunc adapts a function to the Clock interface.
type ClockFunc func() time.Time

// Now implements Clock.
func (f ClockFunc) Now() time.Time { return f() }
