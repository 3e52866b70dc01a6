package attempt

import (
	"errors"
	"sync"
)

type State int

const (
	NotStarted State = iota
	Running
	Submitted
	Expired
)

func (s State) String() string {
	switch s {
	case NotStarted:
		return "not_started"
	case Running:
		return "running"
	case Submitted:
		return "submitted"
	case Expired:
		return "expired"
	}
	return "unknown"
}

var ErrNotRunning = errors.New("countdown not running")

// Countdown is the per-attempt timer: NotStarted, then Running with a number
// of seconds left, then exactly one of Submitted or Expired. Each Tick takes
// one second off. It is safe for concurrent use so a manual submit can race
// the ticking goroutine; whichever transition lands first wins.
type Countdown struct {
	mu        sync.Mutex
	state     State
	remaining int
}

func (c *Countdown) Start(seconds int) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.state != NotStarted {
		return ErrNotRunning
	}
	if seconds < 0 {
		seconds = 0
	}
	c.state = Running
	c.remaining = seconds
	return nil
}

// Tick reports true on the tick that expires the countdown.
func (c *Countdown) Tick() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.state != Running {
		return false
	}
	if c.remaining > 0 {
		c.remaining--
	}
	if c.remaining == 0 {
		c.state = Expired
		return true
	}
	return false
}

func (c *Countdown) Submit() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.state != Running {
		return ErrNotRunning
	}
	c.state = Submitted
	return nil
}

func (c *Countdown) Remaining() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.remaining
}

func (c *Countdown) State() State {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state
}
