package session

import (
	"fmt"
	"time"
)

// urgentBelow is the remaining time under which the countdown is urgent.
const urgentBelow = 2 * time.Minute

// Countdown is a snapshot of the session expiry clock.
type Countdown struct {
	Remaining time.Duration
	Active    bool
	Expired   bool
}

// String renders the countdown as mm:ss, "--:--" when there is no
// session, or "Expired".
func (c Countdown) String() string {
	if !c.Active {
		return "--:--"
	}
	if c.Expired || c.Remaining <= 0 {
		return "Expired"
	}
	minutes := int(c.Remaining / time.Minute)
	seconds := int((c.Remaining % time.Minute) / time.Second)
	return fmt.Sprintf("%02d:%02d", minutes, seconds)
}

// Urgent reports whether fewer than two minutes remain on a live session.
func (c Countdown) Urgent() bool {
	return c.Active && !c.Expired && c.Remaining > 0 && c.Remaining < urgentBelow
}
