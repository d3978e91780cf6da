// Package namecheck is the client-facing library for the catalog's
// /username/check endpoint. Checker debounces keystrokes and drops stale
// responses; Client is the HTTP resolver that performs the remote check.
package namecheck

import (
	"context"
	"strings"
	"sync"
	"time"

	"golang.org/x/sync/singleflight"

	"github.com/gamerneson12-art/learnhub-portal/pkg/domain"
)

// State tracks the availability check over a username input.
type State int

const (
	StateIdle State = iota
	StateChecking
	StateAvailable
	StateTaken
)

const (
	// DefaultWindow is the trailing debounce window: only the last input
	// that stays stable this long triggers a remote check.
	DefaultWindow = 500 * time.Millisecond
	// MinLength is the shortest username worth checking. Anything shorter
	// forces Idle and clears any prior result.
	MinLength = 3
)

// Resolver performs the remote availability check.
type Resolver func(ctx context.Context, username string) (domain.UsernameCheck, error)

// Timer is a cancellable pending callback.
type Timer interface {
	Stop() bool
}

// Scheduler schedules cancellable timers. Tests supply a manual
// implementation so the state machine runs without real time.
type Scheduler interface {
	AfterFunc(d time.Duration, fn func()) Timer
}

type realScheduler struct{}

func (realScheduler) AfterFunc(d time.Duration, fn func()) Timer {
	return time.AfterFunc(d, fn)
}

// NewScheduler returns a Scheduler backed by the runtime timers.
func NewScheduler() Scheduler { return realScheduler{} }

// Checker drives the debounced availability state machine. Each keystroke
// cancels the previous pending timer and carries a sequence token; a check
// result is applied only if its token is still the newest, so a stale
// response can never overwrite the state of a newer input.
type Checker struct {
	resolve Resolver
	sched   Scheduler
	window  time.Duration

	mu      sync.Mutex
	seq     uint64
	pending Timer
	state   State
	result  domain.UsernameCheck

	group singleflight.Group
}

// Option customizes a Checker.
type Option func(*Checker)

// WithScheduler replaces the timer source.
func WithScheduler(s Scheduler) Option {
	return func(c *Checker) { c.sched = s }
}

// WithWindow replaces the debounce window.
func WithWindow(d time.Duration) Option {
	return func(c *Checker) { c.window = d }
}

// New constructs a Checker in the Idle state.
func New(resolve Resolver, opts ...Option) *Checker {
	c := &Checker{
		resolve: resolve,
		sched:   realScheduler{},
		window:  DefaultWindow,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Input feeds the current text of the username field. Short input resets to
// Idle without a remote call; anything else enters Checking and schedules a
// check after the debounce window.
func (c *Checker) Input(ctx context.Context, text string) {
	name := Normalize(text)
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.pending != nil {
		c.pending.Stop()
		c.pending = nil
	}
	c.seq++
	if len(name) < MinLength {
		c.state = StateIdle
		c.result = domain.UsernameCheck{}
		return
	}
	token := c.seq
	c.state = StateChecking
	c.pending = c.sched.AfterFunc(c.window, func() {
		c.check(ctx, name, token)
	})
}

func (c *Checker) check(ctx context.Context, name string, token uint64) {
	// Concurrent checks for the same candidate share one round-trip.
	v, err, _ := c.group.Do(name, func() (any, error) {
		return c.resolve(ctx, name)
	})
	c.mu.Lock()
	defer c.mu.Unlock()
	if token != c.seq {
		// A newer keystroke arrived while this check was in flight.
		return
	}
	if err != nil {
		c.state = StateIdle
		c.result = domain.UsernameCheck{}
		return
	}
	res := v.(domain.UsernameCheck)
	c.result = res
	if res.Available {
		c.state = StateAvailable
	} else {
		c.state = StateTaken
	}
}

// State returns the current machine state.
func (c *Checker) State() State {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state
}

// Result returns the latest completed check result. Meaningful only in
// Available or Taken.
func (c *Checker) Result() domain.UsernameCheck {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.result
}

// CanSubmit reports whether the current input has a fresh Available result.
// Any later edit, including picking a suggestion, drops back to Checking
// until re-validated.
func (c *Checker) CanSubmit() bool {
	return c.State() == StateAvailable
}

// Normalize lowercases and trims a candidate username.
func Normalize(text string) string {
	return strings.ToLower(strings.TrimSpace(text))
}
