package manifest

import (
	"context"
	"errors"
	"strings"
	"sync"

	"go.starlark.net/starlark"
	"go.starlark.net/syntax"

	"github.com/carverauto/fieldpipe/pkg/models"
)

// Cancellation reasons passed to Thread.Cancel. CancelSteps is the
// reason the interpreter itself uses when the step budget runs out.
const (
	CancelTimeBudget = "wall-clock budget exceeded"
	CancelCapability = "capability violation"
	CancelSteps      = "too many steps"
)

// cancelledPrefix is the fixed form the interpreter gives the error it
// returns after a thread is cancelled.
const cancelledPrefix = "Starlark computation cancelled: "

//nolint:gochecknoglobals // parser dialect is fixed for all manifests
var fileOptions = &syntax.FileOptions{
	Set:             true,
	While:           true,
	TopLevelControl: true,
}

// FileOptions returns the Starlark dialect manifests are parsed with.
// The certification pipeline uses the same options for its static AST
// checks so both sides see the same language.
func FileOptions() *syntax.FileOptions {
	return fileOptions
}

// CapabilityTrap records capability-violation attempts observed while a
// thread runs. The print hook is wired here: no output stream is ever
// handed to manifest code, so any print call is an attempt to emit
// output and trips the trap. The trap also records whether the
// wall-clock watchdog cancelled the thread, so classification never has
// to infer the cause from error text the manifest could have shaped.
type CapabilityTrap struct {
	mu        sync.Mutex
	violation string
	timedOut  bool
}

func (t *CapabilityTrap) trip(thread *starlark.Thread, what string) {
	t.mu.Lock()
	if t.violation == "" {
		t.violation = what
	}
	t.mu.Unlock()

	thread.Cancel(CancelCapability)
}

// Violation returns the first recorded violation, or "".
func (t *CapabilityTrap) Violation() string {
	t.mu.Lock()
	defer t.mu.Unlock()

	return t.violation
}

func (t *CapabilityTrap) markTimeout() {
	t.mu.Lock()
	t.timedOut = true
	t.mu.Unlock()
}

// TimedOut reports whether the wall-clock watchdog cancelled the
// thread. Only the watchdog sets it, so the signal cannot be forged by
// manifest code.
func (t *CapabilityTrap) TimedOut() bool {
	t.mu.Lock()
	defer t.mu.Unlock()

	return t.timedOut
}

// CancelReason extracts the interpreter's cancellation reason from an
// invocation error, or "" if the thread was not cancelled. Only the
// exact message the interpreter emits for a cancelled thread matches;
// errors raised by manifest code always carry their own prefix
// ("fail: ", "int: ", ...), so a payload that merely echoes a
// cancellation reason never matches.
func CancelReason(err error) string {
	if err == nil {
		return ""
	}

	msg := err.Error()

	var evalErr *starlark.EvalError
	if errors.As(err, &evalErr) {
		msg = evalErr.Msg
	}

	if !strings.HasPrefix(msg, cancelledPrefix) {
		return ""
	}

	return msg[len(cancelledPrefix):]
}

// NewThread builds a Starlark thread with the step budget applied and
// all denied capabilities trapped. Each invocation gets a fresh thread;
// threads are never reused across invocations.
func NewThread(name string, limits models.ExecutionLimits) (*starlark.Thread, *CapabilityTrap) {
	trap := &CapabilityTrap{}

	thread := &starlark.Thread{
		Name: name,
		Print: func(th *starlark.Thread, msg string) {
			trap.trip(th, "print: "+msg)
		},
	}

	// Load is left nil: load() statements fail inside the interpreter.
	thread.SetMaxExecutionSteps(limits.MaxSteps)

	return thread, trap
}

// CallWithBudget runs fn under the wall-clock budget, cancelling the
// thread externally when the budget expires. The expiry is recorded on
// the trap before the thread is cancelled, so callers classify a
// timeout from the watchdog's own record rather than from error text.
// The manifest cannot observe or intercept the cancellation.
func CallWithBudget(ctx context.Context, thread *starlark.Thread, trap *CapabilityTrap, limits models.ExecutionLimits, fn func() (starlark.Value, error)) (starlark.Value, error) {
	ctx, cancel := context.WithTimeout(ctx, limits.Timeout)
	defer cancel()

	done := make(chan struct{})
	defer close(done)

	go func() {
		select {
		case <-ctx.Done():
			trap.markTimeout()
			thread.Cancel(CancelTimeBudget)
		case <-done:
		}
	}()

	return fn()
}
