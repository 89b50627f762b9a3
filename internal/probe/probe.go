// Package probe runs a single acquire, act, release pass against an external
// resource and reports the outcome.
package probe

import (
	"context"
	"io"

	"github.com/yyup/kadmin/internal/report"
)

// Probe describes one pass. Open must either return a usable resource or an
// error with nothing left open; Run never closes a resource Open failed on.
type Probe[R io.Closer] struct {
	Name   string
	Open   func(ctx context.Context) (R, error)
	Action func(ctx context.Context, res R, rep *report.Reporter) error
}

// Run opens the resource, performs the action and closes the resource
// exactly once, whether the action returns, fails or panics. Every failure is
// written to rep once. An open failure is always a *ConnectionError; action
// failures are an *OperationError or *TimeoutError.
func Run[R io.Closer](ctx context.Context, p Probe[R], rep *report.Reporter) (err error) {
	res, err := p.Open(ctx)
	if err != nil {
		err = asConnectionError(p.Name, err)
		rep.Failure("%v", err)
		return err
	}
	rep.Success("%s: connected", p.Name)

	defer func() {
		recovered := recover()

		if closeErr := res.Close(); closeErr != nil {
			if err == nil && recovered == nil {
				err = &OperationError{Target: p.Name, Op: "close", Err: closeErr}
				rep.Failure("%v", err)
			} else {
				rep.Warn("%s: close failed: %v", p.Name, closeErr)
			}
		}

		if recovered != nil {
			rep.Failure("%s: aborted: %v", p.Name, recovered)
			panic(recovered)
		}
	}()

	if p.Action == nil {
		return nil
	}

	if actErr := p.Action(ctx, res, rep); actErr != nil {
		err = asOperationError(p.Name, "", actErr)
		rep.Failure("%v", err)
		return err
	}

	return nil
}
