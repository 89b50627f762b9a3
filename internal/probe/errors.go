package probe

import (
	"context"
	"errors"
	"fmt"
	"net"
	"time"
)

// ConnectionError means the resource could not be reached or authenticated.
// A connect attempt that ran out of time carries a *TimeoutError as Err.
type ConnectionError struct {
	Target string
	Err    error
}

func (e *ConnectionError) Error() string {
	if te, ok := e.Err.(*TimeoutError); ok {
		return fmt.Sprintf("%s: connection failed: %s", e.Target, te.reason())
	}
	return fmt.Sprintf("%s: connection failed: %v", e.Target, e.Err)
}

func (e *ConnectionError) Unwrap() error { return e.Err }

// OperationError means the query or action itself failed after the resource
// was acquired.
type OperationError struct {
	Target string
	Op     string
	Err    error
}

func (e *OperationError) Error() string {
	if e.Op == "" {
		return fmt.Sprintf("%s: operation failed: %v", e.Target, e.Err)
	}
	return fmt.Sprintf("%s: %s failed: %v", e.Target, e.Op, e.Err)
}

func (e *OperationError) Unwrap() error { return e.Err }

// TimeoutError means an explicit deadline elapsed.
type TimeoutError struct {
	Target string
	After  time.Duration
	Err    error
}

func (e *TimeoutError) Error() string {
	return e.Target + ": " + e.reason()
}

func (e *TimeoutError) reason() string {
	if e.After > 0 {
		return fmt.Sprintf("timed out after %v: %v", e.After, e.Err)
	}
	return fmt.Sprintf("timed out: %v", e.Err)
}

func (e *TimeoutError) Unwrap() error { return e.Err }

// IsTimeout reports whether err came from an elapsed deadline.
func IsTimeout(err error) bool {
	if err == nil {
		return false
	}
	var te *TimeoutError
	if errors.As(err, &te) {
		return true
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return true
	}
	var netErr net.Error
	return errors.As(err, &netErr) && netErr.Timeout()
}

const (
	ExitOK         = 0
	ExitOperation  = 1
	ExitConnection = 2
	ExitTimeout    = 3
)

// ExitCode maps an error returned by Run to a process exit status. A
// timeout wins over the connection error wrapping it.
func ExitCode(err error) int {
	if err == nil {
		return ExitOK
	}

	var te *TimeoutError
	if errors.As(err, &te) {
		return ExitTimeout
	}
	var ce *ConnectionError
	if errors.As(err, &ce) {
		return ExitConnection
	}
	return ExitOperation
}

// Reported reports whether err is one of the typed errors Run has already
// written to its reporter.
func Reported(err error) bool {
	return isTyped(err)
}

// asConnectionError types every open failure as a *ConnectionError. Timeouts
// stay reachable through errors.As.
func asConnectionError(target string, err error) error {
	var ce *ConnectionError
	if errors.As(err, &ce) {
		return err
	}
	var te *TimeoutError
	if errors.As(err, &te) {
		return &ConnectionError{Target: target, Err: te}
	}
	if IsTimeout(err) {
		return &ConnectionError{Target: target, Err: &TimeoutError{Target: target, Err: err}}
	}
	return &ConnectionError{Target: target, Err: err}
}

func asOperationError(target, op string, err error) error {
	if isTyped(err) {
		return err
	}
	if IsTimeout(err) {
		return &TimeoutError{Target: target, Err: err}
	}
	return &OperationError{Target: target, Op: op, Err: err}
}

func isTyped(err error) bool {
	var (
		ce *ConnectionError
		oe *OperationError
		te *TimeoutError
	)
	return errors.As(err, &ce) || errors.As(err, &oe) || errors.As(err, &te)
}
