package harness

import (
	"context"
	stderrors "errors"
	"fmt"

	"rockmap-rules/internal/shared/errors"

	"github.com/stretchr/testify/assert"
)

// Operation is one emulator call whose outcome is asserted
type Operation func(ctx context.Context) error

// Assertion failures
var (
	ErrUnexpectedDenial  = stderrors.New("expected operation to be allowed, but permission was denied")
	ErrUnexpectedSuccess = stderrors.New("expected permission denied, but the operation succeeded")
	ErrUnexpectedFailure = stderrors.New("operation failed for a reason other than security rules")
)

// CheckAllowed runs op and returns nil when it succeeded
func CheckAllowed(ctx context.Context, op Operation) error {
	err := op(ctx)
	switch {
	case err == nil:
		return nil
	case errors.IsPermissionDenied(err):
		return fmt.Errorf("%w: %v", ErrUnexpectedDenial, err)
	default:
		return fmt.Errorf("%w: %v", ErrUnexpectedFailure, err)
	}
}

// CheckDenied runs op and returns nil when security rules rejected it
func CheckDenied(ctx context.Context, op Operation) error {
	err := op(ctx)
	switch {
	case err == nil:
		return ErrUnexpectedSuccess
	case errors.IsPermissionDenied(err):
		return nil
	default:
		return fmt.Errorf("%w: %v", ErrUnexpectedFailure, err)
	}
}

type tHelper interface {
	Helper()
}

// ExpectAllowed fails t unless op succeeds
func ExpectAllowed(t assert.TestingT, ctx context.Context, op Operation, msgAndArgs ...interface{}) bool {
	if h, ok := t.(tHelper); ok {
		h.Helper()
	}
	if err := CheckAllowed(ctx, op); err != nil {
		return assert.Fail(t, err.Error(), msgAndArgs...)
	}
	return true
}

// ExpectDenied fails t unless op is rejected with a permission error
func ExpectDenied(t assert.TestingT, ctx context.Context, op Operation, msgAndArgs ...interface{}) bool {
	if h, ok := t.(tHelper); ok {
		h.Helper()
	}
	if err := CheckDenied(ctx, op); err != nil {
		return assert.Fail(t, err.Error(), msgAndArgs...)
	}
	return true
}
