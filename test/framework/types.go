package framework

import (
	"context"
	"time"
)

// TestContext provides utilities for test execution spanning more than one
// component (registry + lifecycle manager + a real engine/health fake),
// the handful of scenarios too coupled to live in a single package's
// _test.go file.
type TestContext struct {
	// T is the testing.T instance
	T TestingT
	// Ctx is the context for test operations
	Ctx context.Context
	// Cancel cancels the test context
	Cancel context.CancelFunc
	// Timeout is the default timeout for operations
	Timeout time.Duration
	// Cleanup functions to run after test
	cleanup []func()
}

// NewTestContext creates a TestContext with the given timeout.
func NewTestContext(t TestingT, timeout time.Duration) *TestContext {
	ctx, cancel := context.WithTimeout(context.Background(), timeout)
	return &TestContext{T: t, Ctx: ctx, Cancel: cancel, Timeout: timeout}
}

// Defer registers a cleanup function to run when Close is called.
func (tc *TestContext) Defer(fn func()) {
	tc.cleanup = append(tc.cleanup, fn)
}

// Close cancels the context and runs cleanup functions in reverse order.
func (tc *TestContext) Close() {
	tc.Cancel()
	for i := len(tc.cleanup) - 1; i >= 0; i-- {
		tc.cleanup[i]()
	}
}

// TestingT is an interface matching testing.T.
type TestingT interface {
	Logf(format string, args ...interface{})
	Errorf(format string, args ...interface{})
	Fatalf(format string, args ...interface{})
	FailNow()
	Failed() bool
	Name() string
	Helper()
}

// WorkspaceSpec describes a fixture workspace directory to create on disk
// for scanner/registry scenario tests.
type WorkspaceSpec struct {
	// Files maps a relative path (e.g. "package.json") to its contents.
	Files map[string]string
}
