package main

import "fmt"

const (
	exitCodeFailure  = 1
	exitCodeUsage    = 2
	exitCodeCanceled = 130
)

// exitError carries a process exit code through cobra's RunE.
type exitError struct {
	code   int
	err    error
	silent bool
}

// usageError reports bad flags or arguments.
func usageError(err error) *exitError {
	return &exitError{code: exitCodeUsage, err: err}
}

func (e *exitError) Error() string {
	if e == nil {
		return ""
	}
	if e.err != nil {
		return e.err.Error()
	}
	return fmt.Sprintf("exit %d", e.code)
}

func (e *exitError) Unwrap() error {
	if e == nil {
		return nil
	}
	return e.err
}
