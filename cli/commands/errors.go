package commands

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/petal-labs/azresponses/core"
)

// Exit codes
const (
	ExitSuccess    = 0
	ExitValidation = 1
	ExitAPI        = 2
	ExitNetwork    = 3
)

// exitError wraps an error with an exit code.
type exitError struct {
	code int
	err  error
}

func (e *exitError) Error() string {
	return e.err.Error()
}

func (e *exitError) Unwrap() error {
	return e.err
}

func (e *exitError) ExitCode() int {
	return e.code
}

func exitWithCode(code int, err error) error {
	return &exitError{code: code, err: err}
}

// errorOutput is the JSON shape written to stderr with --json.
type errorOutput struct {
	Error errorDetail `json:"error"`
}

type errorDetail struct {
	Type      string `json:"type"`
	Kind      string `json:"kind,omitempty"`
	Code      string `json:"code,omitempty"`
	Message   string `json:"message"`
	Status    int    `json:"status,omitempty"`
	RequestID string `json:"request_id,omitempty"`
}

// fail reports a local error and returns it with the exit code.
func (a *App) fail(code int, errType string, err error) error {
	a.reportError(errorDetail{Type: errType, Message: err.Error()})
	return exitWithCode(code, err)
}

// handleError reports an error returned by the client. Network and timeout
// failures exit with ExitNetwork, other service errors with ExitAPI and
// request validation errors with ExitValidation.
func (a *App) handleError(err error) error {
	var apiErr *core.Error
	if errors.As(err, &apiErr) {
		d := errorDetail{
			Type:      string(apiErr.Category()),
			Kind:      string(apiErr.Kind),
			Message:   apiErr.Message(),
			Status:    apiErr.StatusCode,
			RequestID: apiErr.RequestID,
		}
		if apiErr.Body != nil {
			d.Code = apiErr.Body.Code
		}
		a.reportError(d)

		switch apiErr.Category() {
		case core.CategoryNetwork, core.CategoryTimeout:
			return exitWithCode(ExitNetwork, err)
		default:
			return exitWithCode(ExitAPI, err)
		}
	}

	switch {
	case errors.Is(err, core.ErrModelRequired), errors.Is(err, core.ErrNoInput), errors.Is(err, core.ErrResponseID):
		return a.fail(ExitValidation, "validation_error", err)
	case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		return a.fail(ExitNetwork, "canceled", err)
	}
	return a.fail(ExitAPI, "error", err)
}

func (a *App) reportError(d errorDetail) {
	if a.jsonOutput {
		enc := json.NewEncoder(a.stderr)
		enc.SetIndent("", "  ")
		if err := enc.Encode(errorOutput{Error: d}); err == nil {
			return
		}
	}

	fmt.Fprintf(a.stderr, "Error: %s\n", d.Message)
	if d.RequestID != "" {
		fmt.Fprintf(a.stderr, "  Request ID: %s\n", d.RequestID)
	}
}

// writeJSON writes v to stdout, indented.
func (a *App) writeJSON(v any) error {
	enc := json.NewEncoder(a.stdout)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
