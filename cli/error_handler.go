package cli

import (
	"fmt"
	"io"
	"os"

	"github.com/grovetools/bnb/errors"
)

// ErrorHandler provides user-friendly error messages
type ErrorHandler struct {
	Verbose bool
	Out     io.Writer
}

// NewErrorHandler creates a handler writing to stderr.
func NewErrorHandler(verbose bool) *ErrorHandler {
	return &ErrorHandler{
		Verbose: verbose,
		Out:     os.Stderr,
	}
}

// Message returns the line shown to the user for err, chosen by its kind.
func Message(err error) string {
	e, ok := errors.As(err)
	if !ok {
		return fmt.Sprintf("Error: %v", err)
	}

	switch e.Kind {
	case errors.KindNetwork:
		return fmt.Sprintf("Could not reach the marketplace API: %s. Check api.base_url and your connection.", e.Message)
	case errors.KindUnauthorized:
		return fmt.Sprintf("Not signed in: %s. Run 'bnb login' and try again.", e.Message)
	case errors.KindForbidden:
		return fmt.Sprintf("Permission denied: %s", e.Message)
	case errors.KindNotFound:
		return fmt.Sprintf("Not found: %s", e.Message)
	case errors.KindValidation:
		return fmt.Sprintf("Rejected by the server: %s", e.Message)
	case errors.KindServerFault:
		return fmt.Sprintf("The server failed to handle the request: %s. Try again later.", e.Message)
	case errors.KindConfigNotFound:
		return fmt.Sprintf("Configuration not found at %v", e.Details["path"])
	case errors.KindConfigInvalid, errors.KindConfigValidation:
		return fmt.Sprintf("Invalid configuration: %s", e.Message)
	case errors.KindStorage:
		return fmt.Sprintf("Could not access saved session state: %s", e.Message)
	case errors.KindInvalidInput:
		return fmt.Sprintf("Invalid input: %s", e.Message)
	default:
		return fmt.Sprintf("Error: %s", e.Message)
	}
}

// Handle prints err and returns it unchanged.
func (h *ErrorHandler) Handle(err error) error {
	if err == nil {
		return nil
	}
	out := h.Out
	if out == nil {
		out = os.Stderr
	}

	fmt.Fprintln(out, DefaultTheme.Error.Render("✗ ")+Message(err))

	if h.Verbose {
		if e, ok := errors.As(err); ok {
			fmt.Fprintf(out, "\nError details:\n%s\n", e.ToJSON())
			if e.Cause != nil {
				fmt.Fprintf(out, "Cause: %v\n", e.Cause)
			}
		}
	}
	return err
}
