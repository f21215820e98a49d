package cli

import (
	"fmt"
	"io"
	"os"

	"github.com/grovetools/socratic/errors"
)

// ErrorHandler provides user-friendly error messages
type ErrorHandler struct {
	Verbose bool
	Out     io.Writer
}

// NewErrorHandler creates a new error handler writing to stderr
func NewErrorHandler(verbose bool) *ErrorHandler {
	return &ErrorHandler{
		Verbose: verbose,
		Out:     os.Stderr,
	}
}

// Handle provides user-friendly error messages based on error type
func (h *ErrorHandler) Handle(err error) error {
	if err == nil {
		return nil
	}
	socErr, _ := err.(*errors.SocraticError)

	switch errors.GetCode(err) {
	case errors.ErrCodeConfigNotFound:
		fmt.Fprintf(h.Out, "❌ Configuration not found. Create socratic.yml or pass --config.\n")

	case errors.ErrCodeConfigInvalid, errors.ErrCodeConfigValidation:
		fmt.Fprintf(h.Out, "❌ %s\n", message(err, socErr))
		fmt.Fprintf(h.Out, "Check socratic.yml and the environment variables it reads.\n")

	case errors.ErrCodePlanInvalid:
		if socErr != nil {
			fmt.Fprintf(h.Out, "❌ Plan '%v' is not valid\n", socErr.Details["path"])
		}
		if socErr != nil && socErr.Cause != nil {
			fmt.Fprintf(h.Out, "%v\n", socErr.Cause)
		}
		fmt.Fprintf(h.Out, "Run 'socratic plan schema' to see the expected format.\n")

	case errors.ErrCodeReportWrite:
		if socErr != nil {
			fmt.Fprintf(h.Out, "❌ Could not write the QA report to %v\n", socErr.Details["path"])
		}

	case errors.ErrCodeSessionStore:
		fmt.Fprintf(h.Out, "❌ Session store unavailable: %v\n", err)
		fmt.Fprintf(h.Out, "Check tutor.db_path or use tutor.session_store: memory.\n")

	case errors.ErrCodeTransport:
		fmt.Fprintf(h.Out, "❌ Telegram API error: %v\n", err)
		fmt.Fprintf(h.Out, "Check TELEGRAM_TOKEN and network access.\n")

	default:
		fmt.Fprintf(h.Out, "❌ Error: %v\n", err)
	}

	if h.Verbose && socErr != nil {
		fmt.Fprintf(h.Out, "\nError details:\n%s\n", socErr.ToJSON())
	}
	return err
}

func message(err error, socErr *errors.SocraticError) string {
	if socErr != nil {
		return socErr.Message
	}
	return err.Error()
}
