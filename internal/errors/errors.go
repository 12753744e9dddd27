package errors

import (
	"errors"
	"fmt"
	"os"

	"github.com/julianstephens/tally/internal/logger"
)

// hinter is implemented by errors that carry a suggestion for the user
type hinter interface {
	Hint() string
}

// Format formats an error message with a consistent "Error: " prefix. When
// an error in the chain carries a hint it is appended on its own line.
func Format(err error) string {
	if err == nil {
		return ""
	}
	msg := fmt.Sprintf("Error: %v", err)
	var h hinter
	if errors.As(err, &h) {
		if hint := h.Hint(); hint != "" {
			msg += "\nHint: " + hint
		}
	}
	return msg
}

// Formatf formats an error message with a consistent "Error: " prefix using a format string
func Formatf(format string, args ...interface{}) string {
	return fmt.Sprintf("Error: "+format, args...)
}

// Fatal logs an error and exits the program with exit code 1
func Fatal(err error) {
	if err != nil {
		logger.Error("Command execution failed", "error", err)
		fmt.Fprintf(os.Stderr, "%s\n", Format(err))
		os.Exit(1)
	}
}

// Fatalf logs and formats an error message, then exits the program with exit code 1
func Fatalf(format string, args ...interface{}) {
	msg := fmt.Sprintf(format, args...)
	logger.Error("Command execution failed", "error", msg)
	fmt.Fprintf(os.Stderr, "%s\n", Formatf(format, args...))
	os.Exit(1)
}
