// Package printer writes labdesk's user-facing CLI output: coloured status
// lines on stdout and structured error reports on stderr.
package printer

import (
	"errors"
	"fmt"
	"io"
	"os"
	"sort"
	"strings"

	"github.com/fatih/color"
)

func init() {
	// NO_COLOR disables colour; otherwise it is forced even without a TTY.
	if os.Getenv("NO_COLOR") == "" {
		color.NoColor = false
	}
}

var (
	green  = color.New(color.FgGreen)
	yellow = color.New(color.FgYellow)
	red    = color.New(color.FgRed, color.Bold)
	cyan   = color.New(color.FgCyan)

	stdout io.Writer = os.Stdout
	stderr io.Writer = os.Stderr
)

// SetOutput redirects all printer output. Passing nil restores the process
// streams.
func SetOutput(out, errOut io.Writer) {
	if out == nil {
		out = os.Stdout
	}
	if errOut == nil {
		errOut = os.Stderr
	}
	stdout, stderr = out, errOut
}

// ReportedError is returned by Error and ErrorWithContext. Its details have
// already been written to stderr, so callers only need the exit status.
type ReportedError struct {
	Title string
}

func (e *ReportedError) Error() string { return e.Title }

// IsReported reports whether err (or anything it wraps) was already printed.
func IsReported(err error) bool {
	var r *ReportedError
	return errors.As(err, &r)
}

// Success prints a green line prefixed with a checkmark.
func Success(format string, a ...any) {
	prefixed(green, "✓", format, a...)
}

// Info prints an uncoloured message.
func Info(format string, a ...any) {
	fmt.Fprintf(stdout, format, a...)
}

// Warning prints a yellow line prefixed with a warning sign.
func Warning(format string, a ...any) {
	prefixed(yellow, "⚠️", format, a...)
}

// Step prints a progress line for multi-step operations.
func Step(format string, a ...any) {
	cyan.Fprintf(stdout, "→ %s", fmt.Sprintf(format, a...))
}

// Println prints a plain message.
func Println(a ...any) {
	fmt.Fprintln(stdout, a...)
}

// Printf prints a plain formatted message.
func Printf(format string, a ...any) {
	fmt.Fprintf(stdout, format, a...)
}

// Error prints a titled error with an explanation and suggestions to stderr
// and returns a ReportedError carrying the title.
func Error(title string, explanation string, suggestions []string) error {
	return ErrorWithContext(title, explanation, nil, suggestions)
}

// ErrorWithContext is Error plus key/value details, printed in key order.
func ErrorWithContext(title string, explanation string, context map[string]string, suggestions []string) error {
	red.Fprintf(stderr, "%s\n\n", title)

	if explanation != "" {
		fmt.Fprintf(stderr, "%s\n", explanation)
	}

	if len(context) > 0 {
		keys := make([]string, 0, len(context))
		for k := range context {
			keys = append(keys, k)
		}
		sort.Strings(keys)

		fmt.Fprintf(stderr, "\n")
		for _, k := range keys {
			fmt.Fprintf(stderr, "  %s: %s\n", k, context[k])
		}
	}

	switch len(suggestions) {
	case 0:
	case 1:
		fmt.Fprintf(stderr, "\n%s\n", suggestions[0])
	default:
		fmt.Fprintf(stderr, "\nEither:\n")
		for i, s := range suggestions {
			fmt.Fprintf(stderr, "  %d. %s\n", i+1, s)
		}
	}

	return &ReportedError{Title: title}
}

func prefixed(c *color.Color, prefix, format string, a ...any) {
	msg := fmt.Sprintf(format, a...)
	if strings.HasPrefix(msg, prefix) {
		c.Fprint(stdout, msg)
		return
	}
	c.Fprintf(stdout, "%s %s", prefix, msg)
}
