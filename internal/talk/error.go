package talk

import (
	"errors"
	"fmt"
	"strings"
)

type Location struct {
	Filename string
	Line     int
	Column   int
}

// ErrorKind classifies engine failures.
type ErrorKind int

const (
	RuntimeFailure ErrorKind = iota
	ParseFailure
	ResolutionNotFound
	EngineInvariantViolation
	PluginBoundaryFailure
)

func (k ErrorKind) String() string {
	switch k {
	case ParseFailure:
		return "ParseFailure"
	case ResolutionNotFound:
		return "ResolutionNotFound"
	case EngineInvariantViolation:
		return "EngineInvariantViolation"
	case PluginBoundaryFailure:
		return "PluginBoundaryFailure"
	default:
		return "RuntimeFailure"
	}
}

type Error struct {
	Kind     ErrorKind
	Message  string
	Location Location
	Help     string
	Code     string
	// Handler is the name of the handler whose invocation failed, if any.
	Handler string
}

func (e *Error) Error() string {
	if e.Location.Line > 0 {
		name := e.Location.Filename
		if name == "" {
			name = "script"
		}
		return fmt.Sprintf("%s:%d:%d: %s", name, e.Location.Line, e.Location.Column, e.Message)
	}
	return e.Message
}

// Fatal reports whether the error indicates an engine defect rather than a script mistake.
func (e *Error) Fatal() bool {
	return e.Kind == EngineInvariantViolation
}

func newError(kind ErrorKind, format string, args ...any) *Error {
	return &Error{Kind: kind, Message: fmt.Sprintf(format, args...)}
}

func notFound(format string, args ...any) *Error {
	return newError(ResolutionNotFound, format, args...)
}

func invariant(format string, args ...any) *Error {
	return newError(EngineInvariantViolation, format, args...)
}

// IsKind reports whether err, or anything it wraps, is an *Error of the given kind.
func IsKind(err error, kind ErrorKind) bool {
	var te *Error
	if errors.As(err, &te) {
		return te.Kind == kind
	}
	return false
}

func FormatError(err *Error) string {
	var b strings.Builder

	b.WriteString("✗ ")
	b.WriteString(err.Kind.String())
	b.WriteString(": ")
	b.WriteString(err.Message)
	b.WriteString("\n")

	if err.Location.Line > 0 {
		name := err.Location.Filename
		if name == "" {
			name = "script"
		}
		b.WriteString(fmt.Sprintf("  ╭─[%s:%d:%d]\n", name, err.Location.Line, err.Location.Column))

		if err.Code != "" {
			b.WriteString("  │\n")
			b.WriteString(fmt.Sprintf("%3d│ %s\n", err.Location.Line, err.Code))
			pad := caretPadding(err.Code, err.Location.Column)
			b.WriteString("  │ ")
			b.WriteString(pad)
			b.WriteString("─┬─ here\n")
			b.WriteString("  │ ")
			b.WriteString(pad)
			b.WriteString(" ╰─ ")
			b.WriteString(err.Message)
			b.WriteString("\n")
		}
		b.WriteString("  │\n")
	}

	if err.Handler != "" {
		b.WriteString(fmt.Sprintf("  │ in handler %q\n", err.Handler))
	}
	if err.Help != "" {
		b.WriteString("  │ 💡 Help: ")
		b.WriteString(err.Help)
		b.WriteString("\n")
		b.WriteString("  │\n")
	}

	return b.String()
}

// caretPadding keeps tabs from the source line so the pointer lines up.
func caretPadding(line string, column int) string {
	var b strings.Builder
	for j := 0; j < column-1; j++ {
		if j < len(line) && line[j] == '\t' {
			b.WriteByte('\t')
		} else {
			b.WriteByte(' ')
		}
	}
	return b.String()
}

// sourceLine returns the 1-based line of source, or "" when out of range.
func sourceLine(source string, line int) string {
	lines := strings.Split(source, "\n")
	if line < 1 || line > len(lines) {
		return ""
	}
	return strings.TrimRight(lines[line-1], "\r")
}
