package diag

import (
	"errors"
	"fmt"
)

// Kind classifies a DRASM failure.
type Kind uint8

const (
	KindStructural Kind = iota + 1
	KindResolution
	KindType
	KindInstantiation
	KindRuntime
)

func (k Kind) String() string {
	switch k {
	case KindStructural:
		return "structural"
	case KindResolution:
		return "resolution"
	case KindType:
		return "type"
	case KindInstantiation:
		return "instantiation"
	case KindRuntime:
		return "runtime"
	}
	return "unknown"
}

// Error is the single failure value surfaced by every stage of the pipeline.
// Construct names the declaration or identifier at fault; Line is 0 when unknown.
type Error struct {
	Kind      Kind
	Msg       string
	Construct string
	Line      int
}

func (e *Error) Error() string {
	if e.Line > 0 {
		return fmt.Sprintf("%s error at line %d: %s", e.Kind, e.Line, e.Msg)
	}
	return fmt.Sprintf("%s error: %s", e.Kind, e.Msg)
}

// New builds an Error with a formatted message.
func New(kind Kind, line int, construct string, format string, args ...any) *Error {
	return &Error{
		Kind:      kind,
		Msg:       fmt.Sprintf(format, args...),
		Construct: construct,
		Line:      line,
	}
}

// As extracts the *Error carried anywhere in err's chain.
func As(err error) (*Error, bool) {
	var d *Error
	if errors.As(err, &d) {
		return d, true
	}
	return nil, false
}

// Is reports whether err carries a diagnostic of the given kind.
func Is(err error, kind Kind) bool {
	d, ok := As(err)
	return ok && d.Kind == kind
}
