package directory

import (
	"errors"
	"fmt"
)

// Kind classifies request failures the way the console reports them.
type Kind int

const (
	// KindNetwork covers transport failures and server-side errors: the
	// directory was unreachable or could not complete the request.
	KindNetwork Kind = iota
	// KindValidation covers user-correctable input rejected by the
	// directory or by local parsing.
	KindValidation
)

func (k Kind) String() string {
	switch k {
	case KindNetwork:
		return "network"
	case KindValidation:
		return "validation"
	default:
		return fmt.Sprintf("Kind(%d)", int(k))
	}
}

// Error is a failed directory request.
type Error struct {
	Kind      Kind
	Op        string // Wire operation name, e.g. "add_group_member"
	Message   string
	RequestID string // X-Request-Id of the failed call, when one was sent
	Err       error  // Underlying cause, when any
}

func (e *Error) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %s: %v", e.Op, e.Message, e.Err)
	}
	return fmt.Sprintf("%s: %s", e.Op, e.Message)
}

func (e *Error) Unwrap() error {
	return e.Err
}

// KindOf extracts the failure kind from err. Errors that are not
// directory errors count as network failures.
func KindOf(err error) Kind {
	var de *Error
	if errors.As(err, &de) {
		return de.Kind
	}
	return KindNetwork
}

// IsNetwork reports whether err is a transport or server-side failure.
func IsNetwork(err error) bool {
	return KindOf(err) == KindNetwork
}

// IsValidation reports whether err is rejected input.
func IsValidation(err error) bool {
	return KindOf(err) == KindValidation
}
