package wizard

import (
	"errors"
	"fmt"
)

var (
	// ErrInFlight is returned when an action is attempted while a generation
	// request is outstanding. No request is sent.
	ErrInFlight = errors.New("wizard: generation in flight")
	// ErrInvalidTransition is returned when an action does not apply to the
	// current step.
	ErrInvalidTransition = errors.New("wizard: invalid transition")
	// ErrNoCode is returned when an action needs a verified code.
	ErrNoCode = errors.New("wizard: no verified code")
)

// Reason names a local validation failure.
type Reason string

const (
	ReasonCodeEmpty    Reason = "code-empty"
	ReasonCodeLength   Reason = "code-length"
	ReasonImageMissing Reason = "image-missing"
	ReasonImageEmpty   Reason = "image-empty"
	ReasonImageType    Reason = "image-type"
	ReasonImageSize    Reason = "image-size"
	ReasonOption       Reason = "option"
	ReasonExhausted    Reason = "exhausted"
)

// ValidationError describes why local input was refused. It travels inside
// an *api.Error of kind KindValidation.
type ValidationError struct {
	Reason Reason
	Field  string
	Value  string
	Length int
	Size   int64
	Limit  int64
}

func (e *ValidationError) Error() string {
	switch e.Reason {
	case ReasonCodeLength:
		return fmt.Sprintf("code must be %d characters, got %d", e.Limit, e.Length)
	case ReasonImageType:
		return fmt.Sprintf("unsupported image type %q", e.Value)
	case ReasonImageSize:
		return fmt.Sprintf("image is %sMB, limit %s", FormatMB(e.Size), FormatLimit(e.Limit))
	case ReasonOption:
		return fmt.Sprintf("%q is not a valid %s", e.Value, e.Field)
	default:
		return string(e.Reason)
	}
}
