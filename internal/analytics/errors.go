package analytics

import (
	"errors"
	"fmt"
)

var (
	// ErrInvalidDate matches any *DateError via errors.Is.
	ErrInvalidDate = errors.New("invalid date")
	// ErrInvalidParam matches any *ParamError via errors.Is.
	ErrInvalidParam = errors.New("invalid parameter")
)

// DateError reports an unusable date bound in a period query.
type DateError struct {
	Value  string
	Reason string
}

func (e *DateError) Error() string {
	if e.Reason == "" {
		return fmt.Sprintf("invalid date %q (use YYYY-MM-DD or DD/MM/YYYY)", e.Value)
	}
	return fmt.Sprintf("invalid date %q: %s", e.Value, e.Reason)
}

func (e *DateError) Is(target error) bool { return target == ErrInvalidDate }

// ParamError reports a parameter outside its allowed domain.
type ParamError struct {
	Name   string
	Value  any
	Reason string
}

func (e *ParamError) Error() string {
	return fmt.Sprintf("invalid %s=%v: %s", e.Name, e.Value, e.Reason)
}

func (e *ParamError) Is(target error) bool { return target == ErrInvalidParam }
