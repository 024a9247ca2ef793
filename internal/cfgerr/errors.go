// Package cfgerr defines the recoverable error kinds surfaced by the
// configuration engine. Every kind carries enough context (module, field,
// flag, cycle path) for an operator to correct the specific toggle or link
// that was rejected.
package cfgerr

import (
	"errors"
	"fmt"
	"strings"
)

type Kind string

const (
	NotFound           Kind = "not_found"
	PolicyViolation    Kind = "policy_violation"
	InvalidDependency  Kind = "invalid_dependency"
	CyclicDependency   Kind = "cyclic_dependency"
	OutOfRange         Kind = "out_of_range"
	StaleConfiguration Kind = "stale_configuration"
	AlreadyInitialized Kind = "already_initialized"
)

// Error is the concrete error type for all engine-level failures.
type Error struct {
	Kind   Kind
	Module string
	Field  string
	Flag   string   // the policy flag that blocked the edit, if any
	Cycle  []string // field names forming the rejected dependency cycle
	Msg    string
}

func (e *Error) Error() string {
	var b strings.Builder
	b.WriteString(string(e.Kind))
	if e.Module != "" {
		fmt.Fprintf(&b, " module=%s", e.Module)
	}
	if e.Field != "" {
		fmt.Fprintf(&b, " field=%s", e.Field)
	}
	if e.Flag != "" {
		fmt.Fprintf(&b, " flag=%s", e.Flag)
	}
	if len(e.Cycle) > 0 {
		fmt.Fprintf(&b, " cycle=%s", strings.Join(e.Cycle, " -> "))
	}
	if e.Msg != "" {
		b.WriteString(": ")
		b.WriteString(e.Msg)
	}
	return b.String()
}

// Is makes errors.Is(err, &Error{Kind: k}) match on kind alone.
func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	if !ok {
		return false
	}
	return t.Kind == e.Kind
}

// KindOf returns the engine error kind of err, or "" if err is not an
// engine error.
func KindOf(err error) Kind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return ""
}

func NotFoundf(module, field, format string, args ...any) error {
	return &Error{Kind: NotFound, Module: module, Field: field, Msg: fmt.Sprintf(format, args...)}
}

func Policyf(module, field, flag, format string, args ...any) error {
	return &Error{Kind: PolicyViolation, Module: module, Field: field, Flag: flag, Msg: fmt.Sprintf(format, args...)}
}

func InvalidDependencyf(module, field, format string, args ...any) error {
	return &Error{Kind: InvalidDependency, Module: module, Field: field, Msg: fmt.Sprintf(format, args...)}
}

func Cyclic(module string, cycle []string) error {
	return &Error{Kind: CyclicDependency, Module: module, Cycle: cycle, Msg: "link would create a dependency cycle"}
}

func OutOfRangef(module, format string, args ...any) error {
	return &Error{Kind: OutOfRange, Module: module, Msg: fmt.Sprintf(format, args...)}
}

func Stale(module string, expected, current int64) error {
	return &Error{Kind: StaleConfiguration, Module: module, Msg: fmt.Sprintf("expected version %d but store is at %d", expected, current)}
}

func AlreadyInitializedf(module, format string, args ...any) error {
	return &Error{Kind: AlreadyInitialized, Module: module, Msg: fmt.Sprintf(format, args...)}
}
