// Package validation evaluates declarative field constraints attached to
// event payloads. Payloads describe themselves through a static Rules table,
// so evaluation never inspects struct layout at run time.
package validation

import (
	"errors"
	"strings"
)

var ErrInvalidContract = errors.New("invalid contract")

type Issue struct{ Field, Reason string }

func (i Issue) String() string { return i.Field + " " + i.Reason }

type ValidationError struct{ Issues []Issue }

func (e *ValidationError) Error() string {
	if len(e.Issues) == 0 {
		return ErrInvalidContract.Error()
	}
	msgs := make([]string, len(e.Issues))
	for i, is := range e.Issues {
		msgs[i] = is.String()
	}
	return ErrInvalidContract.Error() + ": " + strings.Join(msgs, "; ")
}

func (e *ValidationError) Is(target error) bool { return target == ErrInvalidContract }

// Field binds a named value to the constraints it must satisfy.
type Field struct {
	Name        string
	Value       any
	Constraints []Constraint
}

// F is shorthand for building a Field.
func F(name string, value any, constraints ...Constraint) Field {
	return Field{Name: name, Value: value, Constraints: constraints}
}

type Rules []Field

// Validatable is implemented by payloads that declare constraints.
type Validatable interface {
	Rules() Rules
}

// Result is the outcome of a validation run. The zero value is valid.
type Result struct {
	Issues []Issue
}

func (r Result) IsValid() bool { return len(r.Issues) == 0 }

// Errors returns one human-readable message per failed constraint, in
// declaration order.
func (r Result) Errors() []string {
	out := make([]string, len(r.Issues))
	for i, is := range r.Issues {
		out[i] = is.String()
	}
	return out
}

// Err returns nil for a valid result and a *ValidationError otherwise.
func (r Result) Err() error {
	if r.IsValid() {
		return nil
	}
	return &ValidationError{Issues: append([]Issue(nil), r.Issues...)}
}

func (r *Result) add(f, reason string) {
	r.Issues = append(r.Issues, Issue{Field: f, Reason: reason})
}

// Validate evaluates v when it implements Validatable. Anything else is
// reported as valid. Validate never panics on bad input.
func Validate(v any) Result {
	if v == nil {
		return Result{}
	}
	vv, ok := v.(Validatable)
	if !ok {
		return Result{}
	}
	return Check(vv.Rules())
}

// Check evaluates every constraint of every field in order.
func Check(rules Rules) Result {
	values := make(map[string]any, len(rules))
	for _, f := range rules {
		values[f.Name] = f.Value
	}
	lookup := func(name string) (any, bool) {
		v, ok := values[name]
		return v, ok
	}

	var res Result
	for _, f := range rules {
		for _, c := range f.Constraints {
			if c == nil {
				continue
			}
			if reason, failed := c.Check(f.Value, lookup); failed {
				res.add(f.Name, reason)
			}
		}
	}
	return res
}
