package validation

import (
	"fmt"
	"reflect"
	"strings"
	"time"
	"unicode/utf8"
)

// Lookup resolves the value of a sibling field by name.
type Lookup func(name string) (any, bool)

// Constraint checks a single field value. It returns the failure reason and
// true when the value violates the constraint.
type Constraint interface {
	Check(value any, lookup Lookup) (reason string, failed bool)
}

type ConstraintFunc func(value any, lookup Lookup) (string, bool)

func (f ConstraintFunc) Check(value any, lookup Lookup) (string, bool) { return f(value, lookup) }

// Required fails on nil, blank strings, empty collections, nil pointers and
// the zero time. Numbers and booleans always satisfy it.
func Required() Constraint {
	return ConstraintFunc(func(value any, _ Lookup) (string, bool) {
		if isMissing(value) {
			return "is required", true
		}
		return "", false
	})
}

// RequiredWhen applies Required only when the field named other currently
// equals want.
func RequiredWhen(other string, want any) Constraint {
	return ConstraintFunc(func(value any, lookup Lookup) (string, bool) {
		got, ok := lookup(other)
		if !ok || !sameValue(got, want) {
			return "", false
		}
		if isMissing(value) {
			return fmt.Sprintf("is required when %s is %v", other, want), true
		}
		return "", false
	})
}

// MinLength fails when a string, slice or map is shorter than n.
// Nil values pass; combine with Required to forbid them.
func MinLength(n int) Constraint {
	return ConstraintFunc(func(value any, _ Lookup) (string, bool) {
		l, ok := length(value)
		if !ok || isNil(value) {
			return "", false
		}
		if l < n {
			return fmt.Sprintf("must have a minimum length of %d", n), true
		}
		return "", false
	})
}

// MaxLength fails when a string, slice or map is longer than n.
func MaxLength(n int) Constraint {
	return ConstraintFunc(func(value any, _ Lookup) (string, bool) {
		l, ok := length(value)
		if !ok {
			return "", false
		}
		if l > n {
			return fmt.Sprintf("must have a maximum length of %d", n), true
		}
		return "", false
	})
}

type lener interface{ Len() int }

func length(value any) (int, bool) {
	switch v := value.(type) {
	case nil:
		return 0, true
	case string:
		return utf8.RuneCountInString(v), true
	case *string:
		if v == nil {
			return 0, true
		}
		return utf8.RuneCountInString(*v), true
	case []string:
		return len(v), true
	case []any:
		return len(v), true
	case []byte:
		return len(v), true
	case []int:
		return len(v), true
	case map[string]string:
		return len(v), true
	case map[string]any:
		return len(v), true
	case map[string]struct{}:
		return len(v), true
	case lener:
		if isNil(v) {
			return 0, true
		}
		return v.Len(), true
	default:
		return 0, false
	}
}

// isNil reports a nil value of any pointer, slice or map type, so every
// type length accepts is nil-tolerant alike.
func isNil(value any) bool {
	if value == nil {
		return true
	}
	rv := reflect.ValueOf(value)
	switch rv.Kind() {
	case reflect.Pointer, reflect.Map, reflect.Slice:
		return rv.IsNil()
	}
	return false
}

func isMissing(value any) bool {
	switch v := value.(type) {
	case nil:
		return true
	case string:
		return strings.TrimSpace(v) == ""
	case *string:
		return v == nil || strings.TrimSpace(*v) == ""
	case time.Time:
		return v.IsZero()
	case *time.Time:
		return v == nil || v.IsZero()
	case fmt.Stringer:
		return strings.TrimSpace(v.String()) == ""
	}
	if isNil(value) {
		return true
	}
	if l, ok := length(value); ok {
		return l == 0
	}
	return false
}

func sameValue(a, b any) bool {
	if a == nil || b == nil {
		return a == nil && b == nil
	}
	return fmt.Sprint(a) == fmt.Sprint(b)
}
