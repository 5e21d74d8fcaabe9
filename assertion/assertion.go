// Package assertion evaluates the (predicate, expected, actual) triples
// produced by probe operations and turns failed predicates into errors.
//
// Probes never decide pass or fail themselves: they hand a Result to an
// Evaluator, which applies it in positive (Assert) or negated (AssertNot)
// form.
package assertion

import (
	"errors"
	"fmt"
	"reflect"
)

// Predicate names the comparison a Result asks for.
type Predicate string

const (
	// Equals holds when Actual equals Expected.
	Equals Predicate = "Equals"
	// True holds when Actual is the boolean true.
	True Predicate = "True"
)

// Result is a comparison triple. Expected is unused by True.
type Result struct {
	Predicate Predicate `json:"predicate"`
	Expected  any       `json:"expected,omitempty"`
	Actual    any       `json:"actual"`
}

// ErrMismatch is matched by every *MismatchError.
var ErrMismatch = errors.New("assertion: mismatch")

// MismatchError reports a predicate that did not hold.
type MismatchError struct {
	Result  Result
	Negated bool
	Message string
}

func (e *MismatchError) Error() string {
	msg := e.Message
	if msg == "" {
		msg = "assertion failed"
	}
	not := ""
	if e.Negated {
		not = "not "
	}
	switch e.Result.Predicate {
	case True:
		return fmt.Sprintf("%s: expected %strue, got %v", msg, not, e.Result.Actual)
	default:
		return fmt.Sprintf("%s: expected %s%s %q, got %q", msg, not, e.Result.Predicate,
			fmt.Sprint(e.Result.Expected), fmt.Sprint(e.Result.Actual))
	}
}

func (e *MismatchError) Is(target error) bool { return target == ErrMismatch }

// Holds evaluates r. Equals compares loosely: deep equality first, then the
// printed forms, so a script returning "700" equals an expected 700.
func Holds(r Result) (bool, error) {
	switch r.Predicate {
	case Equals:
		if reflect.DeepEqual(r.Expected, r.Actual) {
			return true, nil
		}
		if r.Expected == nil || r.Actual == nil {
			return false, nil
		}
		return fmt.Sprint(r.Expected) == fmt.Sprint(r.Actual), nil
	case True:
		b, ok := r.Actual.(bool)
		return ok && b, nil
	}
	return false, fmt.Errorf("assertion: unknown predicate %q", r.Predicate)
}

// Verdict is the outcome of one evaluation, handed to a Recorder.
type Verdict struct {
	Result  Result `json:"result"`
	Negated bool   `json:"negated,omitempty"`
	Passed  bool   `json:"passed"`
	Message string `json:"message"`
}

// Recorder receives every verdict an Evaluator reaches.
type Recorder func(Verdict)

// Evaluator applies Results. The zero value is ready to use.
type Evaluator struct {
	Record Recorder
}

// Assert returns a *MismatchError when r does not hold.
func (e *Evaluator) Assert(r Result, msg string) error {
	return e.evaluate(r, false, msg)
}

// AssertNot returns a *MismatchError when r holds.
func (e *Evaluator) AssertNot(r Result, msg string) error {
	return e.evaluate(r, true, msg)
}

func (e *Evaluator) evaluate(r Result, negated bool, msg string) error {
	ok, err := Holds(r)
	if err != nil {
		return err
	}
	passed := ok != negated
	if e != nil && e.Record != nil {
		e.Record(Verdict{Result: r, Negated: negated, Passed: passed, Message: msg})
	}
	if passed {
		return nil
	}
	return &MismatchError{Result: r, Negated: negated, Message: msg}
}
