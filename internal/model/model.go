// Package model holds the vocabulary shared with the statistical decision
// model: feature results going in, ranked decisions coming out.
//
// The package has no dependencies on the rest of the module so that shapes,
// features and the oracle adapters can all refer to it.
package model

import (
	"fmt"
	"sort"
	"strconv"
)

// Decision is a single outcome proposed by a Decider together with its
// probability.
type Decision struct {
	Outcome     string  `json:"outcome"`
	Probability float64 `json:"probability"`
}

func (d Decision) String() string {
	return fmt.Sprintf("%q:%.4f", d.Outcome, d.Probability)
}

// SortDecisions orders decisions by probability, highest first. Equal
// probabilities keep their original relative order.
func SortDecisions(decisions []Decision) {
	sort.SliceStable(decisions, func(i, j int) bool {
		return decisions[i].Probability > decisions[j].Probability
	})
}

// Decider is the external oracle turning a feature vector into a ranked
// outcome distribution. Implementations must be safe for concurrent use.
type Decider interface {
	Decide(results []FeatureResult) ([]Decision, error)
}

// DeciderFunc adapts a plain function to the Decider interface.
type DeciderFunc func(results []FeatureResult) ([]Decision, error)

// Decide calls f(results).
func (f DeciderFunc) Decide(results []FeatureResult) ([]Decision, error) {
	return f(results)
}

// Kind identifies the type of value carried by a FeatureResult.
type Kind int

const (
	KindBool Kind = iota
	KindInt
	KindFloat
	KindString
)

func (k Kind) String() string {
	switch k {
	case KindBool:
		return "bool"
	case KindInt:
		return "int"
	case KindFloat:
		return "float"
	case KindString:
		return "string"
	default:
		return "unknown"
	}
}

// FeatureResult is a named feature value. Exactly one of the typed fields is
// meaningful, selected by Kind.
type FeatureResult struct {
	Name string `json:"name"`
	Kind Kind   `json:"kind"`

	b bool
	i int
	f float64
	s string
}

// BoolResult builds a boolean feature result.
func BoolResult(name string, v bool) FeatureResult {
	return FeatureResult{Name: name, Kind: KindBool, b: v}
}

// IntResult builds an integer feature result.
func IntResult(name string, v int) FeatureResult {
	return FeatureResult{Name: name, Kind: KindInt, i: v}
}

// FloatResult builds a floating point feature result.
func FloatResult(name string, v float64) FeatureResult {
	return FeatureResult{Name: name, Kind: KindFloat, f: v}
}

// StringResult builds a string feature result.
func StringResult(name string, v string) FeatureResult {
	return FeatureResult{Name: name, Kind: KindString, s: v}
}

// Bool returns the boolean value and whether the result holds one.
func (r FeatureResult) Bool() (bool, bool) { return r.b, r.Kind == KindBool }

// Int returns the integer value and whether the result holds one.
func (r FeatureResult) Int() (int, bool) { return r.i, r.Kind == KindInt }

// Float returns the value as float64. Integer and boolean results are
// converted; string results report false.
func (r FeatureResult) Float() (float64, bool) {
	switch r.Kind {
	case KindFloat:
		return r.f, true
	case KindInt:
		return float64(r.i), true
	case KindBool:
		if r.b {
			return 1, true
		}
		return 0, true
	default:
		return 0, false
	}
}

// Text returns the string value and whether the result holds one.
func (r FeatureResult) Text() (string, bool) { return r.s, r.Kind == KindString }

// Value renders the value as a string regardless of kind.
func (r FeatureResult) Value() string {
	switch r.Kind {
	case KindBool:
		return strconv.FormatBool(r.b)
	case KindInt:
		return strconv.Itoa(r.i)
	case KindFloat:
		return strconv.FormatFloat(r.f, 'g', -1, 64)
	default:
		return r.s
	}
}

func (r FeatureResult) String() string {
	if r.Kind == KindString && len(r.s) > 32 {
		return fmt.Sprintf("%s=<%d bytes>", r.Name, len(r.s))
	}
	return r.Name + "=" + r.Value()
}

// Find returns the first result with the given name.
func Find(results []FeatureResult, name string) (FeatureResult, bool) {
	for _, r := range results {
		if r.Name == name {
			return r, true
		}
	}
	return FeatureResult{}, false
}
