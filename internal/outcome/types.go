package outcome

import (
	"encoding/json"
	"fmt"
	"math"
	"strconv"
	"strings"

	"gopkg.in/yaml.v3"
)

// #region value
// Value is a feedback literal as configured by the experimenter. It is kept as
// text so numeric coercion can be applied where a number is required.
type Value string

// Int returns a Value holding n.
func Int(n int) Value { return Value(strconv.Itoa(n)) }

func (v Value) String() string { return string(v) }

// Float parses the whole literal as a finite number.
func (v Value) Float() (float64, bool) {
	f, err := strconv.ParseFloat(strings.TrimSpace(string(v)), 64)
	if err != nil || math.IsNaN(f) || math.IsInf(f, 0) {
		return 0, false
	}
	return f, true
}

// MarshalJSON writes numeric literals as JSON numbers and anything else as a string.
func (v Value) MarshalJSON() ([]byte, error) {
	if f, ok := v.Float(); ok {
		return []byte(strconv.FormatFloat(f, 'f', -1, 64)), nil
	}
	return json.Marshal(string(v))
}

// UnmarshalJSON accepts a JSON number or string.
func (v *Value) UnmarshalJSON(data []byte) error {
	s := strings.TrimSpace(string(data))
	switch {
	case s == "null":
		*v = ""
	case strings.HasPrefix(s, `"`):
		var str string
		if err := json.Unmarshal(data, &str); err != nil {
			return fmt.Errorf("decode value: %w", err)
		}
		*v = Value(str)
	default:
		*v = Value(s)
	}
	return nil
}

// UnmarshalYAML accepts any scalar.
func (v *Value) UnmarshalYAML(node *yaml.Node) error {
	if node.Kind != yaml.ScalarNode {
		return fmt.Errorf("line %d: outcome value must be a scalar", node.Line)
	}
	*v = Value(node.Value)
	return nil
}
// #endregion value

// #region values
// Values is an outcome sequence. A single scalar in a config file decodes to a
// one-element sequence, which samples as a constant.
type Values []Value

// UnmarshalYAML accepts a scalar or a sequence of scalars.
func (vs *Values) UnmarshalYAML(node *yaml.Node) error {
	switch node.Kind {
	case yaml.ScalarNode:
		if node.Tag == "!!null" {
			*vs = nil
			return nil
		}
		*vs = Values{Value(node.Value)}
		return nil
	case yaml.SequenceNode:
		out := make(Values, 0, len(node.Content))
		for _, item := range node.Content {
			var v Value
			if err := item.Decode(&v); err != nil {
				return err
			}
			out = append(out, v)
		}
		*vs = out
		return nil
	}
	return fmt.Errorf("line %d: outcomes must be a scalar or a sequence", node.Line)
}

// UnmarshalJSON accepts a scalar or an array.
func (vs *Values) UnmarshalJSON(data []byte) error {
	s := strings.TrimSpace(string(data))
	if s == "null" {
		*vs = nil
		return nil
	}
	if strings.HasPrefix(s, "[") {
		var out []Value
		if err := json.Unmarshal(data, &out); err != nil {
			return fmt.Errorf("decode outcomes: %w", err)
		}
		*vs = out
		return nil
	}
	var v Value
	if err := v.UnmarshalJSON(data); err != nil {
		return err
	}
	*vs = Values{v}
	return nil
}
// #endregion values

// #region weights
// EqualMarker is the literal accepted in place of a weight list.
const EqualMarker = "equal"

// Weights are the relative sampling weights paired with an outcome sequence.
// The zero value means "not configured", which samples uniformly.
type Weights struct {
	Equal bool
	List  []float64
}

// EqualWeights returns the "equal" marker.
func EqualWeights() Weights { return Weights{Equal: true} }

// Explicit returns a weight list.
func Explicit(w ...float64) Weights { return Weights{List: w} }

// IsSet reports whether an explicit list was configured.
func (w Weights) IsSet() bool { return !w.Equal && w.List != nil }

func (w Weights) String() string {
	if w.Equal {
		return EqualMarker
	}
	if w.List == nil {
		return "unset"
	}
	return fmt.Sprint(w.List)
}

// UnmarshalYAML accepts "equal", a number, a sequence of numbers, or null.
func (w *Weights) UnmarshalYAML(node *yaml.Node) error {
	switch node.Kind {
	case yaml.ScalarNode:
		if node.Tag == "!!null" {
			*w = Weights{}
			return nil
		}
		if strings.EqualFold(strings.TrimSpace(node.Value), EqualMarker) {
			*w = EqualWeights()
			return nil
		}
		var f float64
		if err := node.Decode(&f); err != nil {
			return fmt.Errorf("line %d: weights must be %q or numbers", node.Line, EqualMarker)
		}
		*w = Explicit(f)
		return nil
	case yaml.SequenceNode:
		var list []float64
		if err := node.Decode(&list); err != nil {
			return fmt.Errorf("line %d: weights must be numbers: %w", node.Line, err)
		}
		*w = Weights{List: list}
		return nil
	}
	return fmt.Errorf("line %d: weights must be %q or a sequence", node.Line, EqualMarker)
}

// MarshalYAML writes the marker, the list, or null.
func (w Weights) MarshalYAML() (interface{}, error) {
	if w.Equal {
		return EqualMarker, nil
	}
	if w.List == nil {
		return nil, nil
	}
	return w.List, nil
}

// UnmarshalJSON accepts "equal", an array of numbers, or null.
func (w *Weights) UnmarshalJSON(data []byte) error {
	s := strings.TrimSpace(string(data))
	switch {
	case s == "null":
		*w = Weights{}
	case strings.HasPrefix(s, `"`):
		var marker string
		if err := json.Unmarshal(data, &marker); err != nil {
			return fmt.Errorf("decode weights: %w", err)
		}
		if !strings.EqualFold(marker, EqualMarker) {
			return fmt.Errorf("decode weights: unknown marker %q", marker)
		}
		*w = EqualWeights()
	default:
		var list []float64
		if err := json.Unmarshal(data, &list); err != nil {
			return fmt.Errorf("decode weights: %w", err)
		}
		*w = Weights{List: list}
	}
	return nil
}

// MarshalJSON mirrors UnmarshalJSON.
func (w Weights) MarshalJSON() ([]byte, error) {
	if w.Equal {
		return json.Marshal(EqualMarker)
	}
	if w.List == nil {
		return []byte("null"), nil
	}
	return json.Marshal(w.List)
}
// #endregion weights

// #region distribution
// Distribution is one option's discrete outcome distribution.
type Distribution struct {
	Values  Values
	Weights Weights
}

// Constant returns a single-outcome distribution.
func Constant(v Value) Distribution { return Distribution{Values: Values{v}} }

// Discrete returns a distribution over values with the given weights.
func Discrete(values []Value, weights Weights) Distribution {
	return Distribution{Values: values, Weights: weights}
}
// #endregion distribution

// #region errors
// ConfigurationError reports malformed distribution or trial parameters.
type ConfigurationError struct {
	Field  string
	Reason string
}

func (e *ConfigurationError) Error() string {
	if e.Field == "" {
		return "configuration: " + e.Reason
	}
	return fmt.Sprintf("configuration: %s: %s", e.Field, e.Reason)
}

// NumericCoercionError reports a feedback value that cannot be read as a number.
type NumericCoercionError struct {
	Value Value
}

func (e *NumericCoercionError) Error() string {
	return fmt.Sprintf("feedback %q is not a number", string(e.Value))
}
// #endregion errors
