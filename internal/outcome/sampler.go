package outcome

import (
	"fmt"
	"math"
	"math/rand/v2"
	"strconv"
	"strings"
	"sync"
	"time"
	"unicode"

	"gonum.org/v1/gonum/stat/distuv"
)

// #region validate
// Validate checks the distribution named field. Weights are only checked when
// there is more than one outcome to choose from.
func (d Distribution) Validate(field string) error {
	if len(d.Values) == 0 {
		return &ConfigurationError{Field: field, Reason: "no outcome values configured"}
	}
	if len(d.Values) == 1 {
		return nil
	}
	if !d.Weights.IsSet() {
		return nil
	}
	if len(d.Weights.List) != len(d.Values) {
		return &ConfigurationError{
			Field:  field,
			Reason: fmt.Sprintf("%d outcomes but %d weights", len(d.Values), len(d.Weights.List)),
		}
	}
	var sum float64
	for i, w := range d.Weights.List {
		if math.IsNaN(w) || math.IsInf(w, 0) || w < 0 {
			return &ConfigurationError{
				Field:  field,
				Reason: fmt.Sprintf("weight %d (%v) must be a finite non-negative number", i, w),
			}
		}
		sum += w
	}
	if sum <= 0 {
		return &ConfigurationError{Field: field, Reason: "weights sum to zero"}
	}
	return nil
}

// Resolve returns the sampling weights. "equal" and unset weights become a
// vector of ones.
func (d Distribution) Resolve() []float64 {
	if d.Weights.IsSet() {
		out := make([]float64, len(d.Weights.List))
		copy(out, d.Weights.List)
		return out
	}
	out := make([]float64, len(d.Values))
	for i := range out {
		out[i] = 1
	}
	return out
}
// #endregion validate

// #region sampler
// Sampler draws feedback values for one session. Draws are serialized so a
// sampler can be shared by the trials of a session.
type Sampler struct {
	mu  sync.Mutex
	src rand.Source
}

// NewSampler returns a sampler seeded with seed. A zero seed uses the clock.
func NewSampler(seed uint64) *Sampler {
	if seed == 0 {
		seed = uint64(time.Now().UnixNano())
	}
	return &Sampler{src: rand.NewPCG(seed, seed>>1|1)}
}

// Sample draws one value from d with replacement. A single-valued
// distribution returns its value without consuming randomness.
func (s *Sampler) Sample(d Distribution) (Value, error) {
	if err := d.Validate("distribution"); err != nil {
		return "", err
	}
	if len(d.Values) == 1 {
		return d.Values[0], nil
	}

	s.mu.Lock()
	idx := distuv.NewCategorical(d.Resolve(), s.src).Rand()
	s.mu.Unlock()

	return d.Values[int(idx)], nil
}
// #endregion sampler

// #region coercion
// Integer reads the leading integer of the literal the way a browser's
// parseInt does: leading whitespace and sign are skipped, a 0x prefix selects
// hex, and parsing stops at the first non-digit ("10.7" is 10, "3px" is 3).
func (v Value) Integer() (int, error) {
	s := strings.TrimLeftFunc(string(v), func(r rune) bool {
		return unicode.IsSpace(r) || r == '\ufeff'
	})
	neg := false
	if s != "" && (s[0] == '+' || s[0] == '-') {
		neg = s[0] == '-'
		s = s[1:]
	}
	base := 10
	if len(s) >= 2 && s[0] == '0' && (s[1] == 'x' || s[1] == 'X') {
		base = 16
		s = s[2:]
	}
	end := 0
	for end < len(s) && isDigit(s[end], base) {
		end++
	}
	if end == 0 {
		return 0, &NumericCoercionError{Value: v}
	}
	n, err := strconv.ParseInt(s[:end], base, 64)
	if err != nil {
		return 0, &NumericCoercionError{Value: v}
	}
	if neg {
		n = -n
	}
	return int(n), nil
}

func isDigit(c byte, base int) bool {
	switch {
	case c >= '0' && c <= '9':
		return true
	case base == 16 && c >= 'a' && c <= 'f':
		return true
	case base == 16 && c >= 'A' && c <= 'F':
		return true
	}
	return false
}
// #endregion coercion
