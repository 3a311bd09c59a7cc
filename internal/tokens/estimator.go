// Package tokens provides token-count estimation for prompt budgeting.
package tokens

// Estimator approximates how many model tokens a string will consume.
// Implementations must be deterministic and monotonic: longer input never
// yields a smaller count. Callers rely on nothing else, so the heuristic
// can be swapped for a real tokenizer without touching call sites.
type Estimator interface {
	Estimate(text string) int
}

// DefaultCharsPerToken is the fixed ratio used by the ratio estimator.
// Roughly calibrated for ChatML-formatted English text; better to slightly
// overestimate than to overflow the backend's context window.
const DefaultCharsPerToken = 2.7

// RatioEstimator estimates tokens as len(text) divided by a fixed
// characters-per-token ratio. It is a crude heuristic, not a tokenizer.
type RatioEstimator struct {
	// CharsPerToken is the divisor. Zero or negative falls back to
	// DefaultCharsPerToken.
	CharsPerToken float64
}

func (e RatioEstimator) ratio() float64 {
	if e.CharsPerToken <= 0 {
		return DefaultCharsPerToken
	}
	return e.CharsPerToken
}

// Estimate returns the estimated token count for text, rounded up so that
// budgeting errs on the safe side.
func (e RatioEstimator) Estimate(text string) int {
	if text == "" {
		return 0
	}
	n := float64(len(text)) / e.ratio()
	count := int(n)
	if float64(count) < n {
		count++
	}
	return count
}
