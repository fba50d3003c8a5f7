package transcript

import "github.com/xiaot623/gogo/chatengine/internal/domain"

const (
	// DefaultKeepRatio is the share of maxMessages kept (as non-system turns) when trimming.
	DefaultKeepRatio = 0.6
	// DefaultTriggerRatio is the share of maxMessages above which a trim check runs.
	DefaultTriggerRatio = 0.8
)

// Retention decides when and how the transcript shrinks.
type Retention struct {
	MaxMessages  int
	KeepRatio    float64
	TriggerRatio float64
}

// NewRetention returns a policy with the default ratios.
func NewRetention(maxMessages int) Retention {
	return Retention{
		MaxMessages:  maxMessages,
		KeepRatio:    DefaultKeepRatio,
		TriggerRatio: DefaultTriggerRatio,
	}
}

// ShouldTrim reports whether a transcript of length n warrants a trim pass.
func (r Retention) ShouldTrim(n int) bool {
	return n > int(float64(r.MaxMessages)*r.TriggerRatio)
}

// Keep is the number of non-system turns retained by Trim.
func (r Retention) Keep() int {
	return int(float64(r.MaxMessages) * r.KeepRatio)
}

// Trim keeps every system turn plus the most recent Keep() non-system turns,
// but only once the transcript exceeds MaxMessages. The input is not modified.
func (r Retention) Trim(turns []domain.Turn) []domain.Turn {
	if len(turns) <= r.MaxMessages {
		return turns
	}

	var system, rest []domain.Turn
	for _, t := range turns {
		if t.IsSystem() {
			system = append(system, t)
		} else {
			rest = append(rest, t)
		}
	}

	keep := r.Keep()
	if keep < len(rest) {
		rest = rest[len(rest)-keep:]
	}

	out := make([]domain.Turn, 0, len(system)+len(rest))
	out = append(out, system...)
	out = append(out, rest...)
	return out
}
