// Package tokens estimates token counts for budget accounting.
package tokens

import (
	"sync"
	"unicode/utf8"

	"github.com/pkoukk/tiktoken-go"
)

// Estimator counts tokens in text. It prefers the cl100k_base encoding and
// falls back to a runes/4 heuristic when the encoding cannot be loaded
// (e.g. offline environments where the BPE data is unavailable).
type Estimator struct {
	once    sync.Once
	encoder *tiktoken.Tiktoken
}

// NewEstimator creates an estimator. Encoding setup is deferred to first use.
func NewEstimator() *Estimator {
	return &Estimator{}
}

func (e *Estimator) init() {
	e.once.Do(func() {
		enc, err := tiktoken.GetEncoding("cl100k_base")
		if err == nil {
			e.encoder = enc
		}
	})
}

// Count returns the estimated token count of text.
func (e *Estimator) Count(text string) int {
	if text == "" {
		return 0
	}

	e.init()
	if e.encoder != nil {
		return len(e.encoder.Encode(text, nil, nil))
	}

	// Rough heuristic: 1 token ~ 4 characters
	runes := utf8.RuneCountInString(text)
	return (runes + 3) / 4
}

// Approximate reports whether Count uses the heuristic fallback instead of a
// real encoder.
func (e *Estimator) Approximate() bool {
	e.init()
	return e.encoder == nil
}
