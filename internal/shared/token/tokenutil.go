// Package tokenutil estimates token counts for streamed text. It lazily
// initializes the cl100k_base encoding on first use and falls back to a
// character heuristic when the encoding cannot be loaded.
package tokenutil

import (
	"strings"
	"sync"
	"sync/atomic"

	"github.com/pkoukk/tiktoken-go"
)

var (
	once     sync.Once
	encoding *tiktoken.Tiktoken
	disabled atomic.Bool
)

func loadEncoding() *tiktoken.Tiktoken {
	if disabled.Load() {
		return nil
	}
	once.Do(func() {
		enc, err := tiktoken.GetEncoding("cl100k_base")
		if err == nil {
			encoding = enc
		}
	})
	return encoding
}

// DisableEncoding forces the heuristic path. The encoding download is skipped
// entirely, which keeps offline processes and tests deterministic.
func DisableEncoding() {
	disabled.Store(true)
}

// CountTokens returns a token count using cl100k_base, or EstimateFast when
// the encoding is unavailable.
func CountTokens(text string) int {
	if text == "" {
		return 0
	}
	if enc := loadEncoding(); enc != nil {
		return len(enc.Encode(text, nil, nil))
	}
	return EstimateFast(text)
}

// EstimateFast returns a heuristic token estimate: max(runes/4, word_count).
func EstimateFast(text string) int {
	trimmed := strings.TrimSpace(text)
	if trimmed == "" {
		return 0
	}
	runes := len([]rune(trimmed))
	words := len(strings.Fields(trimmed))
	estimate := runes / 4
	if estimate < words {
		estimate = words
	}
	if estimate == 0 {
		estimate = 1
	}
	return estimate
}

// EstimateDelta returns the token charge for one streamed text delta. Any
// non-empty delta costs at least one token.
func EstimateDelta(delta string) int64 {
	if delta == "" {
		return 0
	}
	n := CountTokens(delta)
	if n < 1 {
		n = 1
	}
	return int64(n)
}
