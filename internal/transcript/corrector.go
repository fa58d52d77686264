// Package transcript post-processes recognizer output before scoring.
//
// Speech recognizers reliably mangle technical vocabulary: "Kubernetes"
// becomes "cooper netties", "goroutine" becomes "go routine" or "gore teen".
// The Corrector aligns words in a final transcript against the configured
// vocabulary using Double Metaphone phonetic codes, then ranks candidates by
// Jaro-Winkler similarity. It is deliberately conservative — a correction is
// only applied when the phonetic codes overlap AND the string similarity
// clears a threshold, so ordinary words are left alone.
package transcript

import (
	"strings"

	"github.com/antzucaro/matchr"
)

const (
	defaultSimilarityThreshold = 0.78

	// maxNGram is the longest run of transcript words considered as one
	// misheard vocabulary term ("cooper netties" → "Kubernetes").
	maxNGram = 2
)

// Option is a functional option for configuring a [Corrector].
type Option func(*Corrector)

// WithSimilarityThreshold sets the minimum Jaro-Winkler score a phonetic
// candidate needs before it replaces transcript text. Default: 0.78.
func WithSimilarityThreshold(threshold float64) Option {
	return func(c *Corrector) {
		c.threshold = threshold
	}
}

// Corrector repairs misrecognized vocabulary terms in transcript text.
// It is read-only after construction and safe for concurrent use.
type Corrector struct {
	threshold float64
	terms     []term
}

type term struct {
	original string
	lower    string
	codes    map[string]struct{}
}

// NewCorrector builds a Corrector for the given vocabulary. Terms keep their
// original casing in corrections. An empty vocabulary yields a pass-through
// corrector.
func NewCorrector(vocabulary []string, opts ...Option) *Corrector {
	c := &Corrector{threshold: defaultSimilarityThreshold}
	for _, o := range opts {
		o(c)
	}
	for _, v := range vocabulary {
		v = strings.TrimSpace(v)
		if v == "" {
			continue
		}
		lower := strings.ToLower(v)
		c.terms = append(c.terms, term{
			original: v,
			lower:    lower,
			codes:    phoneticCodes(lower),
		})
	}
	return c
}

// Correct returns text with misheard vocabulary terms replaced. Words that
// match a vocabulary term exactly (case-insensitive) are normalized to the
// vocabulary casing; near-misses are replaced only when both the phonetic
// and similarity gates pass.
func (c *Corrector) Correct(text string) string {
	if len(c.terms) == 0 || strings.TrimSpace(text) == "" {
		return text
	}

	words := strings.Fields(text)
	out := make([]string, 0, len(words))

	for i := 0; i < len(words); {
		replacement, consumed := c.matchAt(words, i)
		if consumed > 0 {
			out = append(out, replacement)
			i += consumed
			continue
		}
		out = append(out, words[i])
		i++
	}
	return strings.Join(out, " ")
}

// matchAt tries to match a vocabulary term starting at words[i], longest
// n-gram first. Returns the replacement (with any trailing punctuation from
// the last consumed word preserved) and the number of words consumed, or
// ("", 0) when nothing matches.
func (c *Corrector) matchAt(words []string, i int) (string, int) {
	for n := maxNGram; n >= 1; n-- {
		if i+n > len(words) {
			continue
		}
		span := strings.Join(words[i:i+n], " ")
		core, punct := splitPunct(span)
		if core == "" {
			continue
		}
		if best := c.bestTerm(strings.ToLower(core)); best != nil {
			return best.original + punct, n
		}
	}
	return "", 0
}

// bestTerm returns the best-scoring vocabulary term for the candidate text,
// or nil when no term clears both gates.
func (c *Corrector) bestTerm(candidate string) *term {
	candConcat := strings.ReplaceAll(candidate, " ", "")
	// Code the span both word by word and as one joined token, so a term
	// split across words ("go routine") still aligns with its single-token
	// vocabulary form.
	candCodes := phoneticCodes(candidate)
	for code := range phoneticCodes(candConcat) {
		candCodes[code] = struct{}{}
	}

	var (
		best      *term
		bestScore float64
	)
	for idx := range c.terms {
		t := &c.terms[idx]
		if candidate == t.lower {
			return t
		}
		if !codesOverlap(candCodes, t.codes) {
			continue
		}
		score := matchr.JaroWinkler(candConcat, strings.ReplaceAll(t.lower, " ", ""), false)
		if score >= c.threshold && score > bestScore {
			best = t
			bestScore = score
		}
	}
	return best
}

// splitPunct separates trailing sentence punctuation from a span so a match
// on "netties?" still compares against "netties".
func splitPunct(s string) (core, punct string) {
	core = strings.TrimRight(s, ".,!?;:")
	return core, s[len(core):]
}

// phoneticCodes returns the union of Double Metaphone codes across all
// tokens of s.
func phoneticCodes(s string) map[string]struct{} {
	codes := make(map[string]struct{}, 4)
	for _, tok := range strings.Fields(s) {
		p, sec := matchr.DoubleMetaphone(tok)
		if p != "" {
			codes[p] = struct{}{}
		}
		if sec != "" {
			codes[sec] = struct{}{}
		}
	}
	return codes
}

func codesOverlap(a, b map[string]struct{}) bool {
	if len(a) > len(b) {
		a, b = b, a
	}
	for code := range a {
		if _, ok := b[code]; ok {
			return true
		}
	}
	return false
}
