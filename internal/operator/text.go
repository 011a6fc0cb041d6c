package operator

import (
	"strings"
	"unicode"

	"github.com/clipperhouse/uax29/v2/words"
)

// textFieldFor resolves the operator's own TextField if set, else the
// pipeline-level default, else "text" — the Open Question decision recorded
// in DESIGN.md (per-operator value wins).
func textFieldFor(own, pipelineDefault string) string {
	if own != "" {
		return own
	}
	if pipelineDefault != "" {
		return pipelineDefault
	}
	return "text"
}

// wordTokens splits text on Unicode word boundaries, keeping only tokens
// that contain at least one letter or number (uax29 also yields whitespace
// and punctuation "words" per the boundary algorithm; callers that want raw
// whitespace-split tokens should use whitespaceTokens instead).
func wordTokens(text string) []string {
	var out []string
	for word := range words.FromString(text).All() {
		if hasAlnum(word) {
			out = append(out, word)
		}
	}
	return out
}

// wordTokensIgnorePunct is wordTokens but additionally drops tokens whose
// first character is not alphanumeric, per page_len_filter's
// ignore_punctuation option.
func wordTokensIgnorePunct(text string) []string {
	toks := wordTokens(text)
	out := toks[:0:0]
	for _, t := range toks {
		r := []rune(t)
		if len(r) == 0 {
			continue
		}
		if unicode.IsLetter(r[0]) || unicode.IsDigit(r[0]) {
			out = append(out, t)
		}
	}
	return out
}

func hasAlnum(s string) bool {
	for _, r := range s {
		if unicode.IsLetter(r) || unicode.IsDigit(r) {
			return true
		}
	}
	return false
}

// whitespaceTokens splits on runs of Unicode whitespace, the simple
// tokenization several operators (word_len_filter, symbol_ratio_filter,
// alphabetic_word_ratio_filter, stop_word_filter) use.
func whitespaceTokens(text string) []string {
	return strings.Fields(text)
}

// hasAlpha reports whether s contains at least one alphabetic rune.
func hasAlpha(s string) bool {
	for _, r := range s {
		if unicode.IsLetter(r) {
			return true
		}
	}
	return false
}

// lines splits text on "\n" without dropping empty entries, matching the
// original's line-oriented operators that count empty lines in ratios.
func lines(text string) []string {
	return strings.Split(text, "\n")
}

// sentenceCount counts the segments produced by splitSentences. Used by
// page_len_filter(length_type=sentence).
func sentenceCount(text string) int {
	n := 0
	for range splitSentences(text) {
		n++
	}
	return n
}

// splitSentences is a minimal sentence splitter: split on ., !, ? followed
// by whitespace or end of string. It does not use uax29's sentence
// segmenter; word-boundary segmentation (wordTokens) uses the uax29 word
// segmenter above.
func splitSentences(text string) []string {
	var out []string
	start := 0
	runes := []rune(text)
	for i, r := range runes {
		if r == '.' || r == '!' || r == '?' {
			if i+1 >= len(runes) || unicode.IsSpace(runes[i+1]) {
				seg := strings.TrimSpace(string(runes[start : i+1]))
				if seg != "" {
					out = append(out, seg)
				}
				start = i + 1
			}
		}
	}
	if rest := strings.TrimSpace(string(runes[start:])); rest != "" {
		out = append(out, rest)
	}
	return out
}

// paragraphs splits text on blank lines, dropping empty paragraphs, per the
// massive_web_repetition_filter "non-empty paragraphs" element kind.
func paragraphs(text string) []string {
	parts := strings.Split(text, "\n\n")
	out := parts[:0:0]
	for _, p := range parts {
		if strings.TrimSpace(p) != "" {
			out = append(out, p)
		}
	}
	return out
}
