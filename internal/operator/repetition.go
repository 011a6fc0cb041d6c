package operator

import (
	"strings"

	"github.com/kestrel-data/datamap/internal/document"
)

type repetitionRule struct {
	elements func(text string) []string
	n        int
	weighted bool
	maxFrac  float64
}

// massiveWebRepetitionRules is the fixed table of (elements, ngram_size,
// weighted, max_frac) tuples checked by massive_web_repetition_filter.
func massiveWebRepetitionRules() []repetitionRule {
	nonEmptyLines := func(text string) []string { return nonEmpty(lines(text)) }
	nonEmptyParas := func(text string) []string { return nonEmpty(paragraphs(text)) }
	tokens := func(text string) []string { return wordTokens(text) }

	rules := []repetitionRule{
		{nonEmptyLines, 1, false, 0.30},
		{nonEmptyParas, 1, false, 0.30},
		{nonEmptyLines, 1, true, 0.20},
		{nonEmptyParas, 1, true, 0.20},
	}
	tokenMax := map[int]float64{2: 0.20, 3: 0.18, 4: 0.16, 5: 0.15, 6: 0.14, 7: 0.13, 8: 0.12, 9: 0.11, 10: 0.10}
	for n := 2; n <= 10; n++ {
		rules = append(rules, repetitionRule{tokens, n, true, tokenMax[n]})
	}
	return rules
}

func nonEmpty(ss []string) []string {
	out := ss[:0:0]
	for _, s := range ss {
		if strings.TrimSpace(s) != "" {
			out = append(out, s)
		}
	}
	return out
}

// newMassiveWebRepetitionFilter implements massive_web_repetition_filter:
// drop iff any of the fixed repetition-fraction thresholds is exceeded.
func newMassiveWebRepetitionFilter(field string) Operator {
	rules := massiveWebRepetitionRules()
	return Func(func(d document.Doc) Outcome {
		s, _ := document.GetString(d, field)
		for _, r := range rules {
			elems := r.elements(s)
			frac := repetitionFraction(elems, r.n, r.weighted)
			if frac > r.maxFrac {
				return Drop()
			}
		}
		return Keep(d)
	})
}

// byteLen is the repetition filter's notion of character length: byte
// length, matching the Rust original's str::len (not a rune count).
func byteLen(s string) int { return len(s) }

// repetitionFraction implements the repetition-fraction edge cases and
// computation rules from the spec, operating on a slice of elements
// (lines, paragraphs, or word tokens depending on the rule).
func repetitionFraction(elems []string, n int, weighted bool) float64 {
	if n == 1 {
		total := len(elems)
		if total == 0 {
			return 1.0
		}
		if total == 1 {
			return 0.0
		}
		counts := make(map[string]int, total)
		for _, e := range elems {
			counts[e]++
		}
		if !weighted {
			repeated := 0
			for _, e := range elems {
				if counts[e] > 1 {
					repeated++
				}
			}
			return float64(repeated) / float64(total)
		}
		totalChars, repeatedChars := 0, 0
		for _, e := range elems {
			l := byteLen(e)
			totalChars += l
			if counts[e] > 1 {
				repeatedChars += l
			}
		}
		if totalChars == 0 {
			return 0.0
		}
		return float64(repeatedChars) / float64(totalChars)
	}

	// n > 1: build n-grams over the element sequence.
	if len(elems) < n {
		return 0.0
	}
	type ngramInfo struct {
		count   int
		charLen int
		indices [][2]int // start,end (exclusive) index ranges covered
	}
	ngrams := make(map[string]*ngramInfo)
	totalChars := 0
	for _, e := range elems {
		totalChars += byteLen(e)
	}
	if totalChars == 0 {
		return 0.0
	}

	for i := 0; i+n <= len(elems); i++ {
		key := strings.Join(elems[i:i+n], "\x00")
		charLen := 0
		for _, e := range elems[i : i+n] {
			charLen += byteLen(e)
		}
		info, ok := ngrams[key]
		if !ok {
			info = &ngramInfo{charLen: charLen}
			ngrams[key] = info
		}
		info.count++
		info.indices = append(info.indices, [2]int{i, i + n})
	}
	if len(ngrams) == 0 {
		return 0.0
	}

	if n <= 4 {
		var best *ngramInfo
		for _, info := range ngrams {
			if best == nil {
				best = info
				continue
			}
			if info.count > best.count || (info.count == best.count && info.charLen > best.charLen) {
				best = info
			}
		}
		if best.count <= 1 {
			return 0.0
		}
		return float64(best.count) * float64(best.charLen) / float64(totalChars)
	}

	// n >= 5: union of element indices covered by any repeated n-gram.
	covered := make(map[int]bool)
	for _, info := range ngrams {
		if info.count <= 1 {
			continue
		}
		for _, rng := range info.indices {
			for i := rng[0]; i < rng[1]; i++ {
				covered[i] = true
			}
		}
	}
	coveredChars := 0
	for i := range covered {
		coveredChars += byteLen(elems[i])
	}
	return float64(coveredChars) / float64(totalChars)
}
