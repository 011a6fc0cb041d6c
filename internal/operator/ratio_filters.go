package operator

import (
	"strings"

	"github.com/kestrel-data/datamap/internal/document"
)

// newSymbolRatioFilter implements symbol_ratio_filter: sum the counts of the
// literal symbols "#", "...", ". . .", and "…", divide by whitespace-token
// count, keep iff ratio <= max.
func newSymbolRatioFilter(c Config, field string) Operator {
	max := c.MaxSymbolToWordRatio
	return Func(func(d document.Doc) Outcome {
		s, _ := document.GetString(d, field)
		toks := whitespaceTokens(s)
		if len(toks) == 0 {
			return Keep(d)
		}
		symCount := strings.Count(s, "#") + strings.Count(s, "...") + strings.Count(s, ". . .") + strings.Count(s, "…")
		ratio := float64(symCount) / float64(len(toks))
		if ratio <= max {
			return Keep(d)
		}
		return Drop()
	})
}

// newBulletFilter implements bullet_filter: ratio of lines starting with a
// bullet glyph over all lines (including empty lines); keep iff ratio <= max.
func newBulletFilter(c Config, field string) Operator {
	max := c.MaxBulletRatio
	bullets := []string{"●", "•", "*", "-"}
	return Func(func(d document.Doc) Outcome {
		s, _ := document.GetString(d, field)
		ls := lines(s)
		if len(ls) == 0 {
			return Keep(d)
		}
		bulletCount := 0
		for _, l := range ls {
			for _, b := range bullets {
				if strings.HasPrefix(l, b) {
					bulletCount++
					break
				}
			}
		}
		ratio := float64(bulletCount) / float64(len(ls))
		if ratio <= max {
			return Keep(d)
		}
		return Drop()
	})
}

// newEllipsisLineRatioFilter implements ellipsis_line_ratio_filter:
// denominator excludes empty lines; a line ends with ellipsis if it ends
// with "...", ". . .", or "…".
func newEllipsisLineRatioFilter(c Config, field string) Operator {
	max := c.MaxRatio
	return Func(func(d document.Doc) Outcome {
		s, _ := document.GetString(d, field)
		total, ellip := 0, 0
		for _, l := range lines(s) {
			if l == "" {
				continue
			}
			total++
			if strings.HasSuffix(l, "...") || strings.HasSuffix(l, ". . .") || strings.HasSuffix(l, "…") {
				ellip++
			}
		}
		if total == 0 {
			return Keep(d)
		}
		ratio := float64(ellip) / float64(total)
		if ratio <= max {
			return Keep(d)
		}
		return Drop()
	})
}

// newAlphabeticWordRatioFilter implements alphabetic_word_ratio_filter:
// non-alphabetic words are whitespace tokens containing no alphabetic rune;
// ratio = non_alpha/total, keep iff ratio <= max.
func newAlphabeticWordRatioFilter(c Config, field string) Operator {
	max := c.MaxRatio
	return Func(func(d document.Doc) Outcome {
		s, _ := document.GetString(d, field)
		toks := whitespaceTokens(s)
		if len(toks) == 0 {
			return Keep(d)
		}
		nonAlpha := 0
		for _, t := range toks {
			if !hasAlpha(t) {
				nonAlpha++
			}
		}
		ratio := float64(nonAlpha) / float64(len(toks))
		if ratio <= max {
			return Keep(d)
		}
		return Drop()
	})
}

var stopWords = map[string]bool{
	"the": true, "be": true, "to": true, "of": true, "and": true,
	"that": true, "have": true, "with": true,
}

// newStopWordFilter implements stop_word_filter over the fixed English stop
// set, case-insensitive; count_unique counts distinct stop words seen,
// otherwise occurrences; keep iff count >= min.
func newStopWordFilter(c Config, field string) Operator {
	min := c.MinStopWord
	countUnique := c.CountUnique
	return Func(func(d document.Doc) Outcome {
		s, _ := document.GetString(d, field)
		toks := whitespaceTokens(strings.ToLower(s))
		if countUnique {
			seen := make(map[string]bool)
			for _, t := range toks {
				if stopWords[t] {
					seen[t] = true
				}
			}
			if len(seen) >= min {
				return Keep(d)
			}
			return Drop()
		}
		n := 0
		for _, t := range toks {
			if stopWords[t] {
				n++
			}
		}
		if n >= min {
			return Keep(d)
		}
		return Drop()
	})
}
