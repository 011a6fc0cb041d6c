package operator

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"
	"unicode"

	"github.com/kestrel-data/datamap/internal/document"
)

// defaultSocialMetricsRegex is the verbatim default for regex_line_modifier
// (matches lines like "1.2K likes").
const defaultSocialMetricsRegex = `^\W*\d(?:,|\.|\d)*(?:K|k|M|m|B|b)?\s+(?:likes|shares|comments|retweets|reposts|quotes|bookmarks|upvotes|downvotes|downloads|views|followers)\W*$`

// newStringSubModifier implements string_sub_modifier: apply ordered
// substring replace-all substitutions; always keep.
func newStringSubModifier(c Config, field string) Operator {
	subs := c.Subs
	return Func(func(d document.Doc) Outcome {
		s, _ := document.GetString(d, field)
		for _, sub := range subs {
			s = strings.ReplaceAll(s, sub[0], sub[1])
		}
		d2 := document.Clone(d)
		if err := document.Set(d2, field, s); err != nil {
			return Fail(err)
		}
		return Keep(d2)
	})
}

// newRegexTextFilter implements regex_text_filter: remove_matches=true
// (default) drops iff regex matches; false keeps iff regex matches.
func newRegexTextFilter(c Config, field string) (Operator, error) {
	re, err := regexp.Compile(c.RegexString)
	if err != nil {
		return nil, fmt.Errorf("regex_text_filter: %w", err)
	}
	removeMatches := true
	if c.RemoveMatches != nil {
		removeMatches = *c.RemoveMatches
	}
	return Func(func(d document.Doc) Outcome {
		s, _ := document.GetString(d, field)
		matched := re.MatchString(s)
		if removeMatches {
			if matched {
				return Drop()
			}
			return Keep(d)
		}
		if matched {
			return Keep(d)
		}
		return Drop()
	}), nil
}

// newRegexLineModifier implements regex_line_modifier: split into lines,
// keep lines where the (case-insensitive, lowercased-input) regex does not
// match, rejoin; Filtered if no lines remain.
func newRegexLineModifier(c Config, field string) (Operator, error) {
	pattern := c.Regex
	if pattern == "" {
		pattern = defaultSocialMetricsRegex
	}
	re, err := regexp.Compile("(?i)" + pattern)
	if err != nil {
		return nil, fmt.Errorf("regex_line_modifier: %w", err)
	}
	return Func(func(d document.Doc) Outcome {
		s, _ := document.GetString(d, field)
		var kept []string
		for _, l := range lines(s) {
			if !re.MatchString(strings.ToLower(l)) {
				kept = append(kept, l)
			}
		}
		if len(kept) == 0 {
			return Drop()
		}
		d2 := document.Clone(d)
		if err := document.Set(d2, field, strings.Join(kept, "\n")); err != nil {
			return Fail(err)
		}
		return Keep(d2)
	}), nil
}

// newRatioLineModifier implements ratio_line_modifier: per-line fraction of
// uppercase or digit characters; retain the line iff fraction <= upper_bound.
func newRatioLineModifier(c Config, field string) (Operator, error) {
	upper := c.upperBound()
	check := c.Check
	if check != "uppercase" && check != "numeric" {
		return nil, fmt.Errorf("ratio_line_modifier: invalid check %q", check)
	}
	return Func(func(d document.Doc) Outcome {
		s, _ := document.GetString(d, field)
		var kept []string
		for _, l := range lines(s) {
			if len(l) == 0 {
				kept = append(kept, l)
				continue
			}
			n := 0
			for _, r := range l {
				if check == "uppercase" && unicode.IsUpper(r) {
					n++
				} else if check == "numeric" && unicode.IsDigit(r) {
					n++
				}
			}
			frac := float64(n) / float64(len([]rune(l)))
			if frac <= upper {
				kept = append(kept, l)
			}
		}
		d2 := document.Clone(d)
		if err := document.Set(d2, field, strings.Join(kept, "\n")); err != nil {
			return Fail(err)
		}
		return Keep(d2)
	}), nil
}

// newLineLengthModifier implements line_length_modifier/line_len_modifier:
// retain lines whose word-boundary token count >= lower_bound; Filtered if
// none remain.
func newLineLengthModifier(c Config, field string) Operator {
	lower := c.lowerBound()
	return Func(func(d document.Doc) Outcome {
		s, _ := document.GetString(d, field)
		var kept []string
		for _, l := range lines(s) {
			if float64(len(wordTokens(l))) >= lower {
				kept = append(kept, l)
			}
		}
		if len(kept) == 0 {
			return Drop()
		}
		d2 := document.Clone(d)
		if err := document.Set(d2, field, strings.Join(kept, "\n")); err != nil {
			return Fail(err)
		}
		return Keep(d2)
	})
}

// newSubstringLineModifier implements substring_line_modifier.
func newSubstringLineModifier(c Config, field string) (Operator, error) {
	var pat string
	switch c.Location {
	case "prefix":
		pat = `^(?:` + c.Banlist + `)\s?`
	case "suffix":
		pat = `\s?(?:` + c.Banlist + `)$`
	case "any", "":
		pat = `\s?(?:` + c.Banlist + `)`
	default:
		return nil, fmt.Errorf("substring_line_modifier: invalid location %q", c.Location)
	}
	re, err := regexp.Compile(pat)
	if err != nil {
		return nil, fmt.Errorf("substring_line_modifier: %w", err)
	}
	maxLen := c.MaxLen
	removeOnly := c.RemoveSubstringOnly

	return Func(func(d document.Doc) Outcome {
		s, _ := document.GetString(d, field)
		var kept []string
		for _, l := range lines(s) {
			if len(wordTokens(l)) > maxLen {
				kept = append(kept, l)
				continue
			}
			if removeOnly {
				replaced := re.ReplaceAllString(l, "")
				if strings.TrimSpace(replaced) != "" {
					kept = append(kept, replaced)
				}
				continue
			}
			if !re.MatchString(l) {
				kept = append(kept, l)
			}
		}
		if len(kept) == 0 {
			return Drop()
		}
		d2 := document.Clone(d)
		if err := document.Set(d2, field, strings.Join(kept, "\n")); err != nil {
			return Fail(err)
		}
		return Keep(d2)
	}), nil
}

// newNewlineRemovalModifier implements newline_removal_modifier: collapse
// runs of >= max_consecutive+1 consecutive "\n" down to exactly
// max_consecutive.
func newNewlineRemovalModifier(c Config, field string) (Operator, error) {
	max := c.MaxConsecutive
	if max < 1 {
		max = 1
	}
	re, err := regexp.Compile(`\n{` + strconv.Itoa(max+1) + `,}`)
	if err != nil {
		return nil, fmt.Errorf("newline_removal_modifier: %w", err)
	}
	replacement := strings.Repeat("\n", max)
	return Func(func(d document.Doc) Outcome {
		s, _ := document.GetString(d, field)
		out := re.ReplaceAllString(s, replacement)
		d2 := document.Clone(d)
		if err := document.Set(d2, field, out); err != nil {
			return Fail(err)
		}
		return Keep(d2)
	}), nil
}

// newWordCountAdder implements word_count_adder: sets word_count_field to
// the word-boundary token count of text_field.
func newWordCountAdder(c Config, field string) Operator {
	countField := c.WordCountField
	if countField == "" {
		countField = "original_word_count"
	}
	return Func(func(d document.Doc) Outcome {
		s, _ := document.GetString(d, field)
		d2 := document.Clone(d)
		if err := document.Set(d2, countField, float64(len(wordTokens(s)))); err != nil {
			return Fail(err)
		}
		return Keep(d2)
	})
}

// newWordRemovalRatioFilter implements word_removal_ratio_filter: compares
// the current word count of text_field against the previously recorded
// word_count_field value; keep iff (prev-cur)/prev <= upper_bound.
func newWordRemovalRatioFilter(c Config, field string) Operator {
	countField := c.WordCountField
	if countField == "" {
		countField = "original_word_count"
	}
	upper := c.upperBound()
	return Func(func(d document.Doc) Outcome {
		s, _ := document.GetString(d, field)
		prevF, ok := document.GetFloat(d, countField)
		if !ok || prevF == 0 {
			return Keep(d)
		}
		cur := float64(len(wordTokens(s)))
		ratio := (prevF - cur) / prevF
		if ratio <= upper {
			return Keep(d)
		}
		return Drop()
	})
}
