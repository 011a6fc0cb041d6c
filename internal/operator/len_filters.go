package operator

import (
	"fmt"

	"github.com/kestrel-data/datamap/internal/document"
)

// newTextLenFilter implements text_len_filter: keep iff byte length of the
// text field is in [lower, upper].
func newTextLenFilter(c Config, field string) Operator {
	lo, hi := c.lowerBound(), c.upperBound()
	return Func(func(d document.Doc) Outcome {
		s, _ := document.GetString(d, field)
		n := float64(len(s))
		if n >= lo && n <= hi {
			return Keep(d)
		}
		return Drop()
	})
}

// newPageLenFilter implements page_len_filter. Only length_type=word is
// required; line/paragraph/char are also supported; sentence uses a
// lightweight splitter (see text.go).
func newPageLenFilter(c Config, field string) (Operator, error) {
	lengthType := c.LengthType
	if lengthType == "" {
		lengthType = "word"
	}
	lo := c.lowerBound()
	if c.LowerBound == nil {
		lo = 1 // default lower bound of 1 per spec's boundary-behavior example
	}
	hi := c.upperBound()

	switch lengthType {
	case "word", "sentence", "line", "paragraph", "char":
	default:
		return nil, fmt.Errorf("page_len_filter: invalid length_type %q", lengthType)
	}

	count := func(text string) int {
		switch lengthType {
		case "word":
			if c.IgnorePunctuation {
				return len(wordTokensIgnorePunct(text))
			}
			return len(wordTokens(text))
		case "sentence":
			return sentenceCount(text)
		case "line":
			return len(lines(text))
		case "paragraph":
			return len(paragraphs(text))
		case "char":
			return len([]rune(text))
		default:
			return 0
		}
	}

	return Func(func(d document.Doc) Outcome {
		s, _ := document.GetString(d, field)
		n := float64(count(s))
		if n >= lo && n <= hi {
			return Keep(d)
		}
		return Drop()
	}), nil
}

// newWordLenFilter implements word_len_filter: mean byte length of
// whitespace-separated tokens; empty text fails closed (drop).
func newWordLenFilter(c Config, field string) Operator {
	lo, hi := c.lowerBound(), c.upperBound()
	return Func(func(d document.Doc) Outcome {
		s, _ := document.GetString(d, field)
		toks := whitespaceTokens(s)
		if len(toks) == 0 {
			return Drop()
		}
		total := 0
		for _, t := range toks {
			total += len(t)
		}
		mean := float64(total) / float64(len(toks))
		if mean >= lo && mean <= hi {
			return Keep(d)
		}
		return Drop()
	})
}
