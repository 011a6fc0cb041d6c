package operator

import (
	"fmt"
	"math/rand"
	"regexp"
	"strings"

	"github.com/google/uuid"

	"github.com/kestrel-data/datamap/internal/document"
)

// newCodeAlphaFilter implements code_alpha_filter: bypass (keep) if the
// document's exclude_field value is one of exclude_vals; otherwise keep iff
// alnum_count(text)/len(text) >= alpha_lower_bound.
func newCodeAlphaFilter(c Config, field string) Operator {
	lower := c.AlphaLowerBound
	excludeField := c.ExcludeField
	excludeVals := make(map[string]bool, len(c.ExcludeVals))
	for _, v := range c.ExcludeVals {
		excludeVals[v] = true
	}
	return Func(func(d document.Doc) Outcome {
		if excludeField != "" {
			if v, ok := document.Get(d, excludeField); ok {
				if excludeVals[stringifyAttr(v)] {
					return Keep(d)
				}
			}
		}
		s, _ := document.GetString(d, field)
		if len(s) == 0 {
			return Drop()
		}
		alnum := 0
		for _, r := range s {
			if ('a' <= r && r <= 'z') || ('A' <= r && r <= 'Z') || ('0' <= r && r <= '9') {
				alnum++
			}
		}
		ratio := float64(alnum) / float64(len([]rune(s)))
		if ratio >= lower {
			return Keep(d)
		}
		return Drop()
	})
}

var (
	base64RunRe = regexp.MustCompile(`[A-Za-z0-9+/\n=]{64,}`)
	hexRunRe    = regexp.MustCompile(`(?:\b(?:0x|\\x)?[0-9a-fA-F]{2}(?:,|\b\s*)){8,}`)
	unicodeRunRe = regexp.MustCompile(`(?:\\u[0-9a-fA-F]{4}){8,}`)
)

// newCodeEncodedData implements code_encoded_data: drop iff any single
// match of the three fixed patterns exceeds single_match_upper_bound_len, or
// the total matched length over total length exceeds total_match_upper_bound_frac.
func newCodeEncodedData(c Config, field string) Operator {
	singleMax := c.SingleMatchUpperBoundLen
	totalFrac := c.TotalMatchUpperBoundFrac
	return Func(func(d document.Doc) Outcome {
		s, _ := document.GetString(d, field)
		if len(s) == 0 {
			return Keep(d)
		}
		totalMatched := 0
		for _, re := range []*regexp.Regexp{base64RunRe, hexRunRe, unicodeRunRe} {
			for _, m := range re.FindAllString(s, -1) {
				if len(m) > singleMax {
					return Drop()
				}
				totalMatched += len(m)
			}
		}
		if float64(totalMatched)/float64(len(s)) > totalFrac {
			return Drop()
		}
		return Keep(d)
	})
}

// newAddID implements add_id: sets id_key to a freshly generated v4 UUID
// string, creating intermediate path objects as needed.
func newAddID(c Config) Operator {
	key := c.IDKey
	if key == "" {
		key = "id"
	}
	return Func(func(d document.Doc) Outcome {
		d2 := document.Clone(d)
		if err := document.Set(d2, key, uuid.NewString()); err != nil {
			return Fail(err)
		}
		return Keep(d2)
	})
}

// newSubsample implements subsample: keep each document independently with
// probability subsample_rate.
func newSubsample(c Config) Operator {
	rate := c.SubsampleRate
	return Func(func(d document.Doc) Outcome {
		if rand.Float64() < rate {
			return Keep(d)
		}
		return Drop()
	})
}

var gfmTableRowRe = regexp.MustCompile(`^\s*\|.*\|\s*$`)
var gfmTableSepRe = regexp.MustCompile(`^\s*\|?\s*:?-+:?\s*(\|\s*:?-+:?\s*)*\|?\s*$`)

// newMarkdownTableRenderer implements markdown_table_renderer: convert GFM
// tables in the text to HTML tables, preserving non-table content verbatim.
func newMarkdownTableRenderer(field string) Operator {
	return Func(func(d document.Doc) Outcome {
		s, _ := document.GetString(d, field)
		out := renderMarkdownTables(s)
		d2 := document.Clone(d)
		if err := document.Set(d2, field, out); err != nil {
			return Fail(err)
		}
		return Keep(d2)
	})
}

func renderMarkdownTables(text string) string {
	ls := strings.Split(text, "\n")
	var out []string
	i := 0
	for i < len(ls) {
		if i+1 < len(ls) && gfmTableRowRe.MatchString(ls[i]) && gfmTableSepRe.MatchString(ls[i+1]) {
			header := splitTableRow(ls[i])
			j := i + 2
			var rows [][]string
			for j < len(ls) && gfmTableRowRe.MatchString(ls[j]) {
				rows = append(rows, splitTableRow(ls[j]))
				j++
			}
			out = append(out, renderHTMLTable(header, rows))
			i = j
			continue
		}
		out = append(out, ls[i])
		i++
	}
	return strings.Join(out, "\n")
}

func splitTableRow(line string) []string {
	trimmed := strings.TrimSpace(line)
	trimmed = strings.TrimPrefix(trimmed, "|")
	trimmed = strings.TrimSuffix(trimmed, "|")
	parts := strings.Split(trimmed, "|")
	for i, p := range parts {
		parts[i] = strings.TrimSpace(p)
	}
	return parts
}

func renderHTMLTable(header []string, rows [][]string) string {
	var sb strings.Builder
	sb.WriteString("<table>\n<thead>\n<tr>")
	for _, h := range header {
		fmt.Fprintf(&sb, "<th>%s</th>", h)
	}
	sb.WriteString("</tr>\n</thead>\n<tbody>\n")
	for _, row := range rows {
		sb.WriteString("<tr>")
		for _, c := range row {
			fmt.Fprintf(&sb, "<td>%s</td>", c)
		}
		sb.WriteString("</tr>\n")
	}
	sb.WriteString("</tbody>\n</table>")
	return sb.String()
}

// newPassthrough is a no-op operator: supplemented from the original
// catalogue as a debugging aid for inserting a named timing checkpoint
// with no filtering effect.
func newPassthrough() Operator {
	return Func(func(d document.Doc) Outcome { return Keep(d) })
}
