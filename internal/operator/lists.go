package operator

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/kestrel-data/datamap/internal/document"
)

// stringifyAttr renders a document field value as its canonical string form
// for list membership comparisons: strings as-is, numbers/booleans via their
// canonical string form, everything else via document.Stringify.
func stringifyAttr(v any) string {
	return document.Stringify(v)
}

const (
	onNullRemove = "remove"
	onNullKeep   = "keep"
)

// newAllowListFilter implements allow_list_filter: keep iff the stringified
// attribute value is in the allow set; null/missing follows on_null.
func newAllowListFilter(c Config) (Operator, error) {
	set, onNull, field, err := loadMembershipList(c.AllowListFile, c.AttributeField, c.OnNull)
	if err != nil {
		return nil, fmt.Errorf("allow_list_filter: %w", err)
	}
	return Func(func(d document.Doc) Outcome {
		v, ok := document.Get(d, field)
		if !ok || v == nil {
			if onNull == onNullKeep {
				return Keep(d)
			}
			return Drop()
		}
		if set[stringifyAttr(v)] {
			return Keep(d)
		}
		return Drop()
	}), nil
}

// newDenyListFilter implements deny_list_filter: drop iff the stringified
// attribute value is in the deny set; null/missing follows on_null the same
// way as allow_list_filter (remove, the default, drops; keep keeps).
func newDenyListFilter(c Config) (Operator, error) {
	set, onNull, field, err := loadMembershipList(c.DenyListFile, c.AttributeField, c.OnNull)
	if err != nil {
		return nil, fmt.Errorf("deny_list_filter: %w", err)
	}
	return Func(func(d document.Doc) Outcome {
		v, ok := document.Get(d, field)
		if !ok || v == nil {
			if onNull == onNullRemove {
				return Drop()
			}
			return Keep(d)
		}
		if set[stringifyAttr(v)] {
			return Drop()
		}
		return Keep(d)
	}), nil
}

func loadMembershipList(path, field, onNull string) (map[string]bool, string, string, error) {
	if onNull == "" {
		onNull = onNullRemove
	}
	lines, err := loadListFile(path, true)
	if err != nil {
		return nil, "", "", err
	}
	set := make(map[string]bool, len(lines))
	for _, l := range lines {
		set[l] = true
	}
	return set, onNull, field, nil
}

// newNonNullFilter implements non_null_filter: keep iff the path resolves
// to a present, non-null value (false/0/"" all count as non-null).
func newNonNullFilter(field string) Operator {
	return Func(func(d document.Doc) Outcome {
		v, ok := document.Get(d, field)
		if !ok || v == nil {
			return Drop()
		}
		return Keep(d)
	})
}

// newStringEqFilter implements string_eq_filter: keep iff any target is a
// substring of the (optionally case-normalized) text.
func newStringEqFilter(c Config, field string) Operator {
	targets := make([]string, len(c.Targets))
	copy(targets, c.Targets)
	if !c.CaseSensitive {
		for i, t := range targets {
			targets[i] = strings.ToLower(t)
		}
	}
	caseSensitive := c.CaseSensitive
	return Func(func(d document.Doc) Outcome {
		s, _ := document.GetString(d, field)
		if !caseSensitive {
			s = strings.ToLower(s)
		}
		for _, t := range targets {
			if strings.Contains(s, t) {
				return Keep(d)
			}
		}
		return Drop()
	})
}

// newFloatFilter implements float_filter: read as float using default on
// missing, keep iff in [lower, upper].
func newFloatFilter(c Config) Operator {
	field := c.FloatField
	lo, hi := c.lowerBound(), c.upperBound()
	def := 0.0
	if c.Default != nil {
		def = *c.Default
	}
	return Func(func(d document.Doc) Outcome {
		v, ok := document.Get(d, field)
		f := def
		if ok {
			switch x := v.(type) {
			case float64:
				f = x
			case string:
				if parsed, err := strconv.ParseFloat(x, 64); err == nil {
					f = parsed
				} else {
					f = def
				}
			default:
				f = def
			}
		}
		if f >= lo && f <= hi {
			return Keep(d)
		}
		return Drop()
	})
}
