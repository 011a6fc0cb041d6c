package groupsort

import (
	"strings"

	"github.com/kestrel-data/datamap/internal/document"
	"github.com/kestrel-data/datamap/internal/operator"
)

// concatenateGroup joins members' text_cat_field values with join_string
// into a single document. If keep_fields is empty the result carries every
// field of the first member (a copy, with text_cat_field overwritten with
// the join); otherwise only the listed fields are carried over.
func concatenateGroup(members []document.Doc, cfg operator.Config) document.Doc {
	parts := make([]string, 0, len(members))
	for _, m := range members {
		if s, ok := document.GetString(m, cfg.TextCatField); ok {
			parts = append(parts, s)
		}
	}
	joined := strings.Join(parts, cfg.JoinString)

	first := members[0]
	var out document.Doc
	if len(cfg.KeepFields) == 0 {
		out = document.Clone(first)
	} else {
		out = make(document.Doc, len(cfg.KeepFields)+1)
		for _, f := range cfg.KeepFields {
			if v, ok := document.Get(first, f); ok {
				_ = document.Set(out, f, v)
			}
		}
	}
	_ = document.Set(out, cfg.TextCatField, joined)
	return out
}
