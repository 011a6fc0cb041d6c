package operator

import (
	"fmt"

	"github.com/kestrel-data/datamap/internal/corpuserr"
)

// Build dispatches a single pipeline-step configuration to its operator
// constructor by name, resolving TextField per textFieldFor against the
// pipeline-level default. This is deliberately an explicit switch rather
// than a global init()-time registry: every operator this system can run is
// visible at this one call site, and an unknown name fails at startup
// rather than silently no-op-ing.
func Build(cfg Config, pipelineTextFieldDefault string) (Operator, error) {
	field := textFieldFor(cfg.TextField, pipelineTextFieldDefault)

	switch cfg.Name {
	case "text_len_filter":
		return newTextLenFilter(cfg, field), nil
	case "page_len_filter":
		op, err := newPageLenFilter(cfg, field)
		if err != nil {
			return nil, corpuserr.Config("page_len_filter", err)
		}
		return op, nil
	case "word_len_filter":
		return newWordLenFilter(cfg, field), nil

	case "symbol_ratio_filter":
		return newSymbolRatioFilter(cfg, field), nil
	case "bullet_filter":
		return newBulletFilter(cfg, field), nil
	case "ellipsis_line_ratio_filter":
		return newEllipsisLineRatioFilter(cfg, field), nil
	case "alphabetic_word_ratio_filter":
		return newAlphabeticWordRatioFilter(cfg, field), nil
	case "stop_word_filter":
		return newStopWordFilter(cfg, field), nil

	case "massive_web_repetition_filter":
		return newMassiveWebRepetitionFilter(field), nil

	case "url_filter":
		op, err := newURLFilter(cfg)
		if err != nil {
			return nil, corpuserr.Config("url_filter", err)
		}
		return op, nil

	case "allow_list_filter":
		op, err := newAllowListFilter(cfg)
		if err != nil {
			return nil, corpuserr.Config("allow_list_filter", err)
		}
		return op, nil
	case "deny_list_filter":
		op, err := newDenyListFilter(cfg)
		if err != nil {
			return nil, corpuserr.Config("deny_list_filter", err)
		}
		return op, nil
	case "non_null_filter":
		return newNonNullFilter(field), nil
	case "string_eq_filter":
		return newStringEqFilter(cfg, field), nil
	case "float_filter":
		return newFloatFilter(cfg), nil

	case "string_sub_modifier":
		return newStringSubModifier(cfg, field), nil
	case "regex_text_filter":
		op, err := newRegexTextFilter(cfg, field)
		if err != nil {
			return nil, corpuserr.Config("regex_text_filter", err)
		}
		return op, nil
	case "regex_line_modifier":
		op, err := newRegexLineModifier(cfg, field)
		if err != nil {
			return nil, corpuserr.Config("regex_line_modifier", err)
		}
		return op, nil
	case "ratio_line_modifier":
		op, err := newRatioLineModifier(cfg, field)
		if err != nil {
			return nil, corpuserr.Config("ratio_line_modifier", err)
		}
		return op, nil
	case "line_length_modifier", "line_len_modifier":
		return newLineLengthModifier(cfg, field), nil
	case "substring_line_modifier":
		op, err := newSubstringLineModifier(cfg, field)
		if err != nil {
			return nil, corpuserr.Config("substring_line_modifier", err)
		}
		return op, nil
	case "newline_removal_modifier":
		op, err := newNewlineRemovalModifier(cfg, field)
		if err != nil {
			return nil, corpuserr.Config("newline_removal_modifier", err)
		}
		return op, nil
	case "word_count_adder":
		return newWordCountAdder(cfg, field), nil
	case "word_removal_ratio_filter":
		return newWordRemovalRatioFilter(cfg, field), nil

	case "code_alpha_filter":
		return newCodeAlphaFilter(cfg, field), nil
	case "code_encoded_data":
		return newCodeEncodedData(cfg, field), nil
	case "add_id":
		return newAddID(cfg), nil
	case "subsample":
		return newSubsample(cfg), nil
	case "markdown_table_renderer":
		return newMarkdownTableRenderer(field), nil
	case "fasttext_anno":
		op, err := newFastTextAnno(cfg, field)
		if err != nil {
			return nil, corpuserr.Config("fasttext_anno", err)
		}
		return op, nil
	case "passthrough":
		return newPassthrough(), nil

	case "concatenate":
		return nil, corpuserr.Config("concatenate", fmt.Errorf("concatenate is a group-level operator; wire it through internal/groupsort, not the per-document pipeline"))

	default:
		return nil, corpuserr.Config("unknown operator", fmt.Errorf("no operator registered with name %q", cfg.Name))
	}
}
