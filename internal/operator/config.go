package operator

import "math"

// Config is a tagged-variant configuration for a single pipeline entry. Only
// the fields relevant to Name are read; a strongly-typed field per operator
// keeps a missing or mistyped value a startup error instead of a runtime
// surprise, per the design note preferring static configuration at the
// YAML/JSON boundary over dynamic kwargs passed straight to operators.
//
// TextField is the one field every text-oriented operator shares; it
// resolves per operator as: this operator's own TextField if non-empty,
// else the pipeline-level default, else "text" (see Build).
type Config struct {
	Name      string `yaml:"name"`
	Step      string `yaml:"step,omitempty"`
	TextField string `yaml:"text_field,omitempty"`

	// text_len_filter
	LowerBound *float64 `yaml:"lower_bound,omitempty"`
	UpperBound *float64 `yaml:"upper_bound,omitempty"`

	// page_len_filter
	LengthType        string `yaml:"length_type,omitempty"`
	IgnorePunctuation bool   `yaml:"ignore_punctuation,omitempty"`

	// symbol_ratio_filter / various ratio filters
	MaxSymbolToWordRatio float64 `yaml:"max_symbol_to_word_ratio,omitempty"`
	MaxBulletRatio       float64 `yaml:"max_bullet_ratio,omitempty"`
	MaxRatio             float64 `yaml:"max_ratio,omitempty"`

	// stop_word_filter
	CountUnique bool `yaml:"count_unique,omitempty"`
	MinStopWord int  `yaml:"min_stop_word,omitempty"`

	// url_filter
	URLKey            string   `yaml:"url_key,omitempty"`
	IgnoreChars       []string `yaml:"ignore_chars,omitempty"`
	NumBannedSubstrs  int      `yaml:"num_banned_substrs,omitempty"`
	ExactDomainMatch  bool     `yaml:"exact_domain_match,omitempty"`
	MatchSubstrings   bool     `yaml:"match_substrings,omitempty"`
	CaseSensitive     bool     `yaml:"case_sensitive,omitempty"`
	BanlistFile       string   `yaml:"banlist_file,omitempty"`

	// allow_list_filter / deny_list_filter
	AttributeField string `yaml:"attribute_field,omitempty"`
	AllowListFile  string `yaml:"allow_list_file,omitempty"`
	DenyListFile   string `yaml:"deny_list_file,omitempty"`
	OnNull         string `yaml:"on_null,omitempty"`

	// string_eq_filter
	Targets []string `yaml:"targets,omitempty"`

	// string_sub_modifier
	Subs [][2]string `yaml:"subs,omitempty"`

	// regex_text_filter
	RegexString   string `yaml:"regex_string,omitempty"`
	RemoveMatches *bool  `yaml:"remove_matches,omitempty"`

	// regex_line_modifier
	Regex string `yaml:"regex,omitempty"`

	// ratio_line_modifier
	Check string `yaml:"check,omitempty"`

	// substring_line_modifier
	Banlist             string `yaml:"banlist,omitempty"`
	MaxLen              int    `yaml:"max_len,omitempty"`
	RemoveSubstringOnly bool   `yaml:"remove_substring_only,omitempty"`
	Location            string `yaml:"location,omitempty"`

	// newline_removal_modifier
	MaxConsecutive int `yaml:"max_consecutive,omitempty"`

	// word_count_adder / word_removal_ratio_filter; defaults to
	// "original_word_count" when unset.
	WordCountField string `yaml:"word_count_field,omitempty"`

	// float_filter
	FloatField string   `yaml:"float_field,omitempty"`
	Default    *float64 `yaml:"default,omitempty"`

	// code_alpha_filter
	AlphaLowerBound float64  `yaml:"alpha_lower_bound,omitempty"`
	ExcludeField    string   `yaml:"exclude_field,omitempty"`
	ExcludeVals     []string `yaml:"exclude_vals,omitempty"`

	// code_encoded_data
	SingleMatchUpperBoundLen  int     `yaml:"single_match_upper_bound_len,omitempty"`
	TotalMatchUpperBoundFrac  float64 `yaml:"total_match_upper_bound_frac,omitempty"`

	// add_id
	IDKey string `yaml:"id_key,omitempty"`

	// fasttext_anno
	FastTextFile string  `yaml:"fast_text_file,omitempty"`
	OutputField  string  `yaml:"output_field,omitempty"`
	K            int     `yaml:"k,omitempty"`
	Threshold    float64 `yaml:"threshold,omitempty"`

	// subsample
	SubsampleRate float64 `yaml:"subsample_rate,omitempty"`

	// concatenate (group operator; consumed by internal/groupsort, not Build)
	TextCatField string   `yaml:"text_cat_field,omitempty"`
	JoinString   string   `yaml:"join_string,omitempty"`
	KeepFields   []string `yaml:"keep_fields,omitempty"`
}

func (c Config) lowerBound() float64 {
	if c.LowerBound != nil {
		return *c.LowerBound
	}
	return 0
}

func (c Config) upperBound() float64 {
	if c.UpperBound != nil {
		return *c.UpperBound
	}
	return math.Inf(1)
}
