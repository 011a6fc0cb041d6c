package operator

import (
	"bufio"
	"fmt"
	"net/url"
	"os"
	"strings"

	ahocorasick "github.com/BobuSumisu/aho-corasick"

	"github.com/kestrel-data/datamap/internal/document"
)

// newURLFilter implements url_filter: normalize the document's URL, then
// either an exact banlist-membership check or a multi-pattern substring
// count against a banlist, loaded once at construction.
func newURLFilter(c Config) (Operator, error) {
	urlKey := c.URLKey
	if urlKey == "" {
		urlKey = "url"
	}
	banlist, err := loadListFile(c.BanlistFile, c.CaseSensitive)
	if err != nil {
		return nil, fmt.Errorf("url_filter: %w", err)
	}
	banSet := make(map[string]bool, len(banlist))
	for _, b := range banlist {
		banSet[b] = true
	}

	var trie *ahocorasick.Trie
	if !c.ExactDomainMatch {
		trie = ahocorasick.NewTrieBuilder().AddStrings(banlist).Build()
	}

	ignoreChars := c.IgnoreChars
	exact := c.ExactDomainMatch
	caseSensitive := c.CaseSensitive
	numBanned := c.NumBannedSubstrs
	if numBanned == 0 {
		numBanned = 1
	}

	normalize := func(raw string) string {
		s := raw
		if exact {
			if u, err := url.Parse(raw); err == nil {
				s = u.String()
			}
		}
		if !caseSensitive {
			s = strings.ToLower(s)
		}
		for _, ch := range ignoreChars {
			s = strings.ReplaceAll(s, ch, "")
		}
		return s
	}

	return Func(func(d document.Doc) Outcome {
		raw, ok := document.GetString(d, urlKey)
		if !ok {
			return Drop()
		}
		norm := normalize(raw)
		if exact {
			if banSet[norm] {
				return Drop()
			}
			return Keep(d)
		}
		matches := trie.MatchString(norm)
		if len(matches) >= numBanned {
			return Drop()
		}
		return Keep(d)
	}), nil
}

// loadListFile reads lines from path, trims whitespace, drops blanks, and
// lowercases unless caseSensitive. A blank path returns an empty list
// rather than erroring, matching operators that treat an absent banlist as
// a no-op pass-through.
func loadListFile(path string, caseSensitive bool) ([]string, error) {
	if path == "" {
		return nil, nil
	}
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	var out []string
	sc := bufio.NewScanner(f)
	for sc.Scan() {
		line := strings.TrimSpace(sc.Text())
		if line == "" {
			continue
		}
		if !caseSensitive {
			line = strings.ToLower(line)
		}
		out = append(out, line)
	}
	return out, sc.Err()
}
