package operator

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kestrel-data/datamap/internal/document"
)

func TestSymbolRatioFilterEmptyTextKeeps(t *testing.T) {
	op := newSymbolRatioFilter(Config{MaxSymbolToWordRatio: 0}, "text")
	out := op.Apply(document.Doc{"text": ""})
	assert.Equal(t, Kept, out.Result)
}

func TestSymbolRatioFilterDropsAboveMax(t *testing.T) {
	op := newSymbolRatioFilter(Config{MaxSymbolToWordRatio: 0.1}, "text")
	out := op.Apply(document.Doc{"text": "# # # one two"})
	assert.Equal(t, Filtered, out.Result)
}

func TestBulletFilterCountsPrefixedLines(t *testing.T) {
	op := newBulletFilter(Config{MaxBulletRatio: 0.3}, "text")
	out := op.Apply(document.Doc{"text": "- item one\nregular line\nanother line\nyet another"})
	assert.Equal(t, Kept, out.Result)

	out = op.Apply(document.Doc{"text": "- item\n- item\n- item"})
	assert.Equal(t, Filtered, out.Result)
}

func TestEllipsisLineRatioFilterExcludesEmptyLines(t *testing.T) {
	op := newEllipsisLineRatioFilter(Config{MaxRatio: 0.5}, "text")
	out := op.Apply(document.Doc{"text": "line one...\n\nline two"})
	assert.Equal(t, Kept, out.Result)
}

func TestAlphabeticWordRatioFilterNonAlphaTokens(t *testing.T) {
	op := newAlphabeticWordRatioFilter(Config{MaxRatio: 0.3}, "text")
	out := op.Apply(document.Doc{"text": "word 123 456 789"})
	assert.Equal(t, Filtered, out.Result)

	out = op.Apply(document.Doc{"text": "one two three 4"})
	assert.Equal(t, Kept, out.Result)
}

func TestStopWordFilterOccurrenceCount(t *testing.T) {
	op := newStopWordFilter(Config{MinStopWord: 2}, "text")
	out := op.Apply(document.Doc{"text": "the cat and the dog"})
	assert.Equal(t, Kept, out.Result)

	out = op.Apply(document.Doc{"text": "cat dog fish"})
	assert.Equal(t, Filtered, out.Result)
}

func TestStopWordFilterCountUnique(t *testing.T) {
	op := newStopWordFilter(Config{MinStopWord: 2, CountUnique: true}, "text")
	out := op.Apply(document.Doc{"text": "the the the"})
	assert.Equal(t, Filtered, out.Result, "repeated occurrences of one stop word don't satisfy a unique-count threshold of 2")

	out = op.Apply(document.Doc{"text": "the and"})
	assert.Equal(t, Kept, out.Result)
}

func writeBanlist(t *testing.T, lines []string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "banlist.txt")
	content := ""
	for _, l := range lines {
		content += l + "\n"
	}
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

func TestURLFilterExactDomainMatch(t *testing.T) {
	banPath := writeBanlist(t, []string{"bad.com"})
	op, err := newURLFilter(Config{BanlistFile: banPath, ExactDomainMatch: true})
	require.NoError(t, err)

	out := op.Apply(document.Doc{"url": "bad.com"})
	assert.Equal(t, Filtered, out.Result)

	out = op.Apply(document.Doc{"url": "good.com"})
	assert.Equal(t, Kept, out.Result)
}

func TestURLFilterSubstringMatch(t *testing.T) {
	banPath := writeBanlist(t, []string{"spam"})
	op, err := newURLFilter(Config{BanlistFile: banPath})
	require.NoError(t, err)

	out := op.Apply(document.Doc{"url": "http://spamsite.com/page"})
	assert.Equal(t, Filtered, out.Result)

	out = op.Apply(document.Doc{"url": "http://legit.com/page"})
	assert.Equal(t, Kept, out.Result)
}

func TestURLFilterMissingURLDrops(t *testing.T) {
	op, err := newURLFilter(Config{})
	require.NoError(t, err)
	out := op.Apply(document.Doc{})
	assert.Equal(t, Filtered, out.Result)
}

func TestURLFilterCaseInsensitiveByDefault(t *testing.T) {
	banPath := writeBanlist(t, []string{"BAD.COM"})
	op, err := newURLFilter(Config{BanlistFile: banPath, ExactDomainMatch: true})
	require.NoError(t, err)
	out := op.Apply(document.Doc{"url": "bad.com"})
	assert.Equal(t, Filtered, out.Result)
}
