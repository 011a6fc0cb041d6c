package document_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kestrel-data/datamap/internal/document"
)

func TestGet(t *testing.T) {
	d := document.Doc{
		"a": map[string]any{
			"b": map[string]any{
				"c": "deep",
			},
			"n": float64(3),
		},
		"top": "value",
	}

	tests := []struct {
		path    string
		want    any
		wantOk  bool
	}{
		{"top", "value", true},
		{"a.b.c", "deep", true},
		{"a.n", float64(3), true},
		{"missing", nil, false},
		{"a.missing", nil, false},
		{"a.b.c.d", nil, false}, // traversing through a string
		{"", d, true},
	}

	for _, tt := range tests {
		t.Run(tt.path, func(t *testing.T) {
			v, ok := document.Get(d, tt.path)
			assert.Equal(t, tt.wantOk, ok)
			if tt.wantOk {
				assert.Equal(t, tt.want, v)
			}
		})
	}
}

func TestGetStringAndGetFloat(t *testing.T) {
	d := document.Doc{"s": "hello", "f": float64(1.5), "i": 2, "wrong": true}

	s, ok := document.GetString(d, "s")
	require.True(t, ok)
	assert.Equal(t, "hello", s)

	_, ok = document.GetString(d, "f")
	assert.False(t, ok)

	f, ok := document.GetFloat(d, "f")
	require.True(t, ok)
	assert.Equal(t, 1.5, f)

	f, ok = document.GetFloat(d, "i")
	require.True(t, ok)
	assert.Equal(t, float64(2), f)

	_, ok = document.GetFloat(d, "wrong")
	assert.False(t, ok)

	_, ok = document.GetFloat(d, "missing")
	assert.False(t, ok)
}

func TestSetCreatesIntermediateObjects(t *testing.T) {
	d := document.Doc{}
	require.NoError(t, document.Set(d, "a.b.c", "x"))

	v, ok := document.Get(d, "a.b.c")
	require.True(t, ok)
	assert.Equal(t, "x", v)
}

func TestSetThroughNonObjectErrors(t *testing.T) {
	d := document.Doc{"a": "scalar"}
	err := document.Set(d, "a.b", "x")
	assert.Error(t, err)
}

func TestSetEmptyPathErrors(t *testing.T) {
	d := document.Doc{}
	err := document.Set(d, "", "x")
	assert.Error(t, err)
}

func TestRemove(t *testing.T) {
	d := document.Doc{"a": map[string]any{"b": "x", "keep": "y"}}
	document.Remove(d, "a.b")

	_, ok := document.Get(d, "a.b")
	assert.False(t, ok)
	v, ok := document.Get(d, "a.keep")
	require.True(t, ok)
	assert.Equal(t, "y", v)

	// missing path, missing intermediate: silent no-op.
	document.Remove(d, "a.missing.deeper")
	document.Remove(d, "")
}

func TestStringify(t *testing.T) {
	tests := []struct {
		name string
		in   any
		want string
	}{
		{"nil", nil, "null"},
		{"string", "foo", "foo"},
		{"true", true, "true"},
		{"false", false, "false"},
		{"float", float64(3.5), "3.5"},
		{"int", 7, "7"},
		{"array", []any{float64(1), "a"}, `[1,"a"]`},
		{"object keys sorted", map[string]any{"z": float64(1), "a": float64(2)}, `{"a":2,"z":1}`},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, document.Stringify(tt.in))
		})
	}
}

func TestStringifyObjectOrderIndependent(t *testing.T) {
	a := map[string]any{"z": float64(1), "a": float64(2)}
	b := map[string]any{"a": float64(2), "z": float64(1)}
	assert.Equal(t, document.Stringify(a), document.Stringify(b))
}

func TestCompareTotalOrder(t *testing.T) {
	// null < bool < number < string < array < object
	values := []any{
		nil,
		false,
		float64(1),
		"a",
		[]any{float64(1)},
		map[string]any{"k": "v"},
	}
	for i := 0; i < len(values); i++ {
		for j := 0; j < len(values); j++ {
			c := document.Compare(values[i], values[j])
			switch {
			case i < j:
				assert.Negativef(t, c, "expected values[%d] < values[%d]", i, j)
			case i > j:
				assert.Positivef(t, c, "expected values[%d] > values[%d]", i, j)
			default:
				assert.Zero(t, c)
			}
		}
	}
}

func TestCompareNumbers(t *testing.T) {
	assert.Equal(t, -1, document.Compare(float64(1), float64(2)))
	assert.Equal(t, 1, document.Compare(float64(2), float64(1)))
	assert.Equal(t, 0, document.Compare(float64(2), float64(2)))
}

func TestCompareObjectsAlwaysEqual(t *testing.T) {
	a := map[string]any{"a": float64(1)}
	b := map[string]any{"b": float64(2)}
	assert.Equal(t, 0, document.Compare(a, b))
}

func TestCompareArraysLexicographic(t *testing.T) {
	assert.Negative(t, document.Compare([]any{float64(1)}, []any{float64(1), float64(2)}))
	assert.Equal(t, 0, document.Compare([]any{float64(1)}, []any{float64(1)}))
}

func TestClone(t *testing.T) {
	d := document.Doc{"a": "x"}
	c := document.Clone(d)
	c["a"] = "y"
	assert.Equal(t, "x", d["a"])
	assert.Equal(t, "y", c["a"])
}
