package gigjson

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestAtPointer(t *testing.T) {
	doc, err := Parse([]byte(`{
		"foo": ["bar", "baz"],
		"": 0,
		"a/b": 1,
		"c%d": 2,
		"e^f": 3,
		"g|h": 4,
		"i\\j": 5,
		"k\"l": 6,
		" ": 7,
		"m~n": 8,
		"nested": {"deep": [10, {"x": true}]}
	}`), nil)
	require.NoError(t, err)

	// The RFC 6901 example table.
	intCases := map[string]int64{
		"/":    0,
		"/a~1b": 1,
		"/c%d": 2,
		"/e^f": 3,
		"/g|h": 4,
		"/i\\j": 5,
		"/k\"l": 6,
		"/ ":   7,
		"/m~0n": 8,
	}
	for ptr, want := range intCases {
		it, err := doc.AtPointer(ptr)
		require.NoError(t, err, ptr)
		got, err := it.Int()
		require.NoError(t, err, ptr)
		require.Equal(t, want, got, ptr)
	}

	it, err := doc.AtPointer("")
	require.NoError(t, err)
	require.Equal(t, TypeObject, it.Type())

	it, err = doc.AtPointer("/foo/0")
	require.NoError(t, err)
	s, err := it.String()
	require.NoError(t, err)
	require.Equal(t, "bar", s)

	it, err = doc.AtPointer("/nested/deep/1/x")
	require.NoError(t, err)
	b, err := it.Bool()
	require.NoError(t, err)
	require.True(t, b)

	_, err = doc.AtPointer("/nope")
	require.ErrorIs(t, err, ErrNoSuchField)

	_, err = doc.AtPointer("/foo/2")
	require.ErrorIs(t, err, ErrIndexOutOfBounds)

	_, err = doc.AtPointer("/foo/-1")
	require.ErrorIs(t, err, ErrInvalidJSONPointer)

	_, err = doc.AtPointer("/foo/01")
	require.ErrorIs(t, err, ErrInvalidJSONPointer)

	_, err = doc.AtPointer("/foo/bar")
	require.ErrorIs(t, err, ErrInvalidJSONPointer)

	_, err = doc.AtPointer("missing-slash")
	require.ErrorIs(t, err, ErrInvalidJSONPointer)

	_, err = doc.AtPointer("/m~2n")
	require.ErrorIs(t, err, ErrInvalidJSONPointer)

	// "" resolves to the empty key, whose value is a scalar
	_, err = doc.AtPointer("//x")
	require.ErrorIs(t, err, ErrIncorrectType)

	_, err = doc.AtPointer("/a~1b/deeper")
	require.ErrorIs(t, err, ErrIncorrectType)
}

func TestAtPointerArrayRoot(t *testing.T) {
	doc, err := Parse([]byte(`[10, [20, 21], {"k": "v"}]`), nil)
	require.NoError(t, err)

	it, err := doc.AtPointer("/1/1")
	require.NoError(t, err)
	v, err := it.Int()
	require.NoError(t, err)
	require.EqualValues(t, 21, v)

	it, err = doc.AtPointer("/2/k")
	require.NoError(t, err)
	s, err := it.String()
	require.NoError(t, err)
	require.Equal(t, "v", s)
}
