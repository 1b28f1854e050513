package gigjson

import (
	"bytes"
	"fmt"
	"io"
	"strings"
	"testing"

	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"
)

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m)
}

func TestParseStreamSingleBatch(t *testing.T) {
	in := []byte(`{"n":0} {"n":1} {"n":2}`)
	s := ParseStream(in, 0)
	for i := 0; i < 3; i++ {
		it, err := s.Next()
		require.NoError(t, err)
		obj, err := it.Object(nil)
		require.NoError(t, err)
		e := obj.FindKey("n", nil)
		require.NotNil(t, e)
		v, err := e.Iter.Int()
		require.NoError(t, err)
		require.EqualValues(t, i, v)
	}
	_, err := s.Next()
	require.Equal(t, io.EOF, err)
	require.EqualValues(t, len(in), s.Boundary())
}

func TestParseStreamManyBatches(t *testing.T) {
	var in bytes.Buffer
	const docs = 500
	for i := 0; i < docs; i++ {
		fmt.Fprintf(&in, `{"idx":%d,"pad":"%s"}`+"\n", i, strings.Repeat("x", 50))
	}
	// force many small batches
	s := ParseStream(in.Bytes(), 256)
	for i := 0; i < docs; i++ {
		it, err := s.Next()
		require.NoError(t, err, "doc %d", i)
		obj, err := it.Object(nil)
		require.NoError(t, err)
		e := obj.FindKey("idx", nil)
		require.NotNil(t, e)
		v, err := e.Iter.Int()
		require.NoError(t, err)
		require.EqualValues(t, i, v)
	}
	_, err := s.Next()
	require.Equal(t, io.EOF, err)
}

func TestParseStreamTrailingIncomplete(t *testing.T) {
	complete := `{"a":1}` + "\n" + `{"b":[2,3]}` + "\n"
	in := []byte(complete + `{"c":` /* cut mid-document */)
	s := ParseStream(in, 8)

	seen := 0
	for {
		_, err := s.Next()
		if err == io.EOF {
			break
		}
		require.NoError(t, err)
		seen++
	}
	require.Equal(t, 2, seen)
	// the boundary sits one past the closing bracket of the last complete
	// document, before its trailing newline
	require.EqualValues(t, len(complete)-1, s.Boundary())
}

func TestParseStreamClose(t *testing.T) {
	var in bytes.Buffer
	for i := 0; i < 1000; i++ {
		fmt.Fprintf(&in, `{"i":%d}`+"\n", i)
	}
	s := ParseStream(in.Bytes(), 128)
	_, err := s.Next()
	require.NoError(t, err)
	require.NoError(t, s.Close())
}

func TestParseStreamInvalidDocument(t *testing.T) {
	in := []byte(`{"ok":1}` + "\n" + `{"bad":tru}` + "\n" + `{"never":2}`)
	s := ParseStream(in, 0)
	// the whole input fits one batch, so the atom error surfaces before any
	// document is delivered
	_, err := s.Next()
	require.Error(t, err)
	require.NotEqual(t, io.EOF, err)
	_ = s.Close()
}

func TestParseNDStream(t *testing.T) {
	var in bytes.Buffer
	const docs = 50
	for i := 0; i < docs; i++ {
		fmt.Fprintf(&in, `{"three":true,"n":%d}`+"\n", i)
	}

	res := make(chan Stream, 4)
	reuse := make(chan *Document, 4)
	ParseNDStream(bytes.NewReader(in.Bytes()), res, reuse)

	total := 0
	for got := range res {
		if got.Error != nil {
			require.Equal(t, io.EOF, got.Error)
			break
		}
		it := got.Value.Iter()
		for it.Advance() == TypeRoot {
			var root Iter
			_, _, err := it.Root(&root)
			require.NoError(t, err)
			obj, err := root.Object(nil)
			require.NoError(t, err)
			e := obj.FindKey("n", nil)
			require.NotNil(t, e)
			v, err := e.Iter.Int()
			require.NoError(t, err)
			require.EqualValues(t, total, v)
			total++
		}
		select {
		case reuse <- got.Value:
		default:
		}
	}
	require.Equal(t, docs, total)
}

func TestParseNDStreamError(t *testing.T) {
	in := "{\"a\":1}\n{\"b\":}\n"
	res := make(chan Stream, 4)
	ParseNDStream(strings.NewReader(in), res, nil)
	sawError := false
	for got := range res {
		if got.Error != nil && got.Error != io.EOF {
			sawError = true
		}
	}
	require.True(t, sawError)
}
