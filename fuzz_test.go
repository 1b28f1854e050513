//go:build go1.18

package gigjson

import (
	"bytes"
	"encoding/json"
	"testing"
)

func FuzzParse(f *testing.F) {
	seeds := []string{
		`{}`,
		`[]`,
		`{"a":1}`,
		`{"x":[true,false,null]}`,
		`"éA\"\\"`,
		`[1e400]`,
		`{`,
		`[1,2,3`,
		`[0.1,-5,18446744073709551615]`,
		`{"k":"😀"}`,
		`   [ 1 , { "deep" : [ [ ] ] } ] `,
		"{\"nl\":\"a\\nb\"}\n{\"second\":2}",
	}
	for _, s := range seeds {
		f.Add([]byte(s))
	}
	f.Fuzz(func(t *testing.T, data []byte) {
		doc, err := Parse(data, nil)
		if err != nil {
			// Errors must be typed and deterministic.
			if _, ok := err.(*ParseError); !ok {
				t.Fatalf("untyped error: %v", err)
			}
			_, again := Parse(data, nil)
			if again == nil || again.Error() != err.Error() {
				t.Fatalf("non-deterministic error: %v vs %v", err, again)
			}
			return
		}

		// The tape must satisfy its structural invariants.
		checkTapeInvariants(t, doc)

		// Whatever we parsed must serialize to JSON that both we and the
		// standard library accept.
		it := doc.Iter()
		out, err := it.MarshalJSON()
		if err != nil {
			t.Fatalf("marshal of parsed document failed: %v", err)
		}
		var std interface{}
		dec := json.NewDecoder(bytes.NewReader(out))
		for dec.More() {
			if err := dec.Decode(&std); err != nil {
				t.Fatalf("stdlib rejects our output %q: %v", out, err)
			}
		}

		// Minification does not change the parse result.
		mini, err := Minify(data)
		if err != nil {
			t.Fatalf("minify failed on parseable input: %v", err)
		}
		doc2, err := Parse(mini, nil)
		if err != nil {
			t.Fatalf("minified form fails to parse: %v", err)
		}
		if len(doc.Tape) != len(doc2.Tape) {
			t.Fatalf("minified tape length differs")
		}
		for i := range doc.Tape {
			if doc.Tape[i] != doc2.Tape[i] {
				t.Fatalf("minified tape differs at %d", i)
			}
		}
	})
}

func checkTapeInvariants(t *testing.T, doc *Document) {
	t.Helper()
	if len(doc.Tape) < 2 {
		t.Fatal("tape too short")
	}
	for i := 0; i < len(doc.Tape); i++ {
		word := doc.Tape[i]
		tag := Tag(word >> tapeTagShift)
		pay := int(word & tapeValueMask)
		switch tag {
		case TagObjectStart:
			if pay <= i || pay >= len(doc.Tape) || Tag(doc.Tape[pay]>>tapeTagShift) != TagObjectEnd {
				t.Fatalf("bad object link at %d", i)
			}
		case TagArrayStart:
			if pay <= i || pay >= len(doc.Tape) || Tag(doc.Tape[pay]>>tapeTagShift) != TagArrayEnd {
				t.Fatalf("bad array link at %d", i)
			}
		case TagInteger, TagUint, TagFloat:
			if i+1 >= len(doc.Tape) {
				t.Fatalf("scalar missing value word at %d", i)
			}
			i++
		case TagString:
			if _, err := doc.stringRecordAt(uint64(pay)); err != nil {
				t.Fatalf("bad string record at %d: %v", i, err)
			}
		}
	}
}
