package gigjson

import (
	"bytes"
	"testing"
)

func TestMinify(t *testing.T) {
	cases := []struct {
		in   string
		want string
	}{
		{`{}`, `{}`},
		{` { } `, `{}`},
		{`{"a" : 1 , "b" : [ 1 , 2 ] }`, `{"a":1,"b":[1,2]}`},
		{"{\n\t\"a\": true\n}", `{"a":true}`},
		{`{"spaces inside": " kept \t as-is "}`, `{"spaces inside":" kept \t as-is "}`},
		{`{"esc\"aped" : 1}`, `{"esc\"aped":1}`},
		{`[ "with \\" , 2 ]`, `["with \\",2]`},
		{`  123  `, `123`},
		{`"just a string"`, `"just a string"`},
	}
	for _, tc := range cases {
		got, err := Minify([]byte(tc.in))
		if err != nil {
			t.Errorf("input %q: %v", tc.in, err)
			continue
		}
		if string(got) != tc.want {
			t.Errorf("input %q: got %q, want %q", tc.in, got, tc.want)
		}
	}
}

func TestMinifyIdempotent(t *testing.T) {
	inputs := []string{
		`{ "a" : [ 1 , 2.5 , "three" , { "four" : null } ] }`,
		`[ true , false ]`,
	}
	for _, in := range inputs {
		once, err := Minify([]byte(in))
		if err != nil {
			t.Fatal(err)
		}
		twice, err := Minify(once)
		if err != nil {
			t.Fatal(err)
		}
		if !bytes.Equal(once, twice) {
			t.Errorf("input %q: not idempotent: %q vs %q", in, once, twice)
		}
	}
}

func TestMinifyParseEquivalence(t *testing.T) {
	inputs := []string{
		`{ "a" : 1 , "b" : [ true , false , null ] , "c" : "x y" }`,
		`[ 1 , 2.5 , -3e4 ]`,
		"{\r\n \"k\" : \"v\" \r\n}",
	}
	for _, in := range inputs {
		mini, err := Minify([]byte(in))
		if err != nil {
			t.Fatal(err)
		}
		docA, err := Parse([]byte(in), nil)
		if err != nil {
			t.Fatal(err)
		}
		docB, err := Parse(mini, nil)
		if err != nil {
			t.Fatal(err)
		}
		if len(docA.Tape) != len(docB.Tape) {
			t.Fatalf("input %q: tape lengths differ", in)
		}
		for i := range docA.Tape {
			if docA.Tape[i] != docB.Tape[i] {
				t.Fatalf("input %q: tape word %d differs", in, i)
			}
		}
		if !bytes.Equal(docA.Strings, docB.Strings) {
			t.Fatalf("input %q: string buffers differ", in)
		}
	}
}

func TestMinifyUnclosedString(t *testing.T) {
	if _, err := Minify([]byte(`{"a":"unterminated`)); err == nil {
		t.Fatal("expected error")
	}
}
