package gigjson

import (
	"math/rand"
	"strings"
	"testing"
	"unicode/utf8"
)

// The reference verdict is the standard library's decoder, which implements
// exactly the RFC 3629 rules: no overlongs, no surrogates, max U+10FFFF.
func refValid(b []byte) bool {
	return utf8.Valid(b)
}

func TestUTF8TwoByteExhaustive(t *testing.T) {
	// every two-byte suffix after a valid ASCII prefix
	for a := 0; a < 256; a++ {
		for b := 0; b < 256; b++ {
			in := []byte{'x', byte(a), byte(b), 'x'}
			got := validUTF8(in)
			want := refValid(in)
			if got != want {
				t.Fatalf("bytes % x: got %v want %v", in, got, want)
			}
		}
	}
}

func TestUTF8ThreeByteLeads(t *testing.T) {
	// all three-byte sequences for each lead, sampling continuations
	conts := []byte{0x00, 0x7f, 0x80, 0x8f, 0x90, 0x9f, 0xa0, 0xbf, 0xc0, 0xff}
	for lead := 0xe0; lead <= 0xef; lead++ {
		for _, b2 := range conts {
			for _, b3 := range conts {
				in := []byte{byte(lead), b2, b3}
				if got, want := validUTF8(in), refValid(in); got != want {
					t.Fatalf("bytes % x: got %v want %v", in, got, want)
				}
			}
		}
	}
}

func TestUTF8FourByteLeads(t *testing.T) {
	conts := []byte{0x7f, 0x80, 0x8f, 0x90, 0x9f, 0xa0, 0xbf, 0xc0}
	for lead := 0xf0; lead <= 0xff; lead++ {
		for _, b2 := range conts {
			for _, b3 := range conts {
				for _, b4 := range conts {
					in := []byte{byte(lead), b2, b3, b4}
					if got, want := validUTF8(in), refValid(in); got != want {
						t.Fatalf("bytes % x: got %v want %v", in, got, want)
					}
				}
			}
		}
	}
}

func TestUTF8KnownSequences(t *testing.T) {
	valid := []string{
		"",
		"plain ascii",
		"\u00e9",                    // 2 bytes
		"\u0800\u1234\uffff",        // 3 bytes
		"\U0001f600",                // 4 bytes
		"\u0080\u07ff\ud7ff\ue000",  // boundary code points
		"\U00010000\U0010ffff",      // first and last supplementary
		strings.Repeat("\u00e9", 1000),
	}
	for _, s := range valid {
		if !validUTF8([]byte(s)) {
			t.Errorf("%q should be valid", s)
		}
	}

	invalid := [][]byte{
		{0x80},                   // stray continuation
		{0xbf},                   // stray continuation
		{0xc0, 0xaf},             // overlong 2-byte
		{0xc1, 0xbf},             // overlong 2-byte
		{0xe0, 0x80, 0x80},       // overlong 3-byte
		{0xe0, 0x9f, 0xbf},       // overlong 3-byte
		{0xf0, 0x80, 0x80, 0x80}, // overlong 4-byte
		{0xf0, 0x8f, 0xbf, 0xbf}, // overlong 4-byte
		{0xed, 0xa0, 0x80},       // surrogate U+D800
		{0xed, 0xbf, 0xbf},       // surrogate U+DFFF
		{0xf4, 0x90, 0x80, 0x80}, // above U+10FFFF
		{0xf5, 0x80, 0x80, 0x80}, // invalid lead
		{0xff},                   // invalid lead
		{0xc3},                   // truncated at EOF
		{0xe2, 0x82},             // truncated at EOF
		{0xf0, 0x9f, 0x98},       // truncated at EOF
		{'a', 0xc3, 'a'},         // lead followed by ASCII
		{0xc3, 0xc3, 0xa9},       // lead followed by lead
		{0xe2, 0x82, 0xac, 0x80}, // trailing continuation after complete char
	}
	for _, b := range invalid {
		if validUTF8(b) {
			t.Errorf("% x should be invalid", b)
		}
		if refValid(b) {
			t.Errorf("reference disagrees on % x", b)
		}
	}
}

func TestUTF8BlockBoundary(t *testing.T) {
	// multibyte characters straddling the 64-byte block boundary
	chars := []string{"é", "€", "\U0001f600"}
	for _, c := range chars {
		for off := 60; off <= 66; off++ {
			in := strings.Repeat("a", off) + c + strings.Repeat("b", 70)
			if !validUTF8([]byte(in)) {
				t.Errorf("char %q at offset %d should be valid", c, off)
			}
		}
	}
	// truncated characters at the block boundary
	for off := 60; off <= 66; off++ {
		in := append([]byte(strings.Repeat("a", off)), 0xe2, 0x82)
		in = append(in, []byte(strings.Repeat("b", 70))...)
		if validUTF8(in) {
			t.Errorf("truncated char at offset %d should be invalid", off)
		}
	}
	// incomplete character at the very end of a full block
	in := append([]byte(strings.Repeat("a", 63)), 0xc3)
	if validUTF8(in) {
		t.Errorf("dangling lead at block end should be invalid")
	}
}

func TestUTF8Random(t *testing.T) {
	rng := rand.New(rand.NewSource(7))
	for round := 0; round < 3000; round++ {
		n := rng.Intn(300)
		b := make([]byte, n)
		if round%2 == 0 {
			// mostly valid text with occasional corruption
			var sb strings.Builder
			for sb.Len() < n {
				sb.WriteRune(rune(rng.Intn(0x110000)))
			}
			b = []byte(sb.String())
			if len(b) > 0 && rng.Intn(3) == 0 {
				b[rng.Intn(len(b))] = byte(rng.Intn(256))
			}
		} else {
			rng.Read(b)
		}
		if got, want := validUTF8(b), refValid(b); got != want {
			t.Fatalf("round %d: % x: got %v want %v", round, b, got, want)
		}
	}
}

func TestParseRejectsInvalidUTF8(t *testing.T) {
	in := []byte(`{"key":"val`)
	in = append(in, 0xed, 0xa0, 0x80) // surrogate encoded directly
	in = append(in, `ue"}`...)
	_, err := Parse(in, nil)
	if err == nil {
		t.Fatal("expected UTF-8 error")
	}
	perr, ok := err.(*ParseError)
	if !ok || perr.Code != ErrUTF8 {
		t.Fatalf("expected ErrUTF8, got %v", err)
	}
}
