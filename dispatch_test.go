package gigjson

import (
	"testing"
)

func TestImplementationSelection(t *testing.T) {
	// first use selects something usable
	name := Implementation()
	if name == "" {
		t.Fatal("no implementation selected")
	}
	// double initialization is idempotent
	if again := Implementation(); again != name {
		t.Fatalf("implementation changed between calls: %q vs %q", name, again)
	}

	names := Implementations()
	if len(names) == 0 {
		t.Fatal("no implementations available")
	}
	found := false
	for _, n := range names {
		if n == "fallback" {
			found = true
		}
	}
	if !found {
		t.Fatal("fallback must always be available")
	}
}

func TestSetImplementation(t *testing.T) {
	orig := Implementation()
	defer func() {
		if err := SetImplementation(orig); err != nil {
			t.Fatal(err)
		}
	}()

	if err := SetImplementation("fallback"); err != nil {
		t.Fatal(err)
	}
	if got := Implementation(); got != "fallback" {
		t.Fatalf("got %q", got)
	}
	// the alias from the C++ family also resolves
	if err := SetImplementation("generic"); err != nil {
		t.Fatal(err)
	}
	if err := SetImplementation("bogus"); err == nil {
		t.Fatal("expected error for unknown implementation")
	}
}

func TestWithImplementation(t *testing.T) {
	p, err := NewParser(WithImplementation("fallback"))
	if err != nil {
		t.Fatal(err)
	}
	doc, err := p.Parse([]byte(`{"a":1}`))
	if err != nil {
		t.Fatal(err)
	}
	if len(doc.Tape) == 0 {
		t.Fatal("no tape produced")
	}
	// the pin survives a process-wide override
	orig := Implementation()
	defer func() { _ = SetImplementation(orig) }()
	for _, name := range Implementations() {
		if err := SetImplementation(name); err != nil {
			t.Fatal(err)
		}
		if _, err := p.Parse([]byte(`[1,2,3]`)); err != nil {
			t.Fatal(err)
		}
		if p.impl.name != "fallback" {
			t.Fatalf("pinned parser switched to %q", p.impl.name)
		}
	}

	if _, err := NewParser(WithImplementation("bogus")); err == nil {
		t.Fatal("expected error for unknown implementation")
	}
}

func TestParseSameResultAcrossImplementations(t *testing.T) {
	orig := Implementation()
	defer func() { _ = SetImplementation(orig) }()

	in := []byte(`{"a":[1,2.5,"three\té"],"b":{"c":null,"d":true}}`)
	var tapes [][]uint64
	for _, name := range Implementations() {
		if err := SetImplementation(name); err != nil {
			t.Fatal(err)
		}
		doc, err := Parse(in, nil)
		if err != nil {
			t.Fatalf("impl %s: %v", name, err)
		}
		tapes = append(tapes, append([]uint64{}, doc.Tape...))
	}
	for i := 1; i < len(tapes); i++ {
		if len(tapes[i]) != len(tapes[0]) {
			t.Fatalf("tape lengths differ between implementations")
		}
		for j := range tapes[i] {
			if tapes[i][j] != tapes[0][j] {
				t.Fatalf("tapes differ at word %d", j)
			}
		}
	}
}
