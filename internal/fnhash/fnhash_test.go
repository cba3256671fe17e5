package fnhash

import "testing"

func TestOfIsDeterministic(t *testing.T) {
	src := []byte("function run(x) { return x + 1; }")
	if Of(src) != Of(src) {
		t.Fatal("expected identical source to hash identically")
	}
}

func TestOfDistinguishesDifferentSource(t *testing.T) {
	a := []byte("function run(x) { return x + 1; }")
	b := []byte("function run(x) { return x + 2; }")
	if Of(a) == Of(b) {
		t.Fatal("expected different source to hash differently")
	}
}

func TestEqual(t *testing.T) {
	a := []byte("same")
	b := []byte("same")
	c := []byte("different")
	if !Equal(a, b) {
		t.Fatal("expected equal sources to report equal")
	}
	if Equal(a, c) {
		t.Fatal("expected different sources to report not equal")
	}
}
