package merkle

import (
	"crypto/sha256"
	"errors"
	"testing"

	"github.com/sunway910/api-sub001/pkg/hash"
	"github.com/sunway910/api-sub001/pkg/model"
	"pgregory.net/rapid"
)

func leaves(words ...string) []hash.Hash { // A
	out := make([]hash.Hash, len(words))
	for i, w := range words {
		out[i] = hash.HashString(w)
	}
	return out
}

// Expected roots computed independently with Python's hashlib.
func TestBuildMerkleRootHashVectors(t *testing.T) { // A
	t.Parallel()

	cases := []struct {
		name   string
		leaves []hash.Hash
		want   string
	}{
		{"one", leaves("a"), "251a262291b87cb3c93a6ed71865da1f2c090c3d0196661a8f4a705b65836f71"},
		{"two", leaves("a", "b"), "e5a01fee14e0ed5c48714f22180f25ad8365b53f9779f79dc4a3d7e93963f94a"},
		{"three", leaves("a", "b", "c"), "d31a37ef6ac14a2db1470c4316beb5592e6afd4465022339adafda76a18ffabe"},
		{"three swapped", leaves("b", "a", "c"), "b1da020d217b348265d6578cdfe4cc717bb79b5deaffce7fc167180e9e1ec8c6"},
	}
	for _, c := range cases {
		got, err := BuildMerkleRootHash(c.leaves)
		if err != nil {
			t.Fatalf("%s: %v", c.name, err)
		}
		if got.String() != c.want {
			t.Errorf("%s: root = %s, want %s", c.name, got, c.want)
		}
	}
}

func TestBuildMerkleRootHashEmpty(t *testing.T) { // H
	t.Parallel()

	if _, err := BuildMerkleRootHash(nil); !errors.Is(err, model.ErrInvalidInput) {
		t.Fatalf("err = %v, want ErrInvalidInput", err)
	}
	if _, err := RootHex([]string{}); !errors.Is(err, model.ErrInvalidInput) {
		t.Fatalf("RootHex err = %v, want ErrInvalidInput", err)
	}
}

func TestSingleLeafRule(t *testing.T) { // A
	t.Parallel()

	leaf := hash.HashString("only segment")
	buf := append(leaf.Bytes(), leaf.Bytes()...)
	want := hash.Hash(sha256.Sum256(buf))

	if got := BuildSimpleMerkleRootHash(leaf); got != want {
		t.Fatalf("simple root = %s, want %s", got, want)
	}
	got, err := BuildMerkleRootHash([]hash.Hash{leaf})
	if err != nil || got != want {
		t.Fatalf("BuildMerkleRootHash(one) = %s, %v", got, err)
	}
}

func TestOddLeafSelfPaired(t *testing.T) { // A
	t.Parallel()

	l := leaves("a", "b", "c")
	ab := parent(hash.SHA256{}, l[0], l[1])
	cc := parent(hash.SHA256{}, l[2], l[2])
	want := parent(hash.SHA256{}, ab, cc)

	got, err := BuildMerkleRootHash(l)
	if err != nil {
		t.Fatal(err)
	}
	if got != want {
		t.Fatalf("root = %s, want %s", got, want)
	}
}

func TestBuildMerkleRootHashDoesNotMutateInput(t *testing.T) { // H
	t.Parallel()

	l := leaves("w", "x", "y", "z", "v")
	orig := append([]hash.Hash(nil), l...)
	if _, err := BuildMerkleRootHash(l); err != nil {
		t.Fatal(err)
	}
	for i := range l {
		if l[i] != orig[i] {
			t.Fatalf("leaf %d modified", i)
		}
	}
}

func TestRootHexMatchesRaw(t *testing.T) { // A
	t.Parallel()

	l := leaves("1", "2", "3", "4", "5", "6", "7")
	hx := make([]string, len(l))
	for i, h := range l {
		hx[i] = h.String()
	}
	got, err := RootHex(hx)
	if err != nil {
		t.Fatal(err)
	}
	want, _ := BuildMerkleRootHash(l)
	if got != want.String() {
		t.Fatalf("RootHex = %s, want %s", got, want)
	}
	if _, err := RootHex([]string{"not-hex"}); !errors.Is(err, model.ErrInvalidInput) {
		t.Fatalf("bad leaf err = %v", err)
	}
}

func TestOrderSensitivityProperty(t *testing.T) { // A
	rapid.Check(t, func(rt *rapid.T) {
		n := rapid.IntRange(2, 40).Draw(rt, "n")
		l := make([]hash.Hash, n)
		for i := range l {
			l[i] = hash.HashBytes([]byte{byte(i), byte(i >> 8), 0x5a})
		}
		i := rapid.IntRange(0, n-1).Draw(rt, "i")
		j := rapid.IntRange(0, n-1).Filter(func(v int) bool { return v != i }).Draw(rt, "j")

		before, err := BuildMerkleRootHash(l)
		if err != nil {
			rt.Fatal(err)
		}
		l[i], l[j] = l[j], l[i]
		after, err := BuildMerkleRootHash(l)
		if err != nil {
			rt.Fatal(err)
		}
		if before == after {
			rt.Fatalf("swapping leaves %d and %d kept root %s", i, j, before)
		}
	})
}

func TestDeterminismProperty(t *testing.T) { // A
	rapid.Check(t, func(rt *rapid.T) {
		n := rapid.IntRange(1, 64).Draw(rt, "n")
		l := make([]hash.Hash, n)
		for i := range l {
			l[i] = hash.HashBytes(rapid.SliceOfN(rapid.Byte(), 0, 8).Draw(rt, "leaf"))
		}
		a, _ := BuildMerkleRootHash(l)
		b, _ := HashFolder{}.Root(l)
		if a != b {
			rt.Fatal("fold is not deterministic")
		}
	})
}

// countingHasher is SHA-256 that records how many nodes it hashed.
type countingHasher struct{ calls *int }

func (c countingHasher) Sum(data []byte) hash.Hash { // H
	*c.calls++
	return sha256.Sum256(data)
}

// prefixHasher is a digest distinct from plain SHA-256.
type prefixHasher struct{}

func (prefixHasher) Sum(data []byte) hash.Hash { // H
	return sha256.Sum256(append([]byte("node:"), data...))
}

func TestHashFolderUsesInjectedHasher(t *testing.T) { // A
	t.Parallel()
	l := leaves("a", "b", "c")

	calls := 0
	root, err := HashFolder{Hasher: countingHasher{calls: &calls}}.Root(l)
	if err != nil {
		t.Fatal(err)
	}
	want, _ := BuildMerkleRootHash(l)
	if root != want {
		t.Fatalf("SHA-256 folder root = %s, want %s", root, want)
	}
	// Three leaves: two parents on the first level, one on the second.
	if calls != 3 {
		t.Fatalf("hasher called %d times, want 3", calls)
	}

	p := prefixHasher{}
	node := func(left, right hash.Hash) hash.Hash {
		return p.Sum(append(left.Bytes(), right.Bytes()...))
	}
	manual := node(node(l[0], l[1]), node(l[2], l[2]))
	got, err := HashFolder{Hasher: p}.Root(l)
	if err != nil {
		t.Fatal(err)
	}
	if got != manual {
		t.Fatalf("prefix folder root = %s, want %s", got, manual)
	}
	if got == want {
		t.Fatal("injected hasher ignored")
	}

	single, _ := HashFolder{Hasher: p}.Root(l[:1])
	if single != node(l[0], l[0]) {
		t.Fatal("single leaf not self-paired with the injected hasher")
	}
}
