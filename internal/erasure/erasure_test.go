package erasure

import (
	"bytes"
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/sunway910/api-sub001/pkg/cas"
	"github.com/sunway910/api-sub001/pkg/hash"
	"github.com/sunway910/api-sub001/pkg/model"
	"pgregory.net/rapid"
)

func testSegment(n int) []byte { // A
	seg := make([]byte, n)
	for i := range seg {
		seg[i] = byte(i*31 + 7)
	}
	return seg
}

// combinations calls fn with every k-sized subset of [0, n).
func combinations(n, k int, fn func([]int)) { // A
	idx := make([]int, k)
	var rec func(start, depth int)
	rec = func(start, depth int) {
		if depth == k {
			fn(idx)
			return
		}
		for i := start; i <= n-(k-depth); i++ {
			idx[depth] = i
			rec(i+1, depth+1)
		}
	}
	rec(0, 0)
}

func TestNewRejectsBadLayout(t *testing.T) { // A
	t.Parallel()

	if _, err := New(0, 8, nil); !errors.Is(err, model.ErrInvalidInput) {
		t.Fatalf("err = %v, want ErrInvalidInput", err)
	}
	if _, err := New(4, -1, nil); !errors.Is(err, model.ErrInvalidInput) {
		t.Fatalf("err = %v, want ErrInvalidInput", err)
	}
	if _, err := New(200, 100, nil); !errors.Is(err, model.ErrInvalidInput) {
		t.Fatalf("err = %v, want ErrInvalidInput", err)
	}
	c, err := New(200, MaxTotalShards-200, nil)
	if err != nil {
		t.Fatalf("New at the shard limit: %v", err)
	}
	if c.TotalShards() != MaxTotalShards {
		t.Fatalf("TotalShards = %d", c.TotalShards())
	}
}

func TestEncodeStoresShardsInOrder(t *testing.T) { // A
	t.Parallel()

	ctx := context.Background()
	coder, err := NewDefault(nil)
	if err != nil {
		t.Fatal(err)
	}
	store := cas.NewMemoryStore(nil)
	segData := testSegment(256)
	seg, _ := store.Put(ctx, segData)

	hashes, err := coder.Encode(ctx, store, seg)
	if err != nil {
		t.Fatalf("Encode: %v", err)
	}
	if len(hashes) != model.TotalShards {
		t.Fatalf("got %d fragments, want %d", len(hashes), model.TotalShards)
	}
	if ok, _ := store.Has(ctx, seg); !ok {
		t.Fatal("Encode removed the segment")
	}

	shards, err := coder.Shards(segData)
	if err != nil {
		t.Fatal(err)
	}
	for i, h := range hashes {
		got, err := store.Get(ctx, h)
		if err != nil {
			t.Fatalf("fragment %d: %v", i, err)
		}
		if hash.HashBytes(got) != h {
			t.Fatalf("fragment %d stored under wrong address", i)
		}
		if !bytes.Equal(got, shards[i]) {
			t.Fatalf("fragment %d out of shard order", i)
		}
	}
	// systematic: data shards are the segment itself
	var joined []byte
	for i := 0; i < model.DataShards; i++ {
		joined = append(joined, shards[i]...)
	}
	if !bytes.Equal(joined, segData) {
		t.Fatal("data shards do not carry the segment bytes")
	}
}

func TestReconstructFromEveryDataShardSubset(t *testing.T) { // A
	t.Parallel()

	coder, err := NewDefault(nil)
	if err != nil {
		t.Fatal(err)
	}
	segData := testSegment(1024)
	shards, err := coder.Shards(segData)
	if err != nil {
		t.Fatal(err)
	}

	count := 0
	combinations(model.TotalShards, model.DataShards, func(keep []int) {
		count++
		subset := make([][]byte, model.TotalShards)
		for _, i := range keep {
			subset[i] = shards[i]
		}
		got, err := coder.Reconstruct(subset, len(segData))
		if err != nil {
			t.Fatalf("keep %v: %v", keep, err)
		}
		if !bytes.Equal(got, segData) {
			t.Fatalf("keep %v: reconstructed bytes differ", keep)
		}
		for _, i := range keep {
			if subset[i] == nil {
				t.Fatal("Reconstruct modified the caller's slice")
			}
		}
	})
	if count != 495 {
		t.Fatalf("checked %d subsets, want 495", count)
	}
}

func TestReconstructNeedsEnoughShards(t *testing.T) { // A
	t.Parallel()

	coder, _ := NewDefault(nil)
	shards, _ := coder.Shards(testSegment(64))
	subset := make([][]byte, model.TotalShards)
	for i := 0; i < model.DataShards-1; i++ {
		subset[i+5] = shards[i+5]
	}
	if _, err := coder.Reconstruct(subset, 64); !errors.Is(err, model.ErrCoding) {
		t.Fatalf("err = %v, want ErrCoding", err)
	}
	if _, err := coder.Reconstruct(shards[:3], 64); !errors.Is(err, model.ErrCoding) {
		t.Fatalf("short slot slice err = %v, want ErrCoding", err)
	}
}

func TestShardsRejectsEmptySegment(t *testing.T) { // H
	t.Parallel()

	coder, _ := NewDefault(nil)
	if _, err := coder.Shards(nil); !errors.Is(err, model.ErrCoding) {
		t.Fatalf("err = %v, want ErrCoding", err)
	}
}

func TestVerify(t *testing.T) { // A
	t.Parallel()

	coder, _ := NewDefault(nil)
	shards, _ := coder.Shards(testSegment(128))
	ok, err := coder.Verify(shards)
	if err != nil || !ok {
		t.Fatalf("Verify = %v, %v", ok, err)
	}
	shards[model.DataShards][0] ^= 0xff
	ok, err = coder.Verify(shards)
	if err != nil || ok {
		t.Fatalf("Verify after corruption = %v, %v", ok, err)
	}
}

func TestReedSolomonPathForm(t *testing.T) { // A
	t.Parallel()

	dir := t.TempDir()
	segData := testSegment(512)
	segPath := filepath.Join(dir, hash.HashHex(segData))
	if err := os.WriteFile(segPath, segData, 0o644); err != nil {
		t.Fatal(err)
	}
	saveDir := filepath.Join(dir, "fragments")

	coder, _ := NewDefault(nil)
	out, err := coder.ReedSolomon(context.Background(), segPath, saveDir)
	if err != nil {
		t.Fatalf("ReedSolomon: %v", err)
	}
	if len(out) != model.TotalShards {
		t.Fatalf("got %d fragment hashes", len(out))
	}
	for i, hx := range out {
		h, err := hash.HashFile(filepath.Join(saveDir, hx))
		if err != nil {
			t.Fatalf("fragment %d: %v", i, err)
		}
		if h.String() != hx {
			t.Fatalf("fragment %d content does not match its name", i)
		}
	}
	if _, err := os.Stat(segPath); err != nil {
		t.Fatal("ReedSolomon must not delete the segment file")
	}
}

func TestReconstructProperty(t *testing.T) { // A
	rapid.Check(t, func(rt *rapid.T) {
		k := rapid.IntRange(1, 6).Draw(rt, "data")
		p := rapid.IntRange(1, 6).Draw(rt, "parity")
		coder, err := New(k, p, nil)
		if err != nil {
			rt.Fatal(err)
		}
		segData := rapid.SliceOfN(rapid.Byte(), 1, 300).Draw(rt, "segment")
		shards, err := coder.Shards(segData)
		if err != nil {
			rt.Fatal(err)
		}

		perm := rapid.Permutation(makeRange(k+p)).Draw(rt, "order")
		subset := make([][]byte, k+p)
		for _, i := range perm[:k] {
			subset[i] = shards[i]
		}
		got, err := coder.Reconstruct(subset, len(segData))
		if err != nil {
			rt.Fatalf("Reconstruct: %v", err)
		}
		if !bytes.Equal(got, segData) {
			rt.Fatal("reconstructed bytes differ")
		}
	})
}

func makeRange(n int) []int {
	out := make([]int, n)
	for i := range out {
		out[i] = i
	}
	return out
}
