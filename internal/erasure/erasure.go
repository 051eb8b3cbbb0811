// Package erasure splits segments into Reed-Solomon data and parity
// fragments and reconstructs segments from any sufficient subset.
package erasure

import (
	"bytes"
	"context"
	"fmt"
	"log/slog"
	"path/filepath"

	rs "github.com/klauspost/reedsolomon"
	"github.com/sunway910/api-sub001/pkg/cas"
	"github.com/sunway910/api-sub001/pkg/hash"
	"github.com/sunway910/api-sub001/pkg/logging"
	"github.com/sunway910/api-sub001/pkg/model"
)

// Coder is a systematic Reed-Solomon coder with a fixed layout.
type Coder struct {
	DataShards int
	ParShards  int
	Logger     *slog.Logger

	enc rs.Encoder
}

// MaxTotalShards bounds dataShards + parShards to the GF(2^8) field the
// network's fragments are coded in.
const MaxTotalShards = 256

// New returns a Coder producing dataShards + parShards fragments.
func New(dataShards, parShards int, logger *slog.Logger) (*Coder, error) { // A
	if dataShards <= 0 {
		return nil, model.Invalidf("erasure: data shards must be > 0")
	}
	if parShards < 0 {
		return nil, model.Invalidf("erasure: parity shards must be >= 0")
	}
	if dataShards+parShards > MaxTotalShards {
		return nil, model.Invalidf(
			"erasure: %d total shards exceeds %d",
			dataShards+parShards,
			MaxTotalShards,
		)
	}
	enc, err := rs.New(dataShards, parShards)
	if err != nil {
		return nil, model.CodingError("erasure: new encoder", err)
	}
	return &Coder{
		DataShards: dataShards,
		ParShards:  parShards,
		Logger:     logging.OrDiscard(logger),
		enc:        enc,
	}, nil
}

// NewDefault returns the 4 data + 8 parity coder used by the network.
func NewDefault(logger *slog.Logger) (*Coder, error) { // H
	return New(model.DataShards, model.ParShards, logger)
}

// Layout returns the data and parity shard counts.
func (c *Coder) Layout() (int, int) { // H
	return c.DataShards, c.ParShards
}

// TotalShards returns DataShards + ParShards.
func (c *Coder) TotalShards() int { // H
	return c.DataShards + c.ParShards
}

// Shards splits data into DataShards equal blocks, zero-filling the last
// one if needed, and appends the ParShards parity blocks.
func (c *Coder) Shards(data []byte) ([][]byte, error) { // PA
	shards, err := c.enc.Split(data)
	if err != nil {
		return nil, model.CodingError("erasure: split", err)
	}
	if err := c.enc.Encode(shards); err != nil {
		return nil, model.CodingError("erasure: encode shards", err)
	}
	if len(shards) != c.TotalShards() {
		return nil, model.CodingError(
			"erasure: encode shards",
			fmt.Errorf("got %d shards, want %d", len(shards), c.TotalShards()),
		)
	}
	return shards, nil
}

// Encode codes the segment stored under segment and stores every shard
// under its own content address. The returned hashes are in shard index
// order. The segment itself is left in the store.
func (c *Coder) Encode(
	ctx context.Context,
	store cas.Store,
	segment hash.Hash,
) ([]hash.Hash, error) { // PA
	data, err := store.Get(ctx, segment)
	if err != nil {
		return nil, fmt.Errorf("erasure: %w", err)
	}
	shards, err := c.Shards(data)
	if err != nil {
		return nil, fmt.Errorf("erasure: segment %s: %w", segment, err)
	}

	out := make([]hash.Hash, len(shards))
	for i, shard := range shards {
		h, err := store.Put(ctx, shard)
		if err != nil {
			return nil, fmt.Errorf("erasure: store shard %d: %w", i, err)
		}
		out[i] = h
	}

	c.Logger.Debug("segment coded",
		"segment", segment.String(),
		"shards", len(out),
		"shardSize", len(shards[0]),
	)
	return out, nil
}

// ReedSolomon is the path-based form of Encode: segmentPath must be named
// by its hex digest and fragments are written to saveDir. It returns the
// fragment hashes in shard order.
func (c *Coder) ReedSolomon(
	ctx context.Context,
	segmentPath string,
	saveDir string,
) ([]string, error) { // A
	seg, err := hash.FromHex(filepath.Base(segmentPath))
	if err != nil {
		return nil, fmt.Errorf("erasure: segment path %s: %w", segmentPath, err)
	}
	src := cas.NewFileStore(filepath.Dir(segmentPath), nil)
	data, err := src.Get(ctx, seg)
	if err != nil {
		return nil, fmt.Errorf("erasure: %w", err)
	}

	shards, err := c.Shards(data)
	if err != nil {
		return nil, fmt.Errorf("erasure: segment %s: %w", seg, err)
	}

	dst := cas.NewFileStore(saveDir, nil)
	out := make([]string, len(shards))
	for i, shard := range shards {
		h, err := dst.Put(ctx, shard)
		if err != nil {
			return nil, fmt.Errorf("erasure: store shard %d: %w", i, err)
		}
		out[i] = h.String()
	}
	return out, nil
}

// Reconstruct rebuilds the coded bytes from shards, where shards[i] is the
// shard with index i or nil when it is missing. At least DataShards entries
// must be present. size is the length of the original input to Shards.
// The caller's slice is not modified.
func (c *Coder) Reconstruct(shards [][]byte, size int) ([]byte, error) { // PA
	if len(shards) != c.TotalShards() {
		return nil, model.CodingError(
			"erasure: reconstruct",
			fmt.Errorf("got %d shard slots, want %d", len(shards), c.TotalShards()),
		)
	}

	present := 0
	work := make([][]byte, len(shards))
	for i, s := range shards {
		if s != nil {
			work[i] = s
			present++
		}
	}
	if present < c.DataShards {
		return nil, model.CodingError(
			"erasure: reconstruct",
			fmt.Errorf("%d shards present, need %d", present, c.DataShards),
		)
	}

	if err := c.enc.ReconstructData(work); err != nil {
		return nil, model.CodingError("erasure: reconstruct", err)
	}
	var out bytes.Buffer
	out.Grow(size)
	if err := c.enc.Join(&out, work, size); err != nil {
		return nil, model.CodingError("erasure: join", err)
	}
	return out.Bytes(), nil
}

// Verify reports whether the parity shards are consistent with the data
// shards. All shards must be present.
func (c *Coder) Verify(shards [][]byte) (bool, error) { // A
	ok, err := c.enc.Verify(shards)
	if err != nil {
		return false, model.CodingError("erasure: verify", err)
	}
	return ok, nil
}
