package pipeline

import (
	"context"
	"errors"
	"fmt"
	"io"
	"time"

	"github.com/sunway910/api-sub001/pkg/cas"
	"github.com/sunway910/api-sub001/pkg/encryption"
	"github.com/sunway910/api-sub001/pkg/hash"
	"github.com/sunway910/api-sub001/pkg/model"
)

// Restore rebuilds the original file described by m from the fragments in
// saveDir and writes it to out. Each segment needs at least DataShards
// intact fragments; missing and corrupt fragments are treated as erasures.
func (p *Pipeline) Restore(
	ctx context.Context,
	m *model.Manifest,
	cipherKey []byte,
	saveDir string,
	out io.Writer,
) error { // PA
	start := time.Now()

	if err := p.checkManifest(m); err != nil {
		return err
	}
	if m.Encrypted {
		if len(cipherKey) == 0 {
			return fmt.Errorf(
				"pipeline: restore: %w",
				model.Invalidf("manifest %s is encrypted and no key was given", m.Fid),
			)
		}
		if err := encryption.ValidateKey(cipherKey); err != nil {
			return fmt.Errorf("pipeline: restore: %w", err)
		}
	}

	store := p.stores(saveDir, p.hasher)
	coded := int(codedSize(m.SegmentSize, m.Encrypted))
	remaining := m.FileSize

	for i, seg := range m.Segments {
		if err := ctx.Err(); err != nil {
			return fmt.Errorf("pipeline: restore segment %d: %w", i, err)
		}

		segHash, err := hash.FromHex(seg.SegmentHash)
		if err != nil {
			return fmt.Errorf("pipeline: restore segment %d: %w", i, err)
		}

		shards, _, err := p.loadShards(ctx, store, seg)
		if err != nil {
			return fmt.Errorf("pipeline: restore segment %d: %w", i, err)
		}

		data, err := p.coder.Reconstruct(shards, coded)
		if err != nil {
			return fmt.Errorf("pipeline: restore segment %d: %w", i, err)
		}
		if got := p.hasher.Sum(data); got != segHash {
			return fmt.Errorf(
				"pipeline: restore segment %d: %w",
				i,
				model.CodingError(
					"segment hash",
					fmt.Errorf("got %s, manifest records %s", got, segHash),
				),
			)
		}

		if m.Encrypted {
			data, err = p.stage.Cipher.Decrypt(cipherKey, data)
			if err != nil {
				return fmt.Errorf("pipeline: restore segment %d: %w", i, err)
			}
		}

		// The final segment carries zero padding past FileSize.
		if int64(len(data)) > remaining {
			data = data[:remaining]
		}
		if _, err := out.Write(data); err != nil {
			return model.IOError(fmt.Sprintf("pipeline: restore segment %d: write", i), err)
		}
		remaining -= int64(len(data))
	}

	if remaining != 0 {
		return fmt.Errorf(
			"pipeline: restore: %w",
			model.CodingError(
				"length",
				fmt.Errorf("%d bytes short of %d", remaining, m.FileSize),
			),
		)
	}

	p.log.Info("file restored",
		"fid", m.Fid,
		"bytes", m.FileSize,
		"took", time.Since(start),
	)
	return nil
}

// checkManifest rejects manifests this pipeline cannot read.
func (p *Pipeline) checkManifest(m *model.Manifest) error { // A
	if m == nil {
		return fmt.Errorf("pipeline: %w", model.Invalidf("nil manifest"))
	}
	if err := m.Validate(); err != nil {
		return fmt.Errorf("pipeline: %w", err)
	}
	data, parity := p.coder.Layout()
	if m.DataShards != data || m.ParShards != parity {
		return fmt.Errorf(
			"pipeline: %w",
			model.Invalidf(
				"manifest layout %d+%d does not match coder %d+%d",
				m.DataShards, m.ParShards, data, parity,
			),
		)
	}
	return nil
}

// shardState describes one fragment slot of a segment.
type shardState int

const (
	shardIntact shardState = iota
	shardMissing
	shardCorrupt
)

// loadShards reads every fragment of seg from store. Missing or corrupt
// fragments come back as nil shards so the coder treats them as erasures.
func (p *Pipeline) loadShards(
	ctx context.Context,
	store cas.Store,
	seg model.SegmentDataInfo,
) ([][]byte, []shardState, error) { // A
	shards := make([][]byte, len(seg.FragmentHash))
	states := make([]shardState, len(seg.FragmentHash))

	for j, fh := range seg.FragmentHash {
		want, err := hash.FromHex(fh)
		if err != nil {
			return nil, nil, err
		}
		data, err := store.Get(ctx, want)
		switch {
		case err == nil:
		case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
			return nil, nil, err
		default:
			states[j] = shardMissing
			p.log.Debug("fragment unavailable", "fragment", fh, "error", err)
			continue
		}
		if p.hasher.Sum(data) != want {
			states[j] = shardCorrupt
			p.log.Warn("fragment corrupt", "fragment", fh)
			continue
		}
		shards[j] = data
	}
	return shards, states, nil
}
