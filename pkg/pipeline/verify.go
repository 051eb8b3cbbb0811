package pipeline

import (
	"context"
	"fmt"

	"github.com/sunway910/api-sub001/pkg/cas"
	"github.com/sunway910/api-sub001/pkg/hash"
	"github.com/sunway910/api-sub001/pkg/model"
	"github.com/sunway910/api-sub001/pkg/workerpool"
)

// SegmentReport is the on-disk state of one segment's fragments.
type SegmentReport struct {
	Index       int    `json:"index"`
	SegmentHash string `json:"segmentHash"`
	Intact      int    `json:"intact"`
	Missing     []int  `json:"missing,omitempty"`
	Corrupt     []int  `json:"corrupt,omitempty"`
	Recoverable bool   `json:"recoverable"`
}

// Report is the result of Verify.
type Report struct {
	Fid         string          `json:"fid"`
	FidValid    bool            `json:"fidValid"`
	Recoverable bool            `json:"recoverable"`
	Segments    []SegmentReport `json:"segments"`
}

// Verify re-hashes every fragment of m found in saveDir. A segment is
// recoverable while at least DataShards of its fragments are intact. The
// fid is recomputed from the recorded segment hashes. Segments are checked
// concurrently on Options.Workers goroutines.
func (p *Pipeline) Verify(
	ctx context.Context,
	m *model.Manifest,
	saveDir string,
) (*Report, error) { // A
	if err := p.checkManifest(m); err != nil {
		return nil, err
	}

	leaves := make([]hash.Hash, len(m.Segments))
	for i, seg := range m.Segments {
		h, err := hash.FromHex(seg.SegmentHash)
		if err != nil {
			return nil, fmt.Errorf("pipeline: verify segment %d: %w", i, err)
		}
		leaves[i] = h
	}
	root, err := p.folder.Root(leaves)
	if err != nil {
		return nil, fmt.Errorf("pipeline: verify: %w", err)
	}

	report := &Report{
		Fid:         m.Fid,
		FidValid:    root.String() == m.Fid,
		Recoverable: true,
	}

	store := p.stores(saveDir, p.hasher)
	wp := workerpool.NewWorkerPool(workerpool.Config{WorkerCount: p.workers})
	defer wp.Close()

	room := workerpool.NewRoom[SegmentReport](wp, len(m.Segments))
	for i, seg := range m.Segments {
		i, seg := i, seg
		err := room.Submit(ctx, i, func() (SegmentReport, error) {
			return p.verifySegment(ctx, store, i, seg, m.DataShards)
		})
		if err != nil {
			return nil, fmt.Errorf("pipeline: verify segment %d: %w", i, err)
		}
	}

	segments, err := room.Collect()
	if err != nil {
		return nil, err
	}
	for _, sr := range segments {
		if !sr.Recoverable {
			report.Recoverable = false
		}
	}
	report.Segments = segments

	p.log.Info("manifest verified",
		"fid", m.Fid,
		"fidValid", report.FidValid,
		"recoverable", report.Recoverable,
	)
	return report, nil
}

func (p *Pipeline) verifySegment(
	ctx context.Context,
	store cas.Store,
	i int,
	seg model.SegmentDataInfo,
	dataShards int,
) (SegmentReport, error) { // A
	sr := SegmentReport{Index: i, SegmentHash: seg.SegmentHash}

	_, states, err := p.loadShards(ctx, store, seg)
	if err != nil {
		return sr, fmt.Errorf("pipeline: verify segment %d: %w", i, err)
	}
	for j, st := range states {
		switch st {
		case shardIntact:
			sr.Intact++
		case shardMissing:
			sr.Missing = append(sr.Missing, j)
		case shardCorrupt:
			sr.Corrupt = append(sr.Corrupt, j)
		}
	}
	sr.Recoverable = sr.Intact >= dataShards
	return sr, nil
}
