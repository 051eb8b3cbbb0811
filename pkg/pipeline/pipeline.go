// Package pipeline sequences chunking, the optional cipher stage, erasure
// coding and the Merkle fold into the single call clients use to prepare a
// file for upload.
package pipeline

import (
	"context"
	"fmt"
	"log/slog"
	"path/filepath"
	"time"

	"github.com/sunway910/api-sub001/internal/diskspace"
	"github.com/sunway910/api-sub001/internal/erasure"
	"github.com/sunway910/api-sub001/pkg/cas"
	"github.com/sunway910/api-sub001/pkg/chunker"
	"github.com/sunway910/api-sub001/pkg/encryption"
	"github.com/sunway910/api-sub001/pkg/hash"
	"github.com/sunway910/api-sub001/pkg/logging"
	"github.com/sunway910/api-sub001/pkg/merkle"
	"github.com/sunway910/api-sub001/pkg/model"
)

// ErasureCoder is the coding capability the pipeline needs.
type ErasureCoder interface {
	Layout() (data, parity int)
	Encode(ctx context.Context, store cas.Store, segment hash.Hash) ([]hash.Hash, error)
	Reconstruct(shards [][]byte, size int) ([]byte, error)
}

var _ ErasureCoder = (*erasure.Coder)(nil)

// StoreFactory returns the store that backs saveDir.
type StoreFactory func(saveDir string, hasher hash.Hasher) cas.Store

// FileStores is the default StoreFactory: one flat directory per saveDir.
func FileStores(saveDir string, hasher hash.Hasher) cas.Store { // H
	return cas.NewFileStore(saveDir, hasher)
}

// Options configures a Pipeline. Zero values select the network defaults.
// A negative or oversized SegmentSize is rejected by New.
type Options struct {
	SegmentSize   int64
	MinimumFreeGB uint
	Logger        *slog.Logger
	// Workers bounds the goroutines used by Verify. Zero means one per CPU.
	Workers       int

	Hasher hash.Hasher
	Cipher encryption.Cipher
	Coder  ErasureCoder
	Folder merkle.Folder
	Stores StoreFactory
}

// Pipeline prepares files. It holds no per-call state, so one Pipeline can
// serve concurrent calls that use distinct save directories.
type Pipeline struct {
	segmentSize   int64
	minimumFreeGB uint
	workers       int
	log           *slog.Logger

	hasher  hash.Hasher
	chunker *chunker.Chunker
	stage   *encryption.Stage
	coder   ErasureCoder
	folder  merkle.Folder
	stores  StoreFactory
}

// New builds a Pipeline from opts.
func New(opts Options) (*Pipeline, error) { // AC
	log := logging.OrDiscard(opts.Logger)

	if opts.SegmentSize == 0 {
		opts.SegmentSize = chunker.DefaultSegmentSize
	}
	if err := chunker.CheckSegmentSize(opts.SegmentSize); err != nil {
		return nil, fmt.Errorf("pipeline: %w", err)
	}
	if opts.Hasher == nil {
		opts.Hasher = hash.SHA256{}
	}
	if opts.Coder == nil {
		c, err := erasure.NewDefault(log)
		if err != nil {
			return nil, fmt.Errorf("pipeline: %w", err)
		}
		opts.Coder = c
	}
	if opts.Folder == nil {
		opts.Folder = merkle.HashFolder{Hasher: opts.Hasher}
	}
	if opts.Stores == nil {
		opts.Stores = FileStores
	}

	return &Pipeline{
		segmentSize:   opts.SegmentSize,
		minimumFreeGB: opts.MinimumFreeGB,
		workers:       opts.Workers,
		log:           log,
		hasher:        opts.Hasher,
		chunker:       chunker.New(opts.SegmentSize, log),
		stage:         encryption.NewStage(opts.Cipher, log),
		coder:         opts.Coder,
		folder:        opts.Folder,
		stores:        opts.Stores,
	}, nil
}

// FullProcessing prepares filePath and returns the per-segment fragment
// manifest in file order together with the fid. An empty cipherKey skips
// the cipher stage.
//
// Any failure aborts the call and no manifest is returned. Fragments that
// were already written stay in saveDir.
func (p *Pipeline) FullProcessing(
	ctx context.Context,
	filePath string,
	cipherKey []byte,
	saveDir string,
) ([]model.SegmentDataInfo, string, error) { // A
	m, err := p.Process(ctx, filePath, cipherKey, saveDir)
	if err != nil {
		return nil, "", err
	}
	return m.Segments, m.Fid, nil
}

// Process is FullProcessing returning the complete Manifest.
func (p *Pipeline) Process(
	ctx context.Context,
	filePath string,
	cipherKey []byte,
	saveDir string,
) (*model.Manifest, error) { // PA
	start := time.Now()
	encrypt := len(cipherKey) > 0

	// Input validation happens before anything touches saveDir.
	size, err := chunker.CheckSource(filePath)
	if err != nil {
		return nil, fmt.Errorf("pipeline: %w", err)
	}
	if encrypt {
		if err := encryption.ValidateKey(cipherKey); err != nil {
			return nil, fmt.Errorf("pipeline: %w", err)
		}
	}
	if p.minimumFreeGB > 0 {
		need := p.estimateBytes(size, encrypt)
		if err := diskspace.Check(saveDir, p.minimumFreeGB, need); err != nil {
			return nil, model.IOError("pipeline: preflight", err)
		}
	}

	store := p.stores(saveDir, p.hasher)
	if initer, ok := store.(interface{ Init() error }); ok {
		if err := initer.Init(); err != nil {
			return nil, fmt.Errorf("pipeline: %w", err)
		}
	}

	segments, err := p.chunker.FillAndCut(ctx, filePath, store)
	if err != nil {
		return nil, fmt.Errorf("pipeline: %w", err)
	}
	p.log.Debug("file chunked", "file", filePath, "segments", len(segments))

	if encrypt {
		segments, err = p.stage.EncryptSegments(ctx, store, segments, cipherKey)
		if err != nil {
			return nil, fmt.Errorf("pipeline: %w", err)
		}
	}

	// Repeated content yields repeated segment hashes; a segment blob is
	// dropped only after its last occurrence has been coded.
	last := make(map[hash.Hash]int, len(segments))
	for i, seg := range segments {
		last[seg] = i
	}

	data, parity := p.coder.Layout()
	infos := make([]model.SegmentDataInfo, 0, len(segments))
	for i, seg := range segments {
		if err := ctx.Err(); err != nil {
			return nil, fmt.Errorf("pipeline: segment %d: %w", i, err)
		}

		frags, err := p.coder.Encode(ctx, store, seg)
		if err != nil {
			return nil, fmt.Errorf("pipeline: segment %d: %w", i, err)
		}

		info := model.SegmentDataInfo{
			SegmentHash:  seg.String(),
			FragmentHash: make([]string, len(frags)),
		}
		keepSegment := false
		for j, f := range frags {
			info.FragmentHash[j] = f.String()
			// With a single data shard the first fragment is the segment.
			if f == seg {
				keepSegment = true
			}
		}
		if !keepSegment && last[seg] == i {
			if err := store.Delete(ctx, seg); err != nil {
				return nil, fmt.Errorf("pipeline: segment %d: %w", i, err)
			}
		}
		infos = append(infos, info)
	}

	fid, err := p.folder.Root(segments)
	if err != nil {
		return nil, fmt.Errorf("pipeline: %w", err)
	}

	m := &model.Manifest{
		Fid:         fid.String(),
		FileName:    filepath.Base(filePath),
		FileSize:    size,
		SegmentSize: p.segmentSize,
		DataShards:  data,
		ParShards:   parity,
		Encrypted:   encrypt,
		Segments:    infos,
	}

	p.log.Info("file prepared",
		"file", filePath,
		"fid", m.Fid,
		"segments", len(infos),
		"fragments", m.FragmentCount(),
		"encrypted", encrypt,
		"took", time.Since(start),
	)
	return m, nil
}

// codedSize is the length of each segment as handed to the erasure coder.
func codedSize(segmentSize int64, encrypted bool) int64 { // H
	if encrypted {
		return encryption.CiphertextSize(segmentSize)
	}
	return segmentSize
}

// estimateBytes is the peak disk use of one run: every fragment plus one
// live segment and its ciphertext.
func (p *Pipeline) estimateBytes(fileSize int64, encrypt bool) uint64 { // A
	data, parity := p.coder.Layout()
	coded := codedSize(p.segmentSize, encrypt)
	shard := (coded + int64(data) - 1) / int64(data)
	count := chunker.SegmentCount(fileSize, p.segmentSize)
	total := count*shard*int64(data+parity) + p.segmentSize + coded
	return uint64(total)
}
