// Package chunker cuts a file into fixed-size, zero-padded segments and
// stores each one under its content hash.
package chunker

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"

	boxochunker "github.com/ipfs/boxo/chunker"
	"github.com/sunway910/api-sub001/pkg/cas"
	"github.com/sunway910/api-sub001/pkg/hash"
	"github.com/sunway910/api-sub001/pkg/logging"
	"github.com/sunway910/api-sub001/pkg/model"
)

// DefaultSegmentSize is the segment length used by the chunking stage.
const DefaultSegmentSize int64 = 16 * 1024 * 1024

// MaxSegmentSize is the largest accepted segment length. A whole segment is
// held in memory, and the boxo splitter counts in uint32.
const MaxSegmentSize int64 = 1 << 30

// CheckSegmentSize rejects sizes outside (0, MaxSegmentSize].
func CheckSegmentSize(size int64) error { // A
	if size <= 0 || size > MaxSegmentSize {
		return model.Invalidf(
			"chunker: segment size %d outside (0, %d]",
			size,
			MaxSegmentSize,
		)
	}
	return nil
}

// Chunker splits files into segments of SegmentSize bytes.
type Chunker struct {
	SegmentSize int64
	Logger      *slog.Logger
}

// New returns a Chunker. A non-positive segmentSize selects
// DefaultSegmentSize.
func New(segmentSize int64, logger *slog.Logger) *Chunker { // A
	if segmentSize <= 0 {
		segmentSize = DefaultSegmentSize
	}
	return &Chunker{
		SegmentSize: segmentSize,
		Logger:      logging.OrDiscard(logger),
	}
}

// CheckSource returns the size of the regular file at path. Directories
// and empty files are rejected with ErrInvalidInput. Nothing is written.
func CheckSource(path string) (int64, error) { // A
	info, err := os.Stat(path)
	if err != nil {
		return 0, model.IOError("chunker: stat source", err)
	}
	if info.IsDir() {
		return 0, model.Invalidf("chunker: %s is a directory", path)
	}
	if info.Size() == 0 {
		return 0, model.Invalidf("chunker: %s is empty", path)
	}
	return info.Size(), nil
}

// SegmentCount returns ceil(fileSize / segmentSize).
func SegmentCount(fileSize, segmentSize int64) int64 { // H
	if fileSize <= 0 || segmentSize <= 0 {
		return 0
	}
	return (fileSize + segmentSize - 1) / segmentSize
}

// Pad returns buf extended with zero bytes to size. A buffer that already
// has size bytes is returned unchanged.
func Pad(buf []byte, size int64) []byte { // A
	if int64(len(buf)) >= size {
		return buf
	}
	out := make([]byte, size)
	copy(out, buf)
	return out
}

// FillAndCut stores every segment of the file at filePath in store and
// returns their content addresses in file order.
//
// Segment i covers bytes [i*SegmentSize, (i+1)*SegmentSize). The final
// segment is zero-padded to SegmentSize before it is hashed, so the stored
// bytes and the returned address always agree.
func (c *Chunker) FillAndCut(
	ctx context.Context,
	filePath string,
	store cas.Store,
) ([]hash.Hash, error) { // AC
	if err := CheckSegmentSize(c.SegmentSize); err != nil {
		return nil, err
	}
	size, err := CheckSource(filePath)
	if err != nil {
		return nil, err
	}

	f, err := os.Open(filePath)
	if err != nil {
		return nil, model.IOError("chunker: open source", err)
	}
	defer f.Close()

	count := SegmentCount(size, c.SegmentSize)
	splitter := boxochunker.NewSizeSplitter(f, c.SegmentSize)
	segments := make([]hash.Hash, 0, count)

	for i := int64(0); i < count; i++ {
		if err := ctx.Err(); err != nil {
			return nil, err
		}

		buf, err := splitter.NextBytes()
		if errors.Is(err, io.EOF) {
			return nil, model.IOError(
				fmt.Sprintf("chunker: segment %d", i),
				io.ErrUnexpectedEOF,
			)
		}
		if err != nil {
			return nil, model.IOError(
				fmt.Sprintf("chunker: read segment %d", i),
				err,
			)
		}

		read := len(buf)
		// Only the final segment may be short.
		if i < count-1 && int64(read) != c.SegmentSize {
			return nil, model.IOError(
				fmt.Sprintf("chunker: segment %d read %d of %d bytes", i, read, c.SegmentSize),
				io.ErrUnexpectedEOF,
			)
		}
		seg := Pad(buf, c.SegmentSize)
		h, err := store.Put(ctx, seg)
		if err != nil {
			return nil, fmt.Errorf("chunker: store segment %d: %w", i, err)
		}
		segments = append(segments, h)

		c.Logger.Debug("segment cut",
			"index", i,
			"hash", h.String(),
			"read", read,
			"padded", int64(read) < c.SegmentSize,
		)
	}

	return segments, nil
}

// FillAndCutDir is the path-based form: saveDir (and missing parents) is
// created after the source passed validation, and the segment file paths
// are returned in file order.
func (c *Chunker) FillAndCutDir(
	ctx context.Context,
	filePath string,
	saveDir string,
) ([]string, error) { // A
	if err := CheckSegmentSize(c.SegmentSize); err != nil {
		return nil, err
	}
	if _, err := CheckSource(filePath); err != nil {
		return nil, err
	}
	store := cas.NewFileStore(saveDir, nil)
	if err := store.Init(); err != nil {
		return nil, err
	}

	hashes, err := c.FillAndCut(ctx, filePath, store)
	if err != nil {
		return nil, err
	}
	paths := make([]string, len(hashes))
	for i, h := range hashes {
		paths[i] = store.Path(h)
	}
	return paths, nil
}
