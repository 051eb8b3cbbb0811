package model

import "fmt"

// Manifest describes a prepared file: the fid, the coding parameters and the
// per-segment fragment lists in original file order.
type Manifest struct {
	Fid         string            `json:"fid" cbor:"1,keyasint"`
	FileName    string            `json:"fileName,omitempty" cbor:"2,keyasint,omitempty"`
	FileSize    int64             `json:"fileSize" cbor:"3,keyasint"`
	SegmentSize int64             `json:"segmentSize" cbor:"4,keyasint"`
	DataShards  int               `json:"dataShards" cbor:"5,keyasint"`
	ParShards   int               `json:"parShards" cbor:"6,keyasint"`
	Encrypted   bool              `json:"encrypted" cbor:"7,keyasint"`
	Segments    []SegmentDataInfo `json:"segments" cbor:"8,keyasint"`
}

// SegmentHashes returns the segment hashes in file order.
func (m *Manifest) SegmentHashes() []string { // A
	out := make([]string, len(m.Segments))
	for i, s := range m.Segments {
		out[i] = s.SegmentHash
	}
	return out
}

// FragmentCount returns the number of fragments the manifest references.
func (m *Manifest) FragmentCount() int { // A
	n := 0
	for _, s := range m.Segments {
		n += len(s.FragmentHash)
	}
	return n
}

// Validate checks the structural consistency of the manifest. It does not
// touch any stored fragment.
func (m *Manifest) Validate() error { // AC
	if m.Fid == "" {
		return Invalidf("manifest: fid is empty")
	}
	if len(m.Segments) == 0 {
		return Invalidf("manifest: no segments")
	}
	if m.DataShards <= 0 || m.ParShards < 0 {
		return Invalidf(
			"manifest: invalid shard layout %d+%d",
			m.DataShards,
			m.ParShards,
		)
	}
	if m.SegmentSize <= 0 {
		return Invalidf("manifest: segment size must be positive")
	}
	maxSize := m.SegmentSize * int64(len(m.Segments))
	if m.FileSize <= 0 || m.FileSize > maxSize {
		return Invalidf(
			"manifest: file size %d outside (0, %d]",
			m.FileSize,
			maxSize,
		)
	}
	total := m.DataShards + m.ParShards
	for i, s := range m.Segments {
		if len(s.FragmentHash) != total {
			return Invalidf(
				"manifest: segment %d has %d fragments, want %d",
				i,
				len(s.FragmentHash),
				total,
			)
		}
	}
	return nil
}

func (m *Manifest) String() string { // H
	return fmt.Sprintf(
		"Manifest{fid=%s segments=%d size=%d encrypted=%t}",
		m.Fid,
		len(m.Segments),
		m.FileSize,
		m.Encrypted,
	)
}
