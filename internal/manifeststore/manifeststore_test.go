package manifeststore

import (
	"errors"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"
	"github.com/sunway910/api-sub001/pkg/hash"
	"github.com/sunway910/api-sub001/pkg/model"
)

func sampleManifest(seed string, segments int) *model.Manifest { // A
	m := &model.Manifest{
		Fid:         hash.HashHex([]byte(seed)),
		FileName:    seed + ".bin",
		FileSize:    int64(segments)*64 - 3,
		SegmentSize: 64,
		DataShards:  model.DataShards,
		ParShards:   model.ParShards,
		Encrypted:   true,
	}
	for i := 0; i < segments; i++ {
		info := model.SegmentDataInfo{
			SegmentHash: hash.HashHex([]byte{byte(i), 's'}),
		}
		for j := 0; j < model.TotalShards; j++ {
			info.FragmentHash = append(info.FragmentHash, hash.HashHex([]byte{byte(i), byte(j)}))
		}
		m.Segments = append(m.Segments, info)
	}
	return m
}

func openMemory(t *testing.T) *Store { // A
	t.Helper()
	s, err := Open(StoreConfig{InMemory: true})
	require.NoError(t, err)
	t.Cleanup(func() { _ = s.Close() })
	return s
}

func TestPutGetRoundTrip(t *testing.T) { // A
	t.Parallel()

	s := openMemory(t)
	m := sampleManifest("file-a", 3)
	require.NoError(t, s.Put(m))

	got, err := s.Get(m.Fid)
	require.NoError(t, err)
	require.Equal(t, m, got)

	ok, err := s.Has(m.Fid)
	require.NoError(t, err)
	require.True(t, ok)
}

func TestGetMissing(t *testing.T) { // A
	t.Parallel()

	s := openMemory(t)
	_, err := s.Get("nope")
	require.True(t, errors.Is(err, ErrNotFound), "err = %v", err)

	ok, err := s.Has("nope")
	require.NoError(t, err)
	require.False(t, ok)
}

func TestPutRejectsInvalidManifest(t *testing.T) { // A
	t.Parallel()

	s := openMemory(t)
	m := sampleManifest("broken", 2)
	m.Segments[1].FragmentHash = m.Segments[1].FragmentHash[:3]
	require.ErrorIs(t, s.Put(m), model.ErrInvalidInput)
}

func TestListAndDelete(t *testing.T) { // A
	t.Parallel()

	s := openMemory(t)
	a := sampleManifest("a", 1)
	b := sampleManifest("b", 2)
	require.NoError(t, s.Put(a))
	require.NoError(t, s.Put(b))

	fids, err := s.List()
	require.NoError(t, err)
	require.ElementsMatch(t, []string{a.Fid, b.Fid}, fids)

	require.NoError(t, s.Delete(a.Fid))
	require.NoError(t, s.Delete(a.Fid))
	fids, err = s.List()
	require.NoError(t, err)
	require.Equal(t, []string{b.Fid}, fids)
}

func TestPersistsAcrossReopen(t *testing.T) { // A
	t.Parallel()

	dir := filepath.Join(t.TempDir(), "manifests")
	m := sampleManifest("durable", 4)

	s, err := Open(StoreConfig{Path: dir})
	require.NoError(t, err)
	require.NoError(t, s.Put(m))
	require.NoError(t, s.Close())

	s, err = Open(StoreConfig{Path: dir})
	require.NoError(t, err)
	defer s.Close()
	got, err := s.Get(m.Fid)
	require.NoError(t, err)
	require.Equal(t, m.Segments, got.Segments)
}

func TestOpenRequiresPath(t *testing.T) { // H
	t.Parallel()

	_, err := Open(StoreConfig{})
	require.ErrorIs(t, err, model.ErrInvalidInput)
}
