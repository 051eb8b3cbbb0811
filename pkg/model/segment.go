package model

// Reed-Solomon layout used by the storage network.
const (
	DataShards  = 4
	ParShards   = 8
	TotalShards = DataShards + ParShards
)

// SegmentDataInfo binds one segment to the ordered hashes of its fragments.
//
// FragmentHash[i] is the shard with Reed-Solomon index i: indices
// 0 to DataShards-1 carry segment bytes, the rest carry parity. The order
// is what a decoder needs to place shards back into the coding matrix, so
// it must never be sorted or deduplicated.
type SegmentDataInfo struct {
	SegmentHash  string   `json:"segmentHash" cbor:"1,keyasint"`
	FragmentHash []string `json:"fragmentHash" cbor:"2,keyasint"`
}
