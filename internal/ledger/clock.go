package ledger

import "time"

// Clock supplies the wall-clock timestamp of a batch.
//
// Every event of one AnchorBatch call carries the same timestamp, and the
// centroid seed is derived from it, so tests inject a fixed clock to make
// both deterministic.
type Clock interface {
	NowMillis() uint64
}

// SystemClock reads time.Now.
type SystemClock struct{}

// NowMillis returns milliseconds since the Unix epoch.
func (SystemClock) NowMillis() uint64 {
	return uint64(time.Now().UnixMilli())
}
