package ir

// LedgerEvent records one accepted, non-no-op move.
//
// Events are immutable once built. The JSON field order and names are the
// on-disk event log format; do not reorder.
type LedgerEvent struct {
	EntityID      uint64 `json:"entity_id"`
	Prime         uint32 `json:"prime"`
	MSDDigits     []int8 `json:"msd_digits"` // least-significant digit first
	ViaCentroid   bool   `json:"via_c"`
	CentroidDigit uint8  `json:"centroid_digit"` // digit in effect after this event
	Timestamp     uint64 `json:"timestamp"`      // milliseconds since epoch
}
