package store

// Put is one staged write.
type Put struct {
	Partition Partition
	Key       string
	Value     []byte
}

// Batch collects writes across partitions for one atomic Commit.
// A Batch is not safe for concurrent use.
type Batch struct {
	puts []Put
}

// NewBatch returns an empty batch.
func NewBatch() *Batch {
	return &Batch{}
}

// Put stages a write. A later put to the same key wins.
func (b *Batch) Put(p Partition, key string, value []byte) {
	b.puts = append(b.puts, Put{Partition: p, Key: key, Value: value})
}

// Len returns the number of staged writes.
func (b *Batch) Len() int {
	if b == nil {
		return 0
	}
	return len(b.puts)
}

// Puts returns a copy of the staged writes in staging order.
func (b *Batch) Puts() []Put {
	out := make([]Put, len(b.puts))
	copy(out, b.puts)
	return out
}
