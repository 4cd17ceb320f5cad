package testutil

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/flowledger/internal/ir"
)

func TestMemoryLog_RecordsInOrder(t *testing.T) {
	log := NewMemoryLog()

	require.NoError(t, log.Append(ir.LedgerEvent{EntityID: 1, Prime: 3}))
	require.NoError(t, log.Append(ir.LedgerEvent{EntityID: 1, Prime: 5}))

	events := log.Events()
	require.Len(t, events, 2)
	assert.Equal(t, uint32(3), events[0].Prime)
	assert.Equal(t, uint32(5), events[1].Prime)

	// Events returns a copy
	events[0].Prime = 99
	assert.Equal(t, uint32(3), log.Events()[0].Prime)
}

func TestFailingLog_FailsNthAppend(t *testing.T) {
	log := NewFailingLog(2)

	require.NoError(t, log.Append(ir.LedgerEvent{Prime: 2}))
	assert.ErrorIs(t, log.Append(ir.LedgerEvent{Prime: 3}), ErrInjected)
	require.NoError(t, log.Append(ir.LedgerEvent{Prime: 5}))

	assert.Equal(t, 2, log.Len())
}
