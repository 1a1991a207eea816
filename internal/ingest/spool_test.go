package ingest

import (
	"encoding/json"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"TradeBraid/internal/model"
)

func writeTrade(t *testing.T, dir, name string, tr model.ClosedTrade) {
	t.Helper()
	data, err := json.Marshal(tr)
	require.NoError(t, err)
	require.NoError(t, os.WriteFile(filepath.Join(dir, name), data, 0644))
}

func TestSpool_PollConsumesInNameOrder(t *testing.T) {
	dir := t.TempDir()
	src, err := NewSpoolSource(dir)
	require.NoError(t, err)

	now := time.Now().UTC().Truncate(time.Second)
	writeTrade(t, dir, "0002.json", model.ClosedTrade{TradeID: "t-2", Module: "position", ExitPrice: 1, ClosedAt: now})
	writeTrade(t, dir, "0001.json", model.ClosedTrade{TradeID: "t-1", Module: "position", ExitPrice: 1, ClosedAt: now})

	trades, err := src.Poll()
	require.NoError(t, err)
	require.Len(t, trades, 2)
	assert.Equal(t, "t-1", trades[0].TradeID)
	assert.Equal(t, "t-2", trades[1].TradeID)

	// Consumed files were renamed away; the next poll is empty.
	assert.FileExists(t, filepath.Join(dir, "0001.json.done"))
	assert.FileExists(t, filepath.Join(dir, "0002.json.done"))

	trades, err = src.Poll()
	require.NoError(t, err)
	assert.Empty(t, trades)
}

func TestSpool_MalformedFileQuarantined(t *testing.T) {
	dir := t.TempDir()
	src, err := NewSpoolSource(dir)
	require.NoError(t, err)

	require.NoError(t, os.WriteFile(filepath.Join(dir, "bad.json"), []byte("{nope"), 0644))
	writeTrade(t, dir, "good.json", model.ClosedTrade{TradeID: "t-1", Module: "position", ExitPrice: 1, ClosedAt: time.Now()})

	trades, err := src.Poll()
	require.NoError(t, err)
	require.Len(t, trades, 1)
	assert.Equal(t, "t-1", trades[0].TradeID)
	assert.FileExists(t, filepath.Join(dir, "bad.json.bad"))
}

func TestSpool_IgnoresNonJSON(t *testing.T) {
	dir := t.TempDir()
	src, err := NewSpoolSource(dir)
	require.NoError(t, err)

	require.NoError(t, os.WriteFile(filepath.Join(dir, "notes.txt"), []byte("hi"), 0644))
	require.NoError(t, os.Mkdir(filepath.Join(dir, "sub"), 0755))

	trades, err := src.Poll()
	require.NoError(t, err)
	assert.Empty(t, trades)
}

func TestMockSource_DrainsOnce(t *testing.T) {
	src := &MockSource{Trades: []model.ClosedTrade{{TradeID: "t-1"}}}

	trades, err := src.Poll()
	require.NoError(t, err)
	assert.Len(t, trades, 1)

	trades, err = src.Poll()
	require.NoError(t, err)
	assert.Empty(t, trades)
}
