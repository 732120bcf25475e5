package store

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCandleCache_RoundTrip(t *testing.T) {
	s := newTestStore(t, "")

	rows := []CandleRow{
		{Timestamp: "2026-01-02T09:15:00Z", Open: 100, High: 101.5, Low: 99.5, Close: 101, Volume: 12345},
		{Timestamp: "2026-01-02T09:16:00Z", Open: 101, High: 102, Low: 100.5, Close: 100.8, Volume: 9876},
	}
	payload, err := EncodeCandleRows(rows)
	require.NoError(t, err)

	err = s.PutCandleCache(&KiteCandleCache{
		Symbol: "RELIANCE", InstrumentToken: "738561", Interval: "minute",
		FromTS: "2026-01-02T09:15:00Z", ToTS: "2026-01-02T09:16:00Z",
		RowCount: len(rows), DatasetHash: "deadbeef", Payload: payload,
	})
	require.NoError(t, err)

	cached, err := s.GetCandleCache("RELIANCE", "738561", "minute", "2026-01-02T09:15:00Z", "2026-01-02T09:16:00Z")
	require.NoError(t, err)
	assert.Equal(t, 2, cached.RowCount)

	decoded, err := DecodeCandleRows(cached.Payload)
	require.NoError(t, err)
	assert.Equal(t, rows, decoded)
}

func TestCandleCache_Miss(t *testing.T) {
	s := newTestStore(t, "")
	_, err := s.GetCandleCache("NOPE", "0", "minute", "a", "b")
	assert.Error(t, err)
}
