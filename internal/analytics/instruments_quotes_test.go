package analytics

import (
	"database/sql"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPutInstrumentUpsertsOnReFetch(t *testing.T) {
	s := newTestStore(t)
	require.NoError(t, s.PutInstrument(InstrumentRow{
		Symbol: "AAA", Name: sql.NullString{String: "Alpha", Valid: true},
		Exchange: sql.NullString{String: "NSE", Valid: true}, DatasetHash: "h1", FetchedAt: "2024-01-01",
	}))
	require.NoError(t, s.PutInstrument(InstrumentRow{
		Symbol: "AAA", Name: sql.NullString{String: "Alpha Corp", Valid: true},
		Exchange: sql.NullString{String: "NSE", Valid: true}, DatasetHash: "h2", FetchedAt: "2024-02-01",
	}))

	r, err := s.GetInstrument("AAA")
	require.NoError(t, err)
	assert.Equal(t, "Alpha Corp", r.Name.String)
	assert.Equal(t, "h2", r.DatasetHash)
}

func TestGetLatestQuotesReturnsMostRecentPerSymbol(t *testing.T) {
	s := newTestStore(t)
	require.NoError(t, s.PutQuote(QuoteRow{Symbol: "AAA", FetchedAt: "2024-01-01T00:00:00Z", Price: 10, DatasetHash: "h"}))
	require.NoError(t, s.PutQuote(QuoteRow{Symbol: "AAA", FetchedAt: "2024-01-02T00:00:00Z", Price: 12, DatasetHash: "h"}))
	require.NoError(t, s.PutQuote(QuoteRow{Symbol: "BBB", FetchedAt: "2024-01-01T00:00:00Z", Price: 5, DatasetHash: "h"}))

	quotes, err := s.GetLatestQuotes([]string{"AAA", "BBB"})
	require.NoError(t, err)
	assert.Equal(t, float64(12), quotes["AAA"].Price)
	assert.Equal(t, float64(5), quotes["BBB"].Price)
}
