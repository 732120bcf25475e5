package analytics

import (
	"database/sql"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestQueryFundamentalsAsOfIsPointInTimeSafe(t *testing.T) {
	s := newTestStore(t)
	_, err := s.PutFundamentalsRows([]FundamentalsRow{
		{Symbol: "AAA", PublishedAt: "2024-01-01", PERatio: sql.NullFloat64{Float64: 10, Valid: true}, SourceFile: "f", DatasetHash: "h", IngestedAt: "2024-01-01"},
		{Symbol: "AAA", PublishedAt: "2024-03-01", PERatio: sql.NullFloat64{Float64: 15, Valid: true}, SourceFile: "f", DatasetHash: "h", IngestedAt: "2024-03-01"},
	})
	require.NoError(t, err)

	r, err := s.QueryFundamentalsAsOf("AAA", "2024-02-01")
	require.NoError(t, err)
	assert.Equal(t, "2024-01-01", r.PublishedAt, "a disclosure published after as_of must be invisible")
	assert.Equal(t, float64(10), r.PERatio.Float64)
}

func TestQueryFundamentalsAsOfErrorsWhenNoneBefore(t *testing.T) {
	s := newTestStore(t)
	_, err := s.PutFundamentalsRows([]FundamentalsRow{
		{Symbol: "AAA", PublishedAt: "2024-03-01", SourceFile: "f", DatasetHash: "h", IngestedAt: "2024-03-01"},
	})
	require.NoError(t, err)

	_, err = s.QueryFundamentalsAsOf("AAA", "2024-01-01")
	assert.Error(t, err)
}

func TestPutFundamentalsRowsDefaultsPayloadJSON(t *testing.T) {
	s := newTestStore(t)
	_, err := s.PutFundamentalsRows([]FundamentalsRow{
		{Symbol: "AAA", PublishedAt: "2024-01-01", SourceFile: "f", DatasetHash: "h", IngestedAt: "2024-01-01"},
	})
	require.NoError(t, err)

	r, err := s.QueryFundamentalsAsOf("AAA", "2024-01-01")
	require.NoError(t, err)
	assert.Equal(t, "{}", r.PayloadJSON)
}
