package analytics

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestQueryRatingsAsOfReturnsLatestPerAgency(t *testing.T) {
	s := newTestStore(t)
	_, err := s.PutRatingRows([]RatingRow{
		{Symbol: "AAA", RevisedAt: "2024-01-01", Agency: "X", Rating: "hold", SourceFile: "f", DatasetHash: "h", IngestedAt: "2024-01-01"},
		{Symbol: "AAA", RevisedAt: "2024-02-01", Agency: "X", Rating: "buy", SourceFile: "f", DatasetHash: "h", IngestedAt: "2024-02-01"},
		{Symbol: "AAA", RevisedAt: "2024-01-15", Agency: "Y", Rating: "sell", SourceFile: "f", DatasetHash: "h", IngestedAt: "2024-01-15"},
	})
	require.NoError(t, err)

	ratings, err := s.QueryRatingsAsOf("AAA", "2024-02-15")
	require.NoError(t, err)
	require.Len(t, ratings, 2)

	byAgency := map[string]RatingRow{}
	for _, r := range ratings {
		byAgency[r.Agency] = r
	}
	assert.Equal(t, "buy", byAgency["X"].Rating)
	assert.Equal(t, "sell", byAgency["Y"].Rating)
}

func TestCountRatingsAsOfExcludesFutureRevisions(t *testing.T) {
	s := newTestStore(t)
	_, err := s.PutRatingRows([]RatingRow{
		{Symbol: "AAA", RevisedAt: "2024-01-01", Agency: "X", Rating: "hold", SourceFile: "f", DatasetHash: "h", IngestedAt: "2024-01-01"},
		{Symbol: "AAA", RevisedAt: "2024-06-01", Agency: "X", Rating: "buy", SourceFile: "f", DatasetHash: "h", IngestedAt: "2024-06-01"},
	})
	require.NoError(t, err)

	n, err := s.CountRatingsAsOf([]string{"AAA"}, "2024-02-01")
	require.NoError(t, err)
	assert.Equal(t, 1, n)
}
