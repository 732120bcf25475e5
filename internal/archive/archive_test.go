package archive

import (
	"context"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestArchiveRun_NoBucketConfigured_IsNoop(t *testing.T) {
	a := New("", "", zerolog.Nop())
	assert.False(t, a.Enabled())

	result, err := a.ArchiveRun(context.Background(), "code-backtests", "run-1", t.TempDir())
	require.NoError(t, err)
	assert.True(t, result.Skipped)
	assert.Empty(t, result.UploadedFiles)
}

func TestArchiveRun_MissingDirectory_IsSkippedNotError(t *testing.T) {
	a := New("test-bucket", "us-east-1", zerolog.Nop())
	assert.True(t, a.Enabled())

	result, err := a.ArchiveRun(context.Background(), "code-backtests", "run-1", "/does/not/exist")
	require.NoError(t, err)
	assert.True(t, result.Skipped)
}
