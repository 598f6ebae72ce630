package app

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"gomarker/domain/core"
)

func TestBatchRunner_RunAll(t *testing.T) {
	runner := NewBatchRunner(newTestService(), 2)

	good := AnalysisRequest{
		Profile:     twoGroupProfile(t),
		GroupColumn: "diet",
		Contrast:    &[2]string{"high fat", "control"},
	}
	missingContrast := AnalysisRequest{
		Profile:     twoGroupProfile(t),
		GroupColumn: "diet",
	}

	items := runner.RunAll(context.Background(), []AnalysisRequest{good, missingContrast, good})
	require.Len(t, items, 3)

	assert.NoError(t, items[0].Err)
	require.NotNil(t, items[0].Result)
	assert.Equal(t, "metagenomeSeq: ZILN", items[0].Result.DiffMethod)

	// a failed sibling does not poison the rest
	assert.ErrorIs(t, items[1].Err, core.ErrContrastRequired)
	assert.Nil(t, items[1].Result)

	assert.NoError(t, items[2].Err)
	require.NotNil(t, items[2].Result)
	assert.Equal(t, items[0].Result.Fingerprint, items[2].Result.Fingerprint)
}

func TestBatchRunner_LimitFloorsAtOne(t *testing.T) {
	runner := NewBatchRunner(newTestService(), 0)

	items := runner.RunAll(context.Background(), []AnalysisRequest{{
		Profile:     twoGroupProfile(t),
		GroupColumn: "diet",
		Contrast:    &[2]string{"high fat", "control"},
	}})
	require.Len(t, items, 1)
	assert.NoError(t, items[0].Err)
}

func TestBatchRunner_CancelledContext(t *testing.T) {
	runner := NewBatchRunner(newTestService(), 1)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	items := runner.RunAll(ctx, []AnalysisRequest{{
		Profile:     twoGroupProfile(t),
		GroupColumn: "diet",
		Contrast:    &[2]string{"high fat", "control"},
	}})
	require.Len(t, items, 1)
	assert.ErrorIs(t, items[0].Err, context.Canceled)
}
