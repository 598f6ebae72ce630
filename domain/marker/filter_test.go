package marker

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestFilterSignificant_KeepsBelowCutoff(t *testing.T) {
	records := []Record{
		{Feature: "otu1", PAdjusted: 0.001},
		{Feature: "otu2", PAdjusted: 0.2},
		{Feature: "otu3", PAdjusted: 0.04},
		{Feature: "otu4", PAdjusted: math.NaN()},
	}

	kept, fellBack := FilterSignificant(records, 0.05)
	assert.False(t, fellBack)
	assert.Len(t, kept, 2)
	assert.Equal(t, "otu1", kept[0].Feature)
	assert.Equal(t, "otu3", kept[1].Feature)
}

func TestFilterSignificant_CutoffIsStrict(t *testing.T) {
	records := []Record{{Feature: "otu1", PAdjusted: 0.05}}

	kept, fellBack := FilterSignificant(records, 0.05)
	// 0.05 is not below 0.05, so nothing passes and the filter falls back
	assert.True(t, fellBack)
	assert.Len(t, kept, 1)
}

func TestFilterSignificant_FallsBackToAllRows(t *testing.T) {
	records := []Record{
		{Feature: "otu1", PAdjusted: 0.4},
		{Feature: "otu2", PAdjusted: 0.9},
	}

	kept, fellBack := FilterSignificant(records, 1e-12)
	assert.True(t, fellBack)
	assert.Len(t, kept, 2)
	assert.Equal(t, "otu1", kept[0].Feature)
	assert.Equal(t, "otu2", kept[1].Feature)
}

func TestFilterSignificant_EmptyInput(t *testing.T) {
	kept, fellBack := FilterSignificant(nil, 0.05)
	assert.False(t, fellBack)
	assert.Empty(t, kept)
}

func TestAssemble_SequentialIDs(t *testing.T) {
	table := Assemble([]Record{
		{Feature: "otu3"},
		{Feature: "otu1"},
		{Feature: "otu7"},
	})

	assert.Equal(t, 3, table.Len())
	assert.Equal(t, "marker1", table.Records[0].ID)
	assert.Equal(t, "marker2", table.Records[1].ID)
	assert.Equal(t, "marker3", table.Records[2].ID)
	assert.Equal(t, "otu3", table.Records[0].Feature)
}

func TestEffectKind_ColumnTag(t *testing.T) {
	assert.Equal(t, "ef_logFC", EffectLogFC.ColumnTag())
	assert.Equal(t, "ef_F_statistic", EffectFStatistic.ColumnTag())
	assert.Equal(t, "ef_coef", EffectCoefficient.ColumnTag())
}
