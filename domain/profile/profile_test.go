package profile

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"gomarker/domain/core"
)

func testProfile(t *testing.T) *Profile {
	t.Helper()
	p, err := NewProfile(
		[][]float64{
			{10, 0, 3, 7},
			{0, 5, 2, 1},
		},
		[]string{"otu1", "otu2"},
		[]string{"s1", "s2", "s3", "s4"},
		[]SampleMeta{
			{"group": "case"},
			{"group": "case"},
			{"group": "control"},
			{"group": "control"},
		},
		nil,
	)
	assert.NoError(t, err)
	return p
}

func TestNewProfile_RejectsRaggedMatrix(t *testing.T) {
	_, err := NewProfile(
		[][]float64{{1, 2}, {3}},
		[]string{"otu1", "otu2"},
		[]string{"s1", "s2"},
		nil, nil,
	)
	assert.ErrorIs(t, err, core.ErrRaggedMatrix)
}

func TestNewProfile_RejectsDuplicateNames(t *testing.T) {
	_, err := NewProfile(
		[][]float64{{1, 2}, {3, 4}},
		[]string{"otu1", "otu1"},
		[]string{"s1", "s2"},
		nil, nil,
	)
	assert.ErrorIs(t, err, core.ErrDuplicateName)
}

func TestNewProfile_RejectsEmpty(t *testing.T) {
	_, err := NewProfile(nil, nil, nil, nil, nil)
	assert.ErrorIs(t, err, core.ErrEmptyProfile)
}

func TestProfile_CloneIsDeep(t *testing.T) {
	p := testProfile(t)
	cp := p.Clone()

	cp.Counts[0][0] = 999
	cp.Meta[0]["group"] = "mutated"

	assert.Equal(t, 10.0, p.Counts[0][0])
	assert.Equal(t, "case", p.Meta[0]["group"])
}

func TestProfile_GroupFactor(t *testing.T) {
	p := testProfile(t)

	gf, err := p.GroupFactor("group")
	assert.NoError(t, err)
	assert.Equal(t, []string{"case", "control"}, gf.Levels)
	assert.Equal(t, []string{"case", "case", "control", "control"}, gf.Labels)

	_, err = p.GroupFactor("missing_column")
	assert.Error(t, err)
}

func TestProfile_LibrarySizes(t *testing.T) {
	p := testProfile(t)
	assert.Equal(t, []float64{10, 5, 5, 8}, p.LibrarySizes())
}
