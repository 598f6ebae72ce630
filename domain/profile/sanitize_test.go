package profile

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestSanitizeLabel(t *testing.T) {
	cases := []struct {
		raw  string
		want string
	}{
		{"Control", "Control"},
		{"high fat", "high.fat"},
		{"high-fat", "high.fat"},
		{"Day+7", "Day.7"},
		{"7days", "X7days"},
		{".5mg", "X.5mg"},
		{"_test", "X_test"},
		{"", "X"},
		{"ok_name.v2", "ok_name.v2"},
	}
	for _, c := range cases {
		assert.Equal(t, c.want, SanitizeLabel(c.raw), "raw=%q", c.raw)
	}
}

func TestNewGroupFactor_CollisionIsError(t *testing.T) {
	// "high fat" and "high-fat" both sanitize to "high.fat": silently
	// merging them would corrupt every downstream contrast.
	_, err := NewGroupFactor([]string{"high fat", "high-fat", "control"})
	assert.Error(t, err)
}

func TestNewGroupFactor_NeedsTwoLevels(t *testing.T) {
	_, err := NewGroupFactor([]string{"only", "only", "only"})
	assert.Error(t, err)
}

func TestGroupFactor_Relevel(t *testing.T) {
	gf, err := NewGroupFactor([]string{"A", "B", "A", "B"})
	assert.NoError(t, err)

	assert.NoError(t, gf.Relevel("B", "A"))
	assert.Equal(t, []string{"B", "A"}, gf.Levels)

	assert.Error(t, gf.Relevel("B", "missing"))
	assert.Error(t, gf.Relevel("A", "A"))
}

func TestGroupFactor_SampleIndices(t *testing.T) {
	gf, err := NewGroupFactor([]string{"A", "B", "A", "B", "A"})
	assert.NoError(t, err)

	assert.Equal(t, []int{0, 2, 4}, gf.SampleIndices("A"))
	assert.Equal(t, []int{1, 3}, gf.SampleIndices("B"))
}
