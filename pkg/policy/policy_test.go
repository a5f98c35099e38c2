package policy

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/engramhq/engram/pkg/engramerr"
)

func TestDefaultPassesValidate(t *testing.T) {
	require.NoError(t, Validate(Default()))
}

func TestCloneIsIndependentOfPerSectionMap(t *testing.T) {
	base := Default()
	clone := base.Clone()
	clone.PerSection["facts"] = 1
	require.NotEqual(t, base.PerSection["facts"], clone.PerSection["facts"])
}

func TestMergeOverridesOnlyNamedFields(t *testing.T) {
	base := Default()
	merged, err := Merge(base, map[string]any{"max_facts": 5})
	require.NoError(t, err)
	require.Equal(t, 5, merged.MaxFacts)
	require.Equal(t, base.MaxEpisodes, merged.MaxEpisodes)
}

func TestMergeRejectsUnknownOption(t *testing.T) {
	_, err := Merge(Default(), map[string]any{"bogus_option": 1})
	require.Error(t, err)
	var polErr *engramerr.PolicyError
	require.ErrorAs(t, err, &polErr)
	require.Equal(t, engramerr.ErrUnknownOption, polErr.Kind)
}

func TestMergeRejectsResultingInvalidBudget(t *testing.T) {
	_, err := Merge(Default(), map[string]any{"max_tokens": 0})
	require.Error(t, err)
}

func TestMergeNoOverridesReturnsClone(t *testing.T) {
	base := Default()
	merged, err := Merge(base, nil)
	require.NoError(t, err)
	require.Equal(t, base.MaxFacts, merged.MaxFacts)
}

func TestValidateRejectsOutOfRangeConfidenceFloor(t *testing.T) {
	p := Default()
	p.ConfidenceFloor = 1.5
	require.Error(t, Validate(p))
}

func TestDeadlineConvertsMillisecondsToDuration(t *testing.T) {
	p := Default()
	require.Equal(t, p.DeadlineMS, int(p.Deadline().Milliseconds()))
}
