package tokenest

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestEstimateTextScalesWithByteLength(t *testing.T) {
	short := EstimateText("abcd")
	long := EstimateText("abcdabcdabcdabcd")
	require.Greater(t, long, short)
}

func TestEstimateTextIgnoresWhitespaceDifferences(t *testing.T) {
	require.Equal(t, EstimateText("a  b   c"), EstimateText("a b c"))
}

func TestEstimateJSONChargesStructuralKeyOverhead(t *testing.T) {
	noKeys := EstimateJSON([]string{"value"})
	withKey := EstimateJSON(map[string]string{"key": "value"})
	require.Greater(t, withKey, noKeys)
}

func TestEstimateJSONDeterministicAcrossCalls(t *testing.T) {
	v := map[string]any{"a": 1, "b": []string{"x", "y"}}
	require.Equal(t, EstimateJSON(v), EstimateJSON(v))
}

func TestEstimateJSONUnmarshalableReturnsZero(t *testing.T) {
	require.Equal(t, uint32(0), EstimateJSON(make(chan int)))
}

func TestDefaultEstimatorMatchesEstimateJSON(t *testing.T) {
	v := map[string]string{"k": "v"}
	require.Equal(t, EstimateJSON(v), Default.Estimate(v))
}
