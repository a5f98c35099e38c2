package policy

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestNewRegistrySeedsDefault(t *testing.T) {
	r := NewRegistry()
	p, err := r.Get("default")
	require.NoError(t, err)
	require.Equal(t, "default", p.ID)
	require.Same(t, p, r.GetDefault())
}

func TestNewRegistryRegistersExtraPolicies(t *testing.T) {
	lean := Default()
	lean.ID = "lean"
	lean.MaxFacts = 5

	r := NewRegistry(lean)
	got, err := r.Get("lean")
	require.NoError(t, err)
	require.Equal(t, 5, got.MaxFacts)
}

func TestGetUnknownIDReturnsError(t *testing.T) {
	r := NewRegistry()
	_, err := r.Get("nonexistent")
	require.Error(t, err)
}

func TestSwapReplacesContentsAtomically(t *testing.T) {
	r := NewRegistry()
	alt := Default()
	alt.ID = "alt"
	r.Swap(alt)

	_, err := r.Get("alt")
	require.NoError(t, err)

	// default is always present even if the caller didn't supply one.
	def, err := r.Get("default")
	require.NoError(t, err)
	require.Equal(t, "default", def.ID)
}
