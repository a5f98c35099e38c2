package policy

import (
	"sync/atomic"

	"github.com/engramhq/engram/pkg/engramerr"
)

// Registry is the process-wide, read-after-init-mostly policy store named
// in spec.md §9 ("Global state... may be replaced atomically between
// builds (not during)"). Composer code only ever observes a fully-formed
// *Policy via Get/GetDefault; Swap installs a new one for subsequent calls.
type Registry struct {
	policies atomic.Pointer[map[string]*Policy]
	defaultID string
}

// NewRegistry constructs a Registry seeded with Default() under the id
// "default", plus any additional named policies supplied.
func NewRegistry(extra ...*Policy) *Registry {
	m := map[string]*Policy{"default": Default()}
	for _, p := range extra {
		if p.ID == "" {
			continue
		}
		m[p.ID] = p
	}
	r := &Registry{defaultID: "default"}
	r.policies.Store(&m)
	return r
}

// Get returns the named policy, or ErrUnknownOption if it was never
// registered.
func (r *Registry) Get(id string) (*Policy, error) {
	m := *r.policies.Load()
	p, ok := m[id]
	if !ok {
		return nil, engramerr.NewPolicyError(engramerr.ErrUnknownOption, id, nil)
	}
	return p, nil
}

// GetDefault returns the registry's default policy.
func (r *Registry) GetDefault() *Policy {
	m := *r.policies.Load()
	return m[r.defaultID]
}

// Swap atomically replaces the entire registry contents with policies,
// re-keyed by Policy.ID. It never mutates a policy in place, so any
// in-flight build holding a *Policy it already fetched is unaffected.
func (r *Registry) Swap(policies ...*Policy) {
	m := make(map[string]*Policy, len(policies))
	for _, p := range policies {
		if p.ID != "" {
			m[p.ID] = p
		}
	}
	if _, ok := m[r.defaultID]; !ok {
		m[r.defaultID] = Default()
	}
	r.policies.Store(&m)
}
