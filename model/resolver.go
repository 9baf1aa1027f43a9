package model

import "github.com/hupe1980/planmesh/core"

// ResolverOptions configure per-role model routing.
type ResolverOptions struct {
	// Models maps orchestration roles to dedicated models. Roles without an
	// entry fall back to the resolver's default model.
	Models map[core.Role]Model
}

// Resolver routes orchestration roles to models, so planning can run on a
// reasoning model while workers use a cheaper one.
type Resolver struct {
	fallback Model
	byRole   map[core.Role]Model
}

// NewResolver creates a resolver with a default model for unmapped roles.
func NewResolver(fallback Model, optFns ...func(o *ResolverOptions)) *Resolver {
	opts := ResolverOptions{}
	for _, fn := range optFns {
		fn(&opts)
	}

	byRole := make(map[core.Role]Model, len(opts.Models))
	for role, m := range opts.Models {
		byRole[role] = m
	}

	return &Resolver{fallback: fallback, byRole: byRole}
}

// Resolve returns the model bound to the role, or the fallback.
func (r *Resolver) Resolve(role core.Role) Model {
	if m, ok := r.byRole[role]; ok && m != nil {
		return m
	}
	return r.fallback
}

// Wrap returns a new resolver whose models pass through fn, used to layer
// cross-cutting wrappers such as call limiting over every role.
func (r *Resolver) Wrap(fn func(Model) Model) *Resolver {
	byRole := make(map[core.Role]Model, len(r.byRole))
	for role, m := range r.byRole {
		byRole[role] = fn(m)
	}
	return &Resolver{fallback: fn(r.fallback), byRole: byRole}
}
