package access

import "context"

// Context is the request-scoped view of the policy for one requester. It is
// created by Evaluate and never changed afterwards.
type Context struct {
	identity         RequesterIdentity
	isSuperAdmin     bool
	allowedProjects  set
	relationNames    set
	selfKey          string
	selfCompensation []CompensationRule
	allCompensation  map[string][]CompensationRule
}

// Evaluate derives the access context of identity under policy. It performs
// no I/O.
func Evaluate(identity RequesterIdentity, policy *Policy) *Context {
	c := &Context{
		identity:        identity,
		allowedProjects: set{},
		relationNames:   set{},
		allCompensation: map[string][]CompensationRule{},
	}
	if policy == nil {
		return c
	}

	candidates := identity.Candidates()
	matches := func(entry string) bool {
		for _, cand := range candidates {
			if cand == entry {
				return true
			}
		}
		return false
	}

	for _, cand := range candidates {
		if policy.superAdmins.has(cand) {
			c.isSuperAdmin = true
			break
		}
	}

	for key, members := range policy.availability {
		for _, cand := range candidates {
			if members.has(cand) {
				c.allowedProjects[key] = struct{}{}
				break
			}
		}
	}

	for _, e := range policy.aliases {
		if !matches(e.identity) {
			continue
		}
		for n := range e.names {
			c.relationNames[n] = struct{}{}
		}
	}

	// candidates are ordered username first, so the username's rules win
	for _, cand := range candidates {
		if rules := policy.compensation[cand]; len(rules) > 0 {
			c.selfKey = cand
			c.selfCompensation = append([]CompensationRule(nil), rules...)
			break
		}
	}

	c.allCompensation = policy.AllCompensation()
	return c
}

func (c *Context) Identity() RequesterIdentity {
	return c.identity
}

func (c *Context) IsSuperAdmin() bool {
	return c.isSuperAdmin
}

// CanAccessProject reports whether the requester may see projectKey.
// Super admins see every project.
func (c *Context) CanAccessProject(projectKey string) bool {
	return c.isSuperAdmin || c.allowedProjects.has(normalizeProjectKey(projectKey))
}

func (c *Context) AllowedProjectKeys() []string {
	return c.allowedProjects.sorted()
}

func (c *Context) RelationNames() []string {
	return c.relationNames.sorted()
}

func (c *Context) HasRelation(nameOrEmail string) bool {
	n := normalizeAlias(nameOrEmail)
	return n != "" && c.relationNames.has(n)
}

// CanSeeWorklogOf reports whether worklogs written by the given author are
// visible to the requester.
func (c *Context) CanSeeWorklogOf(displayName, email string) bool {
	return c.isSuperAdmin || c.HasRelation(displayName) || c.HasRelation(email)
}

func (c *Context) SelfCompensation() []CompensationRule {
	return append([]CompensationRule(nil), c.selfCompensation...)
}

func (c *Context) AllCompensation() map[string][]CompensationRule {
	out := make(map[string][]CompensationRule, len(c.allCompensation))
	for k, v := range c.allCompensation {
		out[k] = append([]CompensationRule(nil), v...)
	}
	return out
}

// VisibleCompensation is the part of AllCompensation the requester may see
// in reports: everything for super admins, otherwise only their own rules.
func (c *Context) VisibleCompensation() map[string][]CompensationRule {
	if c.isSuperAdmin {
		return c.AllCompensation()
	}
	if c.selfKey == "" {
		return map[string][]CompensationRule{}
	}
	return map[string][]CompensationRule{c.selfKey: c.SelfCompensation()}
}

// Summary is a serializable view used by the /me command and the API.
type Summary struct {
	Identity         RequesterIdentity  `json:"identity"`
	IsSuperAdmin     bool               `json:"is_super_admin"`
	Projects         []string           `json:"projects"`
	RelationNames    []string           `json:"relation_names"`
	SelfCompensation []CompensationRule `json:"self_compensation"`
}

func (c *Context) Summary() Summary {
	return Summary{
		Identity:         c.identity,
		IsSuperAdmin:     c.isSuperAdmin,
		Projects:         c.AllowedProjectKeys(),
		RelationNames:    c.RelationNames(),
		SelfCompensation: c.SelfCompensation(),
	}
}

type ctxKey struct{}

func WithContext(ctx context.Context, ac *Context) context.Context {
	return context.WithValue(ctx, ctxKey{}, ac)
}

func FromContext(ctx context.Context) (*Context, bool) {
	ac, ok := ctx.Value(ctxKey{}).(*Context)
	return ac, ok && ac != nil
}
