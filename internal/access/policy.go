package access

import (
	"sort"

	"github.com/shopspring/decimal"
)

type Kind string

const (
	KindFixed  Kind = "fixed"
	KindHourly Kind = "hourly"
)

func (k Kind) Valid() bool {
	return k == KindFixed || k == KindHourly
}

// CompensationRule maps an identity (and optionally a project) to a pay rate.
type CompensationRule struct {
	ProjectKey string          `json:"project_key,omitempty" yaml:"project_key,omitempty"`
	Amount     decimal.Decimal `json:"amount" yaml:"-"`
	Currency   string          `json:"currency" yaml:"currency"`
	Kind       Kind            `json:"kind" yaml:"kind"`
}

type set map[string]struct{}

func (s set) has(v string) bool {
	_, ok := s[v]
	return ok
}

func (s set) sorted() []string {
	out := make([]string, 0, len(s))
	for v := range s {
		out = append(out, v)
	}
	sort.Strings(out)
	return out
}

type aliasEntry struct {
	identity string
	names    set
}

// Policy is the parsed access configuration. It is built once by ParsePolicy
// and only read afterwards, so it is safe to share between goroutines.
type Policy struct {
	superAdmins  set
	availability map[string]set
	aliases      []aliasEntry
	compensation map[string][]CompensationRule
}

func newPolicy() *Policy {
	return &Policy{
		superAdmins:  set{},
		availability: map[string]set{},
		compensation: map[string][]CompensationRule{},
	}
}

func (p *Policy) IsSuperAdmin(identity string) bool {
	return p.superAdmins.has(Normalize(identity))
}

func (p *Policy) SuperAdmins() []string {
	return p.superAdmins.sorted()
}

func (p *Policy) ProjectKeys() []string {
	keys := make([]string, 0, len(p.availability))
	for k := range p.availability {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

func (p *Policy) ProjectMembers(projectKey string) []string {
	return p.availability[normalizeProjectKey(projectKey)].sorted()
}

// Aliases returns the display names and e-mails registered for identity.
func (p *Policy) Aliases(identity string) []string {
	identity = Normalize(identity)
	merged := set{}
	for _, e := range p.aliases {
		if e.identity != identity {
			continue
		}
		for n := range e.names {
			merged[n] = struct{}{}
		}
	}
	return merged.sorted()
}

// CanonicalIdentity resolves a worklog author back to the configured
// identity. The first alias entry containing any of names wins.
func (p *Policy) CanonicalIdentity(names ...string) (string, bool) {
	for _, e := range p.aliases {
		for _, n := range names {
			n = normalizeAlias(n)
			if n != "" && e.names.has(n) {
				return e.identity, true
			}
		}
	}
	return "", false
}

func (p *Policy) CompensationRules(identity string) []CompensationRule {
	rules := p.compensation[Normalize(identity)]
	if len(rules) == 0 {
		return nil
	}
	return append([]CompensationRule(nil), rules...)
}

// AllCompensation returns a copy of every identity's rules.
func (p *Policy) AllCompensation() map[string][]CompensationRule {
	out := make(map[string][]CompensationRule, len(p.compensation))
	for k, v := range p.compensation {
		out[k] = append([]CompensationRule(nil), v...)
	}
	return out
}

// Snapshot is a serializable view of a Policy.
type Snapshot struct {
	SuperAdmins  []string                  `json:"super_admins" yaml:"super_admins"`
	Availability map[string][]string       `json:"availability" yaml:"availability"`
	Aliases      map[string][]string       `json:"aliases" yaml:"aliases"`
	Compensation map[string][]SnapshotRule `json:"compensation" yaml:"compensation"`
}

type SnapshotRule struct {
	ProjectKey string `json:"project_key,omitempty" yaml:"project_key,omitempty"`
	Amount     string `json:"amount" yaml:"amount"`
	Currency   string `json:"currency" yaml:"currency"`
	Kind       Kind   `json:"kind" yaml:"kind"`
}

func (p *Policy) Snapshot() Snapshot {
	s := Snapshot{
		SuperAdmins:  p.SuperAdmins(),
		Availability: map[string][]string{},
		Aliases:      map[string][]string{},
		Compensation: map[string][]SnapshotRule{},
	}
	for key, members := range p.availability {
		s.Availability[key] = members.sorted()
	}
	for _, e := range p.aliases {
		s.Aliases[e.identity] = p.Aliases(e.identity)
	}
	for identity, rules := range p.compensation {
		for _, r := range rules {
			s.Compensation[identity] = append(s.Compensation[identity], SnapshotRule{
				ProjectKey: r.ProjectKey,
				Amount:     r.Amount.String(),
				Currency:   r.Currency,
				Kind:       r.Kind,
			})
		}
	}
	return s
}
