package report

import (
	"strings"

	"github.com/frahmantamala/tracker-bot/internal/access"
	"github.com/shopspring/decimal"
)

var secondsPerHour = decimal.NewFromInt(3600)

// CompensationLine is the pay resolved for one aggregated user. Identity or
// Rule may be empty; that is a gap in the report, not an error.
type CompensationLine struct {
	Identity string
	Rule     *access.CompensationRule
	Total    decimal.Decimal
}

func (l CompensationLine) Resolved() bool {
	return l.Rule != nil
}

type CompensationResolver struct {
	policy *access.Policy
	rules  map[string][]access.CompensationRule
}

// NewCompensationResolver resolves against rules, normally the requester's
// visible compensation.
func NewCompensationResolver(policy *access.Policy, rules map[string][]access.CompensationRule) *CompensationResolver {
	return &CompensationResolver{policy: policy, rules: rules}
}

func (r *CompensationResolver) Resolve(u UserTime) CompensationLine {
	if r.policy == nil {
		return CompensationLine{}
	}

	identity, ok := r.policy.CanonicalIdentity(u.Email, u.DisplayName)
	if !ok {
		return CompensationLine{}
	}
	line := CompensationLine{Identity: identity}

	rules := r.rules[identity]
	if len(rules) == 0 {
		return line
	}

	rule := rules[0]
	for _, candidate := range rules {
		if candidate.ProjectKey != "" && strings.EqualFold(candidate.ProjectKey, u.ProjectKey) {
			rule = candidate
			break
		}
	}

	line.Rule = &rule
	line.Total = Total(rule, u.TotalSeconds)
	return line
}

// Total is amount × hours for hourly rules and the flat amount otherwise.
func Total(rule access.CompensationRule, seconds int64) decimal.Decimal {
	if rule.Kind == access.KindHourly {
		return rule.Amount.Mul(decimal.NewFromInt(seconds)).Div(secondsPerHour)
	}
	return rule.Amount
}
