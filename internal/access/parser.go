package access

import (
	"fmt"
	"strings"

	"github.com/frahmantamala/tracker-bot/internal"
	"github.com/frahmantamala/tracker-bot/internal/core/common/validation"
	"github.com/shopspring/decimal"
)

const (
	SettingSuperAdmins  = "super_admin_list"
	SettingAvailability = "availability_by_keys"
	SettingRelations    = "relation_by_name_or_email"
	SettingCompensation = "salary_relation_by_tg_and_project"
)

// RawPolicy holds the delimited settings exactly as they come from config.
type RawPolicy struct {
	SuperAdmins           string
	AvailabilityByKeys    string
	RelationByNameOrEmail string
	CompensationRules     string
}

// ParseIssue describes one skipped entry.
type ParseIssue struct {
	Setting string `json:"setting" yaml:"setting"`
	Entry   string `json:"entry" yaml:"entry"`
	Reason  string `json:"reason" yaml:"reason"`
}

func (i ParseIssue) String() string {
	return fmt.Sprintf("%s: %q: %s", i.Setting, i.Entry, i.Reason)
}

// ParsePolicy never fails as a whole: malformed entries are skipped and
// reported back as issues.
func ParsePolicy(raw RawPolicy) (*Policy, []ParseIssue) {
	p := newPolicy()
	var issues []ParseIssue

	for _, tok := range strings.Split(raw.SuperAdmins, ",") {
		if id := Normalize(tok); id != "" {
			p.superAdmins[id] = struct{}{}
		}
	}

	availability, availabilityIssues := parseListEntries(SettingAvailability, raw.AvailabilityByKeys, normalizeProjectKey, Normalize)
	issues = append(issues, availabilityIssues...)
	for _, e := range availability {
		members, ok := p.availability[e.key]
		if !ok {
			members = set{}
			p.availability[e.key] = members
		}
		for _, v := range e.values {
			members[v] = struct{}{}
		}
	}

	relations, relationIssues := parseListEntries(SettingRelations, raw.RelationByNameOrEmail, Normalize, normalizeAlias)
	issues = append(issues, relationIssues...)
	for _, e := range relations {
		names := set{}
		for _, v := range e.values {
			names[v] = struct{}{}
		}
		p.aliases = append(p.aliases, aliasEntry{identity: e.key, names: names})
	}

	issues = append(issues, parseCompensation(p, raw.CompensationRules)...)

	return p, issues
}

type listEntry struct {
	key    string
	values []string
}

// parseListEntries reads `KEY:v1:v2,KEY2:v3`. A token without a colon that
// directly follows an entry extends that entry, so `KEY:v1,v2` is the same
// as `KEY:v1:v2`.
func parseListEntries(setting, raw string, normKey, normValue func(string) string) ([]listEntry, []ParseIssue) {
	var (
		entries []listEntry
		issues  []ParseIssue
		current = -1
	)

	for _, tok := range strings.Split(raw, ",") {
		tok = strings.TrimSpace(tok)
		if tok == "" {
			continue
		}

		key, rest, found := strings.Cut(tok, ":")
		if !found {
			if current < 0 {
				issues = append(issues, ParseIssue{Setting: setting, Entry: tok, Reason: "missing ':' delimiter"})
				continue
			}
			if v := normValue(tok); v != "" {
				entries[current].values = append(entries[current].values, v)
			}
			continue
		}

		key = normKey(key)
		if key == "" {
			issues = append(issues, ParseIssue{Setting: setting, Entry: tok, Reason: "empty key"})
			current = -1
			continue
		}

		e := listEntry{key: key}
		for _, v := range strings.Split(rest, ":") {
			if v = normValue(v); v != "" {
				e.values = append(e.values, v)
			}
		}
		entries = append(entries, e)
		current = len(entries) - 1
	}

	return entries, issues
}

// parseCompensation reads `ident:{amount=10,currency=USD,type=hourly,key=PROJ}|...`.
func parseCompensation(p *Policy, raw string) []ParseIssue {
	var issues []ParseIssue
	skip := func(entry, reason string) {
		issues = append(issues, ParseIssue{Setting: SettingCompensation, Entry: entry, Reason: reason})
	}

	for _, entry := range strings.Split(raw, "|") {
		entry = strings.TrimSpace(entry)
		if entry == "" {
			continue
		}

		ident, body, found := strings.Cut(entry, ":")
		if !found {
			skip(entry, "missing ':' delimiter")
			continue
		}
		ident = Normalize(ident)
		if ident == "" {
			skip(entry, "empty key")
			continue
		}

		params, err := ParseParamList(body)
		if err != nil {
			skip(entry, err.Error())
			continue
		}

		rule, appErr := compensationRuleFrom(params)
		if appErr != nil {
			skip(entry, appErr.GetDetailedMessage())
			continue
		}

		duplicate := false
		for _, existing := range p.compensation[ident] {
			if existing.ProjectKey == rule.ProjectKey {
				duplicate = true
				break
			}
		}
		if duplicate {
			skip(entry, "duplicate rule for identity and project")
			continue
		}

		p.compensation[ident] = append(p.compensation[ident], rule)
	}

	return issues
}

// ParseParamList reads a `{k=v,...}` body. Keys are lower-cased and both
// sides trimmed.
func ParseParamList(body string) (map[string]string, error) {
	body = strings.TrimSpace(body)
	if !strings.HasPrefix(body, "{") || !strings.HasSuffix(body, "}") {
		return nil, fmt.Errorf("expected {k=v,...} parameter list")
	}
	body = strings.TrimSuffix(strings.TrimPrefix(body, "{"), "}")

	params := map[string]string{}
	for _, pair := range strings.Split(body, ",") {
		pair = strings.TrimSpace(pair)
		if pair == "" {
			continue
		}
		k, v, found := strings.Cut(pair, "=")
		if !found {
			return nil, fmt.Errorf("parameter %q is missing '='", pair)
		}
		params[strings.ToLower(strings.TrimSpace(k))] = strings.TrimSpace(v)
	}
	return params, nil
}

func compensationRuleFrom(params map[string]string) (CompensationRule, *internal.AppError) {
	kind := strings.ToLower(FirstOf(params, "type", "kind"))
	amount := params["amount"]

	v := validation.NewValidator()
	v.Field("amount", amount).Required().Decimal(internal.ErrCodeInvalidAmount).Positive(internal.ErrCodeInvalidAmount)
	v.Field("currency", params["currency"]).Required().MinLength(3).MaxLength(8)
	v.Field("type", kind).Required().OneOf(internal.ErrCodeInvalidKind, string(KindFixed), string(KindHourly))
	if err := v.Validate(); err != nil {
		return CompensationRule{}, err
	}

	return CompensationRule{
		ProjectKey: normalizeProjectKey(FirstOf(params, "key", "project")),
		Amount:     decimal.RequireFromString(amount),
		Currency:   strings.ToUpper(params["currency"]),
		Kind:       Kind(kind),
	}, nil
}

// FirstOf returns the first non-empty value among keys.
func FirstOf(params map[string]string, keys ...string) string {
	for _, k := range keys {
		if v, ok := params[k]; ok && v != "" {
			return v
		}
	}
	return ""
}
