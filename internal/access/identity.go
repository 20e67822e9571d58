package access

import "strings"

// RequesterIdentity is who is asking, as reported by the chat platform or
// carried in an API token.
type RequesterIdentity struct {
	ID       string `json:"id" yaml:"id"`
	Username string `json:"username,omitempty" yaml:"username,omitempty"`
}

// Normalize lower-cases and trims an identity token. A leading @ is dropped
// so "@Bob" and "bob" name the same chat user.
func Normalize(s string) string {
	s = strings.ToLower(strings.TrimSpace(s))
	return strings.TrimPrefix(s, "@")
}

// normalizeAlias is Normalize without the @ handling; aliases are display
// names and e-mails.
func normalizeAlias(s string) string {
	return strings.ToLower(strings.TrimSpace(s))
}

func normalizeProjectKey(s string) string {
	return strings.ToUpper(strings.TrimSpace(s))
}

// Candidates returns the normalized tokens the identity can match on,
// username first.
func (r RequesterIdentity) Candidates() []string {
	out := make([]string, 0, 2)
	if u := Normalize(r.Username); u != "" {
		out = append(out, u)
	}
	if id := Normalize(r.ID); id != "" && (len(out) == 0 || out[0] != id) {
		out = append(out, id)
	}
	return out
}

func (r RequesterIdentity) IsZero() bool {
	return len(r.Candidates()) == 0
}

// String is used as a log attribute.
func (r RequesterIdentity) String() string {
	if r.Username != "" {
		return r.Username + "(" + r.ID + ")"
	}
	return r.ID
}
