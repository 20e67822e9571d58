package report

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/frahmantamala/tracker-bot/internal/tracker"
	"github.com/shopspring/decimal"
)

const (
	KindIssues = "issues"
	KindUsers  = "users"

	lineBreak = "\r\n"
)

var (
	issueColumns = []string{"link", "assigneeName", "assigneeEmail", "title", "status", "timeSpentHours", "timetracking", "overtimeSpent", "sprintsHistory", "id"}
	userColumns  = []string{"displayName", "timeSpentHours", "email", "telegram", "salary", "currency", "type", "sumOfSalary"}
)

type File struct {
	Name string
	Data []byte
}

// UserLine is one row of the per-user summary.
type UserLine struct {
	UserTime
	Compensation CompensationLine
}

// Formatter renders report tables as comma separated text. Decimal values
// and titles are always quoted; names, e-mails, statuses and telegram
// handles only when they contain the separator.
type Formatter struct {
	BrowseURL func(issueKey string) string
}

func (f Formatter) IssuesTable(rows []IssueAuthorTime) []byte {
	var b strings.Builder
	writeRow(&b, issueColumns)
	for _, r := range rows {
		writeRow(&b, []string{
			f.link(r.Issue.Key),
			field(r.AuthorDisplayName),
			field(r.AuthorEmail),
			quote(r.Issue.Summary),
			field(r.Issue.Status),
			Hours(r.TotalSeconds),
			trail(r.Trail),
			Overtime(r.Issue),
			sprintHistory(r.Issue.SprintNames),
			r.Issue.ID,
		})
	}
	return []byte(b.String())
}

func (f Formatter) UsersTable(rows []UserLine) []byte {
	var b strings.Builder
	writeRow(&b, userColumns)
	for _, r := range rows {
		salary, currency, kind, sum := "", "", "", ""
		if rule := r.Compensation.Rule; rule != nil {
			salary = Money(rule.Amount)
			currency = rule.Currency
			kind = string(rule.Kind)
			sum = Money(r.Compensation.Total)
		}
		writeRow(&b, []string{
			field(r.DisplayName),
			Hours(r.TotalSeconds),
			field(r.Email),
			field(r.Compensation.Identity),
			salary,
			currency,
			kind,
			sum,
		})
	}
	return []byte(b.String())
}

func (f Formatter) link(key string) string {
	if f.BrowseURL == nil {
		return key
	}
	return f.BrowseURL(key)
}

// FileNames returns the issue and user report file names of a sprint.
func FileNames(sprint tracker.Sprint) (issues, users string) {
	name := strings.NewReplacer("/", "-", "\\", "-").Replace(strings.TrimSpace(sprint.Name))
	prefix := fmt.Sprintf("%s_%s_%s", name, sprint.StartDate.Format("2006-01-02"), sprint.EffectiveEnd().Format("2006-01-02"))
	return prefix + "_sprint_issues.csv", prefix + "_user_time_spent.csv"
}

func writeRow(b *strings.Builder, cells []string) {
	b.WriteString(strings.Join(cells, ","))
	b.WriteString(lineBreak)
}

// plainHours renders seconds as hours with a comma decimal separator.
func plainHours(seconds int64) string {
	h := strconv.FormatFloat(float64(seconds)/3600, 'f', -1, 64)
	return strings.Replace(h, ".", ",", 1)
}

// Hours is the table form of a duration: quoted when non-zero, bare 0
// otherwise.
func Hours(seconds int64) string {
	if seconds == 0 {
		return "0"
	}
	return `"` + plainHours(seconds) + `"`
}

// Money rounds to cents; fractional values use the comma convention and
// are quoted.
func Money(d decimal.Decimal) string {
	d = d.Round(2)
	if d.IsInteger() {
		return d.String()
	}
	return `"` + strings.Replace(d.String(), ".", ",", 1) + `"`
}

// Overtime is fact minus estimate, empty when the issue has no estimate.
func Overtime(issue tracker.Issue) string {
	if issue.OriginalEstimateSeconds == nil {
		return ""
	}
	estimate := *issue.OriginalEstimateSeconds
	diff := issue.TimeSpentSeconds - estimate

	sign := "+"
	if diff < 0 {
		sign = "-"
		diff = -diff
	}
	return fmt.Sprintf(`"%s%sh (fact %sh / estimate %sh)"`, sign, plainHours(diff), plainHours(issue.TimeSpentSeconds), plainHours(estimate))
}

func trail(entries []TrailEntry) string {
	if len(entries) == 0 {
		return ""
	}
	parts := make([]string, 0, len(entries))
	for _, e := range entries {
		parts = append(parts, strings.TrimSpace(plainHours(e.Seconds)+" "+clean(e.Comment)))
	}
	return `"` + strings.Join(parts, " => ") + `"`
}

func sprintHistory(names []string) string {
	if len(names) == 0 {
		return ""
	}
	return quote(strings.Join(names, " => "))
}

func quote(s string) string {
	return `"` + clean(s) + `"`
}

func field(s string) string {
	s = clean(s)
	if strings.Contains(s, ",") {
		return `"` + s + `"`
	}
	return s
}

// clean keeps a cell on one line and free of double quotes.
func clean(s string) string {
	s = strings.NewReplacer("\r\n", " ", "\n", " ", "\r", " ", `"`, "'").Replace(s)
	return strings.TrimSpace(s)
}
