package report

import (
	"sort"
	"strings"
	"time"

	"github.com/frahmantamala/tracker-bot/internal/access"
	"github.com/frahmantamala/tracker-bot/internal/tracker"
)

// FilterVisible keeps only worklogs the requester may see and drops issues
// left without any.
func FilterVisible(issues []tracker.Issue, ac *access.Context) []tracker.Issue {
	if ac.IsSuperAdmin() {
		return issues
	}

	out := make([]tracker.Issue, 0, len(issues))
	for _, issue := range issues {
		var kept []tracker.Worklog
		for _, w := range issue.Worklogs {
			if ac.CanSeeWorklogOf(w.AuthorDisplayName, w.AuthorEmail) {
				kept = append(kept, w)
			}
		}
		if len(kept) == 0 {
			continue
		}
		issue.Worklogs = kept
		out = append(out, issue)
	}
	return out
}

// UserTime is the time one worklog author spent in the sprint.
type UserTime struct {
	AccountID    string
	DisplayName  string
	Email        string
	ProjectKey   string
	TotalSeconds int64
}

// stamp orders worklogs for attribution independently of input order.
type stamp struct {
	at       time.Time
	issueKey string
	id       string
}

func (s stamp) after(o stamp) bool {
	if !s.at.Equal(o.at) {
		return s.at.After(o.at)
	}
	if s.issueKey != o.issueKey {
		return s.issueKey > o.issueKey
	}
	return s.id > o.id
}

// SummarizeByUser sums seconds per author account. Display name, e-mail and
// project come from the author's most recent worklog, so a user working in
// several projects is attributed to the latest one.
func SummarizeByUser(issues []tracker.Issue) []UserTime {
	type acc struct {
		UserTime
		latest stamp
		seen   bool
	}
	byAccount := map[string]*acc{}

	for _, issue := range issues {
		for _, w := range issue.Worklogs {
			id := w.AuthorAccountID
			if id == "" {
				id = w.AuthorDisplayName
			}
			a, ok := byAccount[id]
			if !ok {
				a = &acc{UserTime: UserTime{AccountID: id}}
				byAccount[id] = a
			}
			a.TotalSeconds += w.TimeSpentSeconds

			st := stamp{at: w.CreatedAt, issueKey: issue.Key, id: w.ID}
			if !a.seen || st.after(a.latest) {
				a.latest = st
				a.seen = true
				a.DisplayName = w.AuthorDisplayName
				a.Email = w.AuthorEmail
				a.ProjectKey = issue.ProjectKey
			}
		}
	}

	out := make([]UserTime, 0, len(byAccount))
	for _, a := range byAccount {
		out = append(out, a.UserTime)
	}
	sort.Slice(out, func(i, j int) bool {
		li, lj := strings.ToLower(out[i].DisplayName), strings.ToLower(out[j].DisplayName)
		if li != lj {
			return li < lj
		}
		return out[i].AccountID < out[j].AccountID
	})
	return out
}

type TrailEntry struct {
	CreatedAt time.Time
	Seconds   int64
	Comment   string
}

// IssueAuthorTime is one row of the issue detail table.
type IssueAuthorTime struct {
	Issue             tracker.Issue
	AuthorDisplayName string
	AuthorEmail       string
	TotalSeconds      int64
	Trail             []TrailEntry
}

// DetailByIssueAuthor groups worklogs by issue and author display name.
// Rows keep the issue order and list authors alphabetically; trails are in
// creation order.
func DetailByIssueAuthor(issues []tracker.Issue) []IssueAuthorTime {
	var out []IssueAuthorTime

	for _, issue := range issues {
		byAuthor := map[string]*IssueAuthorTime{}
		var names []string

		for _, w := range issue.Worklogs {
			row, ok := byAuthor[w.AuthorDisplayName]
			if !ok {
				row = &IssueAuthorTime{Issue: issue, AuthorDisplayName: w.AuthorDisplayName}
				byAuthor[w.AuthorDisplayName] = row
				names = append(names, w.AuthorDisplayName)
			}
			if row.AuthorEmail == "" {
				row.AuthorEmail = w.AuthorEmail
			}
			row.TotalSeconds += w.TimeSpentSeconds
			row.Trail = append(row.Trail, TrailEntry{CreatedAt: w.CreatedAt, Seconds: w.TimeSpentSeconds, Comment: w.Comment})
		}

		sort.Strings(names)
		for _, name := range names {
			row := byAuthor[name]
			sort.SliceStable(row.Trail, func(i, j int) bool {
				return row.Trail[i].CreatedAt.Before(row.Trail[j].CreatedAt)
			})
			row.Issue.Worklogs = nil
			out = append(out, *row)
		}
	}

	return out
}
