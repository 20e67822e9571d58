package tracker

import (
	"encoding/json"
	"strings"
	"time"
)

var timeLayouts = []string{
	"2006-01-02T15:04:05.000-0700",
	"2006-01-02T15:04:05-0700",
	time.RFC3339Nano,
	time.RFC3339,
}

// jiraTime accepts both the REST (`+0000`) and Agile (`Z`) timestamp styles.
type jiraTime struct {
	time.Time
}

func (t *jiraTime) UnmarshalJSON(b []byte) error {
	var s string
	if err := json.Unmarshal(b, &s); err != nil || s == "" {
		return nil
	}
	var lastErr error
	for _, layout := range timeLayouts {
		parsed, err := time.Parse(layout, s)
		if err == nil {
			t.Time = parsed
			return nil
		}
		lastErr = err
	}
	return lastErr
}

type sprintDTO struct {
	ID            int      `json:"id"`
	Name          string   `json:"name"`
	State         string   `json:"state"`
	StartDate     jiraTime `json:"startDate"`
	EndDate       jiraTime `json:"endDate"`
	CompleteDate  jiraTime `json:"completeDate"`
	OriginBoardID int      `json:"originBoardId"`
}

func (d sprintDTO) toSprint() Sprint {
	s := Sprint{
		ID:            d.ID,
		Name:          d.Name,
		State:         SprintState(strings.ToLower(d.State)),
		StartDate:     d.StartDate.Time,
		EndDate:       d.EndDate.Time,
		OriginBoardID: d.OriginBoardID,
	}
	if !d.CompleteDate.IsZero() {
		complete := d.CompleteDate.Time
		s.CompleteDate = &complete
	}
	return s
}

type worklogDTO struct {
	ID     string `json:"id"`
	Author struct {
		AccountID    string `json:"accountId"`
		DisplayName  string `json:"displayName"`
		EmailAddress string `json:"emailAddress"`
	} `json:"author"`
	Created          jiraTime        `json:"created"`
	TimeSpentSeconds int64           `json:"timeSpentSeconds"`
	Comment          json.RawMessage `json:"comment"`
}

func (d worklogDTO) toWorklog() Worklog {
	return Worklog{
		ID:                d.ID,
		AuthorAccountID:   d.Author.AccountID,
		AuthorDisplayName: d.Author.DisplayName,
		AuthorEmail:       d.Author.EmailAddress,
		CreatedAt:         d.Created.Time,
		TimeSpentSeconds:  d.TimeSpentSeconds,
		Comment:           plainText(d.Comment),
	}
}

type worklogPageDTO struct {
	StartAt    int          `json:"startAt"`
	MaxResults int          `json:"maxResults"`
	Total      int          `json:"total"`
	Worklogs   []worklogDTO `json:"worklogs"`
}

type issueDTO struct {
	ID     string `json:"id"`
	Key    string `json:"key"`
	Fields struct {
		Summary string `json:"summary"`
		Status  struct {
			Name string `json:"name"`
		} `json:"status"`
		Project struct {
			Key string `json:"key"`
		} `json:"project"`
		TimeOriginalEstimate *int64         `json:"timeoriginalestimate"`
		TimeSpent            *int64         `json:"timespent"`
		Worklog              worklogPageDTO `json:"worklog"`
		Sprint               *struct {
			Name string `json:"name"`
		} `json:"sprint"`
		ClosedSprints []struct {
			Name string `json:"name"`
		} `json:"closedSprints"`
	} `json:"fields"`
}

func (d issueDTO) toIssue() Issue {
	f := d.Fields
	issue := Issue{
		ID:                      d.ID,
		Key:                     d.Key,
		ProjectKey:              f.Project.Key,
		Summary:                 f.Summary,
		Status:                  f.Status.Name,
		OriginalEstimateSeconds: f.TimeOriginalEstimate,
		WorklogTotal:            f.Worklog.Total,
	}
	if issue.ProjectKey == "" {
		if i := strings.LastIndex(d.Key, "-"); i > 0 {
			issue.ProjectKey = d.Key[:i]
		}
	}
	if f.TimeSpent != nil {
		issue.TimeSpentSeconds = *f.TimeSpent
	}
	for _, s := range f.ClosedSprints {
		issue.SprintNames = append(issue.SprintNames, s.Name)
	}
	if f.Sprint != nil && f.Sprint.Name != "" {
		issue.SprintNames = append(issue.SprintNames, f.Sprint.Name)
	}
	for _, w := range f.Worklog.Worklogs {
		issue.Worklogs = append(issue.Worklogs, w.toWorklog())
	}
	if issue.WorklogTotal < len(issue.Worklogs) {
		issue.WorklogTotal = len(issue.Worklogs)
	}
	return issue
}
