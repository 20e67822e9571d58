package tracker

import "time"

type Project struct {
	ID   string `json:"id"`
	Key  string `json:"key"`
	Name string `json:"name"`
}

type Board struct {
	ID         int    `json:"id"`
	Name       string `json:"name"`
	ProjectKey string `json:"project_key"`
}

type SprintState string

const (
	SprintFuture SprintState = "future"
	SprintActive SprintState = "active"
	SprintClosed SprintState = "closed"
)

type Sprint struct {
	ID            int         `json:"id"`
	Name          string      `json:"name"`
	State         SprintState `json:"state"`
	StartDate     time.Time   `json:"start_date"`
	EndDate       time.Time   `json:"end_date"`
	CompleteDate  *time.Time  `json:"complete_date,omitempty"`
	OriginBoardID int         `json:"origin_board_id"`
}

// EffectiveEnd is the completion date when the sprint was closed, the
// planned end date otherwise.
func (s Sprint) EffectiveEnd() time.Time {
	if s.CompleteDate != nil && !s.CompleteDate.IsZero() {
		return *s.CompleteDate
	}
	return s.EndDate
}

type Issue struct {
	ID         string
	Key        string
	ProjectKey string
	Summary    string
	Status     string
	// OriginalEstimateSeconds is nil when the issue has no estimate.
	OriginalEstimateSeconds *int64
	// TimeSpentSeconds is the tracker's own total across all worklogs.
	TimeSpentSeconds int64
	SprintNames      []string
	Worklogs         []Worklog
	// WorklogTotal is the tracker's worklog count; embedded lists are capped
	// and may hold fewer.
	WorklogTotal int
}

type Worklog struct {
	ID                string
	AuthorAccountID   string
	AuthorDisplayName string
	AuthorEmail       string
	CreatedAt         time.Time
	TimeSpentSeconds  int64
	Comment           string
}

type IssuePage struct {
	Issues     []Issue
	StartAt    int
	MaxResults int
	Total      int
}

type SprintPage struct {
	Sprints    []Sprint
	StartAt    int
	MaxResults int
	IsLast     bool
}

type Comment struct {
	ID   string
	Body string
}

type NewIssue struct {
	ProjectKey  string
	Summary     string
	Description string
	IssueType   string
}

type CreatedIssue struct {
	ID   string `json:"id"`
	Key  string `json:"key"`
	Link string `json:"link"`
}
