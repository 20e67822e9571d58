package report

import (
	"context"
	"log/slog"
	"sort"
	"strings"
	"time"

	"github.com/frahmantamala/tracker-bot/internal"
	"github.com/frahmantamala/tracker-bot/internal/access"
	"github.com/frahmantamala/tracker-bot/internal/core/events"
	"github.com/frahmantamala/tracker-bot/internal/tracker"
	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"
)

// Tracker is the issue tracker as seen by the report service.
type Tracker interface {
	IssueSource
	GetProjects(ctx context.Context) ([]tracker.Project, error)
	GetSprint(ctx context.Context, sprintID int) (tracker.Sprint, error)
	GetProjectBoards(ctx context.Context, projectKey string) ([]tracker.Board, error)
	GetBoardSprints(ctx context.Context, boardID, offset int) (tracker.SprintPage, error)
	BrowseURL(issueKey string) string
}

type Publisher interface {
	Publish(ctx context.Context, event events.Event) error
}

type ServiceAPI interface {
	ListProjects(ctx context.Context, ac *access.Context) ([]tracker.Project, error)
	ListSprints(ctx context.Context, ac *access.Context, projectKey string) ([]tracker.Sprint, error)
	SprintReport(ctx context.Context, ac *access.Context, projectKey string, sprintID int) (*SprintReport, error)
}

type SprintReport struct {
	RequestID  string
	Sprint     tracker.Sprint
	ProjectKey string
	IssueCount int
	UserCount  int
	Issues     File
	Users      File
}

// File returns the table of the given kind.
func (r *SprintReport) File(kind string) (File, error) {
	switch kind {
	case KindIssues:
		return r.Issues, nil
	case KindUsers:
		return r.Users, nil
	}
	return File{}, internal.ErrInvalidReportKind.Withf("unknown report kind %q", kind)
}

type Service struct {
	tracker     Tracker
	collector   *Collector
	policy      *access.Policy
	publisher   Publisher
	concurrency int
	logger      *slog.Logger
	now         func() time.Time
}

func NewService(t Tracker, policy *access.Policy, publisher Publisher, concurrency int, logger *slog.Logger) *Service {
	if concurrency <= 0 {
		concurrency = 4
	}
	return &Service{
		tracker:     t,
		collector:   NewCollector(t, concurrency, logger),
		policy:      policy,
		publisher:   publisher,
		concurrency: concurrency,
		logger:      logger,
		now:         time.Now,
	}
}

func (s *Service) ListProjects(ctx context.Context, ac *access.Context) ([]tracker.Project, error) {
	projects, err := s.tracker.GetProjects(ctx)
	if err != nil {
		s.logger.Error("failed to list projects", "requester", ac.Identity().String(), "error", err)
		return nil, internal.ErrTrackerUnavailable.Wrap(err)
	}

	visible := make([]tracker.Project, 0, len(projects))
	for _, p := range projects {
		if ac.CanAccessProject(p.Key) {
			visible = append(visible, p)
		}
	}
	sort.Slice(visible, func(i, j int) bool { return visible[i].Key < visible[j].Key })
	return visible, nil
}

// ListSprints returns the active sprints of a project plus the most recently
// finished one of every board. Boards are read concurrently.
func (s *Service) ListSprints(ctx context.Context, ac *access.Context, projectKey string) ([]tracker.Sprint, error) {
	projectKey = strings.ToUpper(strings.TrimSpace(projectKey))
	if !ac.CanAccessProject(projectKey) {
		return nil, internal.ErrNoProjectAccess.Withf("no access to project %s", projectKey)
	}

	boards, err := s.tracker.GetProjectBoards(ctx, projectKey)
	if err != nil {
		if tracker.IsNotFound(err) {
			return nil, internal.ErrProjectNotFound.Withf("project %s not found", projectKey)
		}
		s.logger.Error("failed to list boards", "project_key", projectKey, "error", err)
		return nil, internal.ErrTrackerUnavailable.Wrap(err)
	}

	perBoard := make([][]tracker.Sprint, len(boards))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(s.concurrency)
	for i, board := range boards {
		g.Go(func() error {
			sprints, err := s.boardSprints(gctx, board.ID)
			if err != nil {
				return err
			}
			perBoard[i] = selectSprints(sprints)
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		s.logger.Error("failed to list sprints", "project_key", projectKey, "error", err)
		return nil, internal.ErrTrackerUnavailable.Wrap(err)
	}

	seen := map[int]struct{}{}
	var out []tracker.Sprint
	for _, sprints := range perBoard {
		for _, sp := range sprints {
			if _, dup := seen[sp.ID]; dup {
				continue
			}
			seen[sp.ID] = struct{}{}
			out = append(out, sp)
		}
	}
	sort.Slice(out, func(i, j int) bool {
		if !out[i].StartDate.Equal(out[j].StartDate) {
			return out[i].StartDate.Before(out[j].StartDate)
		}
		return out[i].ID < out[j].ID
	})
	return out, nil
}

func (s *Service) boardSprints(ctx context.Context, boardID int) ([]tracker.Sprint, error) {
	var sprints []tracker.Sprint
	for offset := 0; ; {
		page, err := s.tracker.GetBoardSprints(ctx, boardID, offset)
		if err != nil {
			return nil, err
		}
		sprints = append(sprints, page.Sprints...)
		offset += len(page.Sprints)
		if page.IsLast || len(page.Sprints) == 0 {
			return sprints, nil
		}
	}
}

// selectSprints keeps active sprints and the second-to-last one of the
// board, which is the last finished sprint while the next one is planned.
func selectSprints(sprints []tracker.Sprint) []tracker.Sprint {
	var out []tracker.Sprint
	for i, sp := range sprints {
		if sp.State == tracker.SprintActive || i == len(sprints)-2 {
			out = append(out, sp)
		}
	}
	return out
}

// SprintReport runs the whole pipeline for one sprint: access check,
// collection, window and visibility filtering, aggregation, compensation
// and rendering.
func (s *Service) SprintReport(ctx context.Context, ac *access.Context, projectKey string, sprintID int) (*SprintReport, error) {
	started := s.now()
	projectKey = strings.ToUpper(strings.TrimSpace(projectKey))
	identity := ac.Identity()
	req := events.ReportRequest{
		RequestID:         uuid.NewString(),
		RequesterID:       identity.ID,
		RequesterUsername: identity.Username,
		ProjectKey:        projectKey,
		SprintID:          sprintID,
	}
	log := s.logger.With("request_id", req.RequestID, "project_key", projectKey, "sprint_id", sprintID, "requester", identity.String())

	rep, err := s.buildReport(ctx, ac, projectKey, sprintID, &req)
	req.Duration = s.now().Sub(started)
	if err != nil {
		if appErr, ok := internal.IsAppError(err); ok {
			req.FailureCode = string(appErr.Code)
		}
		req.FailureReason = err.Error()
		log.Warn("sprint report failed", "error", err)
		s.publish(ctx, events.NewReportFailedEvent(req))
		return nil, err
	}

	log.Info("sprint report generated", "issues", rep.IssueCount, "users", rep.UserCount, "duration_ms", req.Duration.Milliseconds())
	s.publish(ctx, events.NewReportGeneratedEvent(req))
	return rep, nil
}

func (s *Service) buildReport(ctx context.Context, ac *access.Context, projectKey string, sprintID int, req *events.ReportRequest) (*SprintReport, error) {
	if !ac.CanAccessProject(projectKey) {
		return nil, internal.ErrNoProjectAccess.Withf("no access to project %s", projectKey)
	}

	sprint, err := s.tracker.GetSprint(ctx, sprintID)
	if err != nil {
		if tracker.IsNotFound(err) {
			return nil, internal.ErrSprintNotFound.Withf("sprint %d not found", sprintID)
		}
		return nil, internal.ErrTrackerUnavailable.Wrap(err)
	}
	req.SprintName = sprint.Name

	if sprint.OriginBoardID != 0 {
		boards, err := s.tracker.GetProjectBoards(ctx, projectKey)
		if err != nil {
			return nil, internal.ErrTrackerUnavailable.Wrap(err)
		}
		if !containsBoard(boards, sprint.OriginBoardID) {
			return nil, internal.ErrSprintNotFound.Withf("sprint %d not found in project %s", sprintID, projectKey)
		}
	}

	issues, err := s.collector.Collect(ctx, sprintID)
	if err != nil {
		return nil, err
	}

	visible := FilterVisible(FilterWindow(issues, sprint), ac)
	users := SummarizeByUser(visible)
	details := DetailByIssueAuthor(visible)

	resolver := NewCompensationResolver(s.policy, ac.VisibleCompensation())
	lines := make([]UserLine, 0, len(users))
	for _, u := range users {
		lines = append(lines, UserLine{UserTime: u, Compensation: resolver.Resolve(u)})
	}

	f := Formatter{BrowseURL: s.tracker.BrowseURL}
	issuesName, usersName := FileNames(sprint)

	req.IssueCount = len(visible)
	req.UserCount = len(users)

	return &SprintReport{
		RequestID:  req.RequestID,
		Sprint:     sprint,
		ProjectKey: projectKey,
		IssueCount: len(visible),
		UserCount:  len(users),
		Issues:     File{Name: issuesName, Data: f.IssuesTable(details)},
		Users:      File{Name: usersName, Data: f.UsersTable(lines)},
	}, nil
}

func containsBoard(boards []tracker.Board, id int) bool {
	for _, b := range boards {
		if b.ID == id {
			return true
		}
	}
	return false
}

func (s *Service) publish(ctx context.Context, e events.Event) {
	if s.publisher == nil {
		return
	}
	if err := s.publisher.Publish(ctx, e); err != nil {
		s.logger.Warn("failed to publish report event", "event_type", e.EventType(), "error", err)
	}
}
