package report

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/frahmantamala/tracker-bot/internal"
	"github.com/frahmantamala/tracker-bot/internal/tracker"
	"golang.org/x/sync/errgroup"
)

// IssueSource is the part of the tracker the collector pages through.
type IssueSource interface {
	GetIssuesForSprint(ctx context.Context, sprintID, offset int) (tracker.IssuePage, error)
	GetIssueWorklogs(ctx context.Context, issueID string) ([]tracker.Worklog, error)
}

// Collector gathers every issue of a sprint together with its full
// worklog list.
type Collector struct {
	source      IssueSource
	concurrency int
	logger      *slog.Logger
}

func NewCollector(source IssueSource, concurrency int, logger *slog.Logger) *Collector {
	if concurrency <= 0 {
		concurrency = 4
	}
	return &Collector{source: source, concurrency: concurrency, logger: logger}
}

// Collect pages through the sprint's issues. The offset is always the
// number of issues received so far; paging stops once that reaches the
// first page's total, or on a short or empty page. Any failure aborts the
// whole collection.
func (c *Collector) Collect(ctx context.Context, sprintID int) ([]tracker.Issue, error) {
	var (
		issues   []tracker.Issue
		seen     = map[string]struct{}{}
		offset   int
		total    int
		pageSize int
	)

	for page := 0; ; page++ {
		res, err := c.source.GetIssuesForSprint(ctx, sprintID, offset)
		if err != nil {
			c.logger.Error("failed to fetch sprint issues", "sprint_id", sprintID, "offset", offset, "error", err)
			return nil, internal.ErrTrackerUnavailable.Wrap(err)
		}

		if page == 0 {
			total = res.Total
			pageSize = res.MaxResults
			if pageSize <= 0 {
				pageSize = len(res.Issues)
			}
		}

		for _, issue := range res.Issues {
			id := issue.ID
			if id == "" {
				id = issue.Key
			}
			if _, dup := seen[id]; dup {
				continue
			}
			seen[id] = struct{}{}
			issues = append(issues, issue)
		}

		offset += len(res.Issues)
		if len(res.Issues) == 0 || len(res.Issues) < pageSize || offset >= total {
			break
		}
	}

	c.logger.Debug("sprint issues collected", "sprint_id", sprintID, "issues", len(issues), "total", total)

	if err := c.completeWorklogs(ctx, issues); err != nil {
		c.logger.Error("failed to fetch issue worklogs", "sprint_id", sprintID, "error", err)
		return nil, internal.ErrTrackerUnavailable.Wrap(err)
	}

	return issues, nil
}

// completeWorklogs replaces capped embedded worklog lists with the full ones.
func (c *Collector) completeWorklogs(ctx context.Context, issues []tracker.Issue) error {
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(c.concurrency)

	for i := range issues {
		if issues[i].WorklogTotal <= len(issues[i].Worklogs) {
			continue
		}
		g.Go(func() error {
			worklogs, err := c.source.GetIssueWorklogs(gctx, issues[i].ID)
			if err != nil {
				return fmt.Errorf("worklogs of %s: %w", issues[i].Key, err)
			}
			issues[i].Worklogs = worklogs
			return nil
		})
	}

	return g.Wait()
}
