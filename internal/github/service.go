package github

import (
	"context"
	"fmt"
	"log/slog"
	"regexp"
	"sort"
	"strings"
	"sync"

	"github.com/frahmantamala/tracker-bot/internal"
	"github.com/frahmantamala/tracker-bot/internal/tracker"
	"golang.org/x/sync/errgroup"
)

const commentPrefix = "Pull request created: "

type IssueTracker interface {
	GetProjects(ctx context.Context) ([]tracker.Project, error)
	GetIssueComments(ctx context.Context, issueKey string) ([]tracker.Comment, error)
	AddComment(ctx context.Context, issueKey, text string) error
	BrowseURL(issueKey string) string
}

type ServiceAPI interface {
	LinkPullRequest(ctx context.Context, payload WebhookPayload) (*LinkResponse, error)
}

type Service struct {
	tracker     IssueTracker
	concurrency int
	logger      *slog.Logger
}

func NewService(t IssueTracker, concurrency int, logger *slog.Logger) *Service {
	if concurrency <= 0 {
		concurrency = 4
	}
	return &Service{tracker: t, concurrency: concurrency, logger: logger}
}

// LinkPullRequest comments the pull request url on every issue named in the
// branch or title. Issues that already mention the url are left alone, and
// keys that do not resolve to an issue are dropped from the response.
func (s *Service) LinkPullRequest(ctx context.Context, payload WebhookPayload) (*LinkResponse, error) {
	if err := payload.Validate(); err != nil {
		return nil, err
	}

	projects, err := s.tracker.GetProjects(ctx)
	if err != nil {
		return nil, internal.ErrTrackerUnavailable.Wrap(err)
	}
	projectKeys := make([]string, 0, len(projects))
	for _, p := range projects {
		projectKeys = append(projectKeys, p.Key)
	}

	keys := ExtractIssueKeys(projectKeys, payload.BranchName, payload.PRTitle)
	s.logger.Info("pull request webhook", "pr_url", payload.PRURL, "issue_keys", keys)
	if len(keys) == 0 {
		return nil, internal.ErrProjectNotFound.Withf("no issue key found in branch or title")
	}

	var (
		mu     sync.Mutex
		linked = map[string]bool{}
	)
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(s.concurrency)
	for _, key := range keys {
		g.Go(func() error {
			ok, err := s.linkIssue(gctx, key, payload.PRURL)
			if err != nil {
				return fmt.Errorf("%s: %w", key, err)
			}
			mu.Lock()
			linked[key] = ok
			mu.Unlock()
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		s.logger.Error("failed to link pull request", "pr_url", payload.PRURL, "error", err)
		return nil, internal.ErrTrackerUnavailable.Wrap(err)
	}

	resp := &LinkResponse{IssueKeys: []string{}, IssueLinks: []string{}}
	for _, key := range keys {
		if !linked[key] {
			continue
		}
		resp.IssueKeys = append(resp.IssueKeys, key)
		resp.IssueLinks = append(resp.IssueLinks, s.tracker.BrowseURL(key))
	}
	return resp, nil
}

// linkIssue reports whether the issue exists.
func (s *Service) linkIssue(ctx context.Context, key, prURL string) (bool, error) {
	comments, err := s.tracker.GetIssueComments(ctx, key)
	if err != nil {
		if tracker.IsNotFound(err) {
			s.logger.Warn("issue from pull request not found", "issue_key", key)
			return false, nil
		}
		return false, err
	}
	for _, c := range comments {
		if strings.Contains(c.Body, prURL) {
			s.logger.Debug("pull request already linked", "issue_key", key)
			return true, nil
		}
	}
	if err := s.tracker.AddComment(ctx, key, commentPrefix+prURL); err != nil {
		return false, err
	}
	s.logger.Info("pull request linked", "issue_key", key, "pr_url", prURL)
	return true, nil
}

// ExtractIssueKeys finds "<KEY>-<n>" or "<KEY>_<n>" for every known project
// key in the texts, case-insensitively. Keys come back upper-cased in the
// "KEY-n" form, de-duplicated and sorted.
func ExtractIssueKeys(projectKeys []string, texts ...string) []string {
	seen := map[string]struct{}{}
	var out []string
	for _, pk := range projectKeys {
		pk = strings.ToUpper(strings.TrimSpace(pk))
		if pk == "" {
			continue
		}
		re := regexp.MustCompile(`(?i)(?:^|[^A-Za-z0-9])` + regexp.QuoteMeta(pk) + `[-_](\d+)`)
		for _, text := range texts {
			for _, m := range re.FindAllStringSubmatch(text, -1) {
				key := pk + "-" + m[1]
				if _, dup := seen[key]; dup {
					continue
				}
				seen[key] = struct{}{}
				out = append(out, key)
			}
		}
	}
	sort.Strings(out)
	return out
}
