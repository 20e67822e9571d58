package github

import (
	"context"
	"log/slog"
	"strings"

	"github.com/frahmantamala/tracker-bot/internal"
	"golang.org/x/sync/errgroup"
)

type WorkflowAPI interface {
	GetRepository(ctx context.Context, owner, repo string) (Repository, error)
	ListWorkflows(ctx context.Context, owner, repo string) ([]ActionsWorkflow, error)
	DispatchWorkflow(ctx context.Context, owner, repo, workflowID, ref string, inputs map[string]string) error
	ListWorkflowRuns(ctx context.Context, owner, repo, workflowID, branch string, perPage int) ([]WorkflowRun, error)
}

// ConfiguredRepository is a settings entry resolved against GitHub.
type ConfiguredRepository struct {
	Name string
	Repository
}

// DispatchResult describes a started workflow. Run is the newest run on
// the workflow's branch and is nil when GitHub has not listed one yet.
type DispatchResult struct {
	Workflow Workflow
	Actions  ActionsWorkflow
	Run      *WorkflowRun
}

type WorkflowService struct {
	api         WorkflowAPI
	settings    *WorkflowSettings
	concurrency int
	logger      *slog.Logger
}

func NewWorkflowService(api WorkflowAPI, settings *WorkflowSettings, concurrency int, logger *slog.Logger) *WorkflowService {
	if concurrency <= 0 {
		concurrency = 4
	}
	return &WorkflowService{api: api, settings: settings, concurrency: concurrency, logger: logger}
}

// Repositories resolves every configured repository. Repositories GitHub
// cannot serve are logged and left out.
func (s *WorkflowService) Repositories(ctx context.Context) ([]ConfiguredRepository, error) {
	names := s.settings.Repos()
	resolved := make([]*ConfiguredRepository, len(names))

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(s.concurrency)
	for i, name := range names {
		owner := s.settings.Workflows(name)[0].Owner
		g.Go(func() error {
			repo, err := s.api.GetRepository(gctx, owner, name)
			if err != nil {
				if gctx.Err() != nil {
					return gctx.Err()
				}
				s.logger.Warn("github repository unavailable", "repo", owner+"/"+name, "error", err)
				return nil
			}
			resolved[i] = &ConfiguredRepository{Name: name, Repository: repo}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, internal.ErrGitHubUnavailable.Wrap(err)
	}

	out := make([]ConfiguredRepository, 0, len(resolved))
	for _, r := range resolved {
		if r != nil {
			out = append(out, *r)
		}
	}
	return out, nil
}

// Workflows lists the configured workflows of repo.
func (s *WorkflowService) Workflows(repo string) ([]Workflow, error) {
	workflows := s.settings.Workflows(repo)
	if len(workflows) == 0 {
		return nil, internal.ErrWorkflowNotFound.Withf("repository %s is not configured", repo)
	}
	return workflows, nil
}

// Run dispatches the workflow configured under key in repo and reports the
// newest run of it on the configured branch.
func (s *WorkflowService) Run(ctx context.Context, repo, key string) (*DispatchResult, error) {
	w, ok := s.settings.Lookup(repo, key)
	if !ok {
		return nil, internal.ErrWorkflowNotFound.Withf("workflow %s of %s is not configured", key, repo)
	}

	available, err := s.api.ListWorkflows(ctx, w.Owner, w.Repo)
	if err != nil {
		return nil, internal.ErrGitHubUnavailable.Wrap(err)
	}
	var actions *ActionsWorkflow
	for i := range available {
		if strings.Contains(available[i].Path, w.WorkflowID) {
			actions = &available[i]
			break
		}
	}
	if actions == nil {
		return nil, internal.ErrWorkflowNotFound.Withf("workflow %s not found", w.WorkflowID)
	}

	if err := s.api.DispatchWorkflow(ctx, w.Owner, w.Repo, w.WorkflowID, w.Branch, w.Inputs()); err != nil {
		return nil, internal.ErrGitHubUnavailable.Wrap(err)
	}
	s.logger.Info("github workflow started", "repo", w.Owner+"/"+w.Repo, "workflow", w.WorkflowID, "key", key, "branch", w.Branch)

	result := &DispatchResult{Workflow: w, Actions: *actions}
	runs, err := s.api.ListWorkflowRuns(ctx, w.Owner, w.Repo, w.WorkflowID, w.Branch, 1)
	if err != nil {
		// the dispatch went through; only the status lookup is missing
		s.logger.Warn("github workflow runs unavailable", "repo", w.Owner+"/"+w.Repo, "workflow", w.WorkflowID, "error", err)
		return result, nil
	}
	for i := range runs {
		if strings.Contains(runs[i].Path, w.WorkflowID) {
			result.Run = &runs[i]
			break
		}
	}
	return result, nil
}
