package github

import (
	"strings"

	"github.com/frahmantamala/tracker-bot/internal"
	"github.com/frahmantamala/tracker-bot/internal/access"
	"github.com/frahmantamala/tracker-bot/internal/core/common/validation"
)

const SettingWorkflows = "github_workflow_settings"

// maxCallbackData is Telegram's limit on inline button payloads.
const maxCallbackData = 64

// Workflow is one dispatchable workflow of a configured repository.
type Workflow struct {
	Repo        string `json:"repo" yaml:"repo"`
	Owner       string `json:"owner" yaml:"owner"`
	Branch      string `json:"branch" yaml:"branch"`
	Environment string `json:"environment" yaml:"environment"`
	WorkflowID  string `json:"workflow_id" yaml:"workflow_id"`
	AppType     string `json:"app_type,omitempty" yaml:"app_type,omitempty"`
}

// Key identifies the workflow within its repository.
func (w Workflow) Key() string {
	if w.AppType == "" {
		return w.Environment
	}
	return w.Environment + "-" + w.AppType
}

// Inputs are the workflow_dispatch inputs sent with every run.
func (w Workflow) Inputs() map[string]string {
	inputs := map[string]string{"environment": w.Environment}
	if w.AppType != "" {
		inputs["appType"] = w.AppType
	}
	return inputs
}

// WorkflowSettings keeps the configured workflows grouped by repository in
// configuration order.
type WorkflowSettings struct {
	repos     []string
	workflows map[string][]Workflow
}

// Repos lists the configured repository names.
func (s *WorkflowSettings) Repos() []string {
	if s == nil {
		return nil
	}
	return append([]string(nil), s.repos...)
}

func (s *WorkflowSettings) Workflows(repo string) []Workflow {
	if s == nil {
		return nil
	}
	return append([]Workflow(nil), s.workflows[repo]...)
}

func (s *WorkflowSettings) Lookup(repo, key string) (Workflow, bool) {
	if s == nil {
		return Workflow{}, false
	}
	for _, w := range s.workflows[repo] {
		if w.Key() == key {
			return w, true
		}
	}
	return Workflow{}, false
}

// All lists every workflow, repository by repository.
func (s *WorkflowSettings) All() []Workflow {
	if s == nil {
		return nil
	}
	var out []Workflow
	for _, repo := range s.repos {
		out = append(out, s.workflows[repo]...)
	}
	return out
}

func (s *WorkflowSettings) Len() int {
	if s == nil {
		return 0
	}
	n := 0
	for _, ws := range s.workflows {
		n += len(ws)
	}
	return n
}

// ParseWorkflowSettings reads
// `repo:{branch=main,environment=prod,workflowId=deploy.yml,appType=web,owner=acme}|...`.
// Like the access policy it never fails as a whole: bad entries are skipped
// and reported.
func ParseWorkflowSettings(raw string) (*WorkflowSettings, []access.ParseIssue) {
	settings := &WorkflowSettings{workflows: map[string][]Workflow{}}
	var issues []access.ParseIssue
	skip := func(entry, reason string) {
		issues = append(issues, access.ParseIssue{Setting: SettingWorkflows, Entry: entry, Reason: reason})
	}

	for _, entry := range strings.Split(raw, "|") {
		entry = strings.TrimSpace(entry)
		if entry == "" {
			continue
		}

		repo, body, found := strings.Cut(entry, ":")
		if !found {
			skip(entry, "missing ':' delimiter")
			continue
		}
		repo = strings.TrimSpace(repo)

		params, err := access.ParseParamList(body)
		if err != nil {
			skip(entry, err.Error())
			continue
		}

		w := Workflow{
			Repo:        repo,
			Owner:       params["owner"],
			Branch:      params["branch"],
			Environment: params["environment"],
			WorkflowID:  access.FirstOf(params, "workflowid", "workflow_id", "workflow"),
			AppType:     access.FirstOf(params, "apptype", "app_type"),
		}
		if appErr := w.validate(); appErr != nil {
			skip(entry, appErr.GetDetailedMessage())
			continue
		}
		if _, dup := settings.Lookup(repo, w.Key()); dup {
			skip(entry, "duplicate workflow for repository and environment")
			continue
		}

		if _, seen := settings.workflows[repo]; !seen {
			settings.repos = append(settings.repos, repo)
		}
		settings.workflows[repo] = append(settings.workflows[repo], w)
	}

	return settings, issues
}

func (w Workflow) validate() *internal.AppError {
	v := validation.NewValidator()
	v.Field("repo", w.Repo).Required().Custom(noSpaces("repo"))
	v.Field("owner", w.Owner).Required()
	v.Field("branch", w.Branch).Required()
	v.Field("environment", w.Environment).Required().Custom(noSpaces("environment"))
	v.Field("workflowId", w.WorkflowID).Required().MinLength(3)
	v.Field("appType", w.AppType).Custom(noSpaces("appType"))
	// the bot's run button carries "run <key> <repo>"
	v.Field("callback", "run "+w.Key()+" "+w.Repo).MaxLength(maxCallbackData)
	return v.Validate()
}

// callback payloads are split on whitespace
func noSpaces(field string) func(interface{}) *internal.AppError {
	return func(value interface{}) *internal.AppError {
		s, _ := value.(string)
		if strings.ContainsAny(s, " \t") {
			return internal.NewValidationFieldError(field, field+" must not contain spaces", internal.ErrCodeValidationFailed)
		}
		return nil
	}
}
