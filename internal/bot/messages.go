package bot

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/frahmantamala/tracker-bot/internal/access"
	"github.com/frahmantamala/tracker-bot/internal/github"
	"github.com/frahmantamala/tracker-bot/internal/report"
	"github.com/frahmantamala/tracker-bot/internal/telegram"
	"github.com/frahmantamala/tracker-bot/internal/tracker"
)

// Callback actions. Arguments follow the action separated by spaces.
const (
	ActionProjects = "projects"
	ActionSprints  = "sprints"
	ActionReport   = "report"

	ActionGitHub    = "github"
	ActionWorkflows = "workflows"
	ActionRun       = "run"
)

const helpText = `Available commands:
/projects - projects you can report on (private chat)
/me - your access summary (private chat)
/token - an access token for the report API (private chat)
/github - start a GitHub workflow (private chat)
/help - this message

In the bound supergroup, every message sent to a topic named "[Jira&Bot]:key=<PROJECT>" becomes a task in that project.`

func startText(firstName string) string {
	name := strings.TrimSpace(firstName)
	if name == "" {
		name = "there"
	}
	return fmt.Sprintf("Hi, %s!\n\n%s", name, helpText)
}

func projectsKeyboard(projects []tracker.Project) *telegram.InlineKeyboardMarkup {
	rows := make([][]telegram.InlineKeyboardButton, 0, len(projects))
	for _, p := range projects {
		rows = append(rows, []telegram.InlineKeyboardButton{{
			Text:         "Sprints of #" + p.Key,
			CallbackData: ActionSprints + " " + p.Key,
		}})
	}
	return &telegram.InlineKeyboardMarkup{InlineKeyboard: rows}
}

func sprintsKeyboard(projectKey string, sprints []tracker.Sprint) *telegram.InlineKeyboardMarkup {
	rows := make([][]telegram.InlineKeyboardButton, 0, len(sprints)+1)
	for _, sp := range sprints {
		rows = append(rows, []telegram.InlineKeyboardButton{{
			Text:         "Time tracking: " + sp.Name,
			CallbackData: ActionReport + " " + projectKey + " " + strconv.Itoa(sp.ID),
		}})
	}
	rows = append(rows, []telegram.InlineKeyboardButton{{Text: "« Projects", CallbackData: ActionProjects}})
	return &telegram.InlineKeyboardMarkup{InlineKeyboard: rows}
}

func issuesCaption(rep *report.SprintReport) string {
	return fmt.Sprintf("Sprint issues: %s\nTotal issues: (%d)", rep.Sprint.Name, rep.IssueCount)
}

func usersCaption(rep *report.SprintReport) string {
	return "Time spent by assignees in sprint: " + rep.Sprint.Name
}

func meText(s access.Summary) string {
	var b strings.Builder
	fmt.Fprintf(&b, "You: %s\n", s.Identity.String())
	if s.IsSuperAdmin {
		b.WriteString("Role: super admin\n")
	}
	if len(s.Projects) > 0 {
		fmt.Fprintf(&b, "Projects: %s\n", strings.Join(s.Projects, ", "))
	} else if !s.IsSuperAdmin {
		b.WriteString("Projects: none\n")
	}
	if len(s.RelationNames) > 0 {
		fmt.Fprintf(&b, "Worklogs of: %s\n", strings.Join(s.RelationNames, ", "))
	}
	for _, r := range s.SelfCompensation {
		scope := r.ProjectKey
		if scope == "" {
			scope = "any project"
		}
		fmt.Fprintf(&b, "Compensation: %s %s %s (%s)\n", r.Amount.String(), r.Currency, r.Kind, scope)
	}
	return strings.TrimRight(b.String(), "\n")
}

func repositoriesKeyboard(repos []github.ConfiguredRepository) *telegram.InlineKeyboardMarkup {
	rows := make([][]telegram.InlineKeyboardButton, 0, len(repos))
	for _, r := range repos {
		label := r.FullName
		if label == "" {
			label = r.Name
		}
		rows = append(rows, []telegram.InlineKeyboardButton{{
			Text:         label,
			CallbackData: ActionWorkflows + " " + r.Name,
		}})
	}
	return &telegram.InlineKeyboardMarkup{InlineKeyboard: rows}
}

func workflowsText(repo string) string {
	return fmt.Sprintf("Choose a workflow in %s\n\nThe workflow starts on GitHub as soon as you choose it. Follow its progress there; it can only be cancelled on GitHub.", repo)
}

func workflowsKeyboard(repo string, workflows []github.Workflow) *telegram.InlineKeyboardMarkup {
	rows := make([][]telegram.InlineKeyboardButton, 0, len(workflows)+1)
	for _, w := range workflows {
		rows = append(rows, []telegram.InlineKeyboardButton{{
			Text:         w.Key() + " / " + w.WorkflowID,
			CallbackData: ActionRun + " " + w.Key() + " " + repo,
		}})
	}
	rows = append(rows, backToGitHubRow())
	return &telegram.InlineKeyboardMarkup{InlineKeyboard: rows}
}

func runText(r *github.DispatchResult) string {
	if r.Run == nil {
		return fmt.Sprintf("Workflow started:\nName: %s\nFile: %s\nBranch: %s\nThe run is not listed on GitHub yet.", r.Actions.Name, r.Actions.Path, r.Workflow.Branch)
	}
	return fmt.Sprintf("Workflow started:\nName: %s\nFile: %s\nStatus: %s\nLink: %s", r.Run.Name, r.Run.Path, r.Run.Status, r.Run.HTMLURL)
}

func runKeyboard(r *github.DispatchResult) *telegram.InlineKeyboardMarkup {
	var rows [][]telegram.InlineKeyboardButton
	switch {
	case r.Run != nil && r.Run.HTMLURL != "":
		rows = append(rows, []telegram.InlineKeyboardButton{{Text: r.Run.Name + " / " + r.Run.Path, URL: r.Run.HTMLURL}})
	case r.Actions.HTMLURL != "":
		rows = append(rows, []telegram.InlineKeyboardButton{{Text: r.Actions.Name + " / " + r.Actions.Path, URL: r.Actions.HTMLURL}})
	}
	rows = append(rows, backToGitHubRow())
	return &telegram.InlineKeyboardMarkup{InlineKeyboard: rows}
}

func backToGitHubRow() []telegram.InlineKeyboardButton {
	return []telegram.InlineKeyboardButton{{Text: "« GitHub projects", CallbackData: ActionGitHub}}
}

func backToGitHubKeyboard() *telegram.InlineKeyboardMarkup {
	return &telegram.InlineKeyboardMarkup{InlineKeyboard: [][]telegram.InlineKeyboardButton{backToGitHubRow()}}
}
