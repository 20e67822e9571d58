package bot

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"log/slog"
	"path"
	"strconv"

	"github.com/frahmantamala/tracker-bot/internal"
	"github.com/frahmantamala/tracker-bot/internal/access"
	"github.com/frahmantamala/tracker-bot/internal/auth"
	"github.com/frahmantamala/tracker-bot/internal/github"
	"github.com/frahmantamala/tracker-bot/internal/report"
	"github.com/frahmantamala/tracker-bot/internal/telegram"
	"github.com/frahmantamala/tracker-bot/internal/tracker"
	"github.com/frahmantamala/tracker-bot/pkg/logger"
)

// Chat is the part of the Telegram client the bot talks through.
type Chat interface {
	SendMessage(ctx context.Context, params telegram.SendMessageParams) (telegram.Message, error)
	SendDocument(ctx context.Context, params telegram.SendDocumentParams) (telegram.Message, error)
	AnswerCallbackQuery(ctx context.Context, callbackID, text string) error
	GetFile(ctx context.Context, fileID string) (telegram.File, error)
	DownloadFile(ctx context.Context, filePath string) ([]byte, error)
}

type TaskTracker interface {
	GetProjects(ctx context.Context) ([]tracker.Project, error)
	CreateIssue(ctx context.Context, in tracker.NewIssue) (tracker.CreatedIssue, error)
	AddAttachment(ctx context.Context, issueKey, filename string, content io.Reader) error
}

type TokenIssuer interface {
	IssueToken(identity access.RequesterIdentity) (auth.AuthTokens, error)
}

// WorkflowRunner starts the configured GitHub workflows.
type WorkflowRunner interface {
	Repositories(ctx context.Context) ([]github.ConfiguredRepository, error)
	Workflows(repo string) ([]github.Workflow, error)
	Run(ctx context.Context, repo, key string) (*github.DispatchResult, error)
}

type Bot struct {
	chat      Chat
	reports   report.ServiceAPI
	tasks     TaskTracker
	tokens    TokenIssuer
	workflows WorkflowRunner
	policy    *access.Policy
	logger    *slog.Logger

	base    access.Guard[Meta]
	private access.Guard[Meta]
	topic   access.Guard[Meta]
}

// New builds a bot bound to the supergroup with the given chat id. A nil
// workflows runner turns the GitHub commands off.
func New(chat Chat, reports report.ServiceAPI, tasks TaskTracker, tokens TokenIssuer, workflows WorkflowRunner, policy *access.Policy, supergroupID int64, log *slog.Logger) *Bot {
	base := access.All(HasIdentity(), ConfiguredSupergroup(supergroupID))
	return &Bot{
		chat:      chat,
		reports:   reports,
		tasks:     tasks,
		tokens:    tokens,
		workflows: workflows,
		policy:    policy,
		logger:    log,
		base:      base,
		private:   access.All(base, ChatTypeIn(telegram.ChatPrivate)),
		topic:     access.All(base, TopicBound()),
	}
}

// Handle runs one event to completion. Errors are reported to the chat
// where possible; the returned error is for logging.
func (b *Bot) Handle(ctx context.Context, ev Event) error {
	meta := ev.EventMeta()
	ctx = logger.WithLogger(ctx, b.logger.With("update_id", meta.UpdateID, "requester", meta.Requester.String(), "chat_id", meta.ChatID))

	var err error
	switch e := ev.(type) {
	case CommandEvent:
		err = b.handleCommand(ctx, e)
	case CallbackEvent:
		err = b.handleCallback(ctx, e)
	case PhotoEvent:
		err = b.handleTask(ctx, e.Meta, e.Caption, e.FileID)
	case TextEvent:
		err = b.handleTask(ctx, e.Meta, e.Text, "")
	default:
		return fmt.Errorf("unhandled event %T", ev)
	}
	if err != nil {
		logger.From(ctx).Error("bot: event failed", "event", fmt.Sprintf("%T", ev), "error", err)
		b.replyError(ctx, meta, err)
	}
	return err
}

// allow evaluates guard and, when denied with a reason, tells the chat.
func (b *Bot) allow(ctx context.Context, guard access.Guard[Meta], m Meta) bool {
	d := guard(m)
	if d.Allowed {
		return true
	}
	logger.From(ctx).Debug("bot: guard denied", "reason", d.Reason, "chat_type", m.ChatType)
	if d.Reason != "" && m.ChatID != 0 {
		if err := b.reply(ctx, m, d.Reason, nil); err != nil {
			logger.From(ctx).Warn("bot: failed to send denial", "error", err)
		}
	}
	return false
}

func (b *Bot) handleCommand(ctx context.Context, e CommandEvent) error {
	switch e.Command {
	case "start":
		if !b.allow(ctx, b.base, e.Meta) {
			return nil
		}
		if e.ChatType == telegram.ChatSupergroup {
			return b.topicStatus(ctx, e.Meta)
		}
		return b.reply(ctx, e.Meta, startText(e.FirstName), nil)
	case "help":
		if !b.allow(ctx, b.base, e.Meta) {
			return nil
		}
		return b.reply(ctx, e.Meta, helpText, nil)
	case "projects":
		if !b.allow(ctx, b.private, e.Meta) {
			return nil
		}
		return b.sendProjects(ctx, e.Meta)
	case "me":
		if !b.allow(ctx, b.private, e.Meta) {
			return nil
		}
		return b.reply(ctx, e.Meta, meText(b.evaluate(e.Meta).Summary()), nil)
	case "token":
		if !b.allow(ctx, b.private, e.Meta) {
			return nil
		}
		return b.sendToken(ctx, e.Meta)
	case "github":
		if !b.allow(ctx, b.private, e.Meta) {
			return nil
		}
		return b.sendRepositories(ctx, e.Meta)
	}

	if e.ChatType == telegram.ChatPrivate {
		return b.reply(ctx, e.Meta, "Unknown command. See /help", nil)
	}
	return nil
}

func (b *Bot) handleCallback(ctx context.Context, e CallbackEvent) error {
	ack := ""
	switch e.Action {
	case ActionReport:
		ack = "Preparing report..."
	case ActionRun:
		ack = "Starting workflow..."
	}
	if err := b.chat.AnswerCallbackQuery(ctx, e.CallbackID, ack); err != nil {
		logger.From(ctx).Warn("bot: failed to answer callback", "error", err)
	}

	if !b.allow(ctx, b.private, e.Meta) {
		return nil
	}

	switch e.Action {
	case ActionProjects:
		return b.sendProjects(ctx, e.Meta)
	case ActionSprints:
		if len(e.Args) != 1 {
			return internal.NewValidationError("malformed sprints callback", internal.ErrCodeValidationFailed)
		}
		return b.sendSprints(ctx, e.Meta, e.Args[0])
	case ActionReport:
		if len(e.Args) != 2 {
			return internal.NewValidationError("malformed report callback", internal.ErrCodeValidationFailed)
		}
		sprintID, err := strconv.Atoi(e.Args[1])
		if err != nil || sprintID <= 0 {
			return internal.NewValidationError("malformed sprint id", internal.ErrCodeValidationFailed)
		}
		return b.sendReport(ctx, e.Meta, e.Args[0], sprintID)
	case ActionGitHub:
		return b.sendRepositories(ctx, e.Meta)
	case ActionWorkflows:
		if len(e.Args) != 1 {
			return internal.NewValidationError("malformed workflows callback", internal.ErrCodeValidationFailed)
		}
		return b.sendWorkflows(ctx, e.Meta, e.Args[0])
	case ActionRun:
		if len(e.Args) != 2 {
			return internal.NewValidationError("malformed run callback", internal.ErrCodeValidationFailed)
		}
		return b.runWorkflow(ctx, e.Meta, e.Args[1], e.Args[0])
	}

	logger.From(ctx).Debug("bot: unknown callback", "action", e.Action)
	return nil
}

func (b *Bot) evaluate(m Meta) *access.Context {
	return access.Evaluate(m.Requester, b.policy)
}

func (b *Bot) sendProjects(ctx context.Context, m Meta) error {
	projects, err := b.reports.ListProjects(ctx, b.evaluate(m))
	if err != nil {
		return err
	}
	if len(projects) == 0 {
		return b.reply(ctx, m, "You have no projects available.", nil)
	}
	return b.reply(ctx, m, "Active projects:", projectsKeyboard(projects))
}

func (b *Bot) sendSprints(ctx context.Context, m Meta, projectKey string) error {
	sprints, err := b.reports.ListSprints(ctx, b.evaluate(m), projectKey)
	if err != nil {
		return err
	}
	text := fmt.Sprintf("Project: %s\nSprints:", projectKey)
	if len(sprints) == 0 {
		text = fmt.Sprintf("Project: %s\nNo active or recently finished sprints.", projectKey)
	}
	return b.reply(ctx, m, text, sprintsKeyboard(projectKey, sprints))
}

func (b *Bot) sendReport(ctx context.Context, m Meta, projectKey string, sprintID int) error {
	rep, err := b.reports.SprintReport(ctx, b.evaluate(m), projectKey, sprintID)
	if err != nil {
		return err
	}

	docs := []telegram.SendDocumentParams{
		{ChatID: m.ChatID, MessageThreadID: m.ThreadID, FileName: rep.Issues.Name, Data: rep.Issues.Data, Caption: issuesCaption(rep)},
		{ChatID: m.ChatID, MessageThreadID: m.ThreadID, FileName: rep.Users.Name, Data: rep.Users.Data, Caption: usersCaption(rep)},
	}
	for _, d := range docs {
		if _, err := b.chat.SendDocument(ctx, d); err != nil {
			return internal.ErrChatUnavailable.Wrap(err)
		}
	}
	return nil
}

func (b *Bot) sendRepositories(ctx context.Context, m Meta) error {
	if b.workflows == nil {
		return b.reply(ctx, m, "GitHub workflows are not configured.", nil)
	}
	repos, err := b.workflows.Repositories(ctx)
	if err != nil {
		return err
	}
	if len(repos) == 0 {
		return b.reply(ctx, m, "No GitHub projects are available, please contact the administrator.", nil)
	}
	return b.reply(ctx, m, "Choose a project:", repositoriesKeyboard(repos))
}

func (b *Bot) sendWorkflows(ctx context.Context, m Meta, repo string) error {
	if b.workflows == nil {
		return b.reply(ctx, m, "GitHub workflows are not configured.", nil)
	}
	workflows, err := b.workflows.Workflows(repo)
	if err != nil {
		return b.reply(ctx, m, userMessage(err), backToGitHubKeyboard())
	}
	return b.reply(ctx, m, workflowsText(repo), workflowsKeyboard(repo, workflows))
}

// runWorkflow dispatches a workflow. Failures are answered with a way back
// to the project list instead of the generic error reply.
func (b *Bot) runWorkflow(ctx context.Context, m Meta, repo, key string) error {
	if b.workflows == nil {
		return b.reply(ctx, m, "GitHub workflows are not configured.", nil)
	}
	logger.From(ctx).Info("bot: workflow requested", "repo", repo, "key", key)
	result, err := b.workflows.Run(ctx, repo, key)
	if err != nil {
		logger.From(ctx).Error("bot: workflow failed", "repo", repo, "key", key, "error", err)
		return b.reply(ctx, m, userMessage(err), backToGitHubKeyboard())
	}
	return b.reply(ctx, m, runText(result), runKeyboard(result))
}

func (b *Bot) sendToken(ctx context.Context, m Meta) error {
	tokens, err := b.tokens.IssueToken(m.Requester)
	if err != nil {
		return err
	}
	text := fmt.Sprintf("Report API token (valid until %s UTC):\n%s", tokens.ExpiresAt.UTC().Format("2006-01-02 15:04"), tokens.AccessToken)
	return b.reply(ctx, m, text, nil)
}

// topicStatus answers /start inside a supergroup topic.
func (b *Bot) topicStatus(ctx context.Context, m Meta) error {
	key, ok := TopicProjectKey(m.TopicName)
	if !ok {
		return b.reply(ctx, m, "No project key found in this topic\n\n"+helpText, nil)
	}
	projects, err := b.tasks.GetProjects(ctx)
	if err != nil {
		return internal.ErrTrackerUnavailable.Wrap(err)
	}
	for _, p := range projects {
		if p.Key == key {
			return b.reply(ctx, m, fmt.Sprintf("The bot has access to project %s. Messages sent to this topic are now turned into tasks.", p.Name), nil)
		}
	}
	return b.reply(ctx, m, fmt.Sprintf("Project %s was not found\n\n%s", key, helpText), nil)
}

// handleTask turns a topic message into a tracker issue. The photo, when
// present, is attached after the issue is created; a failed attachment
// does not undo the issue.
func (b *Bot) handleTask(ctx context.Context, m Meta, text, photoID string) error {
	if m.ChatType != telegram.ChatSupergroup {
		return nil
	}
	if !b.allow(ctx, b.topic, m) {
		return nil
	}
	projectKey, _ := TopicProjectKey(m.TopicName)

	created, err := b.tasks.CreateIssue(ctx, tracker.NewIssue{
		ProjectKey:  projectKey,
		Summary:     TaskSummary(text),
		Description: TaskDescription(text, m),
		IssueType:   taskIssueType,
	})
	if err != nil {
		if tracker.IsNotFound(err) {
			return internal.ErrProjectNotFound.Withf("project %s not found", projectKey)
		}
		return internal.ErrTrackerUnavailable.Wrap(err)
	}
	logger.From(ctx).Info("bot: task created", "issue_key", created.Key, "project_key", projectKey)

	if photoID != "" {
		if err := b.attachPhoto(ctx, created.Key, photoID); err != nil {
			logger.From(ctx).Error("bot: failed to attach photo", "issue_key", created.Key, "error", err)
		}
	}

	_, err = b.chat.SendMessage(ctx, telegram.SendMessageParams{
		ChatID:          m.ChatID,
		MessageThreadID: m.ThreadID,
		Text:            "Added to Jira: " + created.Link,
		ReplyParameters: &telegram.ReplyParameters{MessageID: m.MessageID},
	})
	if err != nil {
		return internal.ErrChatUnavailable.Wrap(err)
	}
	return nil
}

func (b *Bot) attachPhoto(ctx context.Context, issueKey, fileID string) error {
	f, err := b.chat.GetFile(ctx, fileID)
	if err != nil {
		return fmt.Errorf("get file: %w", err)
	}
	data, err := b.chat.DownloadFile(ctx, f.FilePath)
	if err != nil {
		return fmt.Errorf("download file: %w", err)
	}
	name := path.Base(f.FilePath)
	if name == "." || name == "/" {
		name = fileID + ".jpg"
	}
	return b.tasks.AddAttachment(ctx, issueKey, name, bytes.NewReader(data))
}

func (b *Bot) reply(ctx context.Context, m Meta, text string, markup *telegram.InlineKeyboardMarkup) error {
	_, err := b.chat.SendMessage(ctx, telegram.SendMessageParams{
		ChatID:          m.ChatID,
		MessageThreadID: m.ThreadID,
		Text:            text,
		ReplyMarkup:     markup,
	})
	if err != nil {
		return internal.ErrChatUnavailable.Wrap(err)
	}
	return nil
}

func (b *Bot) replyError(ctx context.Context, m Meta, err error) {
	if m.ChatID == 0 {
		return
	}
	if appErr, ok := internal.IsAppError(err); ok && appErr.Code == internal.ErrCodeChatUnavailable {
		return
	}
	if rerr := b.reply(ctx, m, userMessage(err), nil); rerr != nil {
		logger.From(ctx).Warn("bot: failed to report error", "error", rerr)
	}
}

// userMessage is what the chat sees for a failed request. Internal causes
// stay in the log.
func userMessage(err error) string {
	appErr, ok := internal.IsAppError(err)
	if !ok {
		return "Something went wrong, please try again later."
	}
	switch appErr.Type {
	case internal.ErrorTypeForbidden, internal.ErrorTypeNotFound, internal.ErrorTypeValidation:
		return appErr.Message
	case internal.ErrorTypeExternal:
		if appErr.Code == internal.ErrCodeGitHubUnavailable {
			return "GitHub is not responding right now, please try again later."
		}
		return "Jira is not responding right now, please try again later."
	}
	return "Something went wrong, please try again later."
}
