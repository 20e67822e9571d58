package github

import (
	"net/url"

	"github.com/frahmantamala/tracker-bot/internal"
	"github.com/frahmantamala/tracker-bot/internal/core/common/validation"
)

// WebhookPayload is posted by the repository workflow when a pull request
// is opened.
type WebhookPayload struct {
	BranchName string `json:"branch_name"`
	PRTitle    string `json:"pr_title"`
	PRURL      string `json:"pr_url"`
}

func (p WebhookPayload) Validate() error {
	v := validation.NewValidator()
	v.Field("pr_url", p.PRURL).Required().MaxLength(2048).Custom(func(value interface{}) *internal.AppError {
		s, _ := value.(string)
		u, err := url.Parse(s)
		if err != nil || (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
			return internal.NewValidationFieldError("pr_url", "pr_url must be an http(s) url", internal.ErrCodeValidationFailed)
		}
		return nil
	})
	v.Field("branch_name", p.BranchName).MaxLength(512)
	v.Field("pr_title", p.PRTitle).MaxLength(1024)
	if err := v.Validate(); err != nil {
		return err
	}
	return nil
}

type LinkResponse struct {
	IssueKeys  []string `json:"issue_keys"`
	IssueLinks []string `json:"issue_links"`
}
