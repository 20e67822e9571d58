package auth

import (
	"github.com/frahmantamala/tracker-bot/internal/access"
	"github.com/frahmantamala/tracker-bot/internal/core/common/validation"
)

// IssueTokenDTO is the input of the token issue command.
type IssueTokenDTO struct {
	UserID   string `json:"user_id"`
	Username string `json:"username"`
}

func (d IssueTokenDTO) Validate() error {
	v := validation.NewValidator()
	v.Field("user_id", d.UserID).Required().MaxLength(64)
	v.Field("username", d.Username).MaxLength(64)
	if err := v.Validate(); err != nil {
		return err
	}
	return nil
}

func (d IssueTokenDTO) Identity() access.RequesterIdentity {
	return access.RequesterIdentity{ID: d.UserID, Username: d.Username}
}
