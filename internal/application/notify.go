package application

import (
	"context"
	"time"

	"github.com/oksasatya/vidtube-api/internal/domain/entity"
	"github.com/oksasatya/vidtube-api/pkg/mailer"
	mailtpl "github.com/oksasatya/vidtube-api/pkg/mailer/templates"
)

const (
	mailWelcome         = mailtpl.Welcome
	mailPasswordChanged = mailtpl.PasswordChanged
	mailEmailChanged    = mailtpl.EmailChanged

	mailTimeLayout = "02 January 2006, 15:04 MST"
)

// notify enqueues an account email. Failures are logged and never fail the
// calling operation.
func (s *Service) notify(ctx context.Context, u *entity.User, template string, opts ...mailtpl.Option) {
	if s.Mail == nil || u == nil {
		return
	}
	opts = append([]mailtpl.Option{mailtpl.WithTime(time.Now().UTC().Format(mailTimeLayout))}, opts...)
	data := mailtpl.ToMap(mailtpl.NewBaseEmailData(s.mailCfg, u.FullName, u.Username, u.Email, opts...))
	job := mailer.EmailJob{To: u.Email, Template: template, Data: data}
	if err := s.Mail.PublishJSON(ctx, job); err != nil {
		s.log().WithError(err).WithField("user_id", u.ID).WithField("template", template).Warn("enqueue email failed")
	}
}
