package mailer

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/sirupsen/logrus"

	"github.com/oksasatya/vidtube-api/config"
	mailtpl "github.com/oksasatya/vidtube-api/pkg/mailer/templates"
)

// ErrBadJob marks messages that can never be delivered and must be dropped.
var ErrBadJob = errors.New("mailer: bad job")

// Worker renders queued jobs and hands them to a Sender.
type Worker struct {
	Cfg    *config.Config
	Sender Sender
	Logger *logrus.Logger
}

// Handle processes one queue message body. Errors wrapping ErrBadJob should
// not be retried; any other error is a delivery failure.
func (w *Worker) Handle(ctx context.Context, body []byte) error {
	var job EmailJob
	if err := json.Unmarshal(body, &job); err != nil {
		return fmt.Errorf("%w: decode: %v", ErrBadJob, err)
	}
	if strings.TrimSpace(job.To) == "" {
		return fmt.Errorf("%w: empty recipient", ErrBadJob)
	}

	subject, text, html := job.Subject, job.Text, job.HTML
	if job.Template != "" {
		data := mailtpl.Enrich(w.Cfg, job.Data)
		s, t, h, err := mailtpl.Render(job.Template, data)
		if err != nil {
			return fmt.Errorf("%w: render %s: %v", ErrBadJob, job.Template, err)
		}
		subject, text, html = s, t, h
	}
	if subject == "" {
		return fmt.Errorf("%w: empty subject", ErrBadJob)
	}

	if err := w.Sender.Send(ctx, job.To, subject, text, html); err != nil {
		return fmt.Errorf("send to %s: %w", job.To, err)
	}
	if w.Logger != nil {
		w.Logger.WithFields(logrus.Fields{"to": job.To, "template": job.Template}).Info("email sent")
	}
	return nil
}
