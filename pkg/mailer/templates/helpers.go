package templates

import (
	"github.com/oksasatya/vidtube-api/config"
)

// Option pattern
type Option func(*EmailData)

func WithNewEmail(email string) Option { return func(d *EmailData) { d.NewEmail = email } }
func WithTime(t string) Option         { return func(d *EmailData) { d.Time = t } }

// NewBaseEmailData fills links and branding from config. A nil cfg leaves
// them empty for the worker to fill in.
func NewBaseEmailData(cfg *config.Config, name, username, email string, opts ...Option) EmailData {
	d := EmailData{Name: name, Username: username, Email: email}
	if cfg != nil {
		d.AppName, d.AppURL, d.SupportURL = cfg.AppName, cfg.AppURL, cfg.SupportURL
	}
	for _, opt := range opts {
		opt(&d)
	}
	return d
}

// Enrich fills branding keys missing from job data produced by the API.
func Enrich(cfg *config.Config, data map[string]any) map[string]any {
	if data == nil {
		data = map[string]any{}
	}
	base := ToMap(NewBaseEmailData(cfg, "", "", ""))
	for _, k := range []string{"AppName", "AppURL", "SupportURL"} {
		if v, ok := data[k]; !ok || v == "" {
			data[k] = base[k]
		}
	}
	return data
}
