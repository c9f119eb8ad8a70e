package delivery

import (
	"maps"
	"net/url"
	"slices"
	"strings"
	"time"

	"github.com/go-viper/mapstructure/v2"
	"github.com/tphakala/alertflow/internal/conf"
	"github.com/tphakala/alertflow/internal/datastore/v2/entities"
	"github.com/tphakala/alertflow/internal/errors"
)

// Defaults applied by ParseTarget.
const (
	DefaultIncidentURL     = "https://events.pagerduty.com/v2/enqueue"
	DefaultRetryCount      = 3
	DefaultRetryBaseDelay  = time.Second
	DefaultEmailSubject    = "[{severity}] {summary}"
	defaultIncidentSource  = "alertflow"
	defaultEmailEncryption = "auto"
)

// DefaultSeverityMapping maps alert severities to incident API severities.
var DefaultSeverityMapping = map[string]string{
	entities.SeverityCritical: "critical",
	entities.SeverityHigh:     "error",
	entities.SeverityMedium:   "warning",
	entities.SeverityLow:      "info",
	entities.SeverityInfo:     "info",
}

// incidentSeverities are the values the incident API accepts.
var incidentSeverities = []string{"critical", "error", "warning", "info"}

// Target is a provider with its kind-specific configuration decoded. Exactly
// one of the config pointers is set, matching Kind.
type Target struct {
	ProviderID string
	Name       string
	Kind       string

	Incident *IncidentConfig
	Chat     *ChatConfig
	Webhook  *WebhookConfig
	Email    *EmailConfig
}

// IncidentConfig configures a PagerDuty Events v2 compatible endpoint.
type IncidentConfig struct {
	RoutingKey      string            `mapstructure:"routing_key"`
	URL             string            `mapstructure:"url"`
	Source          string            `mapstructure:"source"`
	SeverityMapping map[string]string `mapstructure:"severity_mapping"`
	Timeout         conf.Duration     `mapstructure:"timeout"`
}

// ChatConfig configures a Slack compatible incoming webhook.
type ChatConfig struct {
	WebhookURL string        `mapstructure:"webhook_url"`
	Channel    string        `mapstructure:"channel"`
	Username   string        `mapstructure:"username"`
	IconEmoji  string        `mapstructure:"icon_emoji"`
	Timeout    conf.Duration `mapstructure:"timeout"`
}

// WebhookConfig configures a generic JSON webhook. RetryCount is the number
// of retries after the first attempt.
type WebhookConfig struct {
	URL            string            `mapstructure:"url"`
	Method         string            `mapstructure:"method"`
	Headers        map[string]string `mapstructure:"headers"`
	RetryCount     *int              `mapstructure:"retry_count"`
	RetryBaseDelay conf.Duration     `mapstructure:"retry_base_delay"`
	Timeout        conf.Duration     `mapstructure:"timeout"`
}

// Retries resolves the retry count default.
func (c *WebhookConfig) Retries() int {
	if c.RetryCount == nil {
		return DefaultRetryCount
	}
	return *c.RetryCount
}

// EmailConfig configures SMTP delivery.
type EmailConfig struct {
	SMTPHost        string        `mapstructure:"smtp_host"`
	SMTPPort        int           `mapstructure:"smtp_port"`
	Username        string        `mapstructure:"username"`
	Password        string        `mapstructure:"password"`
	From            string        `mapstructure:"from"`
	FromName        string        `mapstructure:"from_name"`
	Recipients      []string      `mapstructure:"recipients"`
	SubjectTemplate string        `mapstructure:"subject_template"`
	Encryption      string        `mapstructure:"encryption"`
	Timeout         conf.Duration `mapstructure:"timeout"`
}

// ParseTarget decodes and validates a provider's configuration blob.
func ParseTarget(p *entities.Provider) (Target, error) {
	t := Target{ProviderID: p.ID, Name: p.Name, Kind: p.Kind}

	var err error
	switch p.Kind {
	case entities.ProviderIncident:
		t.Incident = &IncidentConfig{}
		if err = decodeConfig(p.Config, t.Incident); err == nil {
			err = t.Incident.normalize()
		}
	case entities.ProviderChat:
		t.Chat = &ChatConfig{}
		if err = decodeConfig(p.Config, t.Chat); err == nil {
			err = t.Chat.normalize()
		}
	case entities.ProviderWebhook:
		t.Webhook = &WebhookConfig{}
		if err = decodeConfig(p.Config, t.Webhook); err == nil {
			err = t.Webhook.normalize()
		}
	case entities.ProviderEmail:
		t.Email = &EmailConfig{}
		if err = decodeConfig(p.Config, t.Email); err == nil {
			err = t.Email.normalize()
		}
	default:
		return Target{}, configError("unknown provider kind", p.Kind)
	}
	if err != nil {
		return Target{}, errors.Wrap(err).
			Component("delivery").
			Category(errors.CategoryValidation).
			Context("provider_id", p.ID).
			Context("kind", p.Kind).
			Build()
	}
	return t, nil
}

func decodeConfig(raw map[string]any, out any) error {
	decoder, err := mapstructure.NewDecoder(&mapstructure.DecoderConfig{
		DecodeHook:       conf.DurationDecodeHook(),
		WeaklyTypedInput: true,
		Result:           out,
	})
	if err != nil {
		return err
	}
	return decoder.Decode(raw)
}

func configError(msg, value string) error {
	return errors.New(msg).
		Component("delivery").
		Category(errors.CategoryValidation).
		Context("value", value).
		Build()
}

func validateURL(raw, field string) error {
	if raw == "" {
		return errors.NewStd(field + " is required")
	}
	u, err := url.Parse(raw)
	if err != nil || (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
		return errors.NewStd(field + " must be an absolute http(s) URL")
	}
	return nil
}

func (c *IncidentConfig) normalize() error {
	if c.RoutingKey == "" {
		return errors.NewStd("routing_key is required")
	}
	if c.URL == "" {
		c.URL = DefaultIncidentURL
	}
	if err := validateURL(c.URL, "url"); err != nil {
		return err
	}
	if c.Source == "" {
		c.Source = defaultIncidentSource
	}
	mapping := maps.Clone(DefaultSeverityMapping)
	for k, v := range c.SeverityMapping {
		v = strings.ToLower(v)
		if !slices.Contains(incidentSeverities, v) {
			return errors.NewStd("severity_mapping values must be critical, error, warning or info")
		}
		mapping[strings.ToLower(k)] = v
	}
	c.SeverityMapping = mapping
	return nil
}

func (c *ChatConfig) normalize() error {
	return validateURL(c.WebhookURL, "webhook_url")
}

func (c *WebhookConfig) normalize() error {
	if err := validateURL(c.URL, "url"); err != nil {
		return err
	}
	c.Method = strings.ToUpper(c.Method)
	if c.Method == "" {
		c.Method = "POST"
	}
	if c.RetryCount != nil && *c.RetryCount < 0 {
		return errors.NewStd("retry_count cannot be negative")
	}
	if c.RetryBaseDelay <= 0 {
		c.RetryBaseDelay = conf.Duration(DefaultRetryBaseDelay)
	}
	return nil
}

func (c *EmailConfig) normalize() error {
	switch {
	case c.SMTPHost == "":
		return errors.NewStd("smtp_host is required")
	case c.From == "":
		return errors.NewStd("from is required")
	case len(c.Recipients) == 0:
		return errors.NewStd("at least one recipient is required")
	}
	if c.SMTPPort == 0 {
		c.SMTPPort = 587
	}
	if c.SubjectTemplate == "" {
		c.SubjectTemplate = DefaultEmailSubject
	}
	if c.Encryption == "" {
		c.Encryption = defaultEmailEncryption
	}
	return nil
}
