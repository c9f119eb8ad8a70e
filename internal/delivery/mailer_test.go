package delivery

import (
	"context"
	"errors"
	"net/url"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/tphakala/alertflow/internal/datastore/v2/entities"
)

type recordingSink struct {
	mu       sync.Mutex
	statuses map[string]string
}

func newRecordingSink() *recordingSink {
	return &recordingSink{statuses: make(map[string]string)}
}

func (s *recordingSink) SetProviderStatus(_ context.Context, alertID, providerID, status string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.statuses[alertID+"/"+providerID] = status
	return nil
}

func (s *recordingSink) get(key string) string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.statuses[key]
}

func emailConfig() EmailConfig {
	return EmailConfig{
		SMTPHost:        "smtp.example.com",
		SMTPPort:        587,
		From:            "alerts@example.com",
		Recipients:      []string{"ops@example.com", "sec@example.com"},
		SubjectTemplate: DefaultEmailSubject,
		Encryption:      "auto",
	}
}

func TestMailer_ProcessesJobsAndPatchesStatus(t *testing.T) {
	sink := newRecordingSink()
	var mu sync.Mutex
	var subjects []string
	send := func(_ context.Context, cfg *EmailConfig, subject, _ string) error {
		mu.Lock()
		defer mu.Unlock()
		subjects = append(subjects, subject)
		if cfg.SMTPHost == "broken.example.com" {
			return errors.New("dial tcp: connection refused")
		}
		return nil
	}

	m := NewMailer(sink, 10, testLogger(), WithMailWorkers(2), WithSendFunc(send))
	m.Start()

	okCfg := emailConfig()
	badCfg := emailConfig()
	badCfg.SMTPHost = "broken.example.com"
	require.True(t, m.Enqueue(MailJob{AlertID: "a1", ProviderID: "mail-1", Config: okCfg, Subject: "one", Timeout: time.Second}))
	require.True(t, m.Enqueue(MailJob{AlertID: "a1", ProviderID: "mail-2", Config: badCfg, Subject: "two", Timeout: time.Second}))

	require.NoError(t, m.Stop(t.Context()))

	assert.Equal(t, entities.DeliverySent, sink.get("a1/mail-1"))
	assert.Equal(t, entities.DeliveryFailed, sink.get("a1/mail-2"))
	assert.ElementsMatch(t, []string{"one", "two"}, subjects)
	assert.False(t, m.Enqueue(MailJob{AlertID: "a2"}), "stopped mailer rejects jobs")
}

func TestMailer_FullQueueRejects(t *testing.T) {
	release := make(chan struct{})
	send := func(ctx context.Context, _ *EmailConfig, _, _ string) error {
		select {
		case <-release:
		case <-ctx.Done():
		}
		return nil
	}

	m := NewMailer(nil, 1, testLogger(), WithMailWorkers(1), WithSendFunc(send))
	// Workers are not started, so the single slot stays occupied.
	require.True(t, m.Enqueue(MailJob{AlertID: "a1", Timeout: time.Second}))
	assert.False(t, m.Enqueue(MailJob{AlertID: "a2", Timeout: time.Second}))

	m.Start()
	close(release)
	require.NoError(t, m.Stop(t.Context()))
}

func TestMailer_RecoversFromPanickingTransport(t *testing.T) {
	sink := newRecordingSink()
	send := func(context.Context, *EmailConfig, string, string) error {
		panic("transport exploded")
	}
	m := NewMailer(sink, 1, testLogger(), WithSendFunc(send))
	m.Start()
	require.True(t, m.Enqueue(MailJob{AlertID: "a1", ProviderID: "mail-1", Timeout: time.Second}))
	require.NoError(t, m.Stop(t.Context()))

	assert.Equal(t, entities.DeliveryFailed, sink.get("a1/mail-1"))
}

func TestDeliver_EmailIsQueued(t *testing.T) {
	sink := newRecordingSink()
	var gotSubject, gotBody string
	send := func(_ context.Context, _ *EmailConfig, subject, body string) error {
		gotSubject, gotBody = subject, body
		return nil
	}
	m := NewMailer(sink, 4, testLogger(), WithSendFunc(send))
	m.Start()

	p := entities.Provider{ID: "mail-1", TenantID: "tenant-a", Kind: entities.ProviderEmail, Enabled: true,
		Config: map[string]any{
			"smtp_host":  "smtp.example.com",
			"from":       "alerts@example.com",
			"recipients": "ops@example.com,sec@example.com",
		}}
	o := NewOrchestrator(&fakeProviders{providers: []entities.Provider{p}}, testLogger(), WithMailer(m))

	results := o.Deliver(t.Context(), &entities.Policy{ID: "p", ProviderIDs: []string{"mail-1"}}, testAlert())
	require.Len(t, results, 1)
	assert.Equal(t, entities.DeliveryQueued, results[0].Status)
	assert.True(t, results[0].Success)

	require.NoError(t, m.Stop(t.Context()))
	assert.Equal(t, entities.DeliverySent, sink.get("alert-1/mail-1"))
	assert.Equal(t, "[HIGH] alice failed to log in", gotSubject)
	assert.Contains(t, gotBody, "Failed login for alice from 10.0.0.1")
	assert.Contains(t, gotBody, "Alert ID:  alert-1")
}

func TestRenderEmailBody_StripsMarkup(t *testing.T) {
	p := NewPayload(testAlert())
	p.Message = "<p>Disk <b>full</b> on db-1</p>"
	body := RenderEmailBody(&p)
	assert.Contains(t, body, "Disk full on db-1")
	assert.NotContains(t, body, "<b>")
}

func TestRenderSubject(t *testing.T) {
	p := NewPayload(testAlert())
	assert.Equal(t, "HIGH: Failed login for alice", RenderSubject("{severity}: {title}", &p))
	assert.Equal(t, "{unknown} alice failed to log in", RenderSubject("{unknown} {summary}", &p))
}

func TestSMTPURL(t *testing.T) {
	cfg := emailConfig()
	cfg.Username = "mailer"
	cfg.Password = "p@ss word"
	cfg.Encryption = "none"

	raw := SMTPURL(&cfg, "[HIGH] subject")
	u, err := url.Parse(raw)
	require.NoError(t, err)

	assert.Equal(t, "smtp", u.Scheme)
	assert.Equal(t, "smtp.example.com:587", u.Host)
	assert.Equal(t, "mailer", u.User.Username())
	pw, _ := u.User.Password()
	assert.Equal(t, "p@ss word", pw)

	q := u.Query()
	assert.Equal(t, "alerts@example.com", q.Get("from"))
	assert.Equal(t, "ops@example.com,sec@example.com", q.Get("to"))
	assert.Equal(t, "[HIGH] subject", q.Get("subject"))
	assert.Equal(t, "None", q.Get("encryption"))
	assert.Empty(t, q.Get("auth"), "credentials present, default auth")
}
