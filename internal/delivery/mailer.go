package delivery

import (
	"context"
	"fmt"
	"net"
	"net/url"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/nicholas-fedor/shoutrrr"
	"github.com/nicholas-fedor/shoutrrr/pkg/types"
	"github.com/tphakala/alertflow/internal/datastore/v2/entities"
	"github.com/tphakala/alertflow/internal/errors"
	"github.com/tphakala/alertflow/internal/logger"
	"github.com/tphakala/alertflow/internal/observability"
)

const (
	defaultMailWorkers   = 2
	defaultMailQueueSize = 100
	statusUpdateTimeout  = 5 * time.Second
)

// MailJob is one queued email.
type MailJob struct {
	AlertID    string
	ProviderID string
	Config     EmailConfig
	Subject    string
	Body       string
	Timeout    time.Duration
}

// StatusSink records the final delivery status of a queued email.
type StatusSink interface {
	SetProviderStatus(ctx context.Context, alertID, providerID, status string) error
}

// SendFunc performs the blocking SMTP send.
type SendFunc func(ctx context.Context, cfg *EmailConfig, subject, body string) error

// Mailer is a fixed pool of workers draining a bounded queue of emails, so
// slow mail servers never block event processing.
type Mailer struct {
	sink    StatusSink
	send    SendFunc
	log     logger.Logger
	metrics *observability.Metrics
	workers int

	mu     sync.RWMutex
	closed bool
	jobs   chan MailJob
	wg     sync.WaitGroup
	start  sync.Once
}

// MailerOption configures a Mailer.
type MailerOption func(*Mailer)

// WithMailWorkers sets the worker count.
func WithMailWorkers(n int) MailerOption {
	return func(m *Mailer) {
		if n > 0 {
			m.workers = n
		}
	}
}

// WithSendFunc replaces the SMTP transport.
func WithSendFunc(fn SendFunc) MailerOption {
	return func(m *Mailer) { m.send = fn }
}

// WithMailerMetrics records queue depth.
func WithMailerMetrics(metrics *observability.Metrics) MailerOption {
	return func(m *Mailer) { m.metrics = metrics }
}

// NewMailer creates a Mailer with a queue of queueSize jobs. Call Start to
// launch the workers.
func NewMailer(sink StatusSink, queueSize int, log logger.Logger, opts ...MailerOption) *Mailer {
	if queueSize <= 0 {
		queueSize = defaultMailQueueSize
	}
	m := &Mailer{
		sink:    sink,
		send:    SendSMTP,
		log:     log.Module("mailer"),
		workers: defaultMailWorkers,
		jobs:    make(chan MailJob, queueSize),
	}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

// Start launches the workers. Calling it again has no effect.
func (m *Mailer) Start() {
	m.start.Do(func() {
		for range m.workers {
			m.wg.Go(m.worker)
		}
	})
}

// Enqueue adds a job without blocking. It returns false when the queue is
// full or the mailer is stopped.
func (m *Mailer) Enqueue(job MailJob) bool {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if m.closed {
		return false
	}
	select {
	case m.jobs <- job:
		m.metrics.SetMailQueueDepth(len(m.jobs))
		return true
	default:
		return false
	}
}

// Stop closes the queue and waits for queued jobs to finish or ctx to end.
func (m *Mailer) Stop(ctx context.Context) error {
	m.mu.Lock()
	if !m.closed {
		m.closed = true
		close(m.jobs)
	}
	m.mu.Unlock()

	done := make(chan struct{})
	go func() {
		m.wg.Wait()
		close(done)
	}()
	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (m *Mailer) worker() {
	for job := range m.jobs {
		m.metrics.SetMailQueueDepth(len(m.jobs))
		m.process(job)
	}
}

func (m *Mailer) process(job MailJob) {
	start := time.Now()
	status := entities.DeliverySent

	ctx, cancel := context.WithTimeout(context.Background(), job.Timeout)
	err := m.safeSend(ctx, &job)
	cancel()
	if err != nil {
		status = entities.DeliveryFailed
		m.log.Warn("email delivery failed",
			logger.String("alert_id", job.AlertID),
			logger.String("provider_id", job.ProviderID),
			logger.Error(err))
	}
	m.metrics.Delivery(entities.ProviderEmail, status, time.Since(start))

	if m.sink == nil {
		return
	}
	updCtx, updCancel := context.WithTimeout(context.Background(), statusUpdateTimeout)
	defer updCancel()
	if err := m.sink.SetProviderStatus(updCtx, job.AlertID, job.ProviderID, status); err != nil {
		m.log.Error("failed to record email delivery status",
			logger.String("alert_id", job.AlertID),
			logger.Error(err))
	}
}

func (m *Mailer) safeSend(ctx context.Context, job *MailJob) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("mail transport panicked: %v", r)
		}
	}()
	return m.send(ctx, &job.Config, job.Subject, job.Body)
}

// SMTPURL builds the shoutrrr service URL for cfg.
func SMTPURL(cfg *EmailConfig, subject string) string {
	u := url.URL{
		Scheme: "smtp",
		Host:   net.JoinHostPort(cfg.SMTPHost, strconv.Itoa(cfg.SMTPPort)),
		Path:   "/",
	}
	if cfg.Username != "" {
		u.User = url.UserPassword(cfg.Username, cfg.Password)
	}
	q := url.Values{}
	q.Set("from", cfg.From)
	q.Set("to", strings.Join(cfg.Recipients, ","))
	q.Set("subject", subject)
	q.Set("usehtml", "no")
	if cfg.FromName != "" {
		q.Set("fromname", cfg.FromName)
	}
	if cfg.Username == "" {
		q.Set("auth", "None")
	}
	switch strings.ToLower(cfg.Encryption) {
	case "none":
		q.Set("encryption", "None")
		q.Set("usestarttls", "no")
	case "starttls", "explicit":
		q.Set("encryption", "ExplicitTLS")
	case "tls", "implicit":
		q.Set("encryption", "ImplicitTLS")
	default:
		q.Set("encryption", "Auto")
	}
	u.RawQuery = q.Encode()
	return u.String()
}

// SendSMTP delivers through shoutrrr's SMTP service. Shoutrrr has no
// context support, so the send runs in a goroutine bounded by ctx.
func SendSMTP(ctx context.Context, cfg *EmailConfig, subject, body string) error {
	sender, err := shoutrrr.CreateSender(SMTPURL(cfg, subject))
	if err != nil {
		return errors.Wrap(err).
			Component("delivery").
			Category(errors.CategoryConfiguration).
			Context("smtp_host", cfg.SMTPHost).
			Build()
	}

	done := make(chan error, 1)
	go func() {
		params := types.Params{"subject": subject}
		done <- errors.Join(sender.Send(body, &params)...)
	}()

	select {
	case err := <-done:
		if err != nil {
			return fmt.Errorf("smtp send to %s: %w", cfg.SMTPHost, err)
		}
		return nil
	case <-ctx.Done():
		return fmt.Errorf("smtp send to %s: %w", cfg.SMTPHost, ctx.Err())
	}
}
