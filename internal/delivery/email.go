package delivery

import (
	"fmt"
	"strings"
	"time"

	"github.com/k3a/html2text"
	"github.com/tphakala/alertflow/internal/datastore/v2/entities"
)

// RenderSubject fills {severity}, {summary} and {title} in an email subject
// template.
func RenderSubject(tmpl string, p *Payload) string {
	return strings.NewReplacer(
		"{severity}", strings.ToUpper(p.Severity),
		"{summary}", p.Summary,
		"{title}", p.Title,
	).Replace(tmpl)
}

// RenderEmailBody produces the plain-text body. Markup in the message is
// converted to text.
func RenderEmailBody(p *Payload) string {
	var b strings.Builder
	b.WriteString(p.Title)
	b.WriteString("\n\n")
	if p.Message != "" && p.Message != p.Title {
		b.WriteString(strings.TrimSpace(html2text.HTML2Text(p.Message)))
		b.WriteString("\n\n")
	}
	fmt.Fprintf(&b, "Severity:  %s\n", strings.ToUpper(p.Severity))
	fmt.Fprintf(&b, "Summary:   %s\n", p.Summary)
	fmt.Fprintf(&b, "Policy:    %s\n", p.PolicyID)
	fmt.Fprintf(&b, "Alert ID:  %s\n", p.AlertID)
	fmt.Fprintf(&b, "Triggered: %s\n", p.TriggeredAt.Format(time.RFC3339))
	return b.String()
}

// enqueueEmail hands the message to the mail worker pool. The SMTP send
// happens off the evaluation path; the pool patches the final status.
func (o *Orchestrator) enqueueEmail(providerID string, cfg *EmailConfig, p *Payload) Result {
	if o.mailer == nil {
		return failed("email transport not configured")
	}
	job := MailJob{
		AlertID:    p.AlertID,
		ProviderID: providerID,
		Config:     *cfg,
		Subject:    RenderSubject(cfg.SubjectTemplate, p),
		Body:       RenderEmailBody(p),
		Timeout:    o.timeout(cfg.Timeout.Std()),
	}
	if !o.mailer.Enqueue(job) {
		return failed("mail queue full")
	}
	return Result{Success: true, Status: entities.DeliveryQueued, Message: "queued for SMTP delivery"}
}
