//go:build integration

package delivery

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/tphakala/alertflow/internal/datastore/v2/entities"
	"github.com/tphakala/alertflow/internal/testutil/containers"
)

func TestSendSMTP_Mailpit(t *testing.T) {
	ctx := context.Background()
	mailpit, err := containers.NewMailpitContainer(ctx)
	require.NoError(t, err, "failed to start mailpit")
	t.Cleanup(func() { _ = mailpit.Terminate(context.Background()) })

	sink := newRecordingSink()
	mailer := NewMailer(sink, 4, testLogger())
	mailer.Start()

	p := entities.Provider{ID: "mail-1", TenantID: "tenant-a", Kind: entities.ProviderEmail, Enabled: true,
		Config: map[string]any{
			"smtp_host":  mailpit.SMTPHost(),
			"smtp_port":  mailpit.SMTPPort(),
			"from":       "alerts@example.com",
			"recipients": []any{"ops@example.com"},
			"encryption": "none",
		}}
	o := NewOrchestrator(&fakeProviders{providers: []entities.Provider{p}}, testLogger(), WithMailer(mailer))

	results := o.Deliver(ctx, &entities.Policy{ID: "p", ProviderIDs: []string{"mail-1"}}, testAlert())
	require.Len(t, results, 1)
	require.Equal(t, entities.DeliveryQueued, results[0].Status)

	stopCtx, cancel := context.WithTimeout(ctx, 30*time.Second)
	defer cancel()
	require.NoError(t, mailer.Stop(stopCtx))
	assert.Equal(t, entities.DeliverySent, sink.get("alert-1/mail-1"))

	require.Eventually(t, func() bool {
		msgs, err := mailpit.Messages(ctx)
		return err == nil && len(msgs) == 1
	}, 10*time.Second, 250*time.Millisecond)

	msgs, err := mailpit.Messages(ctx)
	require.NoError(t, err)
	assert.Equal(t, "[HIGH] alice failed to log in", msgs[0].Subject)
	require.Len(t, msgs[0].To, 1)
	assert.Equal(t, "ops@example.com", msgs[0].To[0].Address)
}
