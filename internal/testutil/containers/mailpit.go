//go:build integration

package containers

import (
	"context"
	"encoding/json"
	"fmt"
	"net"
	"net/http"
	"strconv"
	"time"

	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/wait"
)

// MailpitContainer is an SMTP sink with an HTTP API for reading captured mail.
type MailpitContainer struct {
	container testcontainers.Container
	host      string
	smtpPort  int
	apiURL    string
}

// MailpitAddress is a sender or recipient in a captured message.
type MailpitAddress struct {
	Name    string `json:"Name"`
	Address string `json:"Address"`
}

// MailpitMessage is the summary returned by the messages endpoint.
type MailpitMessage struct {
	ID      string           `json:"ID"`
	From    MailpitAddress   `json:"From"`
	To      []MailpitAddress `json:"To"`
	Subject string           `json:"Subject"`
	Snippet string           `json:"Snippet"`
}

// NewMailpitContainer starts Mailpit with authentication disabled.
func NewMailpitContainer(ctx context.Context) (*MailpitContainer, error) {
	container, err := testcontainers.GenericContainer(ctx, testcontainers.GenericContainerRequest{
		ContainerRequest: testcontainers.ContainerRequest{
			Image:        "axllent/mailpit:latest",
			ExposedPorts: []string{"1025/tcp", "8025/tcp"},
			Env: map[string]string{
				"MP_SMTP_AUTH_ACCEPT_ANY":     "1",
				"MP_SMTP_AUTH_ALLOW_INSECURE": "1",
			},
			WaitingFor: wait.ForHTTP("/readyz").WithPort("8025/tcp").WithStartupTimeout(30 * time.Second),
		},
		Started: true,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to start Mailpit container: %w", err)
	}

	host, err := container.Host(ctx)
	if err != nil {
		_ = container.Terminate(context.Background())
		return nil, fmt.Errorf("failed to get container host: %w", err)
	}
	smtpPort, err := container.MappedPort(ctx, "1025")
	if err != nil {
		_ = container.Terminate(context.Background())
		return nil, fmt.Errorf("failed to get SMTP port: %w", err)
	}
	apiPort, err := container.MappedPort(ctx, "8025")
	if err != nil {
		_ = container.Terminate(context.Background())
		return nil, fmt.Errorf("failed to get API port: %w", err)
	}

	apiURL := "http://" + net.JoinHostPort(host, strconv.Itoa(apiPort.Int()))
	if err := WaitForHTTP(ctx, apiURL+"/readyz", 10*time.Second); err != nil {
		_ = container.Terminate(context.Background())
		return nil, err
	}

	return &MailpitContainer{
		container: container,
		host:      host,
		smtpPort:  smtpPort.Int(),
		apiURL:    apiURL,
	}, nil
}

// SMTPHost returns the host clients should dial.
func (c *MailpitContainer) SMTPHost() string { return c.host }

// SMTPPort returns the mapped SMTP port.
func (c *MailpitContainer) SMTPPort() int { return c.smtpPort }

// Messages returns every captured message, newest first.
func (c *MailpitContainer) Messages(ctx context.Context) ([]MailpitMessage, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.apiURL+"/api/v1/messages", http.NoBody)
	if err != nil {
		return nil, err
	}
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("failed to list messages: %w", err)
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("unexpected status listing messages: %d", resp.StatusCode)
	}

	var body struct {
		Messages []MailpitMessage `json:"messages"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		return nil, fmt.Errorf("failed to decode messages: %w", err)
	}
	return body.Messages, nil
}

// Terminate removes the container.
func (c *MailpitContainer) Terminate(ctx context.Context) error {
	if err := c.container.Terminate(ctx); err != nil {
		return fmt.Errorf("failed to terminate Mailpit container: %w", err)
	}
	return nil
}
