package delivery

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"

	"github.com/tphakala/alertflow/internal/datastore/v2/entities"
	"golang.org/x/text/cases"
	"golang.org/x/text/language"
)

const defaultChatColor = "#439fe0"

var severityColors = map[string]string{
	entities.SeverityCritical: "#d00000",
	entities.SeverityHigh:     "#ff6600",
	entities.SeverityMedium:   "#ffcc00",
	entities.SeverityLow:      "#2eb886",
	entities.SeverityInfo:     "#439fe0",
}

// SeverityColor returns the attachment colour for a severity.
func SeverityColor(severity string) string {
	if c, ok := severityColors[severity]; ok {
		return c
	}
	return defaultChatColor
}

type chatMessage struct {
	Channel     string           `json:"channel,omitempty"`
	Username    string           `json:"username,omitempty"`
	IconEmoji   string           `json:"icon_emoji,omitempty"`
	Text        string           `json:"text"`
	Attachments []chatAttachment `json:"attachments"`
}

type chatAttachment struct {
	Color    string      `json:"color"`
	Title    string      `json:"title"`
	Text     string      `json:"text"`
	Fields   []chatField `json:"fields"`
	Footer   string      `json:"footer"`
	Ts       int64       `json:"ts"`
	Fallback string      `json:"fallback"`
}

type chatField struct {
	Title string `json:"title"`
	Value string `json:"value"`
	Short bool   `json:"short"`
}

// sendChat posts an attachment message. Only 200 OK counts as success.
func (o *Orchestrator) sendChat(ctx context.Context, cfg *ChatConfig, p *Payload) Result {
	severity := cases.Title(language.English).String(p.Severity)
	msg := chatMessage{
		Channel:   cfg.Channel,
		Username:  cfg.Username,
		IconEmoji: cfg.IconEmoji,
		Text:      fmt.Sprintf("[%s] %s", severity, p.Title),
		Attachments: []chatAttachment{{
			Color: SeverityColor(p.Severity),
			Title: p.Title,
			Text:  p.Message,
			Fields: []chatField{
				{Title: "Severity", Value: severity, Short: true},
				{Title: "Policy", Value: p.PolicyID, Short: true},
				{Title: "Summary", Value: p.Summary},
			},
			Footer:   "alertflow · " + p.TenantID,
			Ts:       p.TriggeredAt.Unix(),
			Fallback: p.Summary,
		}},
	}
	body, err := json.Marshal(msg)
	if err != nil {
		return failed(fmt.Sprintf("encode chat message: %v", err))
	}

	ctx, cancel := context.WithTimeout(ctx, o.timeout(cfg.Timeout.Std()))
	defer cancel()
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, cfg.WebhookURL, bytes.NewReader(body))
	if err != nil {
		return failed(err.Error())
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := o.client.Do(req)
	if err != nil {
		return failed(fmt.Sprintf("chat request: %v", err))
	}
	defer func() { _ = resp.Body.Close() }()
	text, _ := io.ReadAll(io.LimitReader(resp.Body, 512))

	if resp.StatusCode != http.StatusOK {
		return failed(fmt.Sprintf("chat webhook returned %d: %s", resp.StatusCode, bytes.TrimSpace(text)))
	}
	return sent(string(bytes.TrimSpace(text)))
}
