package delivery

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
)

// sendWebhook posts the normalised payload, retrying non-2xx responses and
// transport errors with a doubling delay. Result.Attempts counts every
// request made.
func (o *Orchestrator) sendWebhook(ctx context.Context, cfg *WebhookConfig, p *Payload) Result {
	body, err := json.Marshal(p)
	if err != nil {
		return failed(fmt.Sprintf("encode webhook payload: %v", err))
	}

	maxAttempts := cfg.Retries() + 1
	delay := cfg.RetryBaseDelay.Std()
	var lastErr string
	for attempt := 1; attempt <= maxAttempts; attempt++ {
		status, err := o.postWebhook(ctx, cfg, body)
		if err == nil && status >= 200 && status < 300 {
			r := sent(fmt.Sprintf("HTTP %d", status))
			r.Attempts = attempt
			return r
		}
		if err != nil {
			lastErr = err.Error()
		} else {
			lastErr = fmt.Sprintf("HTTP %d", status)
		}

		if attempt == maxAttempts {
			break
		}
		if err := o.sleep(ctx, delay); err != nil {
			r := failed(fmt.Sprintf("retry aborted after %d attempts: %v", attempt, err))
			r.Attempts = attempt
			return r
		}
		delay *= 2
	}

	r := failed(fmt.Sprintf("webhook failed after %d attempts: %s", maxAttempts, lastErr))
	r.Attempts = maxAttempts
	return r
}

func (o *Orchestrator) postWebhook(ctx context.Context, cfg *WebhookConfig, body []byte) (int, error) {
	ctx, cancel := context.WithTimeout(ctx, o.timeout(cfg.Timeout.Std()))
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, cfg.Method, cfg.URL, bytes.NewReader(body))
	if err != nil {
		return 0, err
	}
	req.Header.Set("Content-Type", "application/json")
	for k, v := range cfg.Headers {
		req.Header.Set(k, v)
	}

	resp, err := o.client.Do(req)
	if err != nil {
		return 0, err
	}
	_, _ = io.Copy(io.Discard, io.LimitReader(resp.Body, 4096))
	_ = resp.Body.Close()
	return resp.StatusCode, nil
}
