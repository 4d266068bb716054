// Package slack posts Sage answers to an incoming webhook.
package slack

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"strings"

	"sageagent"
)

// maxAnswerChars keeps posts well under the webhook message limit.
const maxAnswerChars = 3000

type Client struct {
	webhookURL string
	httpClient sageagent.HTTPClient
}

// NewClient returns a webhook client. A nil httpClient uses http.DefaultClient.
func NewClient(webhookURL string, httpClient sageagent.HTTPClient) *Client {
	if httpClient == nil {
		httpClient = http.DefaultClient
	}
	return &Client{
		webhookURL: webhookURL,
		httpClient: httpClient,
	}
}

func (c *Client) PostMessage(ctx context.Context, channel string, message string) error {
	payload, err := json.Marshal(map[string]any{
		"channel": channel,
		"text":    message,
	})
	if err != nil {
		return fmt.Errorf("failed to marshal slack payload: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.webhookURL, bytes.NewReader(payload))
	if err != nil {
		return fmt.Errorf("failed to create slack request: %w", err)
	}

	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("failed to post message: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("failed to post message: %s", resp.Status)
	}

	return nil
}

// Notifier shares answered questions with a channel.
type Notifier struct {
	client  sageagent.SlackClient
	channel string
}

func NewNotifier(client sageagent.SlackClient, channel string) *Notifier {
	return &Notifier{client: client, channel: channel}
}

// Notify posts the question and its answer. Failures are logged, not returned,
// so a broken webhook never hides an answer from the user.
func (n *Notifier) Notify(ctx context.Context, question, answer string) {
	if err := n.client.PostMessage(ctx, n.channel, FormatAnswer(question, answer)); err != nil {
		slog.Warn("SLACK: Failed to share answer", "channel", n.channel, "error", err)
		return
	}
	slog.Info("SLACK: Shared answer", "channel", n.channel)
}

// FormatAnswer renders a question and answer as a Slack mrkdwn message.
func FormatAnswer(question, answer string) string {
	answer = strings.TrimSpace(answer)
	if len(answer) > maxAnswerChars {
		answer = answer[:maxAnswerChars] + "…"
	}
	return fmt.Sprintf("*Sage was asked:* %s\n\n%s", strings.TrimSpace(question), answer)
}
