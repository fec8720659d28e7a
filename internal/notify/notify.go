/*
Package notify delivers new findings to a Slack webhook, with an optional
e-mail copy. Delivery is best-effort: failures are logged and never abort the
poll loop. The sent-set guarantees a finding is delivered at most once across
restarts.
*/
package notify

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"golang.org/x/time/rate"

	"growthwatch/internal/refdata"
	"growthwatch/internal/state"
	"growthwatch/internal/types"
)

const userAgent = "growthwatch/0.1.0"

// emailer is the e-mail channel seam; *EmailSender is the production
// implementation.
type emailer interface {
	Send(item types.Item, body string) bool
}

// Dispatcher formats findings and posts them to the configured channels.
type Dispatcher struct {
	webhookURL string
	client     *http.Client
	sent       *state.Set
	limiter    *rate.Limiter
	email      emailer
}

// NewDispatcher builds a dispatcher. webhookURL may be empty, in which case
// Slack delivery is disabled (logged once per send attempt). email may be
// nil to disable the e-mail copy.
func NewDispatcher(webhookURL string, sent *state.Set, email *EmailSender) *Dispatcher {
	d := &Dispatcher{
		webhookURL: webhookURL,
		client:     &http.Client{Timeout: 15 * time.Second},
		sent:       sent,
		// One message every two seconds keeps the webhook under rate limits.
		limiter: rate.NewLimiter(rate.Every(2*time.Second), 1),
	}
	if email != nil {
		d.email = email
	}
	return d
}

// sentKey is the composite dedup identity of a notification.
func sentKey(item types.Item) string {
	return item.URL + "_" + item.Title
}

// Dispatch formats and delivers one finding unless it was already sent. The
// webhook and e-mail channels are independent: the finding is recorded as
// sent once at least one of them delivered, and the sent-set is persisted
// immediately. All failures are logged, never raised.
func (d *Dispatcher) Dispatch(ctx context.Context, item types.Item, records []types.ExtractedRecord, companies []refdata.Record) {
	key := sentKey(item)
	if d.sent.Contains(key) {
		slog.Debug("notification already sent, skipping", slog.String("video", item.URL))
		return
	}

	text := FormatMessage(item, records, companies)

	delivered := d.send(ctx, text)
	if d.email != nil && d.email.Send(item, text) {
		delivered = true
	}
	if !delivered {
		return
	}

	d.sent.Add(key)
	if err := d.sent.Save(); err != nil {
		slog.Error("failed to persist sent-set", slog.String("video", item.URL), slog.Any("error", err))
	}
}

// send posts the text to the webhook, reporting whether delivery happened.
func (d *Dispatcher) send(ctx context.Context, text string) bool {
	if d.webhookURL == "" {
		slog.Warn("slack webhook not configured, dropping notification")
		return false
	}

	if err := d.limiter.Wait(ctx); err != nil {
		return false
	}

	payload, err := json.Marshal(map[string]string{"text": text})
	if err != nil {
		slog.Error("failed to marshal slack payload", slog.Any("error", err))
		return false
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, d.webhookURL, bytes.NewReader(payload))
	if err != nil {
		slog.Error("failed to build slack request", slog.Any("error", err))
		return false
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("User-Agent", userAgent)

	resp, err := d.client.Do(req)
	if err != nil {
		slog.Error("slack send failed", slog.Any("error", err))
		return false
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 300 {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 2048))
		slog.Error("slack returned error status",
			slog.Int("status", resp.StatusCode),
			slog.String("body", strings.TrimSpace(string(body))))
		return false
	}
	_, _ = io.Copy(io.Discard, resp.Body)
	return true
}

// FormatMessage renders one finding as Slack-flavored text: the video, the
// resolved companies, and each company's speaker, outlook note, and growth
// mentions.
func FormatMessage(item types.Item, records []types.ExtractedRecord, companies []refdata.Record) string {
	var lines []string
	lines = append(lines, fmt.Sprintf("*<%s|%s>*", item.URL, item.Title))
	if item.ChannelID != "" {
		lines = append(lines, fmt.Sprintf("Channel: `%s`", item.ChannelID))
	}

	if len(companies) > 0 {
		names := make([]string, 0, len(companies))
		for _, c := range companies {
			names = append(names, c.CompanyName)
		}
		lines = append(lines, fmt.Sprintf("🏢 Companies: %s", strings.Join(names, ", ")))
	}

	for _, rec := range records {
		lines = append(lines, "")
		headline := fmt.Sprintf("*%s*", rec.CompanyName)
		if rec.Speaker != "" {
			headline += fmt.Sprintf(" — %s", rec.Speaker)
		}
		lines = append(lines, headline)
		if rec.Note != "" {
			lines = append(lines, fmt.Sprintf("> %s", rec.Note))
		}
		for _, m := range rec.GrowthMentions {
			bullet := fmt.Sprintf("• %s %+g%%", m.Metric, m.GrowthValue)
			if m.Type != "" {
				bullet += " " + m.Type
			}
			if m.Context != "" {
				bullet += fmt.Sprintf(" — %s", strings.Join(strings.Fields(m.Context), " "))
			}
			lines = append(lines, bullet)
		}
	}

	return strings.Join(lines, "\n")
}
