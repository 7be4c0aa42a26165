// Package notify delivers best-effort operator notifications: approval-ready
// pings and end-of-run digests. Sink failures are logged and never propagate
// to the calling stage.
package notify

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/jomei/notionapi"
	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/sells-group/outreach-pipeline/pkg/notion"
)

// Sink delivers one message to an operator-facing channel.
type Sink interface {
	Send(ctx context.Context, message string) error
	Name() string
}

// Notifier fans a message out to every configured sink. Per-sink failures
// are logged and swallowed.
type Notifier struct {
	sinks []Sink
}

// New creates a Notifier over the given sinks.
func New(sinks ...Sink) *Notifier {
	return &Notifier{sinks: sinks}
}

// Send delivers the message to all sinks, best-effort.
func (n *Notifier) Send(ctx context.Context, message string) {
	for _, s := range n.sinks {
		if err := s.Send(ctx, message); err != nil {
			zap.L().Warn("notify: send failed",
				zap.String("sink", s.Name()),
				zap.Error(err),
			)
			continue
		}
		zap.L().Debug("notify: sent", zap.String("sink", s.Name()))
	}
}

// WebhookSink posts messages as JSON to a configured URL.
type WebhookSink struct {
	url    string
	client *http.Client
}

// NewWebhookSink creates a webhook sink.
func NewWebhookSink(url string) *WebhookSink {
	return &WebhookSink{
		url:    url,
		client: &http.Client{Timeout: 10 * time.Second},
	}
}

func (s *WebhookSink) Name() string { return "webhook" }

// Send posts {"text": message} to the webhook URL.
func (s *WebhookSink) Send(ctx context.Context, message string) error {
	payload, err := json.Marshal(map[string]string{"text": message})
	if err != nil {
		return eris.Wrap(err, "notify: marshal webhook payload")
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, s.url, bytes.NewReader(payload))
	if err != nil {
		return eris.Wrap(err, "notify: create webhook request")
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := s.client.Do(req)
	if err != nil {
		return eris.Wrap(err, "notify: webhook request")
	}
	defer resp.Body.Close() //nolint:errcheck

	if resp.StatusCode >= 400 {
		return eris.Errorf("notify: webhook returned status %d", resp.StatusCode)
	}
	return nil
}

// NotionSink appends messages as pages under a Notion database, giving
// operators a browsable inbox of approval requests and digests.
type NotionSink struct {
	client notion.Client
	dbID   string
}

// NewNotionSink creates a Notion sink writing into the given database.
func NewNotionSink(client notion.Client, dbID string) *NotionSink {
	return &NotionSink{client: client, dbID: dbID}
}

func (s *NotionSink) Name() string { return "notion" }

// Send creates one page titled with the message's first line.
func (s *NotionSink) Send(ctx context.Context, message string) error {
	title, _, _ := strings.Cut(message, "\n")

	_, err := s.client.CreatePage(ctx, &notionapi.PageCreateRequest{
		Parent: notionapi.Parent{
			Type:       notionapi.ParentTypeDatabaseID,
			DatabaseID: notionapi.DatabaseID(s.dbID),
		},
		Properties: notionapi.Properties{
			"Name": notionapi.TitleProperty{
				Title: []notionapi.RichText{
					{Text: &notionapi.Text{Content: title}},
				},
			},
		},
		Children: []notionapi.Block{
			&notionapi.ParagraphBlock{
				BasicBlock: notionapi.BasicBlock{
					Object: notionapi.ObjectTypeBlock,
					Type:   notionapi.BlockTypeParagraph,
				},
				Paragraph: notionapi.Paragraph{
					RichText: []notionapi.RichText{
						{Text: &notionapi.Text{Content: message}},
					},
				},
			},
		},
	})
	if err != nil {
		return eris.Wrap(err, "notify: create notion page")
	}
	return nil
}

// Digest summarizes one scheduler cycle for the notify queue.
type Digest struct {
	Staged   int `json:"staged"`
	Skipped  int `json:"skipped"`
	Enriched int `json:"enriched"`
	Awaiting int `json:"awaiting"`
	Synced   int `json:"synced"`
	Failed   int `json:"failed"`
}

// Render formats the digest as a short operator message.
func (d Digest) Render() string {
	return fmt.Sprintf(
		"Pipeline digest\nStaged: %d (skipped %d)\nEnriched: %d\nAwaiting approval: %d\nSynced: %d\nFailed: %d",
		d.Staged, d.Skipped, d.Enriched, d.Awaiting, d.Synced, d.Failed,
	)
}
