// Package notify sends run notifications to a Slack incoming webhook.
package notify

import (
	"bytes"
	"encoding/json"
	"fmt"
	"net/http"
	"sort"
	"strconv"
	"strings"
	"time"
	"unicode/utf8"
)

const maxErrorLen = 500

// SlackConfig configures the Slack webhook. The webhook URL is usually
// supplied as ${SLACK_WEBHOOK_URL} in the config file.
type SlackConfig struct {
	Enabled    bool   `yaml:"enabled"`
	WebhookURL string `yaml:"webhook_url"`
	Channel    string `yaml:"channel"`
	Username   string `yaml:"username"`
}

// SlackMessage is the webhook payload.
type SlackMessage struct {
	Channel     string       `json:"channel,omitempty"`
	Username    string       `json:"username,omitempty"`
	IconEmoji   string       `json:"icon_emoji,omitempty"`
	Text        string       `json:"text,omitempty"`
	Attachments []Attachment `json:"attachments,omitempty"`
}

// Attachment is a colored block of fields.
type Attachment struct {
	Color  string  `json:"color,omitempty"`
	Title  string  `json:"title,omitempty"`
	Fields []Field `json:"fields,omitempty"`
	Footer string  `json:"footer,omitempty"`
	Ts     int64   `json:"ts,omitempty"`
}

// Field is one title/value pair.
type Field struct {
	Title string `json:"title"`
	Value string `json:"value"`
	Short bool   `json:"short"`
}

// Notifier posts run events. A disabled Notifier accepts every call and
// does nothing.
type Notifier struct {
	config *SlackConfig
	client *http.Client
}

// New creates a notifier. A nil config yields a disabled notifier.
func New(cfg *SlackConfig) *Notifier {
	return &Notifier{
		config: cfg,
		client: &http.Client{Timeout: 10 * time.Second},
	}
}

// IsEnabled reports whether notifications are sent.
func (n *Notifier) IsEnabled() bool {
	return n.config != nil && n.config.Enabled && n.config.WebhookURL != ""
}

// RunStarted announces a new run.
func (n *Notifier) RunStarted(runID, dataDir string) error {
	if !n.IsEnabled() {
		return nil
	}
	return n.send(SlackMessage{
		IconEmoji: ":inbox_tray:",
		Attachments: []Attachment{{
			Color: "#439fe0",
			Title: "Staging Run Started",
			Fields: []Field{
				{Title: "Run ID", Value: runID, Short: true},
				{Title: "Data Directory", Value: dataDir, Short: true},
			},
			Footer: "stageload",
			Ts:     time.Now().Unix(),
		}},
	})
}

// RunCompleted reports a successful run with its row counts.
func (n *Notifier) RunCompleted(runID string, startTime time.Time, duration time.Duration, csvRows, jsonRows int64, loaded map[string]int64) error {
	if !n.IsEnabled() {
		return nil
	}
	fields := []Field{
		{Title: "Run ID", Value: runID, Short: true},
		{Title: "Duration", Value: formatDuration(duration), Short: true},
		{Title: "CSV Rows", Value: formatNumberWithCommas(csvRows), Short: true},
		{Title: "JSON Rows", Value: formatNumberWithCommas(jsonRows), Short: true},
	}
	if len(loaded) > 0 {
		names := make([]string, 0, len(loaded))
		for name := range loaded {
			names = append(names, name)
		}
		sort.Strings(names)
		for _, name := range names {
			fields = append(fields, Field{Title: "Loaded " + name, Value: formatNumberWithCommas(loaded[name]), Short: true})
		}
	}
	return n.send(SlackMessage{
		IconEmoji: ":white_check_mark:",
		Attachments: []Attachment{{
			Color:  "#36a64f",
			Title:  "Staging Run Completed",
			Fields: fields,
			Footer: "stageload",
			Ts:     startTime.Unix(),
		}},
	})
}

// RunFailed reports a failed run.
func (n *Notifier) RunFailed(runID string, err error, duration time.Duration) error {
	if !n.IsEnabled() {
		return nil
	}
	msg := "Unknown error"
	if err != nil {
		msg = err.Error()
	}
	msg = truncate(msg, maxErrorLen)
	return n.send(SlackMessage{
		IconEmoji: ":x:",
		Attachments: []Attachment{{
			Color: "#dc3545",
			Title: "Staging Run Failed",
			Fields: []Field{
				{Title: "Run ID", Value: runID, Short: true},
				{Title: "Duration", Value: formatDuration(duration), Short: true},
				{Title: "Error", Value: msg, Short: false},
			},
			Footer: "stageload",
			Ts:     time.Now().Unix(),
		}},
	})
}

func (n *Notifier) send(msg SlackMessage) error {
	msg.Channel = n.config.Channel
	msg.Username = n.getUsername()

	payload, err := json.Marshal(msg)
	if err != nil {
		return fmt.Errorf("marshaling slack message: %w", err)
	}

	resp, err := n.client.Post(n.config.WebhookURL, "application/json", bytes.NewReader(payload))
	if err != nil {
		return fmt.Errorf("sending slack notification: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("slack returned status %d", resp.StatusCode)
	}
	return nil
}

// truncate cuts s to at most limit bytes on a rune boundary and marks the cut.
func truncate(s string, limit int) string {
	if len(s) <= limit {
		return s
	}
	cut := limit
	for cut > 0 && !utf8.RuneStart(s[cut]) {
		cut--
	}
	return s[:cut] + "..."
}

func (n *Notifier) getUsername() string {
	if n.config != nil && n.config.Username != "" {
		return n.config.Username
	}
	return "stageload"
}

func formatNumberWithCommas(n int64) string {
	s := strconv.FormatInt(n, 10)
	neg := strings.HasPrefix(s, "-")
	if neg {
		s = s[1:]
	}
	var b strings.Builder
	for i, r := range s {
		if i > 0 && (len(s)-i)%3 == 0 {
			b.WriteByte(',')
		}
		b.WriteRune(r)
	}
	if neg {
		return "-" + b.String()
	}
	return b.String()
}

func formatDuration(d time.Duration) string {
	d = d.Round(time.Second)
	h := int(d / time.Hour)
	m := int(d % time.Hour / time.Minute)
	s := int(d % time.Minute / time.Second)
	switch {
	case h > 0:
		return fmt.Sprintf("%dh %dm %ds", h, m, s)
	case m > 0:
		return fmt.Sprintf("%dm %ds", m, s)
	default:
		return fmt.Sprintf("%ds", s)
	}
}
