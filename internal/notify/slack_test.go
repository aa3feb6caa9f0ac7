package notify

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"
	"unicode/utf8"
)

// captureServer records the last webhook payload.
func captureServer(t *testing.T, msg *SlackMessage) *httptest.Server {
	t.Helper()
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		body, _ := io.ReadAll(r.Body)
		json.Unmarshal(body, msg)
		w.WriteHeader(http.StatusOK)
	}))
	t.Cleanup(server.Close)
	return server
}

func TestIsEnabled(t *testing.T) {
	tests := []struct {
		name     string
		config   *SlackConfig
		expected bool
	}{
		{"nil config", nil, false},
		{"disabled explicitly", &SlackConfig{Enabled: false, WebhookURL: "https://test"}, false},
		{"enabled but no webhook", &SlackConfig{Enabled: true, WebhookURL: ""}, false},
		{"enabled with webhook", &SlackConfig{Enabled: true, WebhookURL: "https://hooks.slack.com/test"}, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			n := New(tt.config)
			if got := n.IsEnabled(); got != tt.expected {
				t.Errorf("IsEnabled() = %v, want %v", got, tt.expected)
			}
		})
	}
}

func TestDisabledNotifierIsSilent(t *testing.T) {
	n := New(nil)
	if err := n.RunStarted("run-1", "data"); err != nil {
		t.Errorf("RunStarted: %v", err)
	}
	if err := n.RunCompleted("run-1", time.Now(), time.Minute, 1, 2, nil); err != nil {
		t.Errorf("RunCompleted: %v", err)
	}
	if err := n.RunFailed("run-1", errors.New("x"), time.Minute); err != nil {
		t.Errorf("RunFailed: %v", err)
	}
}

func TestRunStarted(t *testing.T) {
	var received SlackMessage
	server := captureServer(t, &received)

	n := New(&SlackConfig{Enabled: true, WebhookURL: server.URL, Channel: "#staging", Username: "stage-bot"})
	if err := n.RunStarted("run-123", "data"); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if received.Channel != "#staging" {
		t.Errorf("channel = %q, want %q", received.Channel, "#staging")
	}
	if received.Username != "stage-bot" {
		t.Errorf("username = %q, want %q", received.Username, "stage-bot")
	}
	if len(received.Attachments) != 1 || received.Attachments[0].Title != "Staging Run Started" {
		t.Errorf("unexpected attachments %+v", received.Attachments)
	}
}

func TestRunCompleted(t *testing.T) {
	var received SlackMessage
	server := captureServer(t, &received)

	n := New(&SlackConfig{Enabled: true, WebhookURL: server.URL})
	start := time.Date(2026, 1, 12, 10, 0, 0, 0, time.UTC)
	err := n.RunCompleted("run-456", start, 5*time.Minute, 1234, 56, map[string]int64{"json_df": 56, "csv_df": 1234})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if received.IconEmoji != ":white_check_mark:" {
		t.Errorf("icon = %q", received.IconEmoji)
	}
	a := received.Attachments[0]
	if a.Color != "#36a64f" {
		t.Errorf("color = %q, want green", a.Color)
	}
	if a.Ts != start.Unix() {
		t.Errorf("ts = %d, want %d", a.Ts, start.Unix())
	}
	var titles []string
	for _, f := range a.Fields {
		titles = append(titles, f.Title+"="+f.Value)
	}
	got := strings.Join(titles, ";")
	want := "Run ID=run-456;Duration=5m 0s;CSV Rows=1,234;JSON Rows=56;Loaded csv_df=1,234;Loaded json_df=56"
	if got != want {
		t.Errorf("fields = %q, want %q", got, want)
	}
}

func TestRunFailed(t *testing.T) {
	t.Run("nil error handled", func(t *testing.T) {
		var received SlackMessage
		server := captureServer(t, &received)

		n := New(&SlackConfig{Enabled: true, WebhookURL: server.URL})
		if err := n.RunFailed("run-123", nil, time.Minute); err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if v := errorField(received); v != "Unknown error" {
			t.Errorf("error field = %q, want Unknown error", v)
		}
	})

	t.Run("long error truncated", func(t *testing.T) {
		var received SlackMessage
		server := captureServer(t, &received)

		n := New(&SlackConfig{Enabled: true, WebhookURL: server.URL})
		if err := n.RunFailed("run-123", errors.New(strings.Repeat("a", 600)), time.Minute); err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		v := errorField(received)
		if len(v) != maxErrorLen+3 || !strings.HasSuffix(v, "...") {
			t.Errorf("error not truncated: len=%d", len(v))
		}
	})

	t.Run("sends correct payload", func(t *testing.T) {
		var received SlackMessage
		server := captureServer(t, &received)

		n := New(&SlackConfig{Enabled: true, WebhookURL: server.URL})
		if err := n.RunFailed("run-789", errors.New("connection timeout"), 2*time.Minute); err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if received.IconEmoji != ":x:" || received.Attachments[0].Color != "#dc3545" {
			t.Errorf("unexpected styling %+v", received)
		}
		if received.Attachments[0].Title != "Staging Run Failed" {
			t.Errorf("title = %q", received.Attachments[0].Title)
		}
	})
}

func TestTruncateKeepsRunesWhole(t *testing.T) {
	s := strings.Repeat("a", maxErrorLen-1) + "é and more"
	got := truncate(s, maxErrorLen)
	if !utf8.ValidString(got) {
		t.Fatalf("truncate produced invalid UTF-8: %q", got[len(got)-6:])
	}
	if want := strings.Repeat("a", maxErrorLen-1) + "..."; got != want {
		t.Errorf("truncate() tail = %q, want %q", got[len(got)-6:], want[len(want)-6:])
	}
	if got := truncate("short", maxErrorLen); got != "short" {
		t.Errorf("truncate(short) = %q", got)
	}
}

func errorField(msg SlackMessage) string {
	for _, f := range msg.Attachments[0].Fields {
		if f.Title == "Error" {
			return f.Value
		}
	}
	return ""
}

func TestSend(t *testing.T) {
	t.Run("HTTP error", func(t *testing.T) {
		server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(http.StatusInternalServerError)
		}))
		defer server.Close()

		n := New(&SlackConfig{Enabled: true, WebhookURL: server.URL})
		if err := n.RunStarted("run-123", "data"); err == nil {
			t.Error("expected error for non-200 response")
		}
	})

	t.Run("connection error", func(t *testing.T) {
		n := New(&SlackConfig{Enabled: true, WebhookURL: "http://localhost:99999"})
		if err := n.RunStarted("run-123", "data"); err == nil {
			t.Error("expected error for connection failure")
		}
	})
}

func TestGetUsername(t *testing.T) {
	if got := New(&SlackConfig{Username: "custom-bot"}).getUsername(); got != "custom-bot" {
		t.Errorf("getUsername() = %q, want custom-bot", got)
	}
	if got := New(&SlackConfig{}).getUsername(); got != "stageload" {
		t.Errorf("getUsername() = %q, want stageload", got)
	}
}

func TestFormatNumberWithCommas(t *testing.T) {
	tests := []struct {
		input    int64
		expected string
	}{
		{0, "0"},
		{12, "12"},
		{123, "123"},
		{1234, "1,234"},
		{123456, "123,456"},
		{1234567, "1,234,567"},
		{1000000000, "1,000,000,000"},
		{-1234, "-1,234"},
		{-1234567, "-1,234,567"},
	}

	for _, tt := range tests {
		t.Run(tt.expected, func(t *testing.T) {
			if got := formatNumberWithCommas(tt.input); got != tt.expected {
				t.Errorf("formatNumberWithCommas(%d) = %q, want %q", tt.input, got, tt.expected)
			}
		})
	}
}

func TestFormatDuration(t *testing.T) {
	tests := []struct {
		input    time.Duration
		expected string
	}{
		{0, "0s"},
		{59 * time.Second, "59s"},
		{61 * time.Second, "1m 1s"},
		{60 * time.Minute, "1h 0m 0s"},
		{25*time.Hour + 5*time.Minute + 10*time.Second, "25h 5m 10s"},
		{1*time.Second + 500*time.Millisecond, "2s"},
		{1*time.Second + 499*time.Millisecond, "1s"},
	}

	for _, tt := range tests {
		t.Run(tt.expected, func(t *testing.T) {
			if got := formatDuration(tt.input); got != tt.expected {
				t.Errorf("formatDuration(%v) = %q, want %q", tt.input, got, tt.expected)
			}
		})
	}
}
