package commands

import (
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"
)

func execute(t *testing.T, args ...string) error {
	t.Helper()
	cmd := newRootCmd()
	cmd.SetArgs(args)
	cmd.SetOut(io.Discard)
	cmd.SetErr(io.Discard)
	return cmd.Execute()
}

func TestModeFlagsValidation(t *testing.T) {
	cases := map[string][]string{
		"no mode":       {},
		"two modes":     {"--monitor", "--check-once"},
		"all modes":     {"--monitor", "--check-once", "--send-summary"},
		"extra arg":     {"--check-once", "now"},
		"unknown flag":  {"--check-twice"},
		"bad interval":  {"--check-once", "--interval=soon"},
		"missing value": {"--check-once", "--config"},
	}
	for name, args := range cases {
		t.Run(name, func(t *testing.T) {
			if err := execute(t, args...); err == nil {
				t.Fatalf("expected error for %v", args)
			}
		})
	}
}

type relay struct {
	mu       sync.Mutex
	messages []string
}

func (r *relay) handler(w http.ResponseWriter, req *http.Request) {
	var body struct {
		Params struct {
			Message string `json:"message"`
		} `json:"params"`
	}
	if err := json.NewDecoder(req.Body).Decode(&body); err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}
	r.mu.Lock()
	r.messages = append(r.messages, body.Params.Message)
	r.mu.Unlock()
	fmt.Fprint(w, `{"jsonrpc":"2.0","result":{"timestamp":1},"id":1}`)
}

func (r *relay) sent() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]string(nil), r.messages...)
}

type env struct {
	configPath  string
	historyPath string
	relay       *relay
}

func setup(t *testing.T, upstreamStatus int) *env {
	t.Helper()
	for _, key := range []string{"SIGNAL_DAEMON_URL", "SIGNAL_NUMBER", "SIGNAL_GROUP_ID", "KEYWORDS", "HISTORY_FILE", "NOTIFIER_DRIVER", "CHECK_INTERVAL"} {
		t.Setenv(key, "")
	}

	upstream := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if upstreamStatus != http.StatusOK {
			w.WriteHeader(upstreamStatus)
			return
		}
		if r.URL.Query().Get("offset") != "0" {
			fmt.Fprint(w, `{"data":[]}`)
			return
		}
		fmt.Fprint(w, `{"data":[
			{"title":"Will the Election be close?","slug":"election-close"},
			{"title":"Champions League winner","slug":"ucl-winner"}
		]}`)
	}))
	t.Cleanup(upstream.Close)

	rl := &relay{}
	daemon := httptest.NewServer(http.HandlerFunc(rl.handler))
	t.Cleanup(daemon.Close)

	dir := t.TempDir()
	history := filepath.Join(dir, "seen.txt")
	cfg := fmt.Sprintf(`
signal:
  daemon_url: %q
  number: "+10000000000"
  group_id: "group"
polymarket:
  base_url: %q
  page_size: 2
  max_pages: 2
notifier:
  chunk_interval_ms: 0
keywords: ["election"]
history_file: %q
log:
  dir: %q
  console: false
`, daemon.URL, upstream.URL, history, filepath.Join(dir, "logs"))

	path := filepath.Join(dir, "config.yaml")
	if err := os.WriteFile(path, []byte(cfg), 0644); err != nil {
		t.Fatalf("write config: %v", err)
	}
	return &env{configPath: path, historyPath: history, relay: rl}
}

func TestCheckOnceAlertsAndRecords(t *testing.T) {
	e := setup(t, http.StatusOK)

	if err := execute(t, "--check-once", "--config", e.configPath); err != nil {
		t.Fatalf("check-once: %v", err)
	}
	sent := e.relay.sent()
	if len(sent) != 1 {
		t.Fatalf("sent %d messages, want 1: %q", len(sent), sent)
	}
	want := "🚨 New Market!\n\nWill the Election be close?\n\nhttps://polymarket.com/event/election-close"
	if sent[0] != want {
		t.Errorf("alert = %q, want %q", sent[0], want)
	}
	data, err := os.ReadFile(e.historyPath)
	if err != nil {
		t.Fatalf("read history: %v", err)
	}
	if string(data) != "election-close\n" {
		t.Errorf("history = %q", data)
	}

	if err := execute(t, "--check-once", "--config", e.configPath); err != nil {
		t.Fatalf("second check-once: %v", err)
	}
	if got := len(e.relay.sent()); got != 1 {
		t.Errorf("second run sent %d messages total, want still 1", got)
	}
}

func TestCheckOnceFetchFailureExitsWithError(t *testing.T) {
	e := setup(t, http.StatusBadGateway)

	if err := execute(t, "--check-once", "--config", e.configPath); err == nil {
		t.Fatal("expected error on upstream failure")
	}
	if got := len(e.relay.sent()); got != 0 {
		t.Errorf("sent %d messages on failure", got)
	}
	if _, err := os.Stat(e.historyPath); err == nil {
		data, _ := os.ReadFile(e.historyPath)
		if len(data) != 0 {
			t.Errorf("history mutated on failure: %q", data)
		}
	}
}

func TestSendSummaryLeavesHistoryUntouched(t *testing.T) {
	e := setup(t, http.StatusOK)

	if err := execute(t, "--send-summary", "--config", e.configPath); err != nil {
		t.Fatalf("send-summary: %v", err)
	}
	sent := e.relay.sent()
	if len(sent) != 1 {
		t.Fatalf("sent %d messages, want 1", len(sent))
	}
	if !strings.HasPrefix(sent[0], "🔍 All related markets on Polymarket:\n\n1. Will the Election be close?\n") {
		t.Errorf("summary = %q", sent[0])
	}
	if strings.Contains(sent[0], "ucl-winner") {
		t.Errorf("summary contains unrelated market: %q", sent[0])
	}
	if _, err := os.Stat(e.historyPath); !os.IsNotExist(err) {
		t.Errorf("summary created history file, stat err = %v", err)
	}
}

func TestMissingRelaySettingsFails(t *testing.T) {
	for _, key := range []string{"SIGNAL_NUMBER", "SIGNAL_GROUP_ID", "NOTIFIER_DRIVER"} {
		t.Setenv(key, "")
	}
	path := filepath.Join(t.TempDir(), "config.yaml")
	if err := os.WriteFile(path, []byte("keywords: [a]\n"), 0644); err != nil {
		t.Fatal(err)
	}
	if err := execute(t, "--check-once", "--config", path); err == nil {
		t.Fatal("expected config validation error")
	}
}
