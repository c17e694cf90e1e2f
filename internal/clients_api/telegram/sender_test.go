package telegram

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
)

func botServer(t *testing.T, sendOK bool, gotText *string) *httptest.Server {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		switch {
		case strings.HasSuffix(r.URL.Path, "/getMe"):
			w.Write([]byte(`{"ok":true,"result":{"id":42,"is_bot":true,"first_name":"Monitor","username":"monitor_bot"}}`))
		case strings.HasSuffix(r.URL.Path, "/sendMessage"):
			if err := r.ParseForm(); err != nil {
				t.Errorf("parse form: %v", err)
			}
			if r.PostForm.Get("chat_id") != "-1001234" {
				t.Errorf("unexpected chat_id %q", r.PostForm.Get("chat_id"))
			}
			*gotText = r.PostForm.Get("text")
			if !sendOK {
				w.Write([]byte(`{"ok":false,"error_code":403,"description":"Forbidden: bot was kicked"}`))
				return
			}
			w.Write([]byte(`{"ok":true,"result":{"message_id":7,"date":0,"chat":{"id":-1001234,"type":"supergroup"},"text":"x"}}`))
		default:
			http.NotFound(w, r)
		}
	}))
	t.Cleanup(srv.Close)
	return srv
}

func TestSenderSend(t *testing.T) {
	var text string
	srv := botServer(t, true, &text)

	s, err := NewSenderWithEndpoint("TOKEN", "-1001234", srv.URL+"/bot%s/%s", nil)
	if err != nil {
		t.Fatalf("NewSenderWithEndpoint: %v", err)
	}
	if !s.Send(context.Background(), "🚨 New Market!") {
		t.Fatalf("expected successful send")
	}
	if text != "🚨 New Market!" {
		t.Fatalf("unexpected text %q", text)
	}
}

func TestSenderSendRejected(t *testing.T) {
	var text string
	srv := botServer(t, false, &text)

	s, err := NewSenderWithEndpoint("TOKEN", "-1001234", srv.URL+"/bot%s/%s", nil)
	if err != nil {
		t.Fatalf("NewSenderWithEndpoint: %v", err)
	}
	if s.Send(context.Background(), "hello") {
		t.Fatalf("expected failed send")
	}
}

func TestInvalidChatID(t *testing.T) {
	if _, err := NewSenderWithEndpoint("TOKEN", "not-a-number", "http://127.0.0.1:1/bot%s/%s", nil); err == nil {
		t.Fatalf("expected error for invalid chat id")
	}
}
