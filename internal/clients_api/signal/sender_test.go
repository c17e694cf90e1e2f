package signal

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
)

func TestSendReportsOutcome(t *testing.T) {
	tests := []struct {
		name   string
		status int
		body   string
		want   bool
	}{
		{"result present", http.StatusOK, `{"jsonrpc":"2.0","id":1,"result":{"timestamp":1}}`, true},
		{"rpc error", http.StatusOK, `{"jsonrpc":"2.0","id":1,"error":{"code":-1,"message":"group not found"}}`, false},
		{"http error", http.StatusBadGateway, `daemon down`, false},
		{"garbage body", http.StatusOK, `not json`, false},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			var got rpcRequest
			srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				if r.URL.Path != rpcEndpoint || r.Method != http.MethodPost {
					t.Errorf("unexpected %s %s", r.Method, r.URL.Path)
				}
				if err := json.NewDecoder(r.Body).Decode(&got); err != nil {
					t.Errorf("decode request: %v", err)
				}
				w.WriteHeader(tc.status)
				w.Write([]byte(tc.body))
			}))
			defer srv.Close()

			s := NewSender(srv.URL+"/", "+15550001", "grp==", nil)
			if ok := s.Send(context.Background(), "hello"); ok != tc.want {
				t.Fatalf("Send = %v, want %v", ok, tc.want)
			}
			if got.Method != "send" || got.JSONRPC != "2.0" {
				t.Fatalf("unexpected rpc envelope %+v", got)
			}
			if got.Params.Account != "+15550001" || got.Params.GroupID != "grp==" || got.Params.Message != "hello" {
				t.Fatalf("unexpected params %+v", got.Params)
			}
		})
	}
}

func TestSendUnreachableDaemon(t *testing.T) {
	srv := httptest.NewServer(http.NotFoundHandler())
	url := srv.URL
	srv.Close()

	s := NewSender(url, "+1", "g", nil)
	if s.Send(context.Background(), "hello") {
		t.Fatalf("expected failure against closed daemon")
	}
}
