package signal

// Sender posts messages to a Signal group through the signal-cli JSON-RPC HTTP daemon
// Delivery failures are logged and reported as false; retries belong to the caller

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"polymarket-monitor/internal/infra/log"

	"go.uber.org/zap"
)

const (
	rpcEndpoint = "/api/v1/rpc"
	sendTimeout = 30 * time.Second
)

type Sender struct {
	daemonURL  string
	account    string
	groupID    string
	httpClient *http.Client
	log        *log.Logger
}

func NewSender(daemonURL, account, groupID string, logger *log.Logger) *Sender {
	if logger == nil {
		logger = log.Nop()
	}
	return &Sender{
		daemonURL:  strings.TrimRight(daemonURL, "/"),
		account:    account,
		groupID:    groupID,
		httpClient: &http.Client{Timeout: sendTimeout},
		log:        logger,
	}
}

type rpcRequest struct {
	JSONRPC string    `json:"jsonrpc"`
	ID      int       `json:"id"`
	Method  string    `json:"method"`
	Params  rpcParams `json:"params"`
}

type rpcParams struct {
	Account string `json:"account"`
	Message string `json:"message"`
	GroupID string `json:"groupId"`
}

type rpcResponse struct {
	Result json.RawMessage `json:"result"`
	Error  *rpcError       `json:"error"`
}

type rpcError struct {
	Code    int    `json:"code"`
	Message string `json:"message"`
}

func (e *rpcError) String() string {
	if e == nil {
		return "unknown error"
	}
	return fmt.Sprintf("%s (code %d)", e.Message, e.Code)
}

// Send delivers message to the configured group and reports success.
func (s *Sender) Send(ctx context.Context, message string) bool {
	if err := s.send(ctx, message); err != nil {
		s.log.Error("Signal send failed", zap.Error(err), zap.String("group", s.groupID))
		return false
	}
	s.log.Debug("Signal message sent", zap.Int("chars", len(message)))
	return true
}

func (s *Sender) send(ctx context.Context, message string) error {
	payload, err := json.Marshal(rpcRequest{
		JSONRPC: "2.0",
		ID:      1,
		Method:  "send",
		Params:  rpcParams{Account: s.account, Message: message, GroupID: s.groupID},
	})
	if err != nil {
		return fmt.Errorf("failed to marshal rpc request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, s.daemonURL+rpcEndpoint, bytes.NewReader(payload))
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := s.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("failed to perform request: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return fmt.Errorf("failed to read response: %w", err)
	}
	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("HTTP %d - %s", resp.StatusCode, strings.TrimSpace(string(body)))
	}

	var out rpcResponse
	if err := json.Unmarshal(body, &out); err != nil {
		return fmt.Errorf("failed to decode rpc response: %w", err)
	}
	if len(out.Result) == 0 {
		return fmt.Errorf("rpc error: %s", out.Error.String())
	}
	return nil
}
