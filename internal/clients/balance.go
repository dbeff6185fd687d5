package clients

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/sirupsen/logrus"
)

type debitRequest struct {
	UserID string `json:"userId"`
	Amount int64  `json:"amount"`
}

type DebitResult struct {
	Success    bool   `json:"success"`
	NewBalance int64  `json:"newBalance"`
	Message    string `json:"message,omitempty"`
}

// BalanceClient debits customer balances on the external balance service.
type BalanceClient struct {
	baseURL string
	client  *http.Client
	logger  *logrus.Logger
}

func NewBalanceClient(baseURL string, timeout time.Duration, logger *logrus.Logger) *BalanceClient {
	return &BalanceClient{
		baseURL: strings.TrimRight(baseURL, "/"),
		client:  &http.Client{Timeout: timeout},
		logger:  logger,
	}
}

// Debit charges amountCents to userID. A non-2xx response or success=false
// is an error; the caller decides whether it is retryable.
func (c *BalanceClient) Debit(ctx context.Context, userID string, amountCents int64) (*DebitResult, error) {
	body, err := json.Marshal(debitRequest{UserID: userID, Amount: amountCents})
	if err != nil {
		return nil, fmt.Errorf("marshal debit request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/balance/debit", bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("create debit request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("debit request: %w", err)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return nil, fmt.Errorf("read debit response: %w", err)
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		c.logger.WithFields(logrus.Fields{
			"status": resp.StatusCode,
			"user":   userID,
		}).Warn("balance service rejected debit")
		return nil, fmt.Errorf("balance service returned status %d: %s", resp.StatusCode, strings.TrimSpace(string(raw)))
	}

	var result DebitResult
	if err := json.Unmarshal(raw, &result); err != nil {
		return nil, fmt.Errorf("decode debit response: %w", err)
	}
	if !result.Success {
		return nil, fmt.Errorf("debit declined: %s", result.Message)
	}
	return &result, nil
}
