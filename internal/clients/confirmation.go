package clients

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/sirupsen/logrus"
)

type confirmRequest struct {
	ServiceReferenceID string `json:"serviceReferenceId"`
	CustomerID         string `json:"customerId"`
}

// ConfirmationClient notifies the service owning a paid resource. URLs are
// keyed by bill service name.
type ConfirmationClient struct {
	urls   map[string]string
	client *http.Client
	logger *logrus.Logger
}

func NewConfirmationClient(urls map[string]string, timeout time.Duration, logger *logrus.Logger) *ConfirmationClient {
	return &ConfirmationClient{
		urls:   urls,
		client: &http.Client{Timeout: timeout},
		logger: logger,
	}
}

func (c *ConfirmationClient) ConfirmPayment(ctx context.Context, serviceName, serviceReferenceID, customerID string) error {
	url, ok := c.urls[serviceName]
	if !ok || url == "" {
		return fmt.Errorf("no confirmation endpoint for service %s", serviceName)
	}

	body, err := json.Marshal(confirmRequest{ServiceReferenceID: serviceReferenceID, CustomerID: customerID})
	if err != nil {
		return fmt.Errorf("marshal confirm request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("create confirm request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.client.Do(req)
	if err != nil {
		return fmt.Errorf("confirm request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return fmt.Errorf("confirmation endpoint returned status %d", resp.StatusCode)
	}

	c.logger.WithFields(logrus.Fields{
		"service":   serviceName,
		"reference": serviceReferenceID,
	}).Debug("resource confirmed")
	return nil
}
