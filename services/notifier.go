// services/notifier.go
package services

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"time"

	log "github.com/sirupsen/logrus"
)

// Notifier delivers best-effort user notifications. Failures are logged and
// swallowed — a lost notification never fails a redemption.
type Notifier interface {
	RedemptionConfirmed(wallet, redemptionID, trackingNumber string)
	PrizeDelivered(wallet, redemptionID string)
}

// HTTPNotifier posts to the notification service without blocking the
// caller; each send runs in its own goroutine with its own deadline.
type HTTPNotifier struct {
	BaseURL    string
	Token      string
	HTTPClient *http.Client
}

func NewHTTPNotifier(baseURL, token string) *HTTPNotifier {
	return &HTTPNotifier{
		BaseURL: baseURL,
		Token:   token,
		HTTPClient: &http.Client{
			Timeout: 10 * time.Second,
		},
	}
}

func (n *HTTPNotifier) send(event string, payload map[string]string) {
	go func() {
		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()

		payload["event"] = event
		body, err := json.Marshal(payload)
		if err != nil {
			return
		}
		req, err := http.NewRequestWithContext(ctx, "POST", n.BaseURL+"/api/v1/notifications", bytes.NewReader(body))
		if err != nil {
			return
		}
		req.Header.Set("Content-Type", "application/json")
		req.Header.Set("X-Service-Token", n.Token)

		resp, err := n.HTTPClient.Do(req)
		if err != nil {
			log.WithError(err).WithField("event", event).Warn("notification delivery failed")
			return
		}
		resp.Body.Close()
		if resp.StatusCode >= 300 {
			log.WithFields(log.Fields{"event": event, "status": resp.StatusCode}).Warn("notification delivery rejected")
		}
	}()
}

func (n *HTTPNotifier) RedemptionConfirmed(wallet, redemptionID, trackingNumber string) {
	n.send("redemption_confirmed", map[string]string{
		"wallet":         wallet,
		"redemptionId":   redemptionID,
		"trackingNumber": trackingNumber,
	})
}

func (n *HTTPNotifier) PrizeDelivered(wallet, redemptionID string) {
	n.send("prize_delivered", map[string]string{
		"wallet":       wallet,
		"redemptionId": redemptionID,
	})
}

// NopNotifier is used when no notification service is configured.
type NopNotifier struct{}

func (NopNotifier) RedemptionConfirmed(string, string, string) {}
func (NopNotifier) PrizeDelivered(string, string)              {}
