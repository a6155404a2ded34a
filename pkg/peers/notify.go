package peers

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
)

// NotifyClient pushes notifications through the notification service. It
// satisfies the fanout deliverer contract.
type NotifyClient struct {
	c *Client
}

// NewNotifyClient wraps a base Client.
func NewNotifyClient(c *Client) *NotifyClient { return &NotifyClient{c: c} }

// Deliver posts a notification payload addressed to receiverID.
func (n *NotifyClient) Deliver(ctx context.Context, receiverID string, payload []byte) error {
	body := struct {
		ReceiverID string          `json:"receiver_id"`
		Payload    json.RawMessage `json:"payload"`
	}{ReceiverID: receiverID, Payload: payload}

	status, err := n.c.do(ctx, http.MethodPost, "/v1/notifications", nil, body, nil)
	if err != nil {
		return err
	}
	if status < 200 || status >= 300 {
		return fmt.Errorf("notification delivery: unexpected status %d", status)
	}
	return nil
}
