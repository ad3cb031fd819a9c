package mqtt

import (
	"bytes"
	"encoding/json"
	"fmt"
	"time"
)

// Status values published on the system status topic.
const (
	StatusOnline  = "online"
	StatusOffline = "offline"

	reasonUnexpected = "unexpected_disconnect"
	reasonShutdown   = "graceful_shutdown"
)

// StatusMessage is the retained payload on the system status topic.
type StatusMessage struct {
	Status    string `json:"status"`
	ClientID  string `json:"client_id"`
	Reason    string `json:"reason,omitempty"`
	Timestamp string `json:"timestamp"`
}

// ReloadRequest is the payload accepted on the reload command topic.
// An empty payload reloads the configured source with the current
// search fields.
type ReloadRequest struct {
	Source       string   `json:"source,omitempty"`
	SearchFields []string `json:"searchFields,omitempty"`
}

// LoadedEvent is published after every catalogue load, successful or not.
type LoadedEvent struct {
	RequestID  string `json:"request_id"`
	Source     string `json:"source"`
	OK         bool   `json:"ok"`
	Count      int    `json:"count"`
	Devices    int    `json:"devices"`
	UpdateTime int64  `json:"update_time,omitempty"`
	DurationMS int64  `json:"duration_ms"`
	Error      string `json:"error,omitempty"`
	Timestamp  string `json:"timestamp"`
}

// DecodeReloadRequest parses a reload command payload.
// Blank payloads decode to the zero request.
func DecodeReloadRequest(payload []byte) (ReloadRequest, error) {
	var req ReloadRequest
	if len(bytes.TrimSpace(payload)) == 0 {
		return req, nil
	}
	if err := json.Unmarshal(payload, &req); err != nil {
		return ReloadRequest{}, fmt.Errorf("%w: %w", ErrInvalidPayload, err)
	}
	return req, nil
}

// ReloadHandler adapts fn into a MessageHandler for the reload command topic.
func ReloadHandler(fn func(ReloadRequest) error) MessageHandler {
	return func(_ string, payload []byte) error {
		req, err := DecodeReloadRequest(payload)
		if err != nil {
			return err
		}
		return fn(req)
	}
}

func timestamp() string {
	return time.Now().UTC().Format(time.RFC3339)
}

func buildStatusPayload(status, clientID, reason string) []byte {
	//nolint:errcheck // StatusMessage only holds strings
	data, _ := json.Marshal(StatusMessage{
		Status:    status,
		ClientID:  clientID,
		Reason:    reason,
		Timestamp: timestamp(),
	})
	return data
}

// buildOnlinePayload creates the payload for online status messages.
func buildOnlinePayload(clientID string) []byte {
	return buildStatusPayload(StatusOnline, clientID, "")
}

// buildOfflinePayload creates the payload for graceful offline status.
func buildOfflinePayload(clientID string) []byte {
	return buildStatusPayload(StatusOffline, clientID, reasonShutdown)
}
