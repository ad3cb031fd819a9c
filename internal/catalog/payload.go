package catalog

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/tailscale/hujson"
)

// wirePayload mirrors Payload but keeps updateTime as a raw number so
// both integer and float timestamps are accepted.
type wirePayload struct {
	UpdateTime     json.Number `json:"updateTime"`
	SupportDevices []RawDevice `json:"supportDevices"`
}

// DecodePayload parses a catalogue document.
//
// The canonical shape is {"updateTime": <ms>, "supportDevices": [...]}.
// A bare array of device records is also accepted, with UpdateTime 0.
// Comments and trailing commas are tolerated.
//
// Parameters:
//   - data: Raw document bytes (JSON or JSON with comments)
//
// Returns:
//   - Payload: The decoded catalogue
//   - error: ErrInvalidPayload or ErrMissingModel (wrapped) on failure
func DecodePayload(data []byte) (Payload, error) {
	standardized, err := hujson.Standardize(data)
	if err != nil {
		return Payload{}, fmt.Errorf("%w: %w", ErrInvalidPayload, err)
	}

	trimmed := bytes.TrimSpace(standardized)
	if len(trimmed) == 0 {
		return Payload{}, fmt.Errorf("%w: empty document", ErrInvalidPayload)
	}

	var payload Payload
	switch trimmed[0] {
	case '[':
		if err := json.Unmarshal(trimmed, &payload.SupportDevices); err != nil {
			return Payload{}, fmt.Errorf("%w: %w", ErrInvalidPayload, err)
		}
	case '{':
		var wire wirePayload
		if err := json.Unmarshal(trimmed, &wire); err != nil {
			return Payload{}, fmt.Errorf("%w: %w", ErrInvalidPayload, err)
		}
		updateTime, err := parseUpdateTime(wire.UpdateTime)
		if err != nil {
			return Payload{}, fmt.Errorf("%w: updateTime: %w", ErrInvalidPayload, err)
		}
		payload.UpdateTime = updateTime
		payload.SupportDevices = wire.SupportDevices
	default:
		return Payload{}, fmt.Errorf("%w: expected an object or an array", ErrInvalidPayload)
	}

	if payload.SupportDevices == nil {
		payload.SupportDevices = []RawDevice{}
	}

	if err := Validate(payload.SupportDevices); err != nil {
		return Payload{}, err
	}

	return payload, nil
}

// EncodePayload renders a catalogue in the canonical object shape.
func EncodePayload(p Payload) ([]byte, error) {
	if p.SupportDevices == nil {
		p.SupportDevices = []RawDevice{}
	}
	return json.Marshal(p)
}

// Validate checks that every device record can be flattened.
func Validate(devices []RawDevice) error {
	for i, dev := range devices {
		if strings.TrimSpace(dev.DeviceInfo.Model) == "" {
			return fmt.Errorf("%w: device %d", ErrMissingModel, i)
		}
	}
	return nil
}

func parseUpdateTime(n json.Number) (int64, error) {
	if n == "" {
		return 0, nil
	}
	if v, err := n.Int64(); err == nil {
		return v, nil
	}
	f, err := n.Float64()
	if err != nil {
		return 0, err
	}
	return int64(f), nil
}
