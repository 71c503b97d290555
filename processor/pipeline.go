package processor

import (
	"encoding/json"
	"fmt"
)

// QuarantinePayload is the audit copy of a raw record kept in etl_quarantine
type QuarantinePayload struct {
	Source  string            `json:"source"`
	File    string            `json:"file"`
	Locator string            `json:"locator"`
	Fields  map[string]string `json:"fields"`
}

// EncodeQuarantinePayload serializes the payload to JSON and compresses it
func EncodeQuarantinePayload(p QuarantinePayload) ([]byte, error) {
	data, err := json.Marshal(p)
	if err != nil {
		return nil, fmt.Errorf("marshal quarantine payload: %w", err)
	}
	return CompressPayload(data), nil
}

// DecodeQuarantinePayload decompresses and parses a stored payload
func DecodeQuarantinePayload(data []byte) (QuarantinePayload, error) {
	var p QuarantinePayload

	raw, err := DecompressPayload(data)
	if err != nil {
		return p, err
	}
	if err := json.Unmarshal(raw, &p); err != nil {
		return p, fmt.Errorf("unmarshal quarantine payload: %w", err)
	}
	return p, nil
}
