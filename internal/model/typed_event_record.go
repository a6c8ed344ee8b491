package model

import "encoding/json"

// VaultEventRecord is the JSON representation read back from event sinks.
type VaultEventRecord struct {
	Sequence    uint64          `json:"sequence"`
	BlockNumber uint64          `json:"block_number"`
	Timestamp   uint64          `json:"timestamp"`
	Vault       string          `json:"vault"`
	EventName   string          `json:"event_name"`
	Decoded     json.RawMessage `json:"decoded"`
}
