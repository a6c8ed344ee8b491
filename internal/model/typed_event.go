package model

// VaultEvent is an emitted vault event with its block context.
type VaultEvent struct {
	Sequence    uint64      `json:"sequence"`
	BlockNumber uint64      `json:"block_number"`
	Timestamp   uint64      `json:"timestamp"`
	Vault       string      `json:"vault"`
	EventName   string      `json:"event_name"`
	Decoded     interface{} `json:"decoded"`
}
