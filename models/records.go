package models

import "time"

// OrderBookUpdate is one snapshot as it travels from a reader to the processor.
type OrderBookUpdate struct {
	Exchange     string
	Market       string
	Source       string // "ws" or "rest"
	ConnectionID string
	Snapshot     OrderBookSnapshot
	Sequence     SequenceStatus
	ReceivedAt   time.Time
}

// LevelRecord is a single flattened price level. Prices stay decimal strings.
type LevelRecord struct {
	Exchange     string `json:"exchange"`
	Symbol       string `json:"symbol"`
	Market       string `json:"market"`
	Timestamp    int64  `json:"timestamp"`
	ReceivedTime int64  `json:"received_time"`
	LastUpdateID uint64 `json:"last_update_id"`
	Side         string `json:"side"` // "bid" or "ask"
	Price        string `json:"price"`
	Quantity     string `json:"quantity"`
	Level        int    `json:"level"` // 1 = best
	Sequence     string `json:"sequence"`
}

// LevelBatch groups flattened levels of one symbol for the writers.
type LevelBatch struct {
	BatchID     string        `json:"batch_id"`
	Exchange    string        `json:"exchange"`
	Symbol      string        `json:"symbol"`
	Market      string        `json:"market"`
	Entries     []LevelRecord `json:"entries"`
	RecordCount int           `json:"record_count"`
	Timestamp   time.Time     `json:"timestamp"`
	ProcessedAt time.Time     `json:"processed_at"`
}
