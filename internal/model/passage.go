package model

import "time"

type IndexedPassage struct {
	RecordID    string    `json:"record_id"`
	PassageText string    `json:"passage_text"`
	Vector      []float32 `json:"vector"`
	ModelTag    string    `json:"model_tag"`
	ContentHash string    `json:"content_hash"`
	IndexedAt   time.Time `json:"indexed_at"`
}

type IndexStats struct {
	Count         int       `json:"count"`
	LastIndexedAt time.Time `json:"last_indexed_at"`
}

type IndexFailure struct {
	RecordID string `json:"record_id"`
	Err      string `json:"error"`
}

type IndexReport struct {
	Total    int            `json:"total"`
	Indexed  int            `json:"indexed"`
	Skipped  int            `json:"skipped"`
	Failures []IndexFailure `json:"failures"`
}
