package model

// QueryResult is produced fresh per question and never cached.
type QueryResult struct {
	AnswerText      string `json:"answer_text"`
	NeedsEscalation bool   `json:"needs_escalation"`
}
