package errcode

const (
	ErrUnknown = 10000000 + iota
	ErrNotFound
	ErrInvalid
	ErrTooMany
	ErrInternal
	ErrAIUnavailable
	ErrSourceUnavailable
	ErrStorage
)

var messages = map[int]string{
	ErrUnknown:           "unknown error",
	ErrNotFound:          "not found",
	ErrInvalid:           "invalid request",
	ErrTooMany:           "too many requests",
	ErrInternal:          "internal error",
	ErrAIUnavailable:     "assistant unavailable",
	ErrSourceUnavailable: "consultation source unavailable",
	ErrStorage:           "storage error",
}

// Message returns the default text for code.
func Message(code int) string {
	if msg, ok := messages[code]; ok {
		return msg
	}
	return messages[ErrUnknown]
}
