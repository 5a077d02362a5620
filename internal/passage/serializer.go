// Package passage renders consultation records into the text that gets embedded.
//
// Field order is fixed: identity fields first, then service fields, then
// clinical fields, so the most salient content survives any downstream
// truncation of the context window.
package passage

import (
	"crypto/sha256"
	"encoding/hex"
	"strconv"
	"strings"
	"unicode"
	"unicode/utf8"

	"github.com/xxxsen/consultrag/internal/model"
	appErr "github.com/xxxsen/consultrag/internal/pkg/errors"
)

const timeLayout = "2006-01-02 15:04 UTC"

// Render is deterministic: the same record always yields the same passage.
func Render(rec model.ConsultationRecord) (string, error) {
	id := compact(rec.ID)
	if id == "" {
		return "", appErr.NewValidationError(rec.ID, "id", "is required")
	}
	lines := make([]string, 0, 12)
	add := func(label, value string) {
		value = compact(value)
		if value == "" {
			return
		}
		lines = append(lines, label+": "+value)
	}

	add("Consultation", id)
	if !rec.ScheduledAt.IsZero() {
		add("Scheduled", rec.ScheduledAt.UTC().Format(timeLayout))
	}
	add("Status", rec.Status)
	for _, p := range rec.Participants {
		add(roleLabel(p.Role), p.Name)
	}

	if rec.Fee != nil {
		add("Fee", formatFee(*rec.Fee))
	}
	if compact(rec.VideoCallURL) != "" {
		add("Video call", "available")
	}

	add("Symptoms", rec.Symptoms)
	add("Diagnosis", rec.Diagnosis)
	add("Prescription", rec.Prescription)
	add("Notes", rec.Notes)
	add("Cancellation reason", rec.CancellationReason)
	return strings.Join(lines, "\n"), nil
}

// ContentHash identifies a rendered passage for change detection.
func ContentHash(text string) string {
	hash := sha256.Sum256([]byte(text))
	return hex.EncodeToString(hash[:])
}

func roleLabel(role string) string {
	role = compact(role)
	if role == "" {
		return "Participant"
	}
	first, size := utf8.DecodeRuneInString(role)
	return string(unicode.ToUpper(first)) + strings.ToLower(role[size:])
}

func formatFee(m model.Money) string {
	amount := strconv.FormatFloat(m.Amount, 'f', 2, 64)
	currency := strings.ToUpper(compact(m.Currency))
	if currency == "" {
		return amount
	}
	return amount + " " + currency
}

func compact(s string) string {
	return strings.Join(strings.Fields(s), " ")
}
