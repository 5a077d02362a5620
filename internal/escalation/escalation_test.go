package escalation

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/require"
)

var longAnswer = strings.Repeat("Your consultation on 24 December covered a follow-up check. ", 2)

func TestShouldEscalate(t *testing.T) {
	tests := []struct {
		name      string
		question  string
		answer    string
		retrieved int
		want      bool
	}{
		{"refund in question", "How do I get a refund for my last visit?", longAnswer, 5, true},
		{"keyword case insensitive", "I want my MONEY BACK", longAnswer, 5, true},
		{"keyword in answer", "what happened?", longAnswer + " The payment was declined.", 5, true},
		{"cancellation", "what is the cancellation fee?", longAnswer, 3, true},
		{"support request", "can I speak to a human", longAnswer, 3, true},
		{"confident answer", "when was my last visit?", longAnswer, 3, false},
		{"short answer few records", "when was my last visit?", "Dec 24.", 1, true},
		{"short answer enough records", "when was my last visit?", "Dec 24.", 2, false},
		{"hedge few records", "what was prescribed?", "I'm not sure which medication was prescribed based on these records, sorry about that.", 1, true},
		{"curly apostrophe hedge", "what was prescribed?", "I don’t know which medication was prescribed based on the records I can see here today.", 0, true},
		{"hedge enough records", "what was prescribed?", "I'm not sure which medication was prescribed based on these records, sorry about that.", 4, false},
		{"display does not match pay", "does the video display work?", longAnswer, 3, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			require.Equal(t, tt.want, ShouldEscalate(tt.question, tt.answer, tt.retrieved))
		})
	}
}

func TestRulesWithExtra(t *testing.T) {
	r := DefaultRules().WithExtra([]string{"  Insurance "}, []string{"no idea"})
	require.True(t, r.ShouldEscalate("Does INSURANCE cover it?", longAnswer, 5))
	require.True(t, r.ShouldEscalate("q", longAnswer+" no idea", 1))
	require.False(t, ShouldEscalate("Does insurance cover it?", longAnswer, 5))
}

func TestRulesGenericThreshold(t *testing.T) {
	r := DefaultRules()
	r.GenericAnswerChars = 5
	require.False(t, r.ShouldEscalate("when?", "Dec 24.", 1))
}
