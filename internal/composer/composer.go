package composer

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/xxxsen/common/logutil"
	"go.uber.org/zap"

	"github.com/xxxsen/consultrag/internal/ai"
	"github.com/xxxsen/consultrag/internal/model"
)

const (
	FallbackAnswer = "I'm sorry, I couldn't generate an answer right now."

	defaultTemperature     = 0.3
	defaultMaxOutputTokens = 600
	defaultMaxContextChars = 6000
	truncatedSuffix        = "..."
)

const systemPrompt = `You are a support assistant for a home-service and telehealth booking app.
Answer the user's question using only the consultation records provided in the user message.
If the records do not contain the answer, say that you are not sure instead of guessing.
Never invent dates, diagnoses, prescriptions, fees or names.
Formatting rules: plain sentences, "• " for bullet points and **bold** for emphasis only.
Do not use headings, tables, links or code blocks.
Keep the answer short.`

type Options struct {
	// Temperature nil means the default; an explicit 0 is kept.
	Temperature     *float32
	MaxOutputTokens int
	MaxContextChars int
	Timeout         time.Duration
}

// Answer is the sanitized reply. Fallback is set when generation failed or
// returned nothing usable and the fixed fallback text was substituted.
type Answer struct {
	Text     string
	Fallback bool
}

type Composer struct {
	generator   ai.IGenerator
	opts        Options
	temperature float32
}

func New(generator ai.IGenerator, opts Options) *Composer {
	if opts.MaxOutputTokens <= 0 {
		opts.MaxOutputTokens = defaultMaxOutputTokens
	}
	if opts.MaxContextChars <= 0 {
		opts.MaxContextChars = defaultMaxContextChars
	}
	temperature := float32(defaultTemperature)
	if opts.Temperature != nil {
		temperature = *opts.Temperature
	}
	return &Composer{generator: generator, opts: opts, temperature: temperature}
}

// Compose never returns an error; failures collapse into the fallback answer.
func (c *Composer) Compose(ctx context.Context, question string, passages []model.IndexedPassage, userDisplayName string) Answer {
	if c.generator == nil {
		return Answer{Text: FallbackAnswer, Fallback: true}
	}
	if c.opts.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, c.opts.Timeout)
		defer cancel()
	}
	req := ai.GenerateRequest{
		Messages:    BuildMessages(question, passages, userDisplayName, c.opts.MaxContextChars),
		Temperature: c.temperature,
		MaxTokens:   c.opts.MaxOutputTokens,
	}
	raw, err := c.generator.Generate(ctx, req)
	if err != nil {
		logutil.GetLogger(ctx).Error("generate answer failed", zap.Error(err))
		return Answer{Text: FallbackAnswer, Fallback: true}
	}
	text := Sanitize(raw)
	if text == "" {
		logutil.GetLogger(ctx).Warn("generator returned empty answer")
		return Answer{Text: FallbackAnswer, Fallback: true}
	}
	return Answer{Text: text}
}

// BuildMessages returns the system message followed by a single user message
// holding the question and the numbered passages, most similar first. The
// passage that crosses maxContextChars is truncated and later ones dropped.
func BuildMessages(question string, passages []model.IndexedPassage, userDisplayName string, maxContextChars int) []ai.Message {
	system := systemPrompt
	if name := strings.TrimSpace(userDisplayName); name != "" {
		system += fmt.Sprintf("\nThe user's name is %s. You may address them by name.", name)
	}

	var sb strings.Builder
	sb.WriteString("Question: ")
	sb.WriteString(strings.TrimSpace(question))
	sb.WriteString("\n\nConsultation records:")
	budget := maxContextChars
	for i, p := range passages {
		if budget <= 0 {
			break
		}
		text := p.PassageText
		if len(text) > budget {
			text = truncate(text, budget) + truncatedSuffix
		}
		budget -= len(p.PassageText)
		sb.WriteString(fmt.Sprintf("\n\n[%d]\n%s", i+1, text))
	}

	return []ai.Message{
		{Role: ai.RoleSystem, Content: system},
		{Role: ai.RoleUser, Content: sb.String()},
	}
}

// truncate cuts s to at most n bytes without splitting a rune.
func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	for n > 0 && !isRuneStart(s[n]) {
		n--
	}
	return s[:n]
}

func isRuneStart(b byte) bool {
	return b&0xC0 != 0x80
}
