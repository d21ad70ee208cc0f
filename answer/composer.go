// Package answer decides whether retrieved context can answer a question
// without a generative-model call, and composes the final answer either way.
package answer

import (
	"context"
	"fmt"
	"log"
	"strings"

	"github.com/fasterchat/ragcore/llm"
	"github.com/fasterchat/ragcore/vectorstore"
)

// State classifies the retrieved context for one question.
type State int

const (
	StateNoContext State = iota
	StateSufficientContext
	StateInsufficientContext
)

func (s State) String() string {
	switch s {
	case StateNoContext:
		return "no_context"
	case StateSufficientContext:
		return "sufficient_context"
	case StateInsufficientContext:
		return "insufficient_context"
	default:
		return "unknown"
	}
}

// SufficiencyRule selects how retained scores aggregate against the bar.
type SufficiencyRule string

const (
	RuleTopScore  SufficiencyRule = "top"
	RuleMeanScore SufficiencyRule = "mean"
)

// GenerationError reports a failed generative-model call. The composer never
// substitutes a fabricated or empty answer for it.
type GenerationError struct {
	Err error
}

func (e *GenerationError) Error() string {
	return fmt.Sprintf("generative model call failed: %v", e.Err)
}

func (e *GenerationError) Unwrap() error { return e.Err }

// Answer is the user-visible result of one question.
type Answer struct {
	Text          string
	UsedDocuments bool
	State         State
}

// Composer routes between the cheap extractive path and the expensive
// generative path.
type Composer struct {
	llm       llm.Client
	rule      SufficiencyRule
	threshold float64
	logger    *log.Logger
}

func NewComposer(client llm.Client, rule SufficiencyRule, threshold float64, logger *log.Logger) *Composer {
	if rule != RuleMeanScore {
		rule = RuleTopScore
	}
	if threshold <= 0 {
		threshold = 0.75
	}
	if logger == nil {
		logger = log.Default()
	}
	return &Composer{llm: client, rule: rule, threshold: threshold, logger: logger}
}

// Compose answers the question from context alone when the sufficiency bar is
// met, and otherwise forwards question plus best-effort context to the
// generative model. History carries prior conversation turns into the
// generative call.
func (c *Composer) Compose(ctx context.Context, question string, results []vectorstore.Result, history []llm.Message) (Answer, error) {
	question = strings.TrimSpace(question)
	if question == "" {
		return Answer{}, fmt.Errorf("question cannot be empty")
	}

	state := c.Classify(results)

	if state == StateSufficientContext {
		return Answer{
			Text:          composeExtractive(results),
			UsedDocuments: true,
			State:         state,
		}, nil
	}

	contextPrompt := buildContextPrompt(results)

	messages := make([]llm.Message, 0, len(history)+2)
	messages = append(messages, llm.Message{Role: llm.RoleSystem, Content: systemPrompt(contextPrompt)})
	messages = append(messages, history...)
	messages = append(messages, llm.Message{Role: llm.RoleUser, Content: question})

	if c.llm == nil {
		return Answer{}, &GenerationError{Err: fmt.Errorf("llm client is not configured")}
	}

	generated, err := c.llm.Generate(ctx, messages)
	if err != nil {
		return Answer{}, &GenerationError{Err: err}
	}

	generated = strings.TrimSpace(generated)
	if generated == "" {
		return Answer{}, &GenerationError{Err: fmt.Errorf("model returned an empty answer")}
	}

	return Answer{
		Text:          generated,
		UsedDocuments: len(results) > 0,
		State:         state,
	}, nil
}

// Classify maps retrieved chunks onto the composer states.
func (c *Composer) Classify(results []vectorstore.Result) State {
	if len(results) == 0 {
		return StateNoContext
	}
	if c.aggregate(results) >= c.threshold {
		return StateSufficientContext
	}
	return StateInsufficientContext
}

func (c *Composer) aggregate(results []vectorstore.Result) float64 {
	if c.rule == RuleMeanScore {
		var sum float64
		for _, result := range results {
			sum += result.Score
		}
		return sum / float64(len(results))
	}

	top := results[0].Score
	for _, result := range results[1:] {
		if result.Score > top {
			top = result.Score
		}
	}
	return top
}

// composeExtractive builds the cheap-path answer from chunk text alone,
// grouped under per-document headers in score order.
func composeExtractive(results []vectorstore.Result) string {
	var sb strings.Builder
	seen := make(map[string]bool, len(results))

	for _, result := range results {
		title := strings.TrimSpace(result.Title)
		if title == "" {
			title = result.DocumentID
		}
		if !seen[title] {
			if sb.Len() > 0 {
				sb.WriteString("\n\n")
			}
			sb.WriteString(fmt.Sprintf("From %s:", title))
			seen[title] = true
		}
		sb.WriteString("\n")
		sb.WriteString(strings.TrimSpace(result.Text))
	}

	return sb.String()
}

func buildContextPrompt(results []vectorstore.Result) string {
	if len(results) == 0 {
		return ""
	}

	var sb strings.Builder
	for _, result := range results {
		title := strings.TrimSpace(result.Title)
		if title == "" {
			title = result.DocumentID
		}
		sb.WriteString(fmt.Sprintf("--- From document: %s ---\n%s\n\n", title, strings.TrimSpace(result.Text)))
	}
	return strings.TrimSpace(sb.String())
}

func systemPrompt(contextPrompt string) string {
	if contextPrompt == "" {
		return "You are a helpful AI assistant that provides accurate and concise information."
	}
	return "You are a helpful AI assistant that answers questions based on provided documents. " +
		"Use the following document sections to answer the question and name the source document. " +
		"If the information is not in the documents, say so and give your best general answer.\n\n" +
		contextPrompt
}
