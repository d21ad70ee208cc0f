package answer_test

import (
	"context"
	"errors"
	"io"
	"log"
	"strings"
	"testing"

	"github.com/fasterchat/ragcore/answer"
	"github.com/fasterchat/ragcore/llm"
	"github.com/fasterchat/ragcore/vectorstore"
)

type stubLLM struct {
	response string
	err      error
	calls    int
	lastMsgs []llm.Message
}

func (s *stubLLM) Generate(_ context.Context, messages []llm.Message) (string, error) {
	s.calls++
	s.lastMsgs = messages
	if s.err != nil {
		return "", s.err
	}
	return s.response, nil
}

var _ llm.Client = (*stubLLM)(nil)

func discard() *log.Logger { return log.New(io.Discard, "", 0) }

func result(score float64, ordinal int, text string) vectorstore.Result {
	return vectorstore.Result{
		ChunkID:    "chunk",
		DocumentID: "doc-1",
		Title:      "Company Handbook",
		Ordinal:    ordinal,
		Text:       text,
		Score:      score,
	}
}

func TestSufficientContextSkipsGenerativeCall(t *testing.T) {
	client := &stubLLM{response: "should not be used"}
	composer := answer.NewComposer(client, answer.RuleTopScore, 0.75, discard())

	got, err := composer.Compose(context.Background(), "What is the vacation policy?", []vectorstore.Result{
		result(0.9, 1, "Employees accrue 25 vacation days per year."),
	}, nil)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if got.State != answer.StateSufficientContext {
		t.Fatalf("expected sufficient context, got %v", got.State)
	}
	if !got.UsedDocuments {
		t.Fatal("expected used_documents=true")
	}
	if client.calls != 0 {
		t.Fatalf("expected zero generative calls, got %d", client.calls)
	}
	if !strings.Contains(got.Text, "25 vacation days") {
		t.Fatalf("extractive answer missing chunk text: %q", got.Text)
	}
	if !strings.Contains(got.Text, "Company Handbook") {
		t.Fatalf("extractive answer missing source title: %q", got.Text)
	}
}

func TestNoContextCallsModelWithoutDocuments(t *testing.T) {
	client := &stubLLM{response: "General knowledge answer."}
	composer := answer.NewComposer(client, answer.RuleTopScore, 0.75, discard())

	got, err := composer.Compose(context.Background(), "What is the capital of France?", nil, nil)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if got.State != answer.StateNoContext {
		t.Fatalf("expected no context, got %v", got.State)
	}
	if got.UsedDocuments {
		t.Fatal("expected used_documents=false")
	}
	if client.calls != 1 {
		t.Fatalf("expected one generative call, got %d", client.calls)
	}
	if strings.Contains(client.lastMsgs[0].Content, "From document") {
		t.Fatal("system prompt should not reference documents when none were retrieved")
	}
}

func TestInsufficientContextForwardsContextToModel(t *testing.T) {
	client := &stubLLM{response: "Model answer using partial context."}
	composer := answer.NewComposer(client, answer.RuleTopScore, 0.9, discard())

	got, err := composer.Compose(context.Background(), "question", []vectorstore.Result{
		result(0.8, 0, "Partially relevant text."),
	}, nil)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if got.State != answer.StateInsufficientContext {
		t.Fatalf("expected insufficient context, got %v", got.State)
	}
	if !got.UsedDocuments {
		t.Fatal("context was supplied to the model, expected used_documents=true")
	}
	if client.calls != 1 {
		t.Fatalf("expected one generative call, got %d", client.calls)
	}
	if !strings.Contains(client.lastMsgs[0].Content, "Partially relevant text.") {
		t.Fatal("system prompt should carry the best-effort context")
	}
}

func TestMeanRuleAggregatesScores(t *testing.T) {
	composer := answer.NewComposer(&stubLLM{}, answer.RuleMeanScore, 0.75, discard())

	// top = 0.9 but mean = 0.7, so the mean rule stays insufficient.
	state := composer.Classify([]vectorstore.Result{
		result(0.9, 0, "a"),
		result(0.5, 1, "b"),
	})
	if state != answer.StateInsufficientContext {
		t.Fatalf("expected insufficient under mean rule, got %v", state)
	}

	topComposer := answer.NewComposer(&stubLLM{}, answer.RuleTopScore, 0.75, discard())
	if got := topComposer.Classify([]vectorstore.Result{result(0.9, 0, "a"), result(0.5, 1, "b")}); got != answer.StateSufficientContext {
		t.Fatalf("expected sufficient under top rule, got %v", got)
	}
}

func TestGenerationFailureSurfacesTyped(t *testing.T) {
	client := &stubLLM{err: errors.New("quota exceeded")}
	composer := answer.NewComposer(client, answer.RuleTopScore, 0.75, discard())

	_, err := composer.Compose(context.Background(), "question", nil, nil)
	var genErr *answer.GenerationError
	if !errors.As(err, &genErr) {
		t.Fatalf("expected *answer.GenerationError, got %v", err)
	}
}

func TestEmptyModelAnswerIsAnError(t *testing.T) {
	client := &stubLLM{response: "   "}
	composer := answer.NewComposer(client, answer.RuleTopScore, 0.75, discard())

	_, err := composer.Compose(context.Background(), "question", nil, nil)
	var genErr *answer.GenerationError
	if !errors.As(err, &genErr) {
		t.Fatalf("expected *answer.GenerationError for blank answer, got %v", err)
	}
}

func TestHistoryIsThreadedIntoGenerativeCall(t *testing.T) {
	client := &stubLLM{response: "answer"}
	composer := answer.NewComposer(client, answer.RuleTopScore, 0.75, discard())

	history := []llm.Message{
		{Role: llm.RoleUser, Content: "earlier question"},
		{Role: llm.RoleAssistant, Content: "earlier answer"},
	}

	if _, err := composer.Compose(context.Background(), "follow-up", nil, history); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if len(client.lastMsgs) != 4 {
		t.Fatalf("expected system + 2 history + user messages, got %d", len(client.lastMsgs))
	}
	if client.lastMsgs[1].Content != "earlier question" || client.lastMsgs[2].Content != "earlier answer" {
		t.Fatal("history not threaded in order")
	}
	if client.lastMsgs[3].Content != "follow-up" {
		t.Fatalf("last message should be the new question, got %q", client.lastMsgs[3].Content)
	}
}
