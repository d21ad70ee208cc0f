package embeddings_test

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/fasterchat/ragcore/embeddings"
)

// stallingServer blocks every request until the test finishes, standing in
// for an external service that accepts the connection but never answers.
func stallingServer(t *testing.T) *httptest.Server {
	t.Helper()
	release := make(chan struct{})
	server := httptest.NewServer(http.HandlerFunc(func(_ http.ResponseWriter, _ *http.Request) {
		<-release
	}))
	t.Cleanup(func() {
		close(release)
		server.Close()
	})
	return server
}

func TestOllamaEmbedderTimesOutOnStalledService(t *testing.T) {
	server := stallingServer(t)

	embedder := embeddings.NewOllamaEmbedder(embeddings.Options{
		Model:      "test-model",
		OllamaHost: server.URL,
		Timeout:    50 * time.Millisecond,
	})

	start := time.Now()
	_, err := embedder.Embed(context.Background(), []string{"some text"})
	if err == nil {
		t.Fatal("expected a timeout error from a stalled service")
	}
	if elapsed := time.Since(start); elapsed > 2*time.Second {
		t.Fatalf("embed call did not respect the configured timeout, took %v", elapsed)
	}
}

func TestOpenAIEmbedderTimesOutOnStalledService(t *testing.T) {
	server := stallingServer(t)

	embedder := embeddings.NewOpenAIEmbedder(embeddings.Options{
		Model:         "test-model",
		OpenAIAPIKey:  "test-key",
		OpenAIBaseURL: server.URL + "/v1",
		Timeout:       50 * time.Millisecond,
	})

	start := time.Now()
	_, err := embedder.Embed(context.Background(), []string{"some text"})
	if err == nil {
		t.Fatal("expected a timeout error from a stalled service")
	}
	if elapsed := time.Since(start); elapsed > 2*time.Second {
		t.Fatalf("embed call did not respect the configured timeout, took %v", elapsed)
	}
}
