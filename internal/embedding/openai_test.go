package embedding

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
)

func embeddingServer(t *testing.T, dims int, calls *int) *httptest.Server {
	t.Helper()
	return httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if calls != nil {
			*calls++
		}
		if r.URL.Path != "/embeddings" {
			http.NotFound(w, r)
			return
		}
		if r.Header.Get("Authorization") != "Bearer test-key" {
			w.WriteHeader(http.StatusUnauthorized)
			return
		}
		var req embeddingRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			w.WriteHeader(http.StatusBadRequest)
			return
		}
		resp := embeddingResponse{}
		// Return entries in reverse order; the client must reorder by index.
		for i := len(req.Input) - 1; i >= 0; i-- {
			emb := make([]float32, dims)
			emb[0] = float32(HashString(req.Input[i]) % 97)
			resp.Data = append(resp.Data, struct {
				Index     int       `json:"index"`
				Embedding []float32 `json:"embedding"`
			}{Index: i, Embedding: emb})
		}
		json.NewEncoder(w).Encode(resp)
	}))
}

func TestOpenAIEmbedder_EmbedBatchPreservesOrder(t *testing.T) {
	srv := embeddingServer(t, 4, nil)
	defer srv.Close()

	e, err := NewOpenAIEmbedder(srv.URL, "test-key", "test-model", 4, 10)
	if err != nil {
		t.Fatal(err)
	}
	texts := []string{"alpha", "beta", "gamma"}
	out, err := e.EmbedBatch(context.Background(), texts)
	if err != nil {
		t.Fatal(err)
	}
	if len(out) != 3 {
		t.Fatalf("got %d embeddings, want 3", len(out))
	}
	for i, text := range texts {
		want := float32(HashString(text) % 97)
		if out[i][0] != want {
			t.Errorf("embedding %d out of order: got %f, want %f", i, out[i][0], want)
		}
	}
}

func TestOpenAIEmbedder_CacheAvoidsSecondCall(t *testing.T) {
	calls := 0
	srv := embeddingServer(t, 4, &calls)
	defer srv.Close()

	e, err := NewOpenAIEmbedder(srv.URL, "test-key", "test-model", 4, 10)
	if err != nil {
		t.Fatal(err)
	}
	first, err := e.Embed(context.Background(), "hello")
	if err != nil {
		t.Fatal(err)
	}
	second, err := e.Embed(context.Background(), "hello")
	if err != nil {
		t.Fatal(err)
	}
	if calls != 1 {
		t.Errorf("api called %d times, want 1", calls)
	}
	if first[0] != second[0] {
		t.Error("cached embedding differs from original")
	}
}

func TestOpenAIEmbedder_EmptyText(t *testing.T) {
	srv := embeddingServer(t, 4, nil)
	defer srv.Close()

	e, err := NewOpenAIEmbedder(srv.URL, "test-key", "test-model", 4, 10)
	if err != nil {
		t.Fatal(err)
	}
	if _, err := e.Embed(context.Background(), "  "); !errors.Is(err, ErrEmptyText) {
		t.Errorf("expected ErrEmptyText, got %v", err)
	}
	if _, err := e.EmbedBatch(context.Background(), []string{"ok", ""}); !errors.Is(err, ErrEmptyText) {
		t.Errorf("expected ErrEmptyText for batch, got %v", err)
	}
}

func TestOpenAIEmbedder_DimensionCheck(t *testing.T) {
	srv := embeddingServer(t, 4, nil)
	defer srv.Close()

	e, err := NewOpenAIEmbedder(srv.URL, "test-key", "test-model", 8, 10)
	if err != nil {
		t.Fatal(err)
	}
	if _, err := e.Embed(context.Background(), "hello"); err == nil {
		t.Error("expected error for wrong-dimension response")
	}
}

func TestOpenAIEmbedder_APIError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
		w.Write([]byte(`{"error": {"message": "boom", "type": "server_error"}}`))
	}))
	defer srv.Close()

	e, err := NewOpenAIEmbedder(srv.URL, "test-key", "test-model", 4, 10)
	if err != nil {
		t.Fatal(err)
	}
	if _, err := e.Embed(context.Background(), "hello"); err == nil {
		t.Error("expected error for 500 response")
	}
}

func TestNewOpenAIEmbedder_RequiresKey(t *testing.T) {
	if _, err := NewOpenAIEmbedder("http://localhost", "", "m", 4, 10); err == nil {
		t.Error("expected error for missing api key")
	}
}

func TestMockEmbedder_Deterministic(t *testing.T) {
	e := NewMockEmbedder(8)
	a, err := e.Embed(context.Background(), "golang")
	if err != nil {
		t.Fatal(err)
	}
	b, _ := e.Embed(context.Background(), "golang")
	for i := range a {
		if a[i] != b[i] {
			t.Fatalf("embeddings differ at %d", i)
		}
	}
	c, _ := e.Embed(context.Background(), "python")
	same := true
	for i := range a {
		if a[i] != c[i] {
			same = false
			break
		}
	}
	if same {
		t.Error("different texts produced identical embeddings")
	}
	if e.Dimensions() != 8 {
		t.Errorf("Dimensions = %d, want 8", e.Dimensions())
	}
}
