package gateway

import (
	"context"
	"io"
	"log/slog"
	"net/http/httptest"
	"sync"
	"time"

	"github.com/quillworks/quill/internal/engine"
	"github.com/quillworks/quill/internal/provider"
	"github.com/quillworks/quill/internal/store"
)

// stubGenerator streams a fixed set of chunks and completes.
type stubGenerator struct {
	chunks []string
}

func (s *stubGenerator) Generate(_ context.Context, _ provider.Request) (<-chan provider.Chunk, error) {
	ch := make(chan provider.Chunk, len(s.chunks))
	for _, c := range s.chunks {
		ch <- provider.Chunk{Text: c}
	}
	close(ch)
	return ch, nil
}

func (s *stubGenerator) Interrupt() {}

// fakeDraftStore is an in-memory store.DraftStore.
type fakeDraftStore struct {
	mu     sync.Mutex
	drafts map[string]string
}

func newFakeDraftStore() *fakeDraftStore {
	return &fakeDraftStore{drafts: make(map[string]string)}
}

func (f *fakeDraftStore) Draft(_ context.Context, project string) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	text, ok := f.drafts[project]
	if !ok {
		return "", store.ErrNotFound
	}
	return text, nil
}

func (f *fakeDraftStore) SaveDraft(_ context.Context, project, text string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.drafts[project] = text
	return nil
}

// newTestGateway builds a started-equivalent Gateway around a stub-backed
// engine, without running the module lifecycle.
func newTestGateway(chunks ...string) *Gateway {
	if len(chunks) == 0 {
		chunks = []string{"The door ", "creaks open."}
	}
	cfg := Config{}
	cfg.defaults()

	g := &Gateway{
		config:    cfg,
		logger:    slog.New(slog.NewTextHandler(io.Discard, nil)),
		metrics:   &Metrics{},
		startedAt: time.Now(),
		engine:    engine.New(engine.Options{Generator: &stubGenerator{chunks: chunks}}),
	}
	return g
}

// newTestServer serves the gateway's router over httptest.
func newTestServer(g *Gateway) *httptest.Server {
	return httptest.NewServer(g.buildRouter())
}
