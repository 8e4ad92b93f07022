// Package openaicompat provides an OpenAI-compatible text-generation
// provider module. It works with any API that implements the OpenAI chat
// completions interface (Mistral, Groq, DeepSeek, Together, vLLM, LiteLLM,
// local llama.cpp servers, etc.) via a configurable base_url.
package openaicompat

import (
	"bufio"
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"os"

	"gopkg.in/yaml.v3"

	"github.com/quillworks/quill/internal/core"
	"github.com/quillworks/quill/internal/provider"
)

func init() {
	core.RegisterModule(&Provider{})
}

// Provider is an OpenAI-compatible text-generation provider.
type Provider struct {
	config Config
	client *http.Client
	logger *slog.Logger
}

// ModuleInfo implements core.Module.
func (p *Provider) ModuleInfo() core.ModuleInfo {
	return core.ModuleInfo{
		ID:  "provider.openai_compatible",
		New: func() core.Module { return &Provider{} },
	}
}

// Configure implements core.Configurable.
func (p *Provider) Configure(node *yaml.Node) error {
	if err := node.Decode(&p.config); err != nil {
		return err
	}
	p.config.defaults()
	return nil
}

// Provision implements core.Provisioner.
func (p *Provider) Provision(ctx *core.AppContext) error {
	p.logger = ctx.Logger

	// Resolve the API key from the environment if configured indirectly.
	if p.config.APIKey == "" && p.config.APIKeyEnv != "" {
		p.config.APIKey = os.Getenv(p.config.APIKeyEnv)
	}

	// Use a transport with response-header timeout instead of a global client
	// timeout. A global timeout kills long-running SSE streams; per-request
	// context handles cancellation.
	p.client = &http.Client{
		Transport: &http.Transport{
			ResponseHeaderTimeout: p.config.Timeout,
		},
	}

	ctx.RegisterService("provider.openai_compatible", p)
	return nil
}

// Validate implements core.Validator.
func (p *Provider) Validate() error {
	return p.config.validate()
}

// Complete implements provider.Provider.
func (p *Provider) Complete(ctx context.Context, req provider.Request) (string, error) {
	oaiReq := buildRequest(&p.config, req, false)

	resp, err := p.doRequest(ctx, oaiReq)
	if err != nil {
		return "", err
	}
	defer resp.Body.Close() //nolint:errcheck // best-effort close

	if resp.StatusCode != http.StatusOK {
		return "", handleErrorResponse(resp)
	}

	var oaiResp oaiResponse
	if err := json.NewDecoder(resp.Body).Decode(&oaiResp); err != nil {
		return "", fmt.Errorf("decode response: %w", err)
	}

	if len(oaiResp.Choices) == 0 {
		return "", nil
	}
	return oaiResp.Choices[0].Message.Content, nil
}

// Generate implements provider.Provider. Initial connection and HTTP-level
// errors are returned directly; mid-stream errors arrive via Chunk.Err.
func (p *Provider) Generate(ctx context.Context, req provider.Request) (<-chan provider.Chunk, error) {
	oaiReq := buildRequest(&p.config, req, true)

	resp, err := p.doRequest(ctx, oaiReq)
	if err != nil {
		return nil, err
	}

	if resp.StatusCode != http.StatusOK {
		defer resp.Body.Close() //nolint:errcheck // best-effort close
		return nil, handleErrorResponse(resp)
	}

	// Increase scanner buffer to 1 MiB to handle large SSE lines.
	scanner := bufio.NewScanner(resp.Body)
	scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)

	ch := p.parseSSEStream(ctx, scanner)

	// Wrap to ensure the body gets closed when the stream ends.
	// Select on ctx.Done() to avoid a goroutine leak if the consumer
	// abandons the channel.
	out := make(chan provider.Chunk, 16)
	go func() {
		defer close(out)
		defer resp.Body.Close() //nolint:errcheck // best-effort close
		for chunk := range ch {
			select {
			case out <- chunk:
			case <-ctx.Done():
				return
			}
		}
	}()

	return out, nil
}

// ContextWindowSize implements provider.Provider.
func (p *Provider) ContextWindowSize() int {
	return p.config.ContextWindow
}

// ModelName implements provider.Provider.
func (p *Provider) ModelName() string {
	return p.config.Model
}

// errMissingField returns a validation error for a missing required field.
func errMissingField(field string) error {
	return fmt.Errorf("provider.openai_compatible: %s is required", field)
}

// Compile-time interface assertions.
var (
	_ core.Module       = (*Provider)(nil)
	_ core.Configurable = (*Provider)(nil)
	_ core.Provisioner  = (*Provider)(nil)
	_ core.Validator    = (*Provider)(nil)
	_ provider.Provider = (*Provider)(nil)
)
