package provider

// FinishReason describes why the model stopped generating.
type FinishReason string

// FinishReason constants for model completion termination.
const (
	FinishReasonStop      FinishReason = "stop"
	FinishReasonLength    FinishReason = "length"
	FinishReasonFiltering FinishReason = "filtering"
)

// Params are per-request generation settings applied on top of the
// provider's configured defaults. Zero values mean "use the default".
type Params struct {
	Model       string   `json:"model,omitempty"`
	System      string   `json:"system,omitempty"`
	MaxTokens   int      `json:"max_tokens,omitempty"`
	Temperature *float64 `json:"temperature,omitempty"`
	TopP        *float64 `json:"top_p,omitempty"`
	Stop        []string `json:"stop,omitempty"`
}

// Request is the input to a Provider.Generate or Provider.Complete call.
// Prompt is the fully assembled prompt text; the provider never inspects
// or rewrites it.
type Request struct {
	Prompt string `json:"prompt"`
	Params Params `json:"params"`
}

// Chunk represents one piece of a streaming generation response.
type Chunk struct {
	Text         string       `json:"text,omitempty"`
	FinishReason FinishReason `json:"finish_reason,omitempty"`
	Usage        *TokenUsage  `json:"usage,omitempty"`
	Err          error        `json:"-"`
}

// TokenUsage tracks token consumption for a generation.
type TokenUsage struct {
	PromptTokens     int `json:"prompt_tokens"`
	CompletionTokens int `json:"completion_tokens"`
	TotalTokens      int `json:"total_tokens"`
}
