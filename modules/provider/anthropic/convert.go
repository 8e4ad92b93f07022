package anthropic

import (
	sdkanthropic "github.com/anthropics/anthropic-sdk-go"

	"github.com/quillworks/quill/internal/provider"
)

// convertRequest transforms a generation request into Anthropic SDK
// parameters. The assembled prompt becomes a single user message; system
// instructions go to the dedicated System field.
func convertRequest(req provider.Request, cfg *Config) sdkanthropic.MessageNewParams {
	model := cfg.Model
	if req.Params.Model != "" {
		model = req.Params.Model
	}

	params := sdkanthropic.MessageNewParams{
		Model: sdkanthropic.Model(model),
		Messages: []sdkanthropic.MessageParam{
			sdkanthropic.NewUserMessage(sdkanthropic.NewTextBlock(req.Prompt)),
		},
	}

	if req.Params.System != "" {
		params.System = []sdkanthropic.TextBlockParam{{Text: req.Params.System}}
	}

	// MaxTokens: request-level override takes precedence over config default.
	params.MaxTokens = int64(cfg.MaxTokens)
	if req.Params.MaxTokens > 0 {
		params.MaxTokens = int64(req.Params.MaxTokens)
	}

	if req.Params.Temperature != nil {
		params.Temperature = sdkanthropic.Float(*req.Params.Temperature)
	}
	if req.Params.TopP != nil {
		params.TopP = sdkanthropic.Float(*req.Params.TopP)
	}
	if len(req.Params.Stop) > 0 {
		params.StopSequences = req.Params.Stop
	}

	return params
}

// convertStopReason maps an Anthropic stop reason to a FinishReason.
func convertStopReason(reason sdkanthropic.StopReason) provider.FinishReason {
	switch reason {
	case sdkanthropic.StopReasonEndTurn, sdkanthropic.StopReasonStopSequence:
		return provider.FinishReasonStop
	case sdkanthropic.StopReasonMaxTokens:
		return provider.FinishReasonLength
	case sdkanthropic.StopReasonRefusal:
		return provider.FinishReasonFiltering
	default:
		return provider.FinishReasonStop
	}
}
