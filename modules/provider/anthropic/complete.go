package anthropic

import (
	"context"
	"strings"

	sdkanthropic "github.com/anthropics/anthropic-sdk-go"

	"github.com/quillworks/quill/internal/provider"
)

// Complete sends a synchronous request to the Anthropic Messages API and
// returns the concatenated text content.
func (a *Anthropic) Complete(ctx context.Context, req provider.Request) (string, error) {
	params := convertRequest(req, &a.config)

	msg, err := a.client.Messages.New(ctx, params)
	if err != nil {
		return "", mapError(err)
	}

	var out strings.Builder
	for _, block := range msg.Content {
		if text, ok := block.AsAny().(sdkanthropic.TextBlock); ok {
			if out.Len() > 0 {
				out.WriteString("\n")
			}
			out.WriteString(text.Text)
		}
	}
	return out.String(), nil
}
