package prompt

import (
	"errors"
	"regexp"
	"strings"
)

// ErrEmptyTemplate indicates a Config without template text.
var ErrEmptyTemplate = errors.New("prompt: empty template")

// actionBeatsVar is the reserved placeholder receiving the user's
// action-beat text.
const actionBeatsVar = "action_beats"

// Section labels for context appended after the template body.
const (
	storyHeader     = "[Story so far]"
	referenceHeader = "[Reference material]"
)

// placeholderPattern matches {name} template placeholders.
var placeholderPattern = regexp.MustCompile(`\{([A-Za-z_][A-Za-z0-9_]*)\}`)

// Assemble builds the final prompt string from the template, the user's
// action beats, additional variables, and optional context sections.
//
// Substitution walks the template left to right, so the result does not
// depend on map iteration order. Placeholders with no matching variable
// are left verbatim. If the template has no {action_beats} placeholder,
// the beats are appended after the template body.
//
// documentText, when non-empty, is appended as prior story context;
// extraContext, when non-empty, follows as reference material. Assemble
// performs no I/O: identical inputs yield byte-identical output.
func Assemble(cfg Config, actionBeats string, vars Vars, documentText, extraContext string) (string, error) {
	if strings.TrimSpace(cfg.Template) == "" {
		return "", ErrEmptyTemplate
	}

	beatsPlaced := false
	body := placeholderPattern.ReplaceAllStringFunc(cfg.Template, func(match string) string {
		name := match[1 : len(match)-1]
		if name == actionBeatsVar {
			beatsPlaced = true
			return actionBeats
		}
		if val, ok := vars[name]; ok {
			return val
		}
		return match
	})

	var b strings.Builder
	b.WriteString(body)

	if !beatsPlaced && actionBeats != "" {
		b.WriteString("\n\n")
		b.WriteString(actionBeats)
	}

	if documentText != "" {
		b.WriteString("\n\n")
		b.WriteString(storyHeader)
		b.WriteString("\n")
		b.WriteString(documentText)
	}

	if extraContext != "" {
		b.WriteString("\n\n")
		b.WriteString(referenceHeader)
		b.WriteString("\n")
		b.WriteString(extraContext)
	}

	return b.String(), nil
}
