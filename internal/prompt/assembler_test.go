package prompt_test

import (
	"errors"
	"testing"

	"github.com/quillworks/quill/internal/prompt"
)

func TestAssemble_EmptyTemplate(t *testing.T) {
	t.Parallel()

	_, err := prompt.Assemble(prompt.Config{Template: "   "}, "beats", nil, "", "")
	if !errors.Is(err, prompt.ErrEmptyTemplate) {
		t.Fatalf("Assemble() error = %v, want ErrEmptyTemplate", err)
	}
}

func TestAssemble(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name         string
		template     string
		actionBeats  string
		vars         prompt.Vars
		documentText string
		extraContext string
		want         string
	}{
		{
			name:        "action_beats_slot_only",
			template:    "Continue the story. {action_beats}",
			actionBeats: "He opens the door.",
			want:        "Continue the story. He opens the door.",
		},
		{
			name:        "variable_substitution",
			template:    "Write in {pov} from {pov_character}'s view, {tense}. {action_beats}",
			actionBeats: "She runs.",
			vars: prompt.Vars{
				"pov":           "third person",
				"pov_character": "Alice",
				"tense":         "past tense",
			},
			want: "Write in third person from Alice's view, past tense. She runs.",
		},
		{
			name:        "unknown_placeholder_left_verbatim",
			template:    "Style: {style}. {action_beats}",
			actionBeats: "Go.",
			vars:        prompt.Vars{"pov": "first person"},
			want:        "Style: {style}. Go.",
		},
		{
			name:        "beats_appended_without_slot",
			template:    "Continue the story.",
			actionBeats: "He opens the door.",
			want:        "Continue the story.\n\nHe opens the door.",
		},
		{
			name:         "document_and_extra_context",
			template:     "{action_beats}",
			actionBeats:  "Keep going.",
			documentText: "It was a dark night.",
			extraContext: "Alice fears storms.",
			want: "Keep going." +
				"\n\n[Story so far]\nIt was a dark night." +
				"\n\n[Reference material]\nAlice fears storms.",
		},
		{
			name:         "document_only",
			template:     "{action_beats}",
			actionBeats:  "Onward.",
			documentText: "Chapter one.",
			want:         "Onward.\n\n[Story so far]\nChapter one.",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			got, err := prompt.Assemble(
				prompt.Config{Template: tt.template},
				tt.actionBeats, tt.vars, tt.documentText, tt.extraContext,
			)
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if got != tt.want {
				t.Errorf("Assemble() = %q, want %q", got, tt.want)
			}
		})
	}
}

// Assembly must be referentially transparent: identical inputs yield
// byte-identical output on every call.
func TestAssemble_Deterministic(t *testing.T) {
	t.Parallel()

	cfg := prompt.Config{Template: "POV {pov}, character {pov_character}. {action_beats}"}
	vars := prompt.Vars{"pov": "third", "pov_character": "Bob", "tense": "present"}

	first, err := prompt.Assemble(cfg, "He waits.", vars, "Doc text.", "Notes.")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	for i := 0; i < 50; i++ {
		again, err := prompt.Assemble(cfg, "He waits.", vars, "Doc text.", "Notes.")
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if again != first {
			t.Fatalf("assembly is not deterministic: %q vs %q", again, first)
		}
	}
}

func TestConfig_MaxTokensOrDefault(t *testing.T) {
	t.Parallel()

	if got := (prompt.Config{}).MaxTokensOrDefault(); got != 2000 {
		t.Errorf("default max tokens = %d, want 2000", got)
	}
	cfg := prompt.Config{Overrides: prompt.Overrides{MaxTokens: 512}}
	if got := cfg.MaxTokensOrDefault(); got != 512 {
		t.Errorf("max tokens = %d, want 512", got)
	}
}
