package engine_test

import (
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/quillworks/quill/internal/engine"
	"github.com/quillworks/quill/internal/prompt"
)

// collectUntil drains events until one of the wanted types arrives.
func collectUntil(t *testing.T, ch <-chan engine.Event, want ...engine.EventType) []engine.Event {
	t.Helper()

	deadline := time.After(2 * time.Second)
	var events []engine.Event
	for {
		select {
		case ev, ok := <-ch:
			if !ok {
				t.Fatalf("event channel closed early; got %v", events)
			}
			events = append(events, ev)
			for _, w := range want {
				if ev.Type == w {
					return events
				}
			}
		case <-deadline:
			t.Fatalf("timed out waiting for %v; got %v", want, events)
		}
	}
}

func eventTypes(events []engine.Event) []engine.EventType {
	var out []engine.EventType
	for _, ev := range events {
		out = append(out, ev.Type)
	}
	return out
}

func basicRequest() engine.DispatchRequest {
	return engine.DispatchRequest{
		ActionBeats: "He opens the door.",
		Config:      prompt.Config{Template: "Continue. {action_beats}"},
	}
}

// ---------------------------------------------------------------------------
// Dispatch
// ---------------------------------------------------------------------------

func TestEngine_Dispatch_RequiresActionBeats(t *testing.T) {
	t.Parallel()

	e := engine.New(engine.Options{Generator: &fakeGenerator{}})
	defer e.Close()

	for _, beats := range []string{"", "   ", "\n\t"} {
		req := basicRequest()
		req.ActionBeats = beats
		if _, err := e.Dispatch(req); !errors.Is(err, engine.ErrNoActionBeats) {
			t.Errorf("Dispatch(beats=%q) error = %v, want ErrNoActionBeats", beats, err)
		}
	}
}

func TestEngine_Dispatch_StreamsToSubscribers(t *testing.T) {
	t.Parallel()

	gen := &fakeGenerator{script: []genBehavior{streamText("The door ", "creaks open.")}}
	e := engine.New(engine.Options{Generator: gen})
	defer e.Close()

	events, cancel := e.Subscribe(0)
	defer cancel()

	id, err := e.Dispatch(basicRequest())
	if err != nil {
		t.Fatalf("Dispatch() error = %v", err)
	}

	got := collectUntil(t, events, engine.EventFinished)
	want := []engine.EventType{engine.EventChunk, engine.EventChunk, engine.EventFinished}
	if len(got) != len(want) {
		t.Fatalf("events = %v, want %v", eventTypes(got), want)
	}
	var text strings.Builder
	for i, ev := range got {
		if ev.Type != want[i] {
			t.Errorf("event[%d] = %q, want %q", i, ev.Type, want[i])
		}
		if ev.TaskID != id {
			t.Errorf("event[%d] task = %q, want %q", i, ev.TaskID, id)
		}
		text.WriteString(ev.Text)
	}
	if text.String() != "The door creaks open." {
		t.Errorf("streamed text = %q", text.String())
	}
}

func TestEngine_Dispatch_ReplacesActiveTask(t *testing.T) {
	t.Parallel()

	gen := &fakeGenerator{script: []genBehavior{
		streamThenBlock("opening line"),
		streamText("second task prose"),
	}}
	e := engine.New(engine.Options{Generator: gen})
	defer e.Close()

	events, cancel := e.Subscribe(0)
	defer cancel()

	first, err := e.Dispatch(basicRequest())
	if err != nil {
		t.Fatalf("first Dispatch() error = %v", err)
	}
	// Wait for the first task to actually stream before replacing it.
	collectUntil(t, events, engine.EventChunk)

	second, err := e.Dispatch(basicRequest())
	if err != nil {
		t.Fatalf("second Dispatch() error = %v", err)
	}

	got := collectUntil(t, events, engine.EventFinished)

	var cancelledFirst, finishedSecond bool
	for _, ev := range got {
		if ev.Type == engine.EventCancelled && ev.TaskID == first {
			cancelledFirst = true
		}
		if ev.Type == engine.EventFinished && ev.TaskID == second {
			finishedSecond = true
		}
		if cancelledFirst && ev.TaskID == first && ev.Type == engine.EventChunk {
			t.Errorf("chunk from task %q after its cancellation", first)
		}
	}
	if !cancelledFirst {
		t.Errorf("no cancelled event for replaced task; events = %v", eventTypes(got))
	}
	if !finishedSecond {
		t.Errorf("no finished event for new task; events = %v", eventTypes(got))
	}
}

func TestEngine_Cancel(t *testing.T) {
	t.Parallel()

	gen := &fakeGenerator{script: []genBehavior{blockUntilCancel()}}
	e := engine.New(engine.Options{Generator: gen})
	defer e.Close()

	events, unsub := e.Subscribe(0)
	defer unsub()

	if _, err := e.Dispatch(basicRequest()); err != nil {
		t.Fatalf("Dispatch() error = %v", err)
	}
	e.Cancel()

	got := collectUntil(t, events, engine.EventCancelled)
	if n := len(got); got[n-1].Type != engine.EventCancelled {
		t.Fatalf("events = %v, want cancelled terminal", eventTypes(got))
	}
	if st := e.Status(); st.State != "cancelled" {
		t.Errorf("Status().State = %q, want cancelled", st.State)
	}
	if gen.interruptCount() == 0 {
		t.Error("Cancel did not interrupt the generator")
	}

	// Safe with nothing running.
	e.Cancel()
}

func TestEngine_Status(t *testing.T) {
	t.Parallel()

	gen := &fakeGenerator{script: []genBehavior{blockUntilCancel()}}
	e := engine.New(engine.Options{Generator: gen})
	defer e.Close()

	if st := e.Status(); st.State != "idle" || st.TaskID != "" {
		t.Errorf("initial Status() = %+v, want idle", st)
	}

	id, err := e.Dispatch(basicRequest())
	if err != nil {
		t.Fatalf("Dispatch() error = %v", err)
	}
	if st := e.Status(); st.State != "running" || st.TaskID != id {
		t.Errorf("Status() = %+v, want running task %q", st, id)
	}
}

func TestEngine_Subscribe_LaggingSubscriberDropsEvents(t *testing.T) {
	t.Parallel()

	gen := &fakeGenerator{script: []genBehavior{
		streamText("a", "b", "c", "d", "e"),
	}}
	e := engine.New(engine.Options{Generator: gen})
	defer e.Close()

	// Never drained until the end: holds the first event, loses the rest.
	lagging, unsubLag := e.Subscribe(1)
	defer unsubLag()
	healthy, unsub := e.Subscribe(0)
	defer unsub()

	if _, err := e.Dispatch(basicRequest()); err != nil {
		t.Fatalf("Dispatch() error = %v", err)
	}
	collectUntil(t, healthy, engine.EventFinished)

	if n := len(lagging); n != 1 {
		t.Errorf("lagging subscriber buffered %d events, want 1", n)
	}
}

// ---------------------------------------------------------------------------
// Manual retries
// ---------------------------------------------------------------------------

func TestEngine_Retry_WithoutPriorDispatch(t *testing.T) {
	t.Parallel()

	e := engine.New(engine.Options{Generator: &fakeGenerator{}})
	defer e.Close()

	if _, err := e.RetryWithSummary("a synopsis"); !errors.Is(err, engine.ErrNothingToRetry) {
		t.Errorf("RetryWithSummary() error = %v, want ErrNothingToRetry", err)
	}
	if _, err := e.RetryWithTruncatedContext(); !errors.Is(err, engine.ErrNothingToRetry) {
		t.Errorf("RetryWithTruncatedContext() error = %v, want ErrNothingToRetry", err)
	}
	if _, err := e.RetryWithSummary("   "); !errors.Is(err, engine.ErrEmptySummary) {
		t.Errorf("RetryWithSummary(blank) error = %v, want ErrEmptySummary", err)
	}
}

func TestEngine_RetryWithSummary_SubstitutesDocument(t *testing.T) {
	t.Parallel()

	gen := &fakeGenerator{script: []genBehavior{
		streamText("first"),
		streamText("second"),
	}}
	e := engine.New(engine.Options{Generator: gen})
	defer e.Close()

	events, unsub := e.Subscribe(0)
	defer unsub()

	req := basicRequest()
	req.DocumentText = "The full document text, chapter upon chapter."
	if _, err := e.Dispatch(req); err != nil {
		t.Fatalf("Dispatch() error = %v", err)
	}
	collectUntil(t, events, engine.EventFinished)

	if _, err := e.RetryWithSummary("A short synopsis."); err != nil {
		t.Fatalf("RetryWithSummary() error = %v", err)
	}
	collectUntil(t, events, engine.EventFinished)

	reqs := gen.requests()
	if len(reqs) != 2 {
		t.Fatalf("generator calls = %d, want 2", len(reqs))
	}
	if !strings.Contains(reqs[1].Prompt, "A short synopsis.") {
		t.Errorf("retry prompt missing summary: %q", reqs[1].Prompt)
	}
	if strings.Contains(reqs[1].Prompt, "chapter upon chapter") {
		t.Errorf("retry prompt still carries the full document: %q", reqs[1].Prompt)
	}
}

func TestEngine_RetryWithTruncatedContext_KeepsTail(t *testing.T) {
	t.Parallel()

	gen := &fakeGenerator{script: []genBehavior{
		streamText("first"),
		streamText("second"),
	}}
	e := engine.New(engine.Options{Generator: gen})
	defer e.Close()

	events, unsub := e.Subscribe(0)
	defer unsub()

	doc := strings.Repeat("The night dragged on and on. ", 100) + "Finally the door opened."
	req := basicRequest()
	req.Config.Overrides.MaxTokens = 40 // truncation window of 20 tokens
	req.DocumentText = doc
	if _, err := e.Dispatch(req); err != nil {
		t.Fatalf("Dispatch() error = %v", err)
	}
	collectUntil(t, events, engine.EventFinished)

	if _, err := e.RetryWithTruncatedContext(); err != nil {
		t.Fatalf("RetryWithTruncatedContext() error = %v", err)
	}
	collectUntil(t, events, engine.EventFinished)

	reqs := gen.requests()
	if len(reqs) != 2 {
		t.Fatalf("generator calls = %d, want 2", len(reqs))
	}

	marker := "[Story so far]\n"
	idx := strings.Index(reqs[1].Prompt, marker)
	if idx < 0 {
		t.Fatalf("retry prompt has no story section: %q", reqs[1].Prompt)
	}
	kept := reqs[1].Prompt[idx+len(marker):]
	if !strings.HasSuffix(doc, kept) {
		t.Errorf("truncated context %q is not a suffix of the document", kept)
	}
	if kept == doc {
		t.Error("truncation kept the whole document")
	}
	if !strings.Contains(kept, "Finally the door opened.") {
		t.Errorf("truncation lost the document tail: %q", kept)
	}
}
