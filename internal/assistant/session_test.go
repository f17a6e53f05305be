package assistant

import (
	"errors"
	"fmt"
	"testing"
	"time"
)

func TestTranscriptTrimKeepsMostRecent(t *testing.T) {
	tr := &Transcript{MaxTurns: 10}
	for i := 1; i <= 23; i++ {
		role := RoleUser
		if i%2 == 0 {
			role = RoleAssistant
		}
		tr.Append(role, fmt.Sprintf("m%d", i))
	}
	tr.Trim()

	turns := tr.Turns()
	if len(turns) != 20 {
		t.Fatalf("len = %d, want 20", len(turns))
	}
	if turns[0].Content != "m4" || turns[19].Content != "m23" {
		t.Errorf("kept %q..%q, want m4..m23", turns[0].Content, turns[19].Content)
	}
}

func TestTranscriptRender(t *testing.T) {
	tr := &Transcript{}
	if got := tr.Render(); got != "[None]" {
		t.Fatalf("empty render = %q", got)
	}
	tr.Append(RoleUser, "How do I charge?")
	tr.Append(RoleAssistant, "Open the charge port.")
	want := "[User] How do I charge?\n[AI] Open the charge port."
	if got := tr.Render(); got != want {
		t.Fatalf("render = %q, want %q", got, want)
	}
	tr.Reset()
	if tr.Len() != 0 {
		t.Fatal("reset left turns behind")
	}
}

func TestTranscriptRenderTrims(t *testing.T) {
	tr := &Transcript{MaxTurns: 1}
	tr.Append(RoleUser, "q1")
	tr.Append(RoleAssistant, "a1")
	tr.Append(RoleUser, "q2")
	tr.Append(RoleAssistant, "a2")
	if got := tr.Render(); got != "[User] q2\n[AI] a2" {
		t.Fatalf("render = %q", got)
	}
	if tr.Len() != 2 {
		t.Fatalf("render must trim in place, len = %d", tr.Len())
	}
}

func TestSessionStore(t *testing.T) {
	store := NewSessionStore(time.Hour, 10)

	s := store.GetOrCreate("")
	if s.ID == "" {
		t.Fatal("expected generated id")
	}
	if again := store.GetOrCreate(s.ID); again != s {
		t.Fatal("GetOrCreate returned a different session for a known id")
	}
	named := store.GetOrCreate("kiosk-1")
	if named.ID != "kiosk-1" || store.Len() != 2 {
		t.Fatalf("named session = %q, len = %d", named.ID, store.Len())
	}

	s.Remember("q", "a")
	if err := store.Reset(s.ID); err != nil {
		t.Fatalf("Reset: %v", err)
	}
	if len(s.Turns()) != 0 {
		t.Error("reset did not clear transcript")
	}

	if got, err := store.Get(s.ID); err != nil || got != s {
		t.Fatalf("Get after reset = %v, %v", got, err)
	}
	if err := store.Reset("nope"); !errors.Is(err, ErrNotFound) {
		t.Fatalf("Reset unknown = %v", err)
	}
}

func TestSessionStoreCleanup(t *testing.T) {
	store := NewSessionStore(time.Minute, 10)
	old := store.GetOrCreate("old")
	store.GetOrCreate("fresh")

	old.mu.Lock()
	old.updatedAt = time.Now().Add(-2 * time.Minute)
	old.mu.Unlock()

	if n := store.Cleanup(); n != 1 {
		t.Fatalf("removed %d, want 1", n)
	}
	if _, err := store.Get("fresh"); err != nil {
		t.Fatal("fresh session evicted")
	}
}
