package check

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/ocochard/monit/internal/model"
	"github.com/ocochard/monit/internal/statestore"
)

// TestFileContentReadPosSurvivesStatestoreRoundtrip exercises the full
// Save -> Load -> File path across a simulated restart: the restored
// Info must look enough like the prior observation that check.File does
// not mistake it for a rotated file and throw away the retained read
// position (spec.md §8 roundtrip property R1 / invariants I4-I5).
func TestFileContentReadPosSurvivesStatestoreRoundtrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "app.log")
	if err := os.WriteFile(path, []byte("line one\n"), 0o644); err != nil {
		t.Fatalf("WriteFile: %v", err)
	}

	svc := enabledService("app-log", model.TypeFile)
	svc.Path = path
	svc.ContentRules = []model.ContentRule{{Pattern: "^line", Action: model.DefaultEventAction()}}

	c := newChecker()
	c.File(svc) // baseline observation: establishes Inode/ReadPos past "line one"

	g, err := model.NewGraph([]*model.Service{svc})
	if err != nil {
		t.Fatalf("NewGraph: %v", err)
	}
	store, err := statestore.Open(filepath.Join(t.TempDir(), "state.db"))
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	defer store.Close()
	if err := store.Save(g); err != nil {
		t.Fatalf("Save: %v", err)
	}

	// Simulate a restart: a freshly-parsed service with no in-memory Info.
	fresh := enabledService("app-log", model.TypeFile)
	fresh.Path = path
	fresh.ContentRules = svc.ContentRules
	g2, err := model.NewGraph([]*model.Service{fresh})
	if err != nil {
		t.Fatalf("NewGraph: %v", err)
	}
	if err := store.Load(g2); err != nil {
		t.Fatalf("Load: %v", err)
	}

	f, err := os.OpenFile(path, os.O_APPEND|os.O_WRONLY, 0o644)
	if err != nil {
		t.Fatalf("OpenFile: %v", err)
	}
	if _, err := f.WriteString("line two\n"); err != nil {
		t.Fatalf("WriteString: %v", err)
	}
	f.Close()

	c2 := newChecker()
	outs := c2.File(fresh)
	matches := 0
	for _, o := range outs {
		if o.Event.EventKind == model.KindContent {
			matches++
		}
	}
	if matches != 1 {
		t.Fatalf("expected exactly one content match for the new line after restart, got %d (ReadPos was likely reset to 0)", matches)
	}
}
