package check

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/ocochard/monit/internal/clock"
	"github.com/ocochard/monit/internal/event"
	"github.com/ocochard/monit/internal/model"
	"github.com/ocochard/monit/internal/sysinfo"
)

func newChecker() *Checker {
	return &Checker{Events: event.New(), Clock: clock.System}
}

func enabledService(name string, typ model.Type) *model.Service {
	return &model.Service{Name: name, Type: typ, Monitor: model.MonitorYes}
}

func TestFileMissingPostsNonexist(t *testing.T) {
	c := newChecker()
	svc := enabledService("missing", model.TypeFile)
	svc.Path = filepath.Join(t.TempDir(), "does-not-exist")

	outs := c.File(svc)
	if len(outs) != 1 || outs[0].Event.EventKind != model.KindNonexist || outs[0].Event.State != model.StateFailed {
		t.Fatalf("expected a single Nonexist Failed outcome, got %+v", outs)
	}
}

func TestFileChecksumLatchesOnFirstObservation(t *testing.T) {
	c := newChecker()
	dir := t.TempDir()
	path := filepath.Join(dir, "data.txt")
	if err := os.WriteFile(path, []byte("hello world"), 0o644); err != nil {
		t.Fatalf("WriteFile: %v", err)
	}

	svc := enabledService("data", model.TypeFile)
	svc.Path = path
	svc.ChecksumType = "MD5"

	outs := c.File(svc)
	found := false
	for _, o := range outs {
		if o.Event.EventKind == model.KindChecksum {
			found = true
			if o.Event.State != model.StateSucceeded {
				t.Fatalf("expected first checksum observation to succeed (latch), got %v", o.Event.State)
			}
		}
	}
	if !found {
		t.Fatalf("expected a Checksum event, got %+v", outs)
	}

	if err := os.WriteFile(path, []byte("changed content"), 0o644); err != nil {
		t.Fatalf("WriteFile: %v", err)
	}
	outs = c.File(svc)
	for _, o := range outs {
		if o.Event.EventKind == model.KindChecksum && o.Event.State != model.StateChanged {
			t.Fatalf("expected Changed after content modification, got %v", o.Event.State)
		}
	}
}

func TestFileContentRuleMatchesNewLines(t *testing.T) {
	c := newChecker()
	dir := t.TempDir()
	path := filepath.Join(dir, "app.log")
	if err := os.WriteFile(path, []byte("starting up\n"), 0o644); err != nil {
		t.Fatalf("WriteFile: %v", err)
	}

	svc := enabledService("app-log", model.TypeFile)
	svc.Path = path
	svc.ContentRules = []model.ContentRule{{Pattern: "ERROR", Action: model.DefaultEventAction()}}

	outs := c.File(svc) // first observation: establishes baseline, no match expected
	for _, o := range outs {
		if o.Event.EventKind == model.KindContent {
			t.Fatalf("did not expect a content match on baseline line, got %+v", o)
		}
	}

	f, err := os.OpenFile(path, os.O_APPEND|os.O_WRONLY, 0o644)
	if err != nil {
		t.Fatalf("OpenFile: %v", err)
	}
	f.WriteString("ERROR: disk full\n")
	f.Close()

	outs = c.File(svc)
	matched := false
	for _, o := range outs {
		if o.Event.EventKind == model.KindContent && o.Event.State == model.StateFailed {
			matched = true
		}
	}
	if !matched {
		t.Fatalf("expected a content-match Failed event after appending an error line, got %+v", outs)
	}
}

type fakeFilesystemSource struct{ sample sysinfo.FilesystemSample }

func (f fakeFilesystemSource) Sample(path string) (sysinfo.FilesystemSample, error) {
	return f.sample, nil
}

func TestFilesystemSpaceRuleFailsOverLimit(t *testing.T) {
	c := newChecker()
	c.Filesystems = fakeFilesystemSource{sample: sysinfo.FilesystemSample{
		BlockSize: 4096, BlocksTotal: 1000, BlocksFree: 50, BlocksAvail: 50,
		InodesTotal: 1000, InodesFree: 900,
	}}
	svc := enabledService("root-fs", model.TypeFilesystem)
	svc.Path = "/"
	svc.FilesystemRules = []model.FilesystemRule{{
		Kind: model.FSRuleSpace, Unit: model.FSUnitPercent, Op: model.OpGreater, Limit: 800, Action: model.DefaultEventAction(),
	}}

	outs := c.Filesystem(svc)
	var resourceEvt *event.Outcome
	for i := range outs {
		if outs[i].Event.EventKind == model.KindResource {
			resourceEvt = &outs[i]
		}
	}
	if resourceEvt == nil || resourceEvt.Event.State != model.StateFailed {
		t.Fatalf("expected Resource Failed (950/1000=95%% > 80%% limit), got %+v", outs)
	}
}

func TestPercentX10ClampedWhenTotalZero(t *testing.T) {
	if got := percentX10(5, 0); got != 0 {
		t.Fatalf("expected 0 when total is zero, got %d", got)
	}
}
