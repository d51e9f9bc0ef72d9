package statestore

import (
	"path/filepath"
	"testing"

	"github.com/ocochard/monit/internal/model"
)

func TestSaveThenLoadRestoresCycleCountersAndFileOffsets(t *testing.T) {
	s := openTestStore(t)

	svc := &model.Service{Name: "app.log", Type: model.TypeFile, Monitor: model.MonitorYes,
		NStart: 1, NCycle: 4, Info: &model.FileInfo{Inode: 12345, ReadPos: 99}}
	g, err := model.NewGraph([]*model.Service{svc})
	if err != nil {
		t.Fatalf("NewGraph: %v", err)
	}

	if err := s.Save(g); err != nil {
		t.Fatalf("Save: %v", err)
	}

	svc.NStart, svc.NCycle = 0, 0
	svc.Info = nil
	if err := s.Load(g); err != nil {
		t.Fatalf("Load: %v", err)
	}
	if svc.NStart != 1 || svc.NCycle != 4 {
		t.Fatalf("NStart/NCycle = %d/%d, want 1/4", svc.NStart, svc.NCycle)
	}
	info, ok := svc.Info.(*model.FileInfo)
	if !ok || info.Inode != 12345 || info.ReadPos != 99 {
		t.Fatalf("unexpected file info after load: %+v", svc.Info)
	}
}

func TestSaveMasksMonitorWaitingBeforePersisting(t *testing.T) {
	s := openTestStore(t)

	svc := &model.Service{Name: "nginx", Type: model.TypeProcess, Monitor: model.MonitorYes | model.MonitorWaiting}
	g, err := model.NewGraph([]*model.Service{svc})
	if err != nil {
		t.Fatalf("NewGraph: %v", err)
	}
	if err := s.Save(g); err != nil {
		t.Fatalf("Save: %v", err)
	}

	svc.Monitor = model.MonitorNot
	if err := s.Load(g); err != nil {
		t.Fatalf("Load: %v", err)
	}
	if svc.Monitor != model.MonitorYes {
		t.Fatalf("Monitor = %v, want MonitorYes with the Waiting bit stripped", svc.Monitor)
	}
}

func TestLoadPromotesAFreshNotServiceToInitWhenRestoredMonitorWasYes(t *testing.T) {
	s := openTestStore(t)

	stored := &model.Service{Name: "nginx", Type: model.TypeProcess, Monitor: model.MonitorYes}
	g1, err := model.NewGraph([]*model.Service{stored})
	if err != nil {
		t.Fatalf("NewGraph: %v", err)
	}
	if err := s.Save(g1); err != nil {
		t.Fatalf("Save: %v", err)
	}

	fresh := &model.Service{Name: "nginx", Type: model.TypeProcess, Monitor: model.MonitorNot}
	g2, err := model.NewGraph([]*model.Service{fresh})
	if err != nil {
		t.Fatalf("NewGraph: %v", err)
	}
	if err := s.Load(g2); err != nil {
		t.Fatalf("Load: %v", err)
	}
	if fresh.Monitor != model.MonitorInit {
		t.Fatalf("Monitor = %v, want MonitorInit", fresh.Monitor)
	}
}

func TestLoadKeepsAnExplicitNotServiceUnmonitored(t *testing.T) {
	s := openTestStore(t)

	stored := &model.Service{Name: "nginx", Type: model.TypeProcess, Monitor: model.MonitorNot}
	g1, err := model.NewGraph([]*model.Service{stored})
	if err != nil {
		t.Fatalf("NewGraph: %v", err)
	}
	if err := s.Save(g1); err != nil {
		t.Fatalf("Save: %v", err)
	}

	fresh := &model.Service{Name: "nginx", Type: model.TypeProcess, Monitor: model.MonitorYes}
	g2, err := model.NewGraph([]*model.Service{fresh})
	if err != nil {
		t.Fatalf("NewGraph: %v", err)
	}
	if err := s.Load(g2); err != nil {
		t.Fatalf("Load: %v", err)
	}
	if fresh.Monitor != model.MonitorNot {
		t.Fatalf("Monitor = %v, want MonitorNot (explicit pause survives restart)", fresh.Monitor)
	}
}

func TestLoadSkipsRowsWhoseServiceWasRemovedOrRetyped(t *testing.T) {
	s := openTestStore(t)

	stored := &model.Service{Name: "nginx", Type: model.TypeProcess, Monitor: model.MonitorYes, NStart: 3}
	g1, err := model.NewGraph([]*model.Service{stored})
	if err != nil {
		t.Fatalf("NewGraph: %v", err)
	}
	if err := s.Save(g1); err != nil {
		t.Fatalf("Save: %v", err)
	}

	retyped := &model.Service{Name: "nginx", Type: model.TypeFile, Monitor: model.MonitorYes}
	g2, err := model.NewGraph([]*model.Service{retyped})
	if err != nil {
		t.Fatalf("NewGraph: %v", err)
	}
	if err := s.Load(g2); err != nil {
		t.Fatalf("Load: %v", err)
	}
	if retyped.NStart != 0 {
		t.Fatalf("expected a retyped service to skip the stale row, got NStart=%d", retyped.NStart)
	}
}

func TestOpenCreatesSchemaAtAFreshPath(t *testing.T) {
	path := filepath.Join(t.TempDir(), "fresh.db")
	s, err := Open(path)
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	defer s.Close()

	g, err := model.NewGraph(nil)
	if err != nil {
		t.Fatalf("NewGraph: %v", err)
	}
	if err := s.Load(g); err != nil {
		t.Fatalf("Load on a freshly created database: %v", err)
	}
	if err := s.Save(g); err != nil {
		t.Fatalf("Save on a freshly created database: %v", err)
	}
}
