package statestore

import (
	"bytes"
	"encoding/binary"
	"os"
	"path/filepath"
	"testing"

	"github.com/ocochard/monit/internal/model"
)

func writeLegacyFile(t *testing.T, buf *bytes.Buffer) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "state")
	if err := os.WriteFile(path, buf.Bytes(), 0o644); err != nil {
		t.Fatalf("WriteFile: %v", err)
	}
	return path
}

func nameField(s string) [legacyNameLen]byte {
	var b [legacyNameLen]byte
	copy(b[:], s)
	return b
}

func TestImportLegacyStatefileMissingFileIsNotAnError(t *testing.T) {
	g, _ := model.NewGraph(nil)
	if err := ImportLegacyStatefile(filepath.Join(t.TempDir(), "missing"), g); err != nil {
		t.Fatalf("ImportLegacyStatefile on a missing file: %v", err)
	}
}

func TestImportLegacyStatefileV0RestoresNStartAndMonitor(t *testing.T) {
	svc := &model.Service{Name: "nginx", Type: model.TypeProcess, Monitor: model.MonitorNot}
	g, err := model.NewGraph([]*model.Service{svc})
	if err != nil {
		t.Fatalf("NewGraph: %v", err)
	}

	var buf bytes.Buffer
	binary.Write(&buf, binary.LittleEndian, int32(1)) // magic = record count
	binary.Write(&buf, binary.LittleEndian, v0Record{
		Name: nameField("nginx"), Mode: 0, NStart: 2, NCycle: 5,
		Monitor: int32(model.MonitorYes), Error: 0,
	})

	path := writeLegacyFile(t, &buf)
	if err := ImportLegacyStatefile(path, g); err != nil {
		t.Fatalf("ImportLegacyStatefile: %v", err)
	}
	if svc.NStart != 2 || svc.NCycle != 5 {
		t.Fatalf("NStart/NCycle = %d/%d, want 2/5", svc.NStart, svc.NCycle)
	}
	if svc.Monitor != model.MonitorInit {
		t.Fatalf("Monitor = %v, want MonitorInit (Not service promoted on restore)", svc.Monitor)
	}
}

func TestImportLegacyStatefileV1RestoresFileInodeAndReadPos(t *testing.T) {
	svc := &model.Service{Name: "app.log", Type: model.TypeFile, Monitor: model.MonitorNot}
	g, err := model.NewGraph([]*model.Service{svc})
	if err != nil {
		t.Fatalf("NewGraph: %v", err)
	}

	var buf bytes.Buffer
	binary.Write(&buf, binary.LittleEndian, int32(0)) // magic = 0 marks v1
	binary.Write(&buf, binary.LittleEndian, int32(1)) // version
	binary.Write(&buf, binary.LittleEndian, v1Record{
		Name: nameField("app.log"), Type: int32(model.TypeFile), Monitor: int32(model.MonitorYes),
		NStart: 0, NCycle: 1, Inode: 778899, ReadPos: 4096,
	})

	path := writeLegacyFile(t, &buf)
	if err := ImportLegacyStatefile(path, g); err != nil {
		t.Fatalf("ImportLegacyStatefile: %v", err)
	}
	info, ok := svc.Info.(*model.FileInfo)
	if !ok {
		t.Fatalf("expected *model.FileInfo, got %T", svc.Info)
	}
	if info.Inode != 778899 || info.ReadPos != 4096 {
		t.Fatalf("Inode/ReadPos = %d/%d, want 778899/4096", info.Inode, info.ReadPos)
	}
}

func TestImportLegacyStatefileRejectsUnknownVersion(t *testing.T) {
	g, _ := model.NewGraph(nil)
	var buf bytes.Buffer
	binary.Write(&buf, binary.LittleEndian, int32(0))
	binary.Write(&buf, binary.LittleEndian, int32(99))
	path := writeLegacyFile(t, &buf)
	if err := ImportLegacyStatefile(path, g); err == nil {
		t.Fatalf("expected an error for an unsupported statefile version")
	}
}

func TestCStringTrimsAtFirstNUL(t *testing.T) {
	b := nameField("nginx")
	if got := cString(b[:]); got != "nginx" {
		t.Fatalf("cString = %q, want %q", got, "nginx")
	}
}
