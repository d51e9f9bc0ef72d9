package statestore

import (
	"bytes"
	"encoding/binary"
	"fmt"
	"io"
	"os"

	"github.com/ocochard/monit/internal/model"
)

// legacyNameLen is STRLEN in original_source/src/monit.h, the fixed width
// of the NUL-padded name field in both legacy statefile record formats.
const legacyNameLen = 256

// ImportLegacyStatefile reads a pre-existing binary statefile written by
// the original C implementation (original_source/src/state.c) and applies
// its nstart/ncycle/monitor (and, for v1, File inode/readpos) fields onto
// g, following the exact restore policy of spec.md §4.J steps 3-5. It is
// meant to run once, ahead of Store.Load, when migrating a host's existing
// statefile into the SQLite-backed store; on success the legacy file is
// left untouched. Later state goes through Store.Save, which cmd/monitd
// calls once, at shutdown, not after each cycle.
func ImportLegacyStatefile(path string, g *model.Graph) error {
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil // fresh state, spec.md §4.J step 2
		}
		return fmt.Errorf("statestore: import legacy statefile: %w", err)
	}
	if len(data) == 0 {
		return nil
	}
	r := bytes.NewReader(data)

	var magic int32
	if err := binary.Read(r, binary.LittleEndian, &magic); err != nil {
		return fmt.Errorf("statestore: import legacy statefile: read magic: %w", err)
	}
	if magic > 0 {
		return importV0(r, int(magic), g)
	}

	var version int32
	if err := binary.Read(r, binary.LittleEndian, &version); err != nil {
		return fmt.Errorf("statestore: import legacy statefile: read version: %w", err)
	}
	switch version {
	case 1:
		return importV1(r, g)
	default:
		return fmt.Errorf("statestore: import legacy statefile: unsupported version %d, ignoring", version)
	}
}

// v0Record mirrors original_source/src/state.c's State0_T (Monit <= 5.3).
type v0Record struct {
	Name    [legacyNameLen]byte
	Mode    int32 // obsolete since Monit 5.1
	NStart  int32
	NCycle  int32
	Monitor int32
	Error   uint64 // obsolete since Monit 5.0
}

func importV0(r io.Reader, count int, g *model.Graph) error {
	for i := 0; i < count; i++ {
		var rec v0Record
		if err := binary.Read(r, binary.LittleEndian, &rec); err != nil {
			return fmt.Errorf("statestore: import legacy statefile: read v0 record %d: %w", i, err)
		}
		applyLegacyCommon(g, cString(rec.Name[:]), -1, int(rec.Monitor), int(rec.NStart), int(rec.NCycle))
	}
	return nil
}

// v1Record mirrors original_source/src/state.c's State1_T, with the
// file-check private union flattened to its two uint64 fields (the only
// variant ever populated).
type v1Record struct {
	Name    [legacyNameLen]byte
	Type    int32
	Monitor int32
	NStart  int32
	NCycle  int32
	Inode   uint64
	ReadPos uint64
}

func importV1(r io.Reader, g *model.Graph) error {
	for {
		var rec v1Record
		if err := binary.Read(r, binary.LittleEndian, &rec); err != nil {
			if err == io.EOF || err == io.ErrUnexpectedEOF {
				return nil
			}
			return fmt.Errorf("statestore: import legacy statefile: read v1 record: %w", err)
		}
		svc := applyLegacyCommon(g, cString(rec.Name[:]), int(rec.Type), int(rec.Monitor), int(rec.NStart), int(rec.NCycle))
		if svc != nil && svc.Type == model.TypeFile && (rec.Inode != 0 || rec.ReadPos != 0) {
			// Inode, not PrevInode: see the matching comment in store.go's
			// Load -- check.File compares the freshly stat'd inode against
			// info.Inode, so the restored value must land there.
			svc.Info = &model.FileInfo{Inode: rec.Inode, ReadPos: rec.ReadPos}
		}
	}
}

// applyLegacyCommon matches a legacy record to a service by name (and, if
// typ >= 0, by type too) and applies the shared nstart/ncycle/monitor
// restore policy. It returns the matched service, or nil.
func applyLegacyCommon(g *model.Graph, name string, typ, monitor, nstart, ncycle int) *model.Service {
	svc, ok := g.Lookup(name)
	if !ok || (typ >= 0 && svc.Type != model.Type(typ)) {
		return nil
	}
	svc.NStart = nstart
	svc.NCycle = ncycle
	restored := model.Monitor(monitor)
	if restored == model.MonitorNot {
		svc.Monitor = model.MonitorNot
	} else if svc.Monitor == model.MonitorNot {
		svc.Monitor = model.MonitorInit
	}
	return svc
}

// cString trims a fixed-width NUL-padded byte array to its string content.
func cString(b []byte) string {
	if i := bytes.IndexByte(b, 0); i >= 0 {
		b = b[:i]
	}
	return string(b)
}
