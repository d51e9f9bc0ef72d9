// Package statusxml builds and serializes the XML status document that
// internal/httpd serves at /_status2 and internal/dispatch posts to an
// upstream collector, grounded on the flat wire format the teacher's
// internal/parser package reads (its Service/SystemMetrics/ProcessMemory
// struct shapes and xml tags are reused here, just driven by Marshal
// instead of Unmarshal).
package statusxml

import (
	"encoding/xml"
	"fmt"

	"github.com/ocochard/monit/internal/model"
)

// Document is the root <monit> element.
type Document struct {
	XMLName  xml.Name  `xml:"monit"`
	ID       string    `xml:"id,attr"`
	Version  string    `xml:"version,attr"`
	Server   Server    `xml:"server"`
	Platform Platform  `xml:"platform"`
	Services []Service `xml:"service"`
}

type Server struct {
	ID            string    `xml:"id"`
	Incarnation   int64     `xml:"incarnation"`
	Version       string    `xml:"version"`
	Uptime        int64     `xml:"uptime"`
	Poll          int       `xml:"poll"`
	StartDelay    int       `xml:"startdelay"`
	LocalHostname string    `xml:"localhostname"`
	ControlFile   string    `xml:"controlfile"`
	HTTPD         HTTPDInfo `xml:"httpd"`
}

type HTTPDInfo struct {
	Address string `xml:"address"`
	Port    int    `xml:"port"`
	SSL     int    `xml:"ssl"`
}

type Platform struct {
	Name    string `xml:"name"`
	Release string `xml:"release"`
	Version string `xml:"version"`
	Machine string `xml:"machine"`
	CPU     int    `xml:"cpu"`
	Memory  int64  `xml:"memory"`
	Swap    int64  `xml:"swap"`
}

// Service mirrors the teacher's flat per-type field layout: every
// possible nested block is present as an omitempty pointer, and only the
// block matching Type is populated by fromService.
type Service struct {
	Type          int    `xml:"type"`
	Name          string `xml:"name,attr"`
	CollectedSec  int64  `xml:"collected_sec"`
	CollectedUsec int64  `xml:"collected_usec"`
	Status        int    `xml:"status"`
	StatusHint    int    `xml:"status_hint"`
	Monitor       int    `xml:"monitor"`
	PendingAction int    `xml:"pendingaction"`

	System     *SystemMetrics  `xml:"system,omitempty"`
	Process    *ProcessFields  `xml:"process,omitempty"`
	Program    *ProgramFields  `xml:"program,omitempty"`
	File       *FileFields     `xml:"file,omitempty"`
	Filesystem *FilesystemFields `xml:"filesystem,omitempty"`
	Host       *HostFields     `xml:"host,omitempty"`
	Link       *LinkFields     `xml:"link,omitempty"`
}

type SystemMetrics struct {
	Load   LoadAverage `xml:"load"`
	CPU    CPUUsage    `xml:"cpu"`
	Memory PctKbyte    `xml:"memory"`
	Swap   PctKbyte    `xml:"swap"`
}

type LoadAverage struct {
	Avg01 float64 `xml:"avg01"`
	Avg05 float64 `xml:"avg05"`
	Avg15 float64 `xml:"avg15"`
}

type CPUUsage struct {
	User   float64 `xml:"user"`
	System float64 `xml:"system"`
	Wait   float64 `xml:"wait"`
}

type PctKbyte struct {
	Percent  float64 `xml:"percent"`
	Kilobyte int64   `xml:"kilobyte"`
}

type ProcessFields struct {
	PID      int      `xml:"pid"`
	PPID     int      `xml:"ppid"`
	UID      int      `xml:"uid"`
	EUID     int      `xml:"euid"`
	GID      int      `xml:"gid"`
	Uptime   int64    `xml:"uptime"`
	Children int      `xml:"children"`
	Memory   PctKbyte `xml:"memory"`
	CPU      struct {
		Percent      float64 `xml:"percent"`
		PercentTotal float64 `xml:"percenttotal"`
	} `xml:"cpu"`
}

type ProgramFields struct {
	Started int64  `xml:"started"`
	Status  int    `xml:"status"`
	Output  string `xml:"output"`
}

type FileFields struct {
	Mode      string `xml:"mode"`
	UID       int    `xml:"uid"`
	GID       int    `xml:"gid"`
	Size      int64  `xml:"size"`
	Timestamp int64  `xml:"timestamp"`
	Checksum  string `xml:"checksum,omitempty"`
}

type FilesystemFields struct {
	Mode  string   `xml:"mode"`
	Block PctKbyte `xml:"block"`
	Inode PctKbyte `xml:"inode"`
}

type HostFields struct {
	ICMPResponseSec float64            `xml:"icmp_responsetime,omitempty"`
	Ports           map[string]float64 `xml:"-"`
}

type LinkFields struct {
	State int   `xml:"state"`
	Speed int64 `xml:"speed"`
}

// Build assembles a Document from g, stamping every service's latest
// Info onto its type-specific XML block.
func Build(g *model.Graph, serverID, version, hostname string, incarnation, uptime int64, pollSeconds int) *Document {
	doc := &Document{
		ID:      serverID,
		Version: version,
		Server: Server{
			ID:            serverID,
			Incarnation:   incarnation,
			Version:       version,
			Uptime:        uptime,
			Poll:          pollSeconds,
			LocalHostname: hostname,
		},
	}
	for _, svc := range g.All() {
		doc.Services = append(doc.Services, fromService(svc))
	}
	return doc
}

func fromService(svc *model.Service) Service {
	s := Service{
		Type:          int(svc.Type),
		Name:          svc.Name,
		CollectedSec:  svc.CollectedAt,
		Status:        statusCode(svc),
		Monitor:       int(svc.Monitor),
		PendingAction: int(svc.Pending),
	}

	switch info := svc.Info.(type) {
	case *model.SystemInfo:
		s.System = &SystemMetrics{
			Load:   LoadAverage{Avg01: info.Load1, Avg05: info.Load5, Avg15: info.Load15},
			CPU:    CPUUsage{User: info.CPUUser, System: info.CPUSystem, Wait: info.CPUWait},
			Memory: PctKbyte{Percent: float64(info.MemPercent) / 10, Kilobyte: info.MemKbyte},
			Swap:   PctKbyte{Percent: float64(info.SwapPercent) / 10, Kilobyte: info.SwapKbyte},
		}
	case *model.ProcessInfo:
		p := &ProcessFields{
			PID: info.PID, PPID: info.PPID, UID: info.UID, EUID: info.EUID, GID: info.GID,
			Uptime: info.Uptime, Children: info.Children,
			Memory: PctKbyte{Percent: float64(info.MemPercent) / 10, Kilobyte: info.MemKbyte},
		}
		p.CPU.Percent = float64(info.CPUPercent) / 10
		p.CPU.PercentTotal = float64(info.CPUPercentTotal) / 10
		s.Process = p
	case *model.ProgramInfo:
		s.Program = &ProgramFields{Started: info.Started, Status: info.ExitStatus, Output: info.Stdout}
	case *model.FileInfo:
		s.File = &FileFields{
			Mode: fmt.Sprintf("%o", info.Mode), UID: info.UID, GID: info.GID,
			Size: info.Size, Timestamp: info.Timestamp, Checksum: info.Checksum,
		}
	case *model.FilesystemInfo:
		s.Filesystem = &FilesystemFields{
			Mode:  fmt.Sprintf("%o", info.Mode),
			Block: PctKbyte{Percent: float64(info.SpacePercent) / 10, Kilobyte: info.BlocksTotal - info.BlocksFree},
			Inode: PctKbyte{Percent: float64(info.InodePercent) / 10, Kilobyte: info.InodesTotal - info.InodesFree},
		}
	case *model.HostInfo:
		s.Host = &HostFields{ICMPResponseSec: info.ICMPResponseSec, Ports: info.PortResponseSec}
	case *model.NetInfo:
		state := 0
		if info.LinkUp {
			state = 1
		}
		s.Link = &LinkFields{State: state, Speed: info.SpeedBps}
	}
	return s
}

// statusCode collapses ErrorBitmap into the single legacy status code a
// wire consumer expects: 0 when nothing is failing, 1 otherwise.
func statusCode(svc *model.Service) int {
	if svc.ErrorBitmap != 0 {
		return 1
	}
	return 0
}

// Marshal renders doc as an indented XML document with its declaration,
// matching the wire format the teacher's parser reads.
func Marshal(doc *Document) ([]byte, error) {
	body, err := xml.MarshalIndent(doc, "", "  ")
	if err != nil {
		return nil, fmt.Errorf("statusxml: marshal: %w", err)
	}
	out := append([]byte(xml.Header), body...)
	return out, nil
}
