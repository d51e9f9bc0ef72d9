package check

import (
	"bufio"
	"crypto/md5"
	"crypto/sha1"
	"fmt"
	"hash"
	"io"
	"os"
	"regexp"
	"strings"

	"github.com/ocochard/monit/internal/event"
	"github.com/ocochard/monit/internal/model"
)

const contentLineMax = 512 // spec.md §4.F File step 5

// File evaluates a File service, spec.md §4.F "File": existence, type,
// checksum latching, permission/uid/gid/size rules, then deferred content
// matching from the retained read position. No timestamp rule is
// evaluated.
func (c *Checker) File(svc *model.Service) []event.Outcome {
	if c.skip(svc) {
		return nil
	}
	var out []event.Outcome

	st, err := os.Stat(svc.Path)
	if err != nil {
		out = append(out, c.post(svc, model.KindNonexist, model.StateFailed, model.DefaultEventAction(), "file not found"))
		return out
	}
	out = append(out, c.post(svc, model.KindNonexist, model.StateSucceeded, model.DefaultEventAction(), "file found"))

	if !st.Mode().IsRegular() && st.Mode()&os.ModeSocket == 0 {
		out = append(out, c.post(svc, model.KindInvalid, model.StateFailed, model.DefaultEventAction(), "not a regular file or socket"))
		return out
	}

	prevInfo, _ := svc.Info.(*model.FileInfo)
	info := &model.FileInfo{Size: st.Size()}
	if prevInfo != nil {
		info.PrevInode = prevInfo.Inode
		info.ReadPos = prevInfo.ReadPos
		info.Checksum = prevInfo.Checksum
		info.ChecksumLatched = prevInfo.ChecksumLatched
	}
	if inode, ok := inodeOf(st); ok {
		info.Inode = inode
	}
	svc.Info = info

	if svc.ChecksumType != "" {
		out = append(out, c.evalChecksum(svc, info))
	}

	out = append(out, evalPermissionRules(c, svc, st)...)
	if svc.SizeLimit != nil {
		state := model.StateSucceeded
		if svc.SizeLimit.Op.Match(float64(st.Size()), float64(svc.SizeLimit.Limit)) {
			state = model.StateFailed
		}
		out = append(out, c.post(svc, model.KindSize, state, svc.SizeLimit.Action, fmt.Sprintf("size %d bytes", st.Size())))
	}

	grew := prevInfo != nil && info.Size > prevInfo.Size
	inodeChanged := prevInfo != nil && info.Inode != 0 && info.Inode != prevInfo.Inode
	firstObservation := prevInfo == nil

	if len(svc.ContentRules) > 0 && (firstObservation || grew || inodeChanged) {
		if inodeChanged || strings.HasPrefix(svc.Path, "/proc") {
			info.ReadPos = 0 // /proc paths are size-unreliable, always read from 0
		}
		out = append(out, c.evalContentRules(svc, info)...)
	}

	return out
}

func (c *Checker) evalChecksum(svc *model.Service, info *model.FileInfo) event.Outcome {
	sum, err := hashFile(svc.Path, svc.ChecksumType)
	if err != nil {
		return c.post(svc, model.KindChecksum, model.StateFailed, model.DefaultEventAction(), err.Error())
	}
	if !info.ChecksumLatched {
		info.Checksum = sum
		info.ChecksumLatched = true
		return c.post(svc, model.KindChecksum, model.StateSucceeded, model.DefaultEventAction(), "checksum latched on first observation")
	}
	if sum != info.Checksum {
		prior := info.Checksum
		info.Checksum = sum
		return c.post(svc, model.KindChecksum, model.StateChanged, model.DefaultEventAction(),
			fmt.Sprintf("checksum changed from %s to %s", prior, sum))
	}
	return c.post(svc, model.KindChecksum, model.StateChangedNot, model.DefaultEventAction(), "checksum unchanged")
}

func hashFile(path, checksumType string) (string, error) {
	f, err := os.Open(path)
	if err != nil {
		return "", fmt.Errorf("check: hash %s: %w", path, err)
	}
	defer f.Close()

	var h hash.Hash
	switch strings.ToUpper(checksumType) {
	case "SHA1":
		h = sha1.New()
	default:
		h = md5.New()
	}
	buf := make([]byte, 4096)
	if _, err := io.CopyBuffer(h, f, buf); err != nil {
		return "", fmt.Errorf("check: hash %s: %w", path, err)
	}
	return fmt.Sprintf("%x", h.Sum(nil)), nil
}

// evalContentRules reads new lines from the retained read position, up
// to a 512-byte line buffer, matching each against the configured
// content/ignore rules, spec.md §4.F File step 5.
func (c *Checker) evalContentRules(svc *model.Service, info *model.FileInfo) []event.Outcome {
	f, err := os.Open(svc.Path)
	if err != nil {
		return []event.Outcome{c.post(svc, model.KindContent, model.StateFailed, model.DefaultEventAction(), err.Error())}
	}
	defer f.Close()

	if _, err := f.Seek(int64(info.ReadPos), io.SeekStart); err != nil {
		return []event.Outcome{c.post(svc, model.KindContent, model.StateFailed, model.DefaultEventAction(), err.Error())}
	}

	r := bufio.NewReaderSize(f, contentLineMax)
	var out []event.Outcome
	pos := info.ReadPos
	for {
		line, consumed, _ := readBoundedLine(r, contentLineMax)
		if line == nil {
			break
		}
		pos += uint64(consumed)
		text := string(line)

		ignored := false
		for _, rule := range svc.IgnoreRules {
			if matched, _ := regexp.MatchString(rule.Pattern, text); matched != rule.Negate {
				ignored = true
				break
			}
		}
		if ignored {
			continue
		}

		for _, rule := range svc.ContentRules {
			matched, rerr := regexp.MatchString(rule.Pattern, text)
			if rerr != nil {
				continue
			}
			if matched != rule.Negate {
				out = append(out, c.post(svc, model.KindContent, model.StateFailed, rule.Action, fmt.Sprintf("content match: %q", text)))
			}
		}
	}
	info.ReadPos = pos
	return out
}

// readBoundedLine reads one '\n'-terminated line, returning the matched
// content truncated at maxLen alongside consumed, the real number of
// bytes read off r — the two diverge for lines over maxLen, and the
// caller must advance ReadPos by consumed, not len(line), or the next
// cycle reseeks into the middle of an already-processed line. A
// trailing partial line without '\n' is not consumed (returns nil,
// preserving the read position for the next cycle).
func readBoundedLine(r *bufio.Reader, maxLen int) ([]byte, int, error) {
	line, err := r.ReadBytes('\n')
	if err != nil {
		if err == io.EOF && len(line) > 0 {
			return nil, 0, io.EOF // partial trailing line: not consumed
		}
		return nil, 0, io.EOF
	}
	consumed := len(line)
	if len(line) > maxLen {
		line = append(line[:maxLen:maxLen], '\n')
	}
	return line, consumed, nil
}

