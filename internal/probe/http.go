package probe

import (
	"bufio"
	"crypto/md5"
	"crypto/sha1"
	"encoding/hex"
	"fmt"
	"hash"
	"io"
	"net/http"
	"net/textproto"
	"regexp"
	"strconv"
	"strings"

	"github.com/ocochard/monit/internal/model"
	"github.com/ocochard/monit/internal/netio"
)

// httpContentMax bounds how much of a response body is read for regex and
// checksum matching, regardless of a declared Content-Length, grounded on
// original_source/src/protocols/http.c's HTTP_CONTENT_MAX.
const httpContentMax = 1048576

// HTTP drives an HTTP/1.1 request over an already-connected socket (so
// the rule's own connect/TLS/timeout policy applies) and validates the
// status line, optional content regex and optional body checksum,
// grounded on original_source/src/protocols/http.c's check_http.
func HTTP(sock *netio.Socket, check *model.HTTPCheck, timeoutMs int) (Result, error) {
	path := check.Path
	if path == "" {
		path = "/"
	}
	host := check.Host
	if host == "" {
		host = sock.Conn().RemoteAddr().String()
	}

	var req strings.Builder
	fmt.Fprintf(&req, "GET %s HTTP/1.1\r\n", path)
	fmt.Fprintf(&req, "Host: %s\r\n", host)
	fmt.Fprintf(&req, "Connection: close\r\n")
	fmt.Fprintf(&req, "User-Agent: monit\r\n")
	for k, v := range check.ExtraHeaders {
		fmt.Fprintf(&req, "%s: %s\r\n", k, v)
	}
	if check.Username != "" {
		req.WriteString("Authorization: Basic " + basicAuthValue(check.Username, check.Password) + "\r\n")
	}
	req.WriteString("\r\n")

	if err := sock.Print(timeoutMs, "%s", req.String()); err != nil {
		return Result{}, fmt.Errorf("probe: http: request: %w", err)
	}

	tp := textproto.NewReader(bufio.NewReader(&socketReader{sock: sock, timeoutMs: timeoutMs}))
	statusLine, err := tp.ReadLine()
	if err != nil {
		return Result{}, fmt.Errorf("probe: http: status line: %w", err)
	}
	status, err := parseStatusCode(statusLine)
	if err != nil {
		return Result{}, fmt.Errorf("probe: http: %w", err)
	}
	header, err := tp.ReadMIMEHeader()
	if err != nil && err != io.EOF {
		return Result{}, fmt.Errorf("probe: http: headers: %w", err)
	}

	op := check.StatusOp
	limit := check.StatusLimit
	if limit == 0 && op == model.OpEqual {
		op, limit = model.OpGreaterEqual, 400
	}
	if op.Match(float64(status), float64(limit)) {
		return Result{}, fmt.Errorf("probe: http: status %d matched failure rule", status)
	}

	var body []byte
	if check.ContentRegex != "" || check.ChecksumExpect != "" {
		body, err = readBodyCapped(tp.R, httpContentMax)
		if err != nil {
			return Result{}, fmt.Errorf("probe: http: body: %w", err)
		}
		if len(body) == 0 {
			return Result{}, fmt.Errorf("probe: http: no content returned")
		}
	}

	if check.ContentRegex != "" {
		re, err := regexp.Compile(check.ContentRegex)
		if err != nil {
			return Result{}, fmt.Errorf("probe: http: invalid content regex: %w", err)
		}
		matched := re.Match(body)
		if matched == check.ContentNegate {
			return Result{}, fmt.Errorf("probe: http: content regex %q did not satisfy rule", check.ContentRegex)
		}
	}

	if check.ChecksumExpect != "" {
		var h hash.Hash
		switch strings.ToUpper(check.ChecksumType) {
		case "SHA1":
			h = sha1.New()
		default:
			h = md5.New()
		}
		h.Write(body)
		got := hex.EncodeToString(h.Sum(nil))
		if !strings.EqualFold(got, check.ChecksumExpect) {
			return Result{}, fmt.Errorf("probe: http: checksum mismatch: got %s, want %s", got, check.ChecksumExpect)
		}
	}

	return Result{Detail: header.Get("Server")}, nil
}

func parseStatusCode(line string) (int, error) {
	fields := strings.Fields(line)
	if len(fields) < 2 {
		return 0, fmt.Errorf("malformed status line %q", line)
	}
	return strconv.Atoi(fields[1])
}

func readBodyCapped(r io.Reader, max int64) ([]byte, error) {
	lr := io.LimitReader(r, max)
	return io.ReadAll(lr)
}

func basicAuthValue(user, pass string) string {
	req, _ := http.NewRequest("GET", "/", nil)
	req.SetBasicAuth(user, pass)
	return strings.TrimPrefix(req.Header.Get("Authorization"), "Basic ")
}

// socketReader adapts a netio.Socket to io.Reader so the standard
// net/textproto response parser can run over it.
type socketReader struct {
	sock      *netio.Socket
	timeoutMs int
}

func (r *socketReader) Read(p []byte) (int, error) {
	if len(p) == 0 {
		return 0, nil
	}
	b, err := r.sock.ReadByte(r.timeoutMs)
	if err != nil {
		return 0, err
	}
	p[0] = b
	return 1, nil
}
