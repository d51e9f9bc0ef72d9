package netio

import (
	"crypto/md5"
	"crypto/tls"
	"fmt"
	"time"
)

// verifyPeerCertificate implements the two peer-certificate checks the
// original TLS layer performs beyond Go's standard chain validation
// (original_source/src/ssl/Ssl.c): an exact MD5-fingerprint pin, and a
// minimum remaining validity window, so a probe can fail a service before
// its certificate actually expires.
func verifyPeerCertificate(conn *tls.Conn, opts *TLSOptions) error {
	state := conn.ConnectionState()
	if len(state.PeerCertificates) == 0 {
		return fmt.Errorf("netio: tls: no peer certificate presented")
	}
	leaf := state.PeerCertificates[0]

	if opts.ExpectPeerMD5 != "" {
		sum := md5.Sum(leaf.Raw)
		got := fmt.Sprintf("%x", sum)
		if got != opts.ExpectPeerMD5 {
			return fmt.Errorf("netio: tls: peer certificate fingerprint mismatch: got %s, want %s", got, opts.ExpectPeerMD5)
		}
	}

	if opts.MinValidDays > 0 {
		remaining := time.Until(leaf.NotAfter)
		if remaining < time.Duration(opts.MinValidDays)*24*time.Hour {
			return fmt.Errorf("netio: tls: peer certificate expires %s, within the required %d-day window", leaf.NotAfter, opts.MinValidDays)
		}
	}
	return nil
}
