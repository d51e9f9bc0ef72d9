package probe

import (
	"net"
	"testing"

	"github.com/ocochard/monit/internal/model"
	"github.com/ocochard/monit/internal/netio"
)

// dialPair returns a connected client netio.Socket and the raw server-side
// net.Conn, letting tests script protocol fixtures without a real socket.
func dialPair(t *testing.T) (*netio.Socket, net.Conn) {
	t.Helper()
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatalf("listen: %v", err)
	}
	defer ln.Close()

	serverCh := make(chan net.Conn, 1)
	go func() {
		conn, err := ln.Accept()
		if err == nil {
			serverCh <- conn
		}
	}()

	addr := ln.Addr().(*net.TCPAddr)
	client, err := netio.Dial("127.0.0.1", addr.Port, "", netio.TCP, nil, 1000)
	if err != nil {
		t.Fatalf("dial: %v", err)
	}
	return client, <-serverCh
}

func TestGenericSendExpect(t *testing.T) {
	client, server := dialPair(t)
	defer client.Close()
	defer server.Close()

	go func() {
		buf := make([]byte, 16)
		n, _ := server.Read(buf)
		if string(buf[:n]) != "PING\r\n" {
			t.Errorf("server saw %q", buf[:n])
		}
		server.Write([]byte("PONG\r\n"))
	}()

	steps := []model.SendExpectStep{{Send: "PING\r\n", Expect: "^PONG"}}
	if _, err := Generic(client, steps, 1000); err != nil {
		t.Fatalf("Generic: %v", err)
	}
}

func TestGenericExpectMismatch(t *testing.T) {
	client, server := dialPair(t)
	defer client.Close()
	defer server.Close()

	go func() {
		server.Write([]byte("NOPE\r\n"))
	}()

	steps := []model.SendExpectStep{{Expect: "^PONG"}}
	if _, err := Generic(client, steps, 1000); err == nil {
		t.Fatalf("expected expect-mismatch error")
	}
}

func TestSMTPGreeting(t *testing.T) {
	client, server := dialPair(t)
	defer client.Close()
	defer server.Close()

	go func() {
		server.Write([]byte("220 mail.example.com ESMTP\r\n"))
		buf := make([]byte, 64)
		server.Read(buf) // EHLO
		server.Write([]byte("250 mail.example.com\r\n"))
	}()

	if _, err := SMTP(client, 1000); err != nil {
		t.Fatalf("SMTP: %v", err)
	}
}

func TestPOPGreeting(t *testing.T) {
	client, server := dialPair(t)
	defer client.Close()
	defer server.Close()

	go func() { server.Write([]byte("+OK POP3 ready\r\n")) }()

	if _, err := POP(client, 1000); err != nil {
		t.Fatalf("POP: %v", err)
	}
}

func TestSSHIdentificationExchange(t *testing.T) {
	client, server := dialPair(t)
	defer client.Close()
	defer server.Close()

	go func() {
		server.Write([]byte("SSH-2.0-OpenSSH_9.0\r\n"))
	}()

	if _, err := SSH(client, 1000); err != nil {
		t.Fatalf("SSH: %v", err)
	}
}

func TestSSHRejectsNonSSHBanner(t *testing.T) {
	client, server := dialPair(t)
	defer client.Close()
	defer server.Close()

	go func() { server.Write([]byte("HELLO WORLD\r\n")) }()

	if _, err := SSH(client, 1000); err == nil {
		t.Fatalf("expected protocol error for non-SSH banner")
	}
}

func TestLookupUnknownProtocolFalse(t *testing.T) {
	if _, ok := Lookup("NOPE"); ok {
		t.Fatalf("expected unknown protocol to miss")
	}
	if _, ok := Lookup("smtp"); !ok {
		t.Fatalf("expected case-insensitive lookup to hit")
	}
}
