package dns

import (
	"context"
	"net"
	"testing"
)

func TestLookupIPLiteral(t *testing.T) {
	r := NewResolver()
	for _, host := range []string{"127.0.0.1", "::1"} {
		got, err := r.Lookup(context.Background(), host)
		if err != nil || got != host {
			t.Errorf("Lookup(%q): expected literal back, got %q (%v)", host, got, err)
		}
	}
}

func TestLookupLocalhost(t *testing.T) {
	r := NewResolver()
	r.Servers = nil

	got, err := r.Lookup(context.Background(), "localhost")
	if err != nil {
		t.Fatalf("Lookup failed: %v", err)
	}
	if ip := net.ParseIP(got); ip == nil || !ip.IsLoopback() {
		t.Errorf("Expected loopback address, got %q", got)
	}
}

func TestDialContext(t *testing.T) {
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatalf("Listen failed: %v", err)
	}
	defer ln.Close()

	go func() {
		conn, err := ln.Accept()
		if err == nil {
			conn.Close()
		}
	}()

	conn, err := NewResolver().DialContext(context.Background(), "tcp", ln.Addr().String())
	if err != nil {
		t.Fatalf("DialContext failed: %v", err)
	}
	conn.Close()

	if _, err := NewResolver().DialContext(context.Background(), "tcp", "missing-port"); err == nil {
		t.Error("Expected error for address without port")
	}
}
