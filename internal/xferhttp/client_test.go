package xferhttp

import (
	"net/http"
	"testing"

	"github.com/rescale/xferengine/internal/config"
)

func TestNewNoProxyClient(t *testing.T) {
	cfg := config.Default()
	cfg.ProxyMode = "no-proxy"
	client, err := New(cfg)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	tr, ok := client.Transport.(*http.Transport)
	if !ok {
		t.Fatalf("expected *http.Transport, got %T", client.Transport)
	}
	if tr.MaxIdleConns == 0 {
		t.Fatal("expected connection pool tuning to be applied")
	}
}

func TestNewNilConfig(t *testing.T) {
	client, err := New(nil)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if client == nil {
		t.Fatal("expected non-nil client")
	}
}

func TestNewUnsupportedProxyMode(t *testing.T) {
	cfg := config.Default()
	cfg.ProxyMode = "bogus"
	if _, err := New(cfg); err == nil {
		t.Fatal("expected error for unsupported proxy mode")
	}
}

func TestNewNTLMMissingHostFallsBackToDirect(t *testing.T) {
	cfg := config.Default()
	cfg.ProxyMode = "ntlm"
	client, err := New(cfg)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if _, ok := client.Transport.(*http.Transport); !ok {
		t.Fatalf("expected plain transport fallback, got %T", client.Transport)
	}
}

func TestNewNTLMWithHostWrapsNegotiator(t *testing.T) {
	cfg := config.Default()
	cfg.ProxyMode = "ntlm"
	cfg.ProxyHost = "proxy.example.com"
	cfg.ProxyPort = 8080
	client, err := New(cfg)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	// NTLM wraps the transport in ntlmssp.Negotiator, so New can't apply
	// the pool/HTTP2 tuning that requires a bare *http.Transport.
	if _, ok := client.Transport.(*http.Transport); ok {
		t.Fatal("expected NTLM transport to not be a bare *http.Transport")
	}
}
