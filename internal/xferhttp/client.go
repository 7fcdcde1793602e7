// Package xferhttp builds the *http.Client the transfer engine shares
// across block PUT uploads and ranged GET downloads. It generalizes the
// teacher's internal/http/client.go + internal/http/proxy.go pair: same
// connection-pool tuning, same HTTP/2 toggle, same proxy modes, but
// retargeted at engine config instead of Rescale API config.
package xferhttp

import (
	"crypto/tls"
	"fmt"
	"log"
	"net"
	"net/http"
	"net/url"
	"os"
	"strings"
	"time"

	ntlmssp "github.com/Azure/go-ntlmssp"
	cleanhttp "github.com/hashicorp/go-cleanhttp"
	"golang.org/x/net/http/httpproxy"
	"golang.org/x/net/http2"

	"github.com/rescale/xferengine/internal/config"
	"github.com/rescale/xferengine/internal/constants"
)

// New builds an *http.Client tuned for large-file transfer, honoring cfg's
// proxy settings. A nil cfg builds a client with no proxy configuration,
// reading only the standard HTTP_PROXY/HTTPS_PROXY/NO_PROXY environment
// variables via net/http's default transport behavior.
func New(cfg *config.Config) (*http.Client, error) {
	base, err := configureProxy(cfg)
	if err != nil {
		return nil, err
	}

	tr, ok := base.Transport.(*http.Transport)
	if !ok {
		// NTLM mode wraps the transport in ntlmssp.Negotiator; the pool/HTTP2
		// tuning below only applies to a bare *http.Transport, so return as-is.
		return base, nil
	}

	tr.MaxIdleConns = constants.HTTPMaxIdleConns
	tr.MaxIdleConnsPerHost = constants.HTTPMaxIdleConnsPerHost
	tr.MaxConnsPerHost = constants.HTTPMaxConnsPerHost
	tr.IdleConnTimeout = constants.HTTPIdleConnTimeout
	tr.TLSHandshakeTimeout = constants.HTTPTLSHandshakeTimeout
	tr.ExpectContinueTimeout = constants.HTTPExpectContinueTimeout
	tr.DisableCompression = true
	tr.ForceAttemptHTTP2 = true

	_ = http2.ConfigureTransport(tr)

	if os.Getenv("XFERENGINE_DISABLE_HTTP2") == "true" {
		tr.ForceAttemptHTTP2 = false
		tr.TLSNextProto = make(map[string]func(string, *tls.Conn) http.RoundTripper)
	}

	base.Transport = tr
	base.Timeout = 0 // callers scope timeouts per request via context

	return base, nil
}

// configureProxy builds the base client + transport for cfg's proxy mode,
// mirroring internal/http/proxy.go's ConfigureHTTPClient.
func configureProxy(cfg *config.Config) (*http.Client, error) {
	transport := cleanhttp.DefaultPooledTransport()
	transport.DialContext = (&net.Dialer{
		Timeout:   constants.HTTPDialTimeout,
		KeepAlive: constants.HTTPDialKeepAlive,
	}).DialContext
	transport.TLSClientConfig = &tls.Config{MinVersion: tls.VersionTLS12}

	if cfg == nil {
		return &http.Client{Transport: transport}, nil
	}

	switch strings.ToLower(cfg.ProxyMode) {
	case "no-proxy", "":
		transport.Proxy = nil
		return &http.Client{Transport: transport}, nil

	case "system":
		transport.Proxy = http.ProxyFromEnvironment
		return &http.Client{Transport: transport}, nil

	case "ntlm":
		if cfg.ProxyHost == "" {
			transport.Proxy = nil
			return &http.Client{Transport: transport}, nil
		}
		transport.Proxy = proxyFuncWithBypass(buildProxyURL(cfg), cfg.NoProxy)
		return &http.Client{
			Transport: ntlmssp.Negotiator{RoundTripper: transport},
		}, nil

	case "basic":
		if cfg.ProxyHost == "" {
			transport.Proxy = nil
			return &http.Client{Transport: transport}, nil
		}
		transport.Proxy = proxyFuncWithBypass(buildProxyURL(cfg), cfg.NoProxy)
		return &http.Client{Transport: transport}, nil

	default:
		return nil, fmt.Errorf("xferhttp: unsupported proxy mode %q", cfg.ProxyMode)
	}
}

func buildProxyURL(cfg *config.Config) *url.URL {
	port := cfg.ProxyPort
	if port == 0 {
		port = 8080
	}
	u := &url.URL{Scheme: "http", Host: fmt.Sprintf("%s:%d", cfg.ProxyHost, port)}
	if cfg.ProxyUser != "" && cfg.ProxyPassword != "" {
		u.User = url.UserPassword(cfg.ProxyUser, cfg.ProxyPassword)
	}
	return u
}

// proxyFuncWithBypass returns a proxy func honoring noProxy's bypass list.
func proxyFuncWithBypass(proxyURL *url.URL, noProxy string) func(*http.Request) (*url.URL, error) {
	if noProxy == "" {
		return http.ProxyURL(proxyURL)
	}
	pc := httpproxy.Config{
		HTTPProxy:  proxyURL.String(),
		HTTPSProxy: proxyURL.String(),
		NoProxy:    noProxy,
	}
	fn := pc.ProxyFunc()
	return func(req *http.Request) (*url.URL, error) {
		result, err := fn(req.URL)
		if result == nil {
			log.Printf("xferhttp: bypassing proxy for %s", req.URL.Host)
		}
		return result, err
	}
}

// DeadlineFor returns a fixed 300-second timeout for a single HTTP request,
// for callers that don't rely on context cancellation alone.
func DeadlineFor() time.Duration { return 300 * time.Second }
