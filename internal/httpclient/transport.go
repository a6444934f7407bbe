package httpclient

import (
	"bufio"
	"context"
	"crypto/tls"
	"encoding/base64"
	"fmt"
	"net"
	"net/http"
	"time"

	utls "github.com/refraction-networking/utls"
	"golang.org/x/net/proxy"

	"github.com/relaysix/lazabot/internal/proxypool"
)

// buildTransport returns an http.Transport bound to ep (or a direct,
// utls-fingerprinted transport if ep is nil). connectTimeout (nanoseconds)
// bounds each connection setup, including the TLS handshake.
func buildTransport(ep *proxypool.Endpoint, connectTimeout, idleTimeout int64) *http.Transport {
	dialTLS := dialUTLS
	if ep != nil {
		dialTLS = proxyDialer(*ep)
	}
	timeout := time.Duration(connectTimeout)
	return &http.Transport{
		DialContext: (&net.Dialer{Timeout: timeout}).DialContext,
		DialTLSContext: func(ctx context.Context, network, addr string) (net.Conn, error) {
			if timeout > 0 {
				var cancel context.CancelFunc
				ctx, cancel = context.WithTimeout(ctx, timeout)
				defer cancel()
			}
			return dialTLS(ctx, network, addr)
		},
	}
}

func dialUTLS(ctx context.Context, network, addr string) (net.Conn, error) {
	host, _, err := net.SplitHostPort(addr)
	if err != nil {
		host = addr
	}
	dialer := &net.Dialer{}
	rawConn, err := dialer.DialContext(ctx, network, addr)
	if err != nil {
		return nil, err
	}
	return uTLSHandshake(ctx, rawConn, host)
}

func dialUTLSViaConn(ctx context.Context, rawConn net.Conn, serverName string) (net.Conn, error) {
	return uTLSHandshake(ctx, rawConn, serverName)
}

func uTLSHandshake(ctx context.Context, rawConn net.Conn, serverName string) (net.Conn, error) {
	tlsConn := utls.UClient(rawConn, &utls.Config{
		ServerName:         serverName,
		InsecureSkipVerify: false,
		MinVersion:         tls.VersionTLS12,
	}, utls.HelloChrome_Auto)

	if err := tlsConn.HandshakeContext(ctx); err != nil {
		rawConn.Close()
		return nil, err
	}
	return tlsConn, nil
}

func proxyDialer(ep proxypool.Endpoint) func(ctx context.Context, network, addr string) (net.Conn, error) {
	if ep.Type == proxypool.TypeSOCKS5 {
		return socks5Dialer(ep)
	}
	return httpConnectDialer(ep)
}

func socks5Dialer(ep proxypool.Endpoint) func(ctx context.Context, network, addr string) (net.Conn, error) {
	return func(ctx context.Context, network, addr string) (net.Conn, error) {
		var auth *proxy.Auth
		if ep.Username != "" {
			auth = &proxy.Auth{User: ep.Username, Password: ep.Password}
		}

		dialer, err := proxy.SOCKS5("tcp", ep.Addr(), auth, proxy.Direct)
		if err != nil {
			return nil, fmt.Errorf("httpclient: socks5 dialer: %w", err)
		}

		rawConn, err := dialer.Dial(network, addr)
		if err != nil {
			return nil, fmt.Errorf("httpclient: socks5 dial: %w", err)
		}

		host, _, err := net.SplitHostPort(addr)
		if err != nil {
			rawConn.Close()
			return nil, err
		}
		return dialUTLSViaConn(ctx, rawConn, host)
	}
}

func httpConnectDialer(ep proxypool.Endpoint) func(ctx context.Context, network, addr string) (net.Conn, error) {
	return func(ctx context.Context, network, addr string) (net.Conn, error) {
		dialer := &net.Dialer{}
		rawConn, err := dialer.DialContext(ctx, "tcp", ep.Addr())
		if err != nil {
			return nil, fmt.Errorf("httpclient: proxy tcp dial: %w", err)
		}

		connectReq := &http.Request{
			Method: http.MethodConnect,
			URL:    nil,
			Host:   addr,
			Header: make(http.Header),
		}
		if ep.Username != "" {
			cred := base64.StdEncoding.EncodeToString([]byte(ep.Username + ":" + ep.Password))
			connectReq.Header.Set("Proxy-Authorization", "Basic "+cred)
		}

		if err := connectReq.Write(rawConn); err != nil {
			rawConn.Close()
			return nil, fmt.Errorf("httpclient: proxy CONNECT write: %w", err)
		}

		resp, err := http.ReadResponse(bufio.NewReader(rawConn), connectReq)
		if err != nil {
			rawConn.Close()
			return nil, fmt.Errorf("httpclient: proxy CONNECT read: %w", err)
		}
		resp.Body.Close()

		if resp.StatusCode != http.StatusOK {
			rawConn.Close()
			return nil, fmt.Errorf("httpclient: proxy CONNECT failed: %s", resp.Status)
		}

		host, _, err := net.SplitHostPort(addr)
		if err != nil {
			rawConn.Close()
			return nil, err
		}
		return dialUTLSViaConn(ctx, rawConn, host)
	}
}
