package scan

import (
	"context"
	"crypto/tls"
	"errors"
	"fmt"
	"net"
	"net/url"
	"time"
)

const (
	protoScoreTLS13       = 1.0
	protoScoreTLS12       = 0.9
	protoScoreLegacy      = 0.2 // TLS 1.0 / 1.1
	protoScoreUnknown     = 0.8
	protoScoreUnverified  = 0.4
	protoScoreHandshake   = 0.3
	protoScorePlainHTTP   = 0.0
	protoHandshakeTimeout = 10 * time.Second
)

func checkProtocol(ctx context.Context, rawURL string) (CheckResult, error) {
	u, err := url.Parse(NormalizeURL(rawURL))
	if err != nil {
		return CheckResult{}, fmt.Errorf("parse url: %w", err)
	}
	if u.Scheme != "https" {
		return Scored(protoScorePlainHTTP, "Connection uses plain HTTP, no transport encryption"), nil
	}

	host := u.Hostname()
	dialer := &net.Dialer{Timeout: protoHandshakeTimeout}
	conn, err := tls.DialWithDialer(dialer, "tcp", net.JoinHostPort(host, "443"), &tls.Config{ServerName: host})
	if err != nil {
		var verifyErr *tls.CertificateVerificationError
		if errors.As(err, &verifyErr) {
			return Scored(protoScoreUnverified, "TLS connected but certificate verification failed"), nil
		}
		var opErr *net.OpError
		if errors.As(err, &opErr) && opErr.Op == "dial" {
			return CheckResult{}, fmt.Errorf("connect %s: %w", host, err)
		}
		return Scored(protoScoreHandshake, fmt.Sprintf("TLS handshake failed: %v", err)), nil
	}
	version := conn.ConnectionState().Version
	conn.Close()

	score, name := scoreTLSVersion(version)
	return Scored(score, fmt.Sprintf("Negotiated %s", name)), nil
}

func scoreTLSVersion(version uint16) (float64, string) {
	switch version {
	case tls.VersionTLS13:
		return protoScoreTLS13, "TLS 1.3"
	case tls.VersionTLS12:
		return protoScoreTLS12, "TLS 1.2"
	case tls.VersionTLS11:
		return protoScoreLegacy, "TLS 1.1"
	case tls.VersionTLS10:
		return protoScoreLegacy, "TLS 1.0"
	default:
		return protoScoreUnknown, fmt.Sprintf("unknown TLS version 0x%04x", version)
	}
}
