package scan

import (
	"crypto/tls"
	"errors"
	"fmt"
	"net"
	"net/http"
	"strings"
	"time"
)

const browserUA = "Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/124.0.0.0 Safari/537.36"

// QuickCheck is a fast reachability probe: HEAD first, falling back to GET
// when the server rejects the method. Any HTTP status below 500 counts as
// reachable. It exists to fail fast on dead targets, not to judge safety.
func QuickCheck(rawURL string, timeout time.Duration) (bool, string) {
	client := &http.Client{
		Timeout: timeout,
		Transport: &http.Transport{
			TLSClientConfig: &tls.Config{InsecureSkipVerify: true},
		},
	}

	status, err := probe(client, http.MethodHead, rawURL)
	if err != nil {
		return false, categorizeConnError(err)
	}

	// Some servers refuse HEAD outright; retry those with GET before
	// judging the status code.
	if status == http.StatusMethodNotAllowed || status == http.StatusNotImplemented || status == http.StatusForbidden {
		if getStatus, getErr := probe(client, http.MethodGet, rawURL); getErr == nil {
			status = getStatus
		}
	}

	if status < 500 {
		return true, ""
	}
	return false, fmt.Sprintf("Server returned HTTP %d", status)
}

func probe(client *http.Client, method, rawURL string) (int, error) {
	req, err := http.NewRequest(method, rawURL, nil)
	if err != nil {
		return 0, err
	}
	req.Header.Set("User-Agent", browserUA)
	resp, err := client.Do(req)
	if err != nil {
		return 0, err
	}
	resp.Body.Close()
	return resp.StatusCode, nil
}

func categorizeConnError(err error) string {
	var netErr net.Error
	if errors.As(err, &netErr) && netErr.Timeout() {
		return "Connection timed out"
	}
	var dnsErr *net.DNSError
	if errors.As(err, &dnsErr) {
		return fmt.Sprintf("Could not resolve host %s", dnsErr.Name)
	}
	msg := err.Error()
	switch {
	case strings.Contains(msg, "tls:") || strings.Contains(msg, "x509:"):
		return "TLS handshake failed"
	case strings.Contains(msg, "connection refused"):
		return "Connection refused"
	default:
		return fmt.Sprintf("Connection failed: %v", err)
	}
}
