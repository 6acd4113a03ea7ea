package http

import (
	"context"
	"crypto/tls"
	"fmt"
	"net/http"
	"time"
)

// Probe checks whether an environment URL is reachable over HTTP. Any HTTP
// response counts as reachable; only transport-level failures are errors.
// Used as a cheap preflight before spending a full Monaco run on a target
// that is down.
func Probe(ctx context.Context, url string, insecureSSL bool, timeout time.Duration) error {
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return fmt.Errorf("invalid environment URL: %w", err)
	}

	client := &http.Client{}
	if insecureSSL {
		client.Transport = &http.Transport{
			TLSClientConfig: &tls.Config{InsecureSkipVerify: true},
		}
	}

	resp, err := client.Do(req)
	if err != nil {
		return fmt.Errorf("environment unreachable: %w", err)
	}
	resp.Body.Close()
	return nil
}
