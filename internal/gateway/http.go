package gateway

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/whispertag/whispertag/internal/common"
	"github.com/whispertag/whispertag/internal/logging"
)

// HTTPGateway talks to one or more content-addressed storage endpoints over
// plain HTTP. Endpoints are tried sequentially in the configured priority
// order, short-circuiting on the first success; this keeps the attempt order
// deterministic and bounds total latency, unlike racing them in parallel.
type HTTPGateway struct {
	endpoints []string
	client    *http.Client
	log       logging.Logger
}

func NewHTTPGateway(endpoints []string, log logging.Logger) *HTTPGateway {
	return &HTTPGateway{
		endpoints: endpoints,
		client:    &http.Client{Timeout: 30 * time.Second},
		log:       log.With("component", "http_gateway"),
	}
}

func (g *HTTPGateway) Ready() bool {
	return len(g.endpoints) > 0
}

// Upload POSTs data to the first endpoint that accepts it. The response body
// is the content address assigned by the endpoint.
func (g *HTTPGateway) Upload(ctx context.Context, data []byte, id string) (string, error) {
	var lastErr error
	for _, endpoint := range g.endpoints {
		addr, err := g.uploadTo(ctx, endpoint, data, id)
		if err == nil {
			return addr, nil
		}
		g.log.Warn(ctx, "upload attempt failed", "endpoint", endpoint, "error", err)
		lastErr = err
	}
	return "", fmt.Errorf("%w: last error: %v", common.ErrGatewayExhausted, lastErr)
}

// Download GETs the blob from the first endpoint that has it. The received
// bytes are re-hashed against the requested address; an endpoint serving the
// wrong content counts as failed and the fallback continues.
func (g *HTTPGateway) Download(ctx context.Context, contentAddress string) ([]byte, error) {
	var lastErr error
	for _, endpoint := range g.endpoints {
		data, err := g.downloadFrom(ctx, endpoint, contentAddress)
		if err == nil && ContentAddress(data) != contentAddress {
			err = fmt.Errorf("content address verification failed")
		}
		if err == nil {
			return data, nil
		}
		g.log.Warn(ctx, "download attempt failed", "endpoint", endpoint, "error", err)
		lastErr = err
	}
	return nil, fmt.Errorf("%w: last error: %v", common.ErrGatewayExhausted, lastErr)
}

func (g *HTTPGateway) uploadTo(ctx context.Context, endpoint string, data []byte, id string) (string, error) {
	url := strings.TrimRight(endpoint, "/") + "/blobs"
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(data))
	if err != nil {
		return "", err
	}
	req.Header.Set("Content-Type", "application/octet-stream")
	req.Header.Set("X-Message-Id", id)

	resp, err := g.client.Do(req)
	if err != nil {
		return "", err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK && resp.StatusCode != http.StatusCreated {
		b, _ := io.ReadAll(resp.Body)
		return "", fmt.Errorf("upload failed: %s; body: %s", resp.Status, string(b))
	}

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", err
	}
	addr := strings.TrimSpace(string(body))
	if addr == "" {
		return "", fmt.Errorf("endpoint returned empty content address")
	}
	return addr, nil
}

func (g *HTTPGateway) downloadFrom(ctx context.Context, endpoint, contentAddress string) ([]byte, error) {
	url := strings.TrimRight(endpoint, "/") + "/blobs/" + contentAddress
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, err
	}

	resp, err := g.client.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("download failed: %s", resp.Status)
	}

	return io.ReadAll(resp.Body)
}
