package providers

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"time"
)

// CorrelationHeader carries the run's correlation id to every provider.
const CorrelationHeader = "X-Correlation-ID"

// maxResponseBytes bounds how much of a provider body is read.
const maxResponseBytes = 1 << 20

// Endpoint locates one verification service.
type Endpoint struct {
	Name    string
	URL     string
	Timeout time.Duration
}

// HTTPTransport posts JSON payloads to provider endpoints.
type HTTPTransport struct {
	client *http.Client
}

// NewHTTPTransport creates a transport. A nil client uses a client without a
// global timeout; each call is bounded by its endpoint timeout instead.
func NewHTTPTransport(client *http.Client) *HTTPTransport {
	if client == nil {
		client = &http.Client{}
	}
	return &HTTPTransport{client: client}
}

// Call POSTs payload to ep and decodes the JSON response into out.
// Failures are returned as *ProviderError.
func (t *HTTPTransport) Call(ctx context.Context, ep Endpoint, payload, out any, correlationID string) error {
	body, err := json.Marshal(payload)
	if err != nil {
		return NewProviderError(ErrorInternal, ep.Name, "encode request", err)
	}

	if ep.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, ep.Timeout)
		defer cancel()
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, ep.URL, bytes.NewReader(body))
	if err != nil {
		return NewProviderError(ErrorInternal, ep.Name, "build request", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json")
	if correlationID != "" {
		req.Header.Set(CorrelationHeader, correlationID)
	}

	resp, err := t.client.Do(req)
	if err != nil {
		return classifyTransportError(ctx, ep.Name, err)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseBytes))
	if err != nil {
		return classifyTransportError(ctx, ep.Name, err)
	}

	if resp.StatusCode >= http.StatusBadRequest {
		return NewProviderError(categoryForStatus(resp.StatusCode), ep.Name,
			fmt.Sprintf("unexpected status %d", resp.StatusCode), nil)
	}

	if out == nil {
		return nil
	}
	if err := json.Unmarshal(raw, out); err != nil {
		return NewProviderError(ErrorBadData, ep.Name, "decode response", err)
	}
	return nil
}

func categoryForStatus(code int) ErrorCategory {
	switch {
	case code == http.StatusTooManyRequests:
		return ErrorRateLimited
	case code == http.StatusUnauthorized || code == http.StatusForbidden:
		return ErrorAuthentication
	case code == http.StatusNotFound:
		return ErrorNotFound
	case code == http.StatusRequestTimeout || code == http.StatusGatewayTimeout:
		return ErrorTimeout
	case code >= http.StatusInternalServerError:
		return ErrorProviderOutage
	default:
		return ErrorBadData
	}
}

func classifyTransportError(ctx context.Context, service string, err error) error {
	if errors.Is(err, context.DeadlineExceeded) || errors.Is(ctx.Err(), context.DeadlineExceeded) {
		return NewProviderError(ErrorTimeout, service, "request timed out", err)
	}
	if errors.Is(err, context.Canceled) {
		return NewProviderError(ErrorInternal, service, "request cancelled", err)
	}
	var netErr net.Error
	if errors.As(err, &netErr) && netErr.Timeout() {
		return NewProviderError(ErrorTimeout, service, "request timed out", err)
	}
	return NewProviderError(ErrorProviderOutage, service, "request failed", err)
}
