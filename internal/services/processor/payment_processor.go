package processor

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"net/http"
	"time"

	json "github.com/json-iterator/go"

	"github.com/diogomassis/rinha-dispatch/internal/models"
)

type PaymentProcessor interface {
	GetName() models.ProcessorType
	ProcessPayment(ctx context.Context, payment models.PendingPayment) error
	CheckHealth(ctx context.Context) (*models.HealthStatus, error)
}

type HTTPPaymentProcessor struct {
	name    models.ProcessorType
	url     string
	timeout time.Duration
	client  *http.Client
}

// NewHTTPPaymentProcessor builds a client for one processor. timeout bounds
// every POST /payments call; health probes are bounded by the caller's context.
func NewHTTPPaymentProcessor(name models.ProcessorType, url string, timeout time.Duration) *HTTPPaymentProcessor {
	transport := &http.Transport{
		MaxIdleConns:        100,
		MaxIdleConnsPerHost: 100,
		IdleConnTimeout:     90 * time.Second,
		DisableKeepAlives:   false,
	}
	return &HTTPPaymentProcessor{
		name:    name,
		url:     url,
		timeout: timeout,
		client: &http.Client{
			Transport: transport,
		},
	}
}

func (p *HTTPPaymentProcessor) GetName() models.ProcessorType {
	return p.name
}

func (p *HTTPPaymentProcessor) Timeout() time.Duration {
	return p.timeout
}

func (p *HTTPPaymentProcessor) ProcessPayment(ctx context.Context, payment models.PendingPayment) error {
	jsonData, err := json.Marshal(payment.ProcessorRequest())
	if err != nil {
		return fmt.Errorf("failed to marshal payment request: %w", err)
	}

	ctx, cancel := context.WithTimeout(ctx, p.timeout)
	defer cancel()

	paymentURL := fmt.Sprintf("%s/payments", p.url)
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, paymentURL, bytes.NewReader(jsonData))
	if err != nil {
		return fmt.Errorf("failed to create request for %s: %w", p.name, err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := p.client.Do(req)
	if err != nil {
		return wrapTransportError(p.name, err)
	}
	defer drain(resp.Body)

	if resp.StatusCode >= 200 && resp.StatusCode < 300 {
		return nil
	}
	return &StatusError{Processor: p.name, StatusCode: resp.StatusCode}
}

func (p *HTTPPaymentProcessor) CheckHealth(ctx context.Context) (*models.HealthStatus, error) {
	healthURL := fmt.Sprintf("%s/payments/service-health", p.url)
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, healthURL, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create health check request: %w", err)
	}

	resp, err := p.client.Do(req)
	if err != nil {
		return nil, wrapTransportError(p.name, err)
	}
	defer drain(resp.Body)

	if resp.StatusCode != http.StatusOK {
		return nil, &StatusError{Processor: p.name, StatusCode: resp.StatusCode}
	}
	var status models.HealthStatus
	if err := json.NewDecoder(resp.Body).Decode(&status); err != nil {
		return nil, fmt.Errorf("%w: %s: %v", ErrMalformedResponse, p.name, err)
	}
	return &status, nil
}

func drain(body io.ReadCloser) {
	_, _ = io.Copy(io.Discard, body)
	_ = body.Close()
}
