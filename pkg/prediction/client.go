package prediction

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"strings"

	"golang.org/x/time/rate"

	"github.com/oncodiag-server/internal/domain"
)

// Endpoint paths on the remote prediction service.
const (
	pathExtractPredict    = "/extract_and_predict"
	pathExtractPredictMLP = "/extract_and_predict_mlp"
	pathSaveReport        = "/save_report"
	pathPredictLegacy     = "/predict2"
)

const statusSuccess = "success"

// Client is a stateless HTTP caller for the remote prediction service. All
// calls are bounded by the configured timeout and failures are mapped into
// the PredictionError taxonomy. Retries are a policy decision made one level
// up; this layer never retries.
type Client struct {
	baseURL    string
	httpClient *http.Client
	limiter    *rate.Limiter
}

// NewClient creates a new prediction service client.
func NewClient(config domain.PredictionConfig) *Client {
	rps := config.RateLimit
	if rps <= 0 {
		rps = 10
	}
	return &Client{
		baseURL: strings.TrimRight(config.BaseURL, "/"),
		httpClient: &http.Client{
			Timeout: config.Timeout,
		},
		limiter: rate.NewLimiter(rate.Limit(rps), rps),
	}
}

// predictRequest is the request body shared by the extract-and-predict and
// save-report endpoints.
type predictRequest struct {
	ReportDescription string `json:"report_description"`
}

// errorBody is the structured error payload returned on non-2xx responses.
type errorBody struct {
	Error string `json:"error"`
}

// envelope is the outer response shape of the extract-and-predict endpoints.
type envelope struct {
	Status     string         `json:"status"`
	Error      string         `json:"error,omitempty"`
	Prediction *RawPrediction `json:"prediction,omitempty"`
	Extraction *RawExtraction `json:"extraction,omitempty"`
}

// Predict calls the extract-and-predict endpoint for the given model kind.
func (c *Client) Predict(ctx context.Context, kind domain.ModelKind, text string) (*Response, error) {
	path := pathExtractPredict
	if kind == domain.ModelMLP {
		path = pathExtractPredictMLP
	}

	body, err := c.post(ctx, path, predictRequest{ReportDescription: text})
	if err != nil {
		return nil, err
	}

	var env envelope
	if err := json.Unmarshal(body, &env); err != nil {
		return nil, domain.NewPredictionError(domain.ErrKindMalformedResponse, path,
			"failed to decode prediction response", err)
	}

	if env.Status != statusSuccess {
		msg := env.Error
		if msg == "" {
			msg = fmt.Sprintf("backend reported status %q", env.Status)
		}
		return nil, domain.NewPredictionError(domain.ErrKindApplicationError, path, msg, nil)
	}

	if env.Prediction == nil {
		return nil, domain.NewPredictionError(domain.ErrKindMalformedResponse, path,
			"prediction payload missing from successful response", nil)
	}

	return &Response{
		Prediction: *env.Prediction,
		Extraction: env.Extraction,
	}, nil
}

// SaveReport submits the report text to the legacy save endpoint.
func (c *Client) SaveReport(ctx context.Context, text string) error {
	_, err := c.post(ctx, pathSaveReport, predictRequest{ReportDescription: text})
	return err
}

// PredictFeatures scores an explicit feature set against the legacy endpoint.
func (c *Client) PredictFeatures(ctx context.Context, features map[string]float64) (*LegacyPrediction, error) {
	body, err := c.post(ctx, pathPredictLegacy, features)
	if err != nil {
		return nil, err
	}

	var result LegacyPrediction
	if err := json.Unmarshal(body, &result); err != nil {
		return nil, domain.NewPredictionError(domain.ErrKindMalformedResponse, pathPredictLegacy,
			"failed to decode legacy prediction response", err)
	}
	return &result, nil
}

// post executes one rate-limited POST and returns the raw body of a 2xx
// response. Transport, timeout, and rejection failures are mapped here.
func (c *Client) post(ctx context.Context, path string, payload any) ([]byte, error) {
	if err := c.limiter.Wait(ctx); err != nil {
		return nil, mapTransportError(path, err)
	}

	data, err := json.Marshal(payload)
	if err != nil {
		return nil, domain.NewPredictionError(domain.ErrKindMalformedResponse, path,
			"failed to encode request payload", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+path, bytes.NewReader(data))
	if err != nil {
		return nil, domain.NewPredictionError(domain.ErrKindUnreachable, path,
			"failed to create request", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, mapTransportError(path, err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, mapTransportError(path, err)
	}

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		var eb errorBody
		msg := fmt.Sprintf("backend returned status %d", resp.StatusCode)
		if json.Unmarshal(body, &eb) == nil && eb.Error != "" {
			msg = eb.Error
		}
		pe := domain.NewPredictionError(domain.ErrKindServerRejected, path, msg, nil)
		pe.StatusCode = resp.StatusCode
		return nil, pe
	}

	return body, nil
}

// mapTransportError distinguishes timeouts from other transport failures.
func mapTransportError(path string, err error) *domain.PredictionError {
	if isTimeout(err) {
		return domain.NewPredictionError(domain.ErrKindTimeout, path,
			"prediction call exceeded its deadline", err)
	}
	return domain.NewPredictionError(domain.ErrKindUnreachable, path,
		"prediction service unreachable", err)
}

func isTimeout(err error) bool {
	if errors.Is(err, context.DeadlineExceeded) {
		return true
	}
	var netErr net.Error
	return errors.As(err, &netErr) && netErr.Timeout()
}
