// Package priaid talks to the ApiMedic (priaid) symptom checker: a signed login that
// yields a session token, then token-authenticated diagnosis and symptom queries.
package priaid

import (
	"context"
	"crypto/hmac"
	"crypto/md5"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"github.com/rs/zerolog/log"

	"stealthcompany.com/symptomcheck/internal/metrics"
	"stealthcompany.com/symptomcheck/internal/models"
	"stealthcompany.com/symptomcheck/internal/ratelimit"
)

const (
	defaultLanguage = "en-gb"
	defaultTimeout  = 30 * time.Second
	maxBodyBytes    = 4 << 20

	endpointAuth      = "auth"
	endpointDiagnosis = "diagnosis"
	endpointSymptoms  = "symptoms"
)

// Config is what the client needs from process configuration
type Config struct {
	AuthURI   string
	APIURI    string
	APIKey    string
	SecretKey string
	Language  string
	Timeout   time.Duration
}

// StatusError is returned when the provider answers with a non-200 status.
type StatusError struct {
	Endpoint   string
	StatusCode int
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("provider returned status %d for %s", e.StatusCode, e.Endpoint)
}

// Client handles the two-phase provider protocol
type Client struct {
	httpClient  *http.Client
	cfg         Config
	credentials string
	limiter     ratelimit.Limiter
}

// NewClient validates cfg and derives the login credentials. The HMAC over the auth
// URI depends only on configuration, so it is computed here once.
func NewClient(cfg Config, limiter ratelimit.Limiter) (*Client, error) {
	if cfg.AuthURI == "" || cfg.APIURI == "" || cfg.APIKey == "" || cfg.SecretKey == "" {
		return nil, errors.New("priaid: auth uri, api uri, api key and secret key are required")
	}
	if cfg.Language == "" {
		cfg.Language = defaultLanguage
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = defaultTimeout
	}
	if limiter == nil {
		limiter = ratelimit.Unlimited{}
	}

	return &Client{
		httpClient:  &http.Client{Timeout: cfg.Timeout},
		cfg:         cfg,
		credentials: cfg.APIKey + ":" + Signature(cfg.SecretKey, cfg.AuthURI),
		limiter:     limiter,
	}, nil
}

// Signature is base64(HMAC-MD5(secret, authURI)).
func Signature(secret, authURI string) string {
	mac := hmac.New(md5.New, []byte(secret))
	mac.Write([]byte(authURI))
	return base64.StdEncoding.EncodeToString(mac.Sum(nil))
}

// Authenticate logs in and returns a session token
func (c *Client) Authenticate(ctx context.Context) (string, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.cfg.AuthURI, nil)
	if err != nil {
		return "", fmt.Errorf("build auth request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+c.credentials)

	var auth authResponse
	if err := c.do(req, endpointAuth, &auth); err != nil {
		return "", err
	}
	if auth.Token == "" {
		return "", errors.New("provider auth response carried no token")
	}
	return auth.Token, nil
}

// Diagnose authenticates and then queries likely issues for the symptom ids, in the
// order the provider ranks them.
func (c *Client) Diagnose(ctx context.Context, symptoms []int, gender models.Gender, yearOfBirth int) ([]DiagnosisResult, error) {
	token, err := c.Authenticate(ctx)
	if err != nil {
		return nil, err
	}

	ids := make([]string, len(symptoms))
	for i, id := range symptoms {
		ids[i] = strconv.Itoa(id)
	}
	encoded, err := json.Marshal(ids)
	if err != nil {
		return nil, fmt.Errorf("encode symptoms: %w", err)
	}

	q := url.Values{}
	q.Set("token", token)
	q.Set("language", c.cfg.Language)
	q.Set("symptoms", string(encoded))
	q.Set("gender", string(gender))
	q.Set("year_of_birth", strconv.Itoa(yearOfBirth))

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.cfg.APIURI+"/diagnosis?"+q.Encode(), nil)
	if err != nil {
		return nil, fmt.Errorf("build diagnosis request: %w", err)
	}

	var results []DiagnosisResult
	if err := c.do(req, endpointDiagnosis, &results); err != nil {
		return nil, err
	}

	log.Debug().
		Int("yearOfBirth", yearOfBirth).
		Str("gender", string(gender)).
		Int("issues", len(results)).
		Msg("Provider diagnosis received")

	return results, nil
}

// Symptoms authenticates and lists the provider's symptom catalog
func (c *Client) Symptoms(ctx context.Context) ([]Symptom, error) {
	token, err := c.Authenticate(ctx)
	if err != nil {
		return nil, err
	}

	q := url.Values{}
	q.Set("token", token)
	q.Set("language", c.cfg.Language)

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.cfg.APIURI+"/symptoms?"+q.Encode(), nil)
	if err != nil {
		return nil, fmt.Errorf("build symptoms request: %w", err)
	}

	var symptoms []Symptom
	if err := c.do(req, endpointSymptoms, &symptoms); err != nil {
		return nil, err
	}
	return symptoms, nil
}

// do sends req and decodes a 2xx JSON body into out
func (c *Client) do(req *http.Request, endpoint string, out interface{}) error {
	if err := c.limiter.Wait(req.Context()); err != nil {
		return fmt.Errorf("rate limit wait for %s: %w", endpoint, err)
	}

	startTime := time.Now()
	resp, err := c.httpClient.Do(req)
	if err != nil {
		metrics.RecordProviderRequest(endpoint, startTime, 0)
		return fmt.Errorf("failed to call %s: %w", endpoint, err)
	}
	defer func() {
		if closeErr := resp.Body.Close(); closeErr != nil {
			log.Error().Err(closeErr).Msg("Failed to close response body")
		}
	}()

	metrics.RecordProviderRequest(endpoint, startTime, resp.StatusCode)

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		_, _ = io.Copy(io.Discard, io.LimitReader(resp.Body, maxBodyBytes))
		return &StatusError{Endpoint: endpoint, StatusCode: resp.StatusCode}
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxBodyBytes))
	if err != nil {
		return fmt.Errorf("failed to read %s response: %w", endpoint, err)
	}
	if err := json.Unmarshal(body, out); err != nil {
		return fmt.Errorf("failed to parse %s response: %w", endpoint, err)
	}
	return nil
}
