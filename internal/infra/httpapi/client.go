package httpapi

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"fge-test-platform/internal/domain"
)

// Client talks to the quiz backend. It implements app.QuestionSource and app.ResultSink.
type Client struct {
	base     string
	http     *http.Client
	token    string
	language string
}

func NewClient(baseURL, token, language string) *Client {
	return &Client{
		base:     baseURL,
		http:     &http.Client{Timeout: 15 * time.Second},
		token:    token,
		language: language,
	}
}

// Token returns the bearer token used for requests.
func (c *Client) Token() string {
	return c.token
}

type envelope struct {
	Success bool            `json:"success"`
	Message string          `json:"message"`
	Data    json.RawMessage `json:"data"`
}

// GuestLogin obtains a guest token and uses it for later requests.
func (c *Client) GuestLogin(ctx context.Context) (string, error) {
	var out struct {
		AccessToken string `json:"access_token"`
	}
	status, err := c.do(ctx, http.MethodPost, "/api/auth/guest", nil, &out)
	if err != nil {
		return "", err
	}
	if status != http.StatusOK || out.AccessToken == "" {
		return "", fmt.Errorf("guest login: status %d", status)
	}
	c.token = out.AccessToken
	return c.token, nil
}

// FetchRandomQuestions returns domain.ErrNotFound for empty categories and wraps
// every other failure in domain.ErrFetchFailed.
func (c *Client) FetchRandomQuestions(ctx context.Context, category string, limit int) ([]domain.Question, error) {
	q := url.Values{}
	q.Set("limit", strconv.Itoa(limit))
	if c.language != "" {
		q.Set("language", c.language)
	}
	path := "/api/questions/random/" + url.PathEscape(category) + "?" + q.Encode()

	var questions []domain.Question
	status, err := c.do(ctx, http.MethodGet, path, nil, &questions)
	switch {
	case status == http.StatusNotFound:
		return nil, fmt.Errorf("%w: category %s", domain.ErrNotFound, category)
	case err != nil:
		return nil, fmt.Errorf("%w: %v", domain.ErrFetchFailed, err)
	case status != http.StatusOK:
		return nil, fmt.Errorf("%w: status %d", domain.ErrFetchFailed, status)
	}
	return questions, nil
}

// RecordResult posts a submitted history entry.
func (c *Client) RecordResult(ctx context.Context, entry domain.HistoryEntry) error {
	body, err := json.Marshal(entry)
	if err != nil {
		return err
	}
	status, err := c.do(ctx, http.MethodPost, "/api/results", body, nil)
	if err != nil {
		return err
	}
	if status != http.StatusCreated {
		return fmt.Errorf("record result: status %d", status)
	}
	return nil
}

// do performs the request and decodes the envelope's data into out on success.
func (c *Client) do(ctx context.Context, method, path string, body []byte, out any) (int, error) {
	var reader io.Reader
	if body != nil {
		reader = bytes.NewReader(body)
	}
	req, err := http.NewRequestWithContext(ctx, method, c.base+path, reader)
	if err != nil {
		return 0, err
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if c.token != "" {
		req.Header.Set("Authorization", "Bearer "+c.token)
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return 0, err
	}
	defer resp.Body.Close()

	if resp.StatusCode/100 != 2 || out == nil {
		_, _ = io.Copy(io.Discard, resp.Body)
		return resp.StatusCode, nil
	}
	var env envelope
	if err := json.NewDecoder(resp.Body).Decode(&env); err != nil {
		return resp.StatusCode, fmt.Errorf("decode response: %w", err)
	}
	if len(env.Data) == 0 || string(env.Data) == "null" {
		return resp.StatusCode, nil
	}
	if err := json.Unmarshal(env.Data, out); err != nil {
		return resp.StatusCode, fmt.Errorf("decode data: %w", err)
	}
	return resp.StatusCode, nil
}
