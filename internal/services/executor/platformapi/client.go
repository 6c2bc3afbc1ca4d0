// Package platformapi is the HTTP client for the external content platform.
// It implements the executor's Platform and PostSource contracts.
package platformapi

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"

	"github.com/veilworld/veilworld/internal/platform/timeouts"
	"github.com/veilworld/veilworld/internal/services/executor/domain"
)

// Client talks to the platform REST API.
type Client struct {
	baseURL    string
	apiKey     string
	httpClient *http.Client
}

// NewClient builds a platform API client. A nil httpClient gets a default
// with the external call timeout.
func NewClient(baseURL, apiKey string, httpClient *http.Client) (*Client, error) {
	baseURL = strings.TrimRight(strings.TrimSpace(baseURL), "/")
	if baseURL == "" {
		return nil, fmt.Errorf("platform base url is required")
	}
	if _, err := url.Parse(baseURL); err != nil {
		return nil, fmt.Errorf("parse platform base url: %w", err)
	}
	if httpClient == nil {
		httpClient = &http.Client{Timeout: timeouts.ExternalCall}
	}
	return &Client{baseURL: baseURL, apiKey: apiKey, httpClient: httpClient}, nil
}

// DeletePost removes a post. A post that is already gone counts as deleted.
func (c *Client) DeletePost(ctx context.Context, postID string) error {
	response, err := c.do(ctx, http.MethodDelete, "/posts/"+url.PathEscape(postID), nil)
	if err != nil {
		return err
	}
	defer drain(response)

	switch response.StatusCode {
	case http.StatusOK, http.StatusNoContent, http.StatusNotFound:
		return nil
	default:
		return c.statusError("delete post", response)
	}
}

// GetPost loads post content. A missing post is a permanent failure since
// retrying cannot bring it back.
func (c *Client) GetPost(ctx context.Context, postID string) (domain.Post, error) {
	response, err := c.do(ctx, http.MethodGet, "/posts/"+url.PathEscape(postID), nil)
	if err != nil {
		return domain.Post{}, err
	}
	defer drain(response)

	if response.StatusCode == http.StatusNotFound {
		return domain.Post{}, domain.Permanent(fmt.Errorf("post %s not found", postID))
	}
	if response.StatusCode != http.StatusOK {
		return domain.Post{}, c.statusError("get post", response)
	}

	var body struct {
		ID   string `json:"id"`
		Text string `json:"text"`
	}
	if err := json.NewDecoder(response.Body).Decode(&body); err != nil {
		return domain.Post{}, fmt.Errorf("decode post response: %w", err)
	}
	return domain.Post{ID: body.ID, Text: body.Text}, nil
}

// Publish cross-posts text as a standalone external post.
func (c *Client) Publish(ctx context.Context, text string) (string, error) {
	return c.createTweet(ctx, text, "")
}

// Reply cross-posts text as a reply to an existing external post.
func (c *Client) Reply(ctx context.Context, externalID, text string) (string, error) {
	return c.createTweet(ctx, text, externalID)
}

func (c *Client) createTweet(ctx context.Context, text, replyTo string) (string, error) {
	payload := struct {
		Text    string `json:"text"`
		ReplyTo string `json:"reply_to,omitempty"`
	}{Text: text, ReplyTo: replyTo}
	raw, err := json.Marshal(payload)
	if err != nil {
		return "", fmt.Errorf("encode tweet request: %w", err)
	}

	response, err := c.do(ctx, http.MethodPost, "/tweets", raw)
	if err != nil {
		return "", err
	}
	defer drain(response)

	if response.StatusCode != http.StatusCreated && response.StatusCode != http.StatusOK {
		return "", c.statusError("create tweet", response)
	}
	var body struct {
		ID string `json:"id"`
	}
	if err := json.NewDecoder(response.Body).Decode(&body); err != nil {
		return "", fmt.Errorf("decode tweet response: %w", err)
	}
	return body.ID, nil
}

func (c *Client) do(ctx context.Context, method, path string, body []byte) (*http.Response, error) {
	var reader io.Reader
	if body != nil {
		reader = bytes.NewReader(body)
	}
	request, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, reader)
	if err != nil {
		return nil, fmt.Errorf("build platform request: %w", err)
	}
	if body != nil {
		request.Header.Set("Content-Type", "application/json")
	}
	if c.apiKey != "" {
		request.Header.Set("Authorization", "Bearer "+c.apiKey)
	}
	response, err := c.httpClient.Do(request)
	if err != nil {
		return nil, fmt.Errorf("call platform api: %w", err)
	}
	return response, nil
}

// statusError classifies an unexpected status. Client errors other than rate
// limiting will not improve on retry and are marked permanent.
func (c *Client) statusError(operation string, response *http.Response) error {
	err := fmt.Errorf("%s: platform api returned %s", operation, response.Status)
	if response.StatusCode >= 400 && response.StatusCode < 500 && response.StatusCode != http.StatusTooManyRequests {
		return domain.Permanent(err)
	}
	return err
}

func drain(response *http.Response) {
	_, _ = io.Copy(io.Discard, response.Body)
	_ = response.Body.Close()
}
