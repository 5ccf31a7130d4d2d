// Package content fetches learning modules from the remote content service.
package content

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"

	"github.com/xeipuuv/gojsonschema"
)

// ErrUnavailable wraps every failure to obtain a usable response: transport
// errors, non-200 statuses and bodies that fail schema validation.
var ErrUnavailable = errors.New("content service unavailable")

// ErrStatus is returned when the service answers with a non-200 status.
// It matches ErrUnavailable under errors.Is.
var ErrStatus = fmt.Errorf("%w: unexpected status", ErrUnavailable)

// maxBodySize caps how much of a response body is read.
const maxBodySize = 4 << 20

// ID is a module or topic identifier. The service may send it as a JSON
// number or a string.
type ID string

func (id *ID) UnmarshalJSON(b []byte) error {
	if len(b) > 0 && b[0] == '"' {
		var s string
		if err := json.Unmarshal(b, &s); err != nil {
			return err
		}
		*id = ID(s)
		return nil
	}
	var n json.Number
	if err := json.Unmarshal(b, &n); err != nil {
		return err
	}
	*id = ID(n.String())
	return nil
}

// Module is a learning module as served by the content service.
type Module struct {
	ID              ID      `json:"id" yaml:"id"`
	Name            string  `json:"name" yaml:"name"`
	Description     string  `json:"description,omitempty" yaml:"description"`
	Category        string  `json:"category,omitempty" yaml:"category"`
	DifficultyLevel string  `json:"difficultyLevel,omitempty" yaml:"difficulty_level"`
	EstimatedHours  int     `json:"estimatedHours,omitempty" yaml:"estimated_hours"`
	Topics          []Topic `json:"topics,omitempty" yaml:"topics"`
}

// Topic is one topic of a remote module. Content is HTML from the service
// and markdown in the embedded fallback.
type Topic struct {
	ID              ID     `json:"id" yaml:"id"`
	Title           string `json:"title" yaml:"title"`
	Description     string `json:"description,omitempty" yaml:"description"`
	Content         string `json:"content,omitempty" yaml:"content"`
	DifficultyLevel string `json:"difficultyLevel,omitempty" yaml:"difficulty_level"`
}

const (
	modulesSchema = `{
  "type": "array",
  "items": {
    "type": "object",
    "required": ["id", "name"],
    "properties": {
      "id": {"type": ["integer", "string"]},
      "name": {"type": "string"},
      "topics": {"type": ["array", "null"]}
    }
  }
}`
	topicsSchema = `{
  "type": "array",
  "items": {"$ref": "#/definitions/topic"},
  "definitions": {
    "topic": {
      "type": "object",
      "required": ["id", "title"],
      "properties": {
        "id": {"type": ["integer", "string"]},
        "title": {"type": "string"},
        "content": {"type": ["string", "null"]}
      }
    }
  }
}`
	topicSchema = `{
  "type": "object",
  "required": ["id", "title"],
  "properties": {
    "id": {"type": ["integer", "string"]},
    "title": {"type": "string"},
    "content": {"type": ["string", "null"]}
  }
}`
)

// Client talks to the content service REST API.
type Client struct {
	baseURL string
	client  *http.Client

	modules *gojsonschema.Schema
	topics  *gojsonschema.Schema
	topic   *gojsonschema.Schema
}

// Option configures a Client.
type Option func(*Client)

// WithHTTPClient sets a custom HTTP client.
func WithHTTPClient(client *http.Client) Option {
	return func(c *Client) {
		c.client = client
	}
}

// NewClient creates a client for the service at baseURL.
func NewClient(baseURL string, opts ...Option) (*Client, error) {
	c := &Client{
		baseURL: strings.TrimRight(baseURL, "/"),
		client:  http.DefaultClient,
	}
	for _, opt := range opts {
		opt(c)
	}

	var err error
	if c.modules, err = compile(modulesSchema); err != nil {
		return nil, fmt.Errorf("modules schema: %w", err)
	}
	if c.topics, err = compile(topicsSchema); err != nil {
		return nil, fmt.Errorf("topics schema: %w", err)
	}
	if c.topic, err = compile(topicSchema); err != nil {
		return nil, fmt.Errorf("topic schema: %w", err)
	}
	return c, nil
}

func compile(schema string) (*gojsonschema.Schema, error) {
	return gojsonschema.NewSchema(gojsonschema.NewStringLoader(schema))
}

// ListModules fetches every module.
func (c *Client) ListModules(ctx context.Context) ([]Module, error) {
	var modules []Module
	if err := c.get(ctx, "/api/learning-modules", c.modules, &modules); err != nil {
		return nil, err
	}
	return modules, nil
}

// ModuleTopics fetches the topics of one module.
func (c *Client) ModuleTopics(ctx context.Context, moduleID ID) ([]Topic, error) {
	var topics []Topic
	path := "/api/learning-modules/" + url.PathEscape(string(moduleID)) + "/topics"
	if err := c.get(ctx, path, c.topics, &topics); err != nil {
		return nil, err
	}
	return topics, nil
}

// Topic fetches a single topic with its full content.
func (c *Client) Topic(ctx context.Context, topicID ID) (Topic, error) {
	var topic Topic
	if err := c.get(ctx, "/api/topics/"+url.PathEscape(string(topicID)), c.topic, &topic); err != nil {
		return Topic{}, err
	}
	return topic, nil
}

// HealthCheck checks that the module listing answers.
func (c *Client) HealthCheck(ctx context.Context) error {
	_, err := c.ListModules(ctx)
	return err
}

func (c *Client) get(ctx context.Context, path string, schema *gojsonschema.Schema, out any) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+path, nil)
	if err != nil {
		return fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Accept", "application/json")

	resp, err := c.client.Do(req)
	if err != nil {
		return fmt.Errorf("%w: send request: %v", ErrUnavailable, err)
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("%w: GET %s returned %d", ErrStatus, path, resp.StatusCode)
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxBodySize+1))
	if err != nil {
		return fmt.Errorf("%w: read response: %v", ErrUnavailable, err)
	}
	if len(body) > maxBodySize {
		return fmt.Errorf("%w: GET %s: response exceeds %d bytes", ErrUnavailable, path, maxBodySize)
	}

	result, err := schema.Validate(gojsonschema.NewBytesLoader(body))
	if err != nil {
		return fmt.Errorf("%w: GET %s: %v", ErrUnavailable, path, err)
	}
	if !result.Valid() {
		msgs := make([]string, 0, len(result.Errors()))
		for _, e := range result.Errors() {
			msgs = append(msgs, e.String())
		}
		return fmt.Errorf("%w: GET %s: invalid response: %s", ErrUnavailable, path, strings.Join(msgs, "; "))
	}

	if err := json.Unmarshal(body, out); err != nil {
		return fmt.Errorf("%w: unmarshal response: %v", ErrUnavailable, err)
	}
	return nil
}
