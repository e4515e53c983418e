// SPDX-License-Identifier: MPL-2.0

package catalog

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"path"
	"strconv"
	"strings"

	"github.com/charmbracelet/log"

	"appgen-cli/internal/logging"
	"appgen-cli/internal/pipeline"
)

const (
	// DefaultAPIURL is the public Dockstore API.
	DefaultAPIURL = "https://dockstore.org/api"

	// DescriptorType is the language of registered workflows.
	DescriptorType = "cwl"

	defaultUserAgent = "appgen/dev"

	// maxJSONResponseBytes caps the size of decoded API responses.
	maxJSONResponseBytes = 10 << 20

	// maxErrorBodyBytes caps the response text carried by a StatusError.
	maxErrorBodyBytes = 512
)

// Dockstore source file types.
const (
	FileTypeCWL      = "DOCKSTORE_CWL"
	FileTypeTestJSON = "CWL_TEST_JSON"
	FileTypeYML      = "DOCKSTORE_YML"
)

var (
	// ErrMissingToken is returned when no API token is configured.
	ErrMissingToken = errors.New("catalog API token is required")

	// ErrUnauthorized is returned when the catalog rejects the token.
	ErrUnauthorized = errors.New("catalog rejected the API token")

	// ErrInvalidAPIURL is returned for an API URL that is not absolute http(s).
	ErrInvalidAPIURL = errors.New("invalid catalog API URL")
)

type (
	// StatusError reports an unexpected HTTP status from the catalog.
	StatusError struct {
		Method string
		Path   string
		Status int
		Body   string
	}

	// Client talks to the Dockstore hosted-workflow API.
	Client struct {
		httpClient *http.Client
		baseURL    *url.URL
		token      string
		userAgent  string
		logger     *log.Logger
	}

	// Option configures a Client during construction.
	Option func(*Client)

	user struct {
		ID       int64  `json:"id"`
		Username string `json:"username"`
	}

	workflow struct {
		ID               int64  `json:"id"`
		Repository       string `json:"repository"`
		Organization     string `json:"organization"`
		WorkflowName     string `json:"workflowName"`
		FullWorkflowPath string `json:"full_workflow_path"`
		IsPublished      bool   `json:"is_published"`
	}

	sourceFile struct {
		Path         string `json:"path"`
		AbsolutePath string `json:"absolutePath"`
		Content      string `json:"content"`
		Type         string `json:"type"`
	}

	publishRequest struct {
		Publish bool `json:"publish"`
	}
)

// Error formats the status with the start of the response body.
func (e *StatusError) Error() string {
	msg := fmt.Sprintf("%s %s: unexpected status %d", e.Method, e.Path, e.Status)
	if e.Body != "" {
		msg += ": " + e.Body
	}
	return msg
}

// Unwrap returns ErrUnauthorized for 401 and 403 responses.
func (e *StatusError) Unwrap() error {
	if e.Status == http.StatusUnauthorized || e.Status == http.StatusForbidden {
		return ErrUnauthorized
	}
	return nil
}

// WithHTTPClient sets a custom HTTP client.
func WithHTTPClient(c *http.Client) Option {
	return func(cl *Client) {
		cl.httpClient = c
	}
}

// WithUserAgent sets the User-Agent header sent with every request.
func WithUserAgent(ua string) Option {
	return func(cl *Client) {
		cl.userAgent = ua
	}
}

// WithLogger sets the logger.
func WithLogger(logger *log.Logger) Option {
	return func(cl *Client) {
		cl.logger = logger
	}
}

// New creates a client for the API at apiURL, DefaultAPIURL when empty.
func New(apiURL, token string, opts ...Option) (*Client, error) {
	if token == "" {
		return nil, ErrMissingToken
	}
	if apiURL == "" {
		apiURL = DefaultAPIURL
	}
	base, err := url.Parse(strings.TrimRight(apiURL, "/"))
	if err != nil || (base.Scheme != "http" && base.Scheme != "https") || base.Host == "" {
		return nil, fmt.Errorf("%w: %q", ErrInvalidAPIURL, apiURL)
	}

	c := &Client{
		httpClient: http.DefaultClient,
		baseURL:    base,
		token:      token,
		userAgent:  defaultUserAgent,
	}
	for _, opt := range opts {
		opt(c)
	}
	c.logger = logging.Component(logging.Ensure(c.logger), "catalog")
	return c, nil
}

// Lookup returns the hosted workflow of the token owner named name.
func (c *Client) Lookup(ctx context.Context, name string) (*pipeline.CatalogEntry, error) {
	var u user
	if err := c.do(ctx, http.MethodGet, "users/user", nil, nil, &u); err != nil {
		return nil, fmt.Errorf("resolving catalog user: %w", err)
	}

	var workflows []workflow
	if err := c.do(ctx, http.MethodGet, fmt.Sprintf("users/%d/workflows", u.ID), nil, nil, &workflows); err != nil {
		return nil, fmt.Errorf("listing workflows of %s: %w", u.Username, err)
	}
	for _, w := range workflows {
		if w.Repository == name {
			return w.entry(), nil
		}
	}
	c.logger.Debug("no catalog entry", "name", name, "user", u.Username, "workflows", len(workflows))
	return nil, nil
}

// Get returns the workflow with id, or nil when the catalog does not know it.
func (c *Client) Get(ctx context.Context, id string) (*pipeline.CatalogEntry, error) {
	var w workflow
	err := c.do(ctx, http.MethodGet, "workflows/"+url.PathEscape(id), nil, nil, &w)
	var se *StatusError
	if errors.As(err, &se) && se.Status == http.StatusNotFound {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return w.entry(), nil
}

// Register creates an empty hosted CWL workflow named name.
func (c *Client) Register(ctx context.Context, name string) (*pipeline.CatalogEntry, error) {
	q := url.Values{}
	q.Set("name", name)
	q.Set("descriptorType", DescriptorType)

	var w workflow
	if err := c.do(ctx, http.MethodPost, "workflows/hostedEntry", q, nil, &w); err != nil {
		return nil, err
	}
	c.logger.Debug("hosted workflow created", "id", w.ID, "path", w.FullWorkflowPath)
	return w.entry(), nil
}

// Upload replaces the files of the hosted workflow, creating a new version.
func (c *Client) Upload(ctx context.Context, id string, files []pipeline.ArtifactFile) error {
	body := make([]sourceFile, 0, len(files))
	for _, f := range files {
		p := "/" + f.Name
		body = append(body, sourceFile{Path: p, AbsolutePath: p, Content: string(f.Content), Type: FileType(f.Name)})
	}
	return c.do(ctx, http.MethodPatch, "workflows/hostedEntry/"+url.PathEscape(id), nil, body, nil)
}

// Publish makes the workflow public.
func (c *Client) Publish(ctx context.Context, id string) error {
	return c.do(ctx, http.MethodPost, "workflows/"+url.PathEscape(id)+"/publish", nil, publishRequest{Publish: true}, nil)
}

// FileType returns the Dockstore source file type for a file name.
func FileType(name string) string {
	switch {
	case strings.HasSuffix(name, ".dockstore.yml"):
		return FileTypeYML
	case strings.EqualFold(path.Ext(name), ".json"):
		return FileTypeTestJSON
	default:
		return FileTypeCWL
	}
}

func (w workflow) entry() *pipeline.CatalogEntry {
	name := w.Repository
	if w.WorkflowName != "" {
		name += "/" + w.WorkflowName
	}
	return &pipeline.CatalogEntry{ID: strconv.FormatInt(w.ID, 10), Name: name, Published: w.IsPublished}
}

// do sends a JSON request to the API path p and decodes the response into out.
func (c *Client) do(ctx context.Context, method, p string, query url.Values, in, out any) error {
	u := c.baseURL.JoinPath(p)
	if query != nil {
		u.RawQuery = query.Encode()
	}

	var body io.Reader = http.NoBody
	if in != nil {
		data, err := json.Marshal(in)
		if err != nil {
			return fmt.Errorf("encoding request: %w", err)
		}
		body = bytes.NewReader(data)
	}

	req, err := http.NewRequestWithContext(ctx, method, u.String(), body)
	if err != nil {
		return fmt.Errorf("creating request: %w", err)
	}
	req.Header.Set("Accept", "application/json")
	req.Header.Set("User-Agent", c.userAgent)
	req.Header.Set("Authorization", "Bearer "+c.token)
	if in != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	c.logger.Debug("catalog request", "method", method, "path", p)
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("executing request: %w", err)
	}
	defer func() { _ = resp.Body.Close() }() // read-only response body

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		snippet, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBodyBytes)) //nolint:errcheck // Best-effort error detail.
		return &StatusError{Method: method, Path: "/" + p, Status: resp.StatusCode, Body: strings.TrimSpace(string(snippet))}
	}
	if out == nil {
		return nil
	}
	if err := json.NewDecoder(io.LimitReader(resp.Body, maxJSONResponseBytes)).Decode(out); err != nil {
		return fmt.Errorf("%s /%s: decoding response: %w", method, p, err)
	}
	return nil
}
