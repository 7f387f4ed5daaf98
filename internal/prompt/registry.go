package prompt

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"os"
	"path/filepath"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// Registry resolves prompt templates by "<owner>/<name>" identifier.
type Registry interface {
	Pull(ctx context.Context, id string) (*Template, error)
}

// NewRegistry builds a registry from a source string: "builtin" (or empty),
// "file:<dir>", or an http(s) base URL.
func NewRegistry(source string) (Registry, error) {
	switch {
	case source == "" || source == "builtin":
		return Builtin{}, nil
	case strings.HasPrefix(source, "file:"):
		dir := strings.TrimPrefix(source, "file:")
		if dir == "" {
			return nil, errors.New("file prompt registry needs a directory")
		}
		return &FileRegistry{dir: dir}, nil
	case strings.HasPrefix(source, "http://"), strings.HasPrefix(source, "https://"):
		return NewHTTPRegistry(source, nil)
	}
	return nil, fmt.Errorf("unsupported prompt registry source %q", source)
}

var builtinTemplates = map[string]Template{
	DefaultID: {
		ID:           DefaultID,
		Version:      "1",
		System:       "You are a helpful assistant",
		TakesHistory: true,
	},
}

// Builtin serves the templates compiled into the binary.
type Builtin struct{}

func (Builtin) Pull(_ context.Context, id string) (*Template, error) {
	if _, _, err := SplitID(id); err != nil {
		return nil, err
	}
	t, ok := builtinTemplates[id]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrNotFound, id)
	}
	return &t, nil
}

// FileRegistry reads templates from <dir>/<owner>/<name>.yaml.
type FileRegistry struct {
	dir string
}

func NewFileRegistry(dir string) *FileRegistry {
	return &FileRegistry{dir: dir}
}

func (r *FileRegistry) Pull(_ context.Context, id string) (*Template, error) {
	owner, name, err := SplitID(id)
	if err != nil {
		return nil, err
	}
	path := filepath.Join(r.dir, owner, name+".yaml")
	data, err := os.ReadFile(path)
	if errors.Is(err, os.ErrNotExist) {
		return nil, fmt.Errorf("%w: %s", ErrNotFound, id)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read prompt %s: %w", path, err)
	}
	return decode(id, data)
}

// HTTPRegistry fetches templates from GET {base}/prompts/{owner}/{name}.
type HTTPRegistry struct {
	baseURL    string
	httpClient *http.Client
}

func NewHTTPRegistry(baseURL string, httpClient *http.Client) (*HTTPRegistry, error) {
	if _, err := url.Parse(baseURL); err != nil {
		return nil, fmt.Errorf("invalid prompt registry URL: %w", err)
	}
	if httpClient == nil {
		httpClient = &http.Client{Timeout: 15 * time.Second}
	}
	return &HTTPRegistry{baseURL: strings.TrimRight(baseURL, "/"), httpClient: httpClient}, nil
}

func (r *HTTPRegistry) Pull(ctx context.Context, id string) (*Template, error) {
	owner, name, err := SplitID(id)
	if err != nil {
		return nil, err
	}
	endpoint := fmt.Sprintf("%s/prompts/%s/%s", r.baseURL, url.PathEscape(owner), url.PathEscape(name))
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return nil, err
	}
	resp, err := r.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("prompt registry request failed: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return nil, fmt.Errorf("failed to read prompt registry response: %w", err)
	}
	if resp.StatusCode == http.StatusNotFound {
		return nil, fmt.Errorf("%w: %s", ErrNotFound, id)
	}
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("prompt registry returned status %d: %s", resp.StatusCode, string(body))
	}
	return decode(id, body)
}

// decode parses a YAML (or JSON, which YAML accepts) template document.
func decode(id string, data []byte) (*Template, error) {
	var t Template
	if err := yaml.Unmarshal(data, &t); err != nil {
		return nil, fmt.Errorf("failed to parse prompt %s: %w", id, err)
	}
	if t.ID == "" {
		t.ID = id
	}
	if t.ID != id {
		return nil, fmt.Errorf("prompt document is %s, expected %s", t.ID, id)
	}
	if err := t.validate(); err != nil {
		return nil, err
	}
	return &t, nil
}
