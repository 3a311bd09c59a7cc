// Package tools defines the functions the model may call mid-response, the
// registry that executes them, and the delimited text protocol the calls
// travel in.
package tools

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"sort"

	"github.com/google/go-github/v69/github"
)

// Tool represents a callable tool.
type Tool struct {
	Name        string         `json:"name"`
	Description string         `json:"description"`
	Parameters  map[string]any `json:"parameters"`

	Handler func(ctx context.Context, args map[string]any) (string, error) `json:"-"`
}

// Registry holds available tools.
type Registry struct {
	tools      map[string]*Tool
	httpClient *http.Client
	github     *github.Client

	coinGeckoURL   string
	wikiAPIURL     string
	wikiSummaryURL string
}

// NewRegistry creates a registry with the builtin tools installed. The HTTP
// client serves the web-backed builtins; the GitHub client may be nil to
// leave the GitHub tool out.
func NewRegistry(httpClient *http.Client, gh *github.Client) *Registry {
	r := &Registry{
		tools:      make(map[string]*Tool),
		httpClient: httpClient,
		github:     gh,

		coinGeckoURL:   defaultCoinGeckoURL,
		wikiAPIURL:     defaultWikiAPIURL,
		wikiSummaryURL: defaultWikiSummaryURL,
	}
	r.registerBuiltins()
	return r
}

// Register adds a tool to the registry, replacing any tool of the same name.
func (r *Registry) Register(t *Tool) {
	r.tools[t.Name] = t
}

// Get returns a tool by name, or nil.
func (r *Registry) Get(name string) *Tool {
	return r.tools[name]
}

// Names returns the registered tool names, sorted.
func (r *Registry) Names() []string {
	names := make([]string, 0, len(r.tools))
	for name := range r.tools {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Describe renders the catalogue advertised to the model, one JSON object
// per tool.
func (r *Registry) Describe() string {
	var out string
	for i, name := range r.Names() {
		data, err := json.Marshal(r.tools[name])
		if err != nil {
			continue
		}
		if i > 0 {
			out += "\n"
		}
		out += string(data)
	}
	return out
}

// Execute runs a parsed call. Unknown tools and handler failures both come
// back as errors; the caller decides how to feed them to the model.
func (r *Registry) Execute(ctx context.Context, call Call) (string, error) {
	tool := r.Get(call.Name)
	if tool == nil {
		return "", &ValidationError{Name: call.Name, Reason: "unknown tool"}
	}
	result, err := tool.Handler(ctx, call.Args)
	if err != nil {
		return "", fmt.Errorf("%s: %w", call.Name, err)
	}
	return result, nil
}

// ValidationError reports a call that never reached a handler: the tool
// does not exist or its arguments are malformed.
type ValidationError struct {
	Name   string
	Reason string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("%s: %s", e.Name, e.Reason)
}

// stringArg extracts a required string argument.
func stringArg(args map[string]any, key string) (string, error) {
	v, ok := args[key]
	if !ok {
		return "", fmt.Errorf("missing argument %q", key)
	}
	s, ok := v.(string)
	if !ok {
		return "", fmt.Errorf("argument %q must be a string", key)
	}
	return s, nil
}

// numberArg extracts a required numeric argument. JSON numbers arrive as
// float64; numeric strings from a confused model are tolerated.
func numberArg(args map[string]any, key string) (float64, error) {
	v, ok := args[key]
	if !ok {
		return 0, fmt.Errorf("missing argument %q", key)
	}
	switch n := v.(type) {
	case float64:
		return n, nil
	case json.Number:
		f, err := n.Float64()
		if err != nil {
			return 0, fmt.Errorf("argument %q must be a number", key)
		}
		return f, nil
	case string:
		var f float64
		if _, err := fmt.Sscanf(n, "%g", &f); err != nil {
			return 0, fmt.Errorf("argument %q must be a number", key)
		}
		return f, nil
	default:
		return 0, fmt.Errorf("argument %q must be a number", key)
	}
}
