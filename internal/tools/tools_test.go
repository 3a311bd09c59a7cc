package tools

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
)

func TestRegistryExecuteAdd(t *testing.T) {
	r := NewRegistry(http.DefaultClient, nil)

	tests := []struct {
		name string
		args map[string]any
		want string
	}{
		{"integers", map[string]any{"x": float64(2), "y": float64(3)}, "5"},
		{"floats", map[string]any{"x": 1.5, "y": 2.25}, "3.75"},
		{"numeric strings", map[string]any{"x": "10", "y": "4"}, "14"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := r.Execute(context.Background(), Call{Name: "add", Args: tt.args})
			if err != nil {
				t.Fatalf("Execute: %v", err)
			}
			if got != tt.want {
				t.Errorf("add = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestRegistryExecuteAddBadArgs(t *testing.T) {
	r := NewRegistry(http.DefaultClient, nil)

	_, err := r.Execute(context.Background(), Call{Name: "add", Args: map[string]any{"x": float64(1)}})
	if err == nil || !strings.Contains(err.Error(), `"y"`) {
		t.Errorf("err = %v, want missing-argument error for y", err)
	}
}

func TestRegistryUnknownTool(t *testing.T) {
	r := NewRegistry(http.DefaultClient, nil)

	_, err := r.Execute(context.Background(), Call{Name: "teleport"})
	var verr *ValidationError
	if !errors.As(err, &verr) {
		t.Fatalf("err = %T %v, want ValidationError", err, err)
	}
	if verr.Name != "teleport" {
		t.Errorf("ValidationError.Name = %q", verr.Name)
	}
}

func TestRegistryDescribe(t *testing.T) {
	r := NewRegistry(http.DefaultClient, nil)

	catalogue := r.Describe()
	for _, name := range []string{"add", "coin_price", "wikipedia_search", "wikipedia_summary"} {
		if !strings.Contains(catalogue, fmt.Sprintf("%q", name)) {
			t.Errorf("catalogue missing tool %q", name)
		}
	}
	// No GitHub client, no GitHub tool.
	if strings.Contains(catalogue, "github_repo") {
		t.Error("catalogue advertises github_repo without a client")
	}
}

func TestCoinPrice(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if got := r.URL.Query().Get("ids"); got != "bitcoin" {
			t.Errorf("ids = %q", got)
		}
		fmt.Fprint(w, `{"bitcoin": {"usd": 64000.5}}`)
	}))
	defer srv.Close()

	r := NewRegistry(srv.Client(), nil)
	r.coinGeckoURL = srv.URL

	got, err := r.Execute(context.Background(), Call{Name: "coin_price", Args: map[string]any{"coin": "Bitcoin"}})
	if err != nil {
		t.Fatalf("Execute: %v", err)
	}
	if !strings.Contains(got, "64000.5") {
		t.Errorf("coin_price = %q", got)
	}
}

func TestCoinPriceUnknownCoin(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, `{}`)
	}))
	defer srv.Close()

	r := NewRegistry(srv.Client(), nil)
	r.coinGeckoURL = srv.URL

	_, err := r.Execute(context.Background(), Call{Name: "coin_price", Args: map[string]any{"coin": "dogecorn"}})
	if err == nil || !strings.Contains(err.Error(), "dogecorn") {
		t.Errorf("err = %v, want unknown-coin error", err)
	}
}

func TestWikipediaSearch(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if got := r.URL.Query().Get("search"); got != "go language" {
			t.Errorf("search = %q", got)
		}
		fmt.Fprint(w, `["go language", ["Go (programming language)", "Golang"], ["", ""], ["https://x", "https://y"]]`)
	}))
	defer srv.Close()

	r := NewRegistry(srv.Client(), nil)
	r.wikiAPIURL = srv.URL

	got, err := r.Execute(context.Background(), Call{Name: "wikipedia_search", Args: map[string]any{"query": "go language"}})
	if err != nil {
		t.Fatalf("Execute: %v", err)
	}
	if got != "Go (programming language), Golang" {
		t.Errorf("wikipedia_search = %q", got)
	}
}

func TestWikipediaSummary(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, `{"title": "Dhaka", "extract": "Dhaka is the capital of Bangladesh."}`)
	}))
	defer srv.Close()

	r := NewRegistry(srv.Client(), nil)
	r.wikiSummaryURL = srv.URL + "/"

	got, err := r.Execute(context.Background(), Call{Name: "wikipedia_summary", Args: map[string]any{"query": "Dhaka"}})
	if err != nil {
		t.Fatalf("Execute: %v", err)
	}
	if !strings.Contains(got, "capital of Bangladesh") {
		t.Errorf("wikipedia_summary = %q", got)
	}
}
