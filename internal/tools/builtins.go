package tools

import (
	"context"
	"fmt"
	"strconv"
)

func (r *Registry) registerBuiltins() {
	r.Register(&Tool{
		Name:        "add",
		Description: "Add two numbers. Use this for arithmetic instead of computing the sum yourself.",
		Parameters: map[string]any{
			"type": "object",
			"properties": map[string]any{
				"x": map[string]any{
					"type":        "number",
					"description": "The first number",
				},
				"y": map[string]any{
					"type":        "number",
					"description": "The second number",
				},
			},
			"required": []string{"x", "y"},
		},
		Handler: handleAdd,
	})

	r.Register(&Tool{
		Name:        "coin_price",
		Description: "Get the current USD price of a cryptocurrency from CoinGecko. The coin is identified by its CoinGecko id (e.g. bitcoin, ethereum).",
		Parameters: map[string]any{
			"type": "object",
			"properties": map[string]any{
				"coin": map[string]any{
					"type":        "string",
					"description": "The CoinGecko coin id",
				},
			},
			"required": []string{"coin"},
		},
		Handler: r.handleCoinPrice,
	})

	r.Register(&Tool{
		Name:        "wikipedia_search",
		Description: "Search Wikipedia for a query. Use this when you are unsure of the exact topic to look up; combine with wikipedia_summary once you have found the right article.",
		Parameters: map[string]any{
			"type": "object",
			"properties": map[string]any{
				"query": map[string]any{
					"type":        "string",
					"description": "The query to search for",
				},
			},
			"required": []string{"query"},
		},
		Handler: r.handleWikipediaSearch,
	})

	r.Register(&Tool{
		Name:        "wikipedia_summary",
		Description: "Get the summary of a Wikipedia article. Use this whenever you are asked to summarize a subject or topic.",
		Parameters: map[string]any{
			"type": "object",
			"properties": map[string]any{
				"query": map[string]any{
					"type":        "string",
					"description": "The article title to summarize",
				},
			},
			"required": []string{"query"},
		},
		Handler: r.handleWikipediaSummary,
	})

	if r.github != nil {
		r.Register(&Tool{
			Name:        "github_repo",
			Description: "Look up a public GitHub repository: description, stars, primary language and homepage.",
			Parameters: map[string]any{
				"type": "object",
				"properties": map[string]any{
					"owner": map[string]any{
						"type":        "string",
						"description": "The repository owner",
					},
					"repo": map[string]any{
						"type":        "string",
						"description": "The repository name",
					},
				},
				"required": []string{"owner", "repo"},
			},
			Handler: r.handleGitHubRepo,
		})
	}
}

func handleAdd(_ context.Context, args map[string]any) (string, error) {
	x, err := numberArg(args, "x")
	if err != nil {
		return "", err
	}
	y, err := numberArg(args, "y")
	if err != nil {
		return "", err
	}
	return strconv.FormatFloat(x+y, 'f', -1, 64), nil
}

func (r *Registry) handleGitHubRepo(ctx context.Context, args map[string]any) (string, error) {
	owner, err := stringArg(args, "owner")
	if err != nil {
		return "", err
	}
	name, err := stringArg(args, "repo")
	if err != nil {
		return "", err
	}

	repo, _, err := r.github.Repositories.Get(ctx, owner, name)
	if err != nil {
		return "", fmt.Errorf("github lookup: %w", err)
	}

	return fmt.Sprintf("%s: %s (%d stars, language %s) %s",
		repo.GetFullName(),
		repo.GetDescription(),
		repo.GetStargazersCount(),
		repo.GetLanguage(),
		repo.GetHTMLURL(),
	), nil
}
