package sources

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"os"
	"strings"
	"time"

	"newsreel/internal/types"
)

// NewsAPISource pulls recent headlines matching the configured keywords
// from newsapi.org. The API key comes from the NEWSAPI_KEY environment
// variable, like the rest of the pipeline's secrets.
type NewsAPISource struct {
	httpClient *http.Client
	keywords   []string
	baseURL    string
}

func NewNewsAPISource(keywords []string) *NewsAPISource {
	return &NewsAPISource{
		httpClient: &http.Client{Timeout: 15 * time.Second},
		keywords:   keywords,
		baseURL:    "https://newsapi.org/v2/everything",
	}
}

func (n *NewsAPISource) Name() string { return "newsapi" }

type newsAPIResponse struct {
	Status   string `json:"status"`
	Message  string `json:"message"`
	Articles []struct {
		Title       string `json:"title"`
		Description string `json:"description"`
		Content     string `json:"content"`
		URL         string `json:"url"`
		PublishedAt string `json:"publishedAt"`
		Source      struct {
			Name string `json:"name"`
		} `json:"source"`
	} `json:"articles"`
}

func (n *NewsAPISource) Fetch(ctx context.Context) ([]types.Article, error) {
	apiKey := os.Getenv("NEWSAPI_KEY")
	if apiKey == "" {
		return nil, fmt.Errorf("NEWSAPI_KEY not set")
	}

	params := url.Values{}
	params.Set("q", strings.Join(n.keywords, " OR "))
	params.Set("sortBy", "popularity")
	params.Set("language", "en")

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, n.baseURL+"?"+params.Encode(), nil)
	if err != nil {
		return nil, err
	}
	req.Header.Set("X-Api-Key", apiKey)

	resp, err := n.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("newsapi request: %w", err)
	}
	defer resp.Body.Close()

	var body newsAPIResponse
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		return nil, fmt.Errorf("parse newsapi response: %w", err)
	}
	if body.Status != "ok" {
		return nil, fmt.Errorf("newsapi error: %s", body.Message)
	}

	var articles []types.Article
	for _, item := range body.Articles {
		if strings.TrimSpace(item.Title) == "" {
			continue
		}
		content := item.Content
		if content == "" {
			content = item.Description
		}
		articles = append(articles, types.Article{
			Title:       item.Title,
			Body:        content,
			Source:      item.Source.Name,
			SourceURL:   item.URL,
			PublishedAt: item.PublishedAt,
		})
	}
	return articles, nil
}
