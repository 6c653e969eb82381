package sources

import (
	"context"
	"fmt"
	"strings"

	"github.com/vartanbeno/go-reddit/v2/reddit"

	"newsreel/internal/types"
)

// RedditSource pulls the day's top text posts from configured subreddits
// through the official API client.
type RedditSource struct {
	client     *reddit.Client
	subreddits []string
	limit      int
}

func NewRedditSource(subreddits []string, limit int) (*RedditSource, error) {
	client, err := reddit.NewReadonlyClient()
	if err != nil {
		return nil, fmt.Errorf("reddit client: %w", err)
	}
	if limit <= 0 {
		limit = 25
	}
	return &RedditSource{client: client, subreddits: subreddits, limit: limit}, nil
}

func (r *RedditSource) Name() string { return "reddit" }

func (r *RedditSource) Fetch(ctx context.Context) ([]types.Article, error) {
	var articles []types.Article
	for _, sub := range r.subreddits {
		posts, _, err := r.client.Subreddit.TopPosts(ctx, sub, &reddit.ListPostOptions{
			ListOptions: reddit.ListOptions{Limit: r.limit},
			Time:        "day",
		})
		if err != nil {
			return nil, fmt.Errorf("top posts r/%s: %w", sub, err)
		}

		for _, post := range posts {
			if strings.TrimSpace(post.Title) == "" {
				continue
			}
			a := types.Article{
				Title:     post.Title,
				Body:      post.Body,
				Source:    "r/" + sub,
				SourceURL: "https://www.reddit.com" + post.Permalink,
			}
			if post.Created != nil {
				a.PublishedAt = post.Created.UTC().Format("2006-01-02")
			}
			articles = append(articles, a)
		}
	}
	return articles, nil
}
