// Package publish pushes finished videos to YouTube. Publishing is
// optional: the pipeline's deliverable is the local MP4, and upload is a
// post-step enabled by config.
package publish

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"time"

	"golang.org/x/oauth2"
	"golang.org/x/oauth2/google"
	"google.golang.org/api/option"
	"google.golang.org/api/youtube/v3"

	"newsreel/internal/config"
)

// Publisher uploads videos via the YouTube Data API v3 using env
// credentials.
type Publisher struct {
	cfg    config.PublishConfig
	logger *slog.Logger
}

func New(cfg config.PublishConfig, logger *slog.Logger) *Publisher {
	if logger == nil {
		logger = slog.Default()
	}
	return &Publisher{cfg: cfg, logger: logger}
}

// Upload publishes one video file and returns its watch URL.
func (p *Publisher) Upload(ctx context.Context, videoPath, title, description string) (string, error) {
	ts, err := p.tokenSource(ctx)
	if err != nil {
		return "", fmt.Errorf("youtube auth: %w", err)
	}

	svc, err := youtube.NewService(ctx, option.WithTokenSource(ts))
	if err != nil {
		return "", fmt.Errorf("youtube service: %w", err)
	}

	f, err := os.Open(videoPath)
	if err != nil {
		return "", fmt.Errorf("open video file: %w", err)
	}
	defer f.Close()

	video := &youtube.Video{
		Snippet: &youtube.VideoSnippet{
			Title:           title,
			Description:     description,
			CategoryId:      p.cfg.CategoryID,
			DefaultLanguage: p.cfg.DefaultLanguage,
		},
		Status: &youtube.VideoStatus{
			PrivacyStatus: p.cfg.Visibility,
		},
	}

	p.logger.Info("uploading video", "title", title, "path", videoPath)

	call := svc.Videos.Insert([]string{"snippet", "status"}, video)
	call.NotifySubscribers(p.cfg.NotifySubscribers)
	call.Media(f)
	uploaded, err := call.Do()
	if err != nil {
		return "", fmt.Errorf("youtube upload: %w", err)
	}

	url := fmt.Sprintf("https://www.youtube.com/watch?v=%s", uploaded.Id)
	p.logger.Info("upload complete", "url", url)
	return url, nil
}

// tokenSource builds a scoped, self-refreshing token source from env
// credentials. ReuseTokenSource caches the access token and refreshes it
// only when expired, so no token state leaks into globals.
func (p *Publisher) tokenSource(ctx context.Context) (oauth2.TokenSource, error) {
	clientID := os.Getenv("YOUTUBE_CLIENT_ID")
	clientSecret := os.Getenv("YOUTUBE_CLIENT_SECRET")
	refreshToken := os.Getenv("YOUTUBE_REFRESH_TOKEN")
	if clientID == "" || clientSecret == "" || refreshToken == "" {
		return nil, fmt.Errorf("YOUTUBE_CLIENT_ID, YOUTUBE_CLIENT_SECRET, or YOUTUBE_REFRESH_TOKEN not set")
	}

	conf := &oauth2.Config{
		ClientID:     clientID,
		ClientSecret: clientSecret,
		Endpoint:     google.Endpoint,
		Scopes:       []string{youtube.YoutubeUploadScope},
	}
	seed := &oauth2.Token{
		RefreshToken: refreshToken,
		Expiry:       time.Now().Add(-time.Hour), // force initial refresh
	}
	return oauth2.ReuseTokenSource(nil, conf.TokenSource(ctx, seed)), nil
}
