package youtube

import (
	"context"
	"errors"
	"fmt"
	"net/url"
	"strings"
	"sync"
	"time"
	"ytscribe/internal/retry"

	"google.golang.org/api/googleapi"
	"google.golang.org/api/option"
	youtubeapi "google.golang.org/api/youtube/v3"
)

const apiPageSize = 50

// APIResolver implements VideoResolver using YouTube Data API v3.
// It avoids the yt-dlp subprocess entirely, at the cost of requiring an API key.
type APIResolver struct {
	service *youtubeapi.Service

	// Quota tracking
	mu             sync.Mutex
	estimatedQuota int // Estimated remaining quota units

	// RetryConfig holds retry behavior configuration.
	RetryConfig *retry.Config
}

// NewAPIResolver creates a new YouTube Data API v3-based resolver.
func NewAPIResolver(ctx context.Context, apiKey string) (*APIResolver, error) {
	if apiKey == "" {
		return nil, fmt.Errorf("youtube api key required")
	}

	service, err := youtubeapi.NewService(ctx, option.WithAPIKey(apiKey))
	if err != nil {
		return nil, fmt.Errorf("create youtube service: %w", err)
	}

	cfg := retry.DefaultConfig()
	return &APIResolver{
		service:        service,
		estimatedQuota: 10000, // Default daily quota
		RetryConfig:    &cfg,
	}, nil
}

// Resolve enumerates the videos behind a playlist or video URL via the Data API.
func (a *APIResolver) Resolve(ctx context.Context, rawURL string) ([]Video, error) {
	playlistID, videoID, err := parseWatchURL(rawURL)
	if err != nil {
		return nil, &ResolverError{Source: "api", URL: rawURL, Err: err}
	}

	if playlistID != "" {
		videos, err := a.listPlaylistVideos(ctx, playlistID)
		if err != nil {
			return nil, &ResolverError{Source: "api", URL: rawURL, Err: err}
		}
		return videos, nil
	}

	video, err := a.lookupVideo(ctx, videoID)
	if err != nil {
		return nil, &ResolverError{Source: "api", URL: rawURL, Err: err}
	}
	return []Video{*video}, nil
}

// listPlaylistVideos pages through playlistItems.list for the given playlist.
func (a *APIResolver) listPlaylistVideos(ctx context.Context, playlistID string) ([]Video, error) {
	cfg := a.retryConfig()

	var videos []Video
	pageToken := ""

	for {
		var resp *youtubeapi.PlaylistItemListResponse
		err := retry.Do(ctx, cfg, apiErrorClassifier, func(ctx context.Context) error {
			call := a.service.PlaylistItems.List([]string{"snippet", "contentDetails"}).
				PlaylistId(playlistID).
				MaxResults(apiPageSize).
				Context(ctx)
			if pageToken != "" {
				call = call.PageToken(pageToken)
			}

			r, err := call.Do()
			if err != nil {
				if ctx.Err() != nil {
					return ErrNetworkTimeout
				}
				return classifyAPIError(err)
			}
			a.trackQuotaUsage(1) // playlistItems.list costs 1 unit
			resp = r
			return nil
		})
		if err != nil {
			return nil, err
		}

		for _, item := range resp.Items {
			if item.Snippet == nil || item.ContentDetails == nil {
				continue
			}
			videos = append(videos, Video{
				ID:       item.ContentDetails.VideoId,
				Title:    item.Snippet.Title,
				Uploader: item.Snippet.VideoOwnerChannelTitle,
			})
		}

		pageToken = resp.NextPageToken
		if pageToken == "" {
			break
		}
	}

	if len(videos) == 0 {
		return nil, ErrPlaylistNotFound
	}

	return videos, nil
}

// lookupVideo fetches metadata for a single video ID.
func (a *APIResolver) lookupVideo(ctx context.Context, videoID string) (*Video, error) {
	cfg := a.retryConfig()

	var video *Video
	err := retry.Do(ctx, cfg, apiErrorClassifier, func(ctx context.Context) error {
		call := a.service.Videos.List([]string{"snippet", "contentDetails"}).
			Id(videoID).
			Context(ctx)

		resp, err := call.Do()
		if err != nil {
			if ctx.Err() != nil {
				return ErrNetworkTimeout
			}
			return classifyAPIError(err)
		}
		a.trackQuotaUsage(1) // videos.list costs 1 unit

		if len(resp.Items) == 0 {
			return ErrPlaylistNotFound
		}

		item := resp.Items[0]
		v := Video{ID: item.Id}
		if item.Snippet != nil {
			v.Title = item.Snippet.Title
			v.Uploader = item.Snippet.ChannelTitle
		}
		if item.ContentDetails != nil {
			v.Duration = parseISO8601Duration(item.ContentDetails.Duration)
		}
		video = &v
		return nil
	})
	if err != nil {
		return nil, err
	}

	return video, nil
}

// EstimatedQuota returns the estimated remaining daily quota units.
func (a *APIResolver) EstimatedQuota() int {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.estimatedQuota
}

func (a *APIResolver) trackQuotaUsage(units int) {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.estimatedQuota -= units
	if a.estimatedQuota < 0 {
		a.estimatedQuota = 0
	}
}

func (a *APIResolver) retryConfig() retry.Config {
	if a.RetryConfig != nil {
		return *a.RetryConfig
	}
	return retry.DefaultConfig()
}

// parseWatchURL extracts a playlist ID or video ID from a YouTube URL.
// Exactly one of the returned IDs is non-empty on success. A watch URL
// carrying both v= and list= is treated as a playlist.
func parseWatchURL(rawURL string) (playlistID, videoID string, err error) {
	u, parseErr := url.Parse(rawURL)
	if parseErr != nil || u.Host == "" {
		return "", "", fmt.Errorf("%w: %q", ErrInvalidURL, rawURL)
	}

	host := strings.TrimPrefix(u.Host, "www.")
	switch host {
	case "youtube.com", "m.youtube.com", "music.youtube.com":
		q := u.Query()
		if list := q.Get("list"); list != "" {
			return list, "", nil
		}
		if v := q.Get("v"); v != "" {
			return "", v, nil
		}
	case "youtu.be":
		if id := strings.Trim(u.Path, "/"); id != "" {
			return "", id, nil
		}
	}

	return "", "", fmt.Errorf("%w: no video or playlist in %q", ErrInvalidURL, rawURL)
}

// parseISO8601Duration converts an ISO 8601 duration (e.g., "PT1H2M3S")
// into a time.Duration. Returns zero on malformed input.
func parseISO8601Duration(s string) time.Duration {
	s = strings.TrimPrefix(s, "PT")
	var d time.Duration
	num := 0
	for _, r := range s {
		switch {
		case r >= '0' && r <= '9':
			num = num*10 + int(r-'0')
		case r == 'H':
			d += time.Duration(num) * time.Hour
			num = 0
		case r == 'M':
			d += time.Duration(num) * time.Minute
			num = 0
		case r == 'S':
			d += time.Duration(num) * time.Second
			num = 0
		default:
			return 0
		}
	}
	return d
}

// classifyAPIError maps googleapi errors onto the package sentinels.
func classifyAPIError(err error) error {
	var gerr *googleapi.Error
	if errors.As(err, &gerr) {
		switch {
		case gerr.Code == 404:
			return ErrPlaylistNotFound
		case gerr.Code == 429:
			return ErrRateLimited
		case gerr.Code == 403:
			for _, e := range gerr.Errors {
				if e.Reason == "quotaExceeded" || e.Reason == "rateLimitExceeded" {
					return ErrRateLimited
				}
			}
			return err
		}
	}
	return err
}

// apiErrorClassifier determines if a Data API error is retryable.
func apiErrorClassifier(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, ErrPlaylistNotFound) || errors.Is(err, ErrInvalidURL) {
		return false
	}
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return false
	}

	var gerr *googleapi.Error
	if errors.As(err, &gerr) {
		// Client errors other than 429 are permanent
		if gerr.Code >= 400 && gerr.Code < 500 && gerr.Code != 429 {
			return false
		}
	}

	return true
}
