package youtube

import (
	"errors"
	"testing"
	"time"

	"google.golang.org/api/googleapi"
)

func TestParseWatchURL(t *testing.T) {
	tests := []struct {
		name         string
		url          string
		wantPlaylist string
		wantVideo    string
		wantErr      bool
	}{
		{
			name:         "playlist url",
			url:          "https://www.youtube.com/playlist?list=PLabc123",
			wantPlaylist: "PLabc123",
		},
		{
			name:      "watch url",
			url:       "https://www.youtube.com/watch?v=dQw4w9WgXcQ",
			wantVideo: "dQw4w9WgXcQ",
		},
		{
			name:         "watch url with list prefers playlist",
			url:          "https://www.youtube.com/watch?v=dQw4w9WgXcQ&list=PLabc123",
			wantPlaylist: "PLabc123",
		},
		{
			name:      "short url",
			url:       "https://youtu.be/dQw4w9WgXcQ",
			wantVideo: "dQw4w9WgXcQ",
		},
		{
			name:      "mobile host",
			url:       "https://m.youtube.com/watch?v=abc",
			wantVideo: "abc",
		},
		{
			name:    "no ids",
			url:     "https://www.youtube.com/",
			wantErr: true,
		},
		{
			name:    "not a url",
			url:     "::::",
			wantErr: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			playlistID, videoID, err := parseWatchURL(tt.url)
			if (err != nil) != tt.wantErr {
				t.Fatalf("parseWatchURL(%q) error = %v, wantErr %v", tt.url, err, tt.wantErr)
			}
			if tt.wantErr {
				if !errors.Is(err, ErrInvalidURL) {
					t.Errorf("parseWatchURL(%q) error = %v, want ErrInvalidURL", tt.url, err)
				}
				return
			}
			if playlistID != tt.wantPlaylist {
				t.Errorf("playlistID = %q, want %q", playlistID, tt.wantPlaylist)
			}
			if videoID != tt.wantVideo {
				t.Errorf("videoID = %q, want %q", videoID, tt.wantVideo)
			}
		})
	}
}

func TestParseISO8601Duration(t *testing.T) {
	tests := []struct {
		in   string
		want time.Duration
	}{
		{"PT3M10S", 3*time.Minute + 10*time.Second},
		{"PT1H2M3S", time.Hour + 2*time.Minute + 3*time.Second},
		{"PT45S", 45 * time.Second},
		{"PT2H", 2 * time.Hour},
		{"", 0},
		{"garbage", 0},
	}

	for _, tt := range tests {
		if got := parseISO8601Duration(tt.in); got != tt.want {
			t.Errorf("parseISO8601Duration(%q) = %v, want %v", tt.in, got, tt.want)
		}
	}
}

func TestClassifyAPIError(t *testing.T) {
	notFound := &googleapi.Error{Code: 404}
	if got := classifyAPIError(notFound); !errors.Is(got, ErrPlaylistNotFound) {
		t.Errorf("classifyAPIError(404) = %v, want ErrPlaylistNotFound", got)
	}

	tooMany := &googleapi.Error{Code: 429}
	if got := classifyAPIError(tooMany); !errors.Is(got, ErrRateLimited) {
		t.Errorf("classifyAPIError(429) = %v, want ErrRateLimited", got)
	}

	quota := &googleapi.Error{
		Code:   403,
		Errors: []googleapi.ErrorItem{{Reason: "quotaExceeded"}},
	}
	if got := classifyAPIError(quota); !errors.Is(got, ErrRateLimited) {
		t.Errorf("classifyAPIError(quotaExceeded) = %v, want ErrRateLimited", got)
	}

	forbidden := &googleapi.Error{Code: 403}
	if got := classifyAPIError(forbidden); errors.Is(got, ErrRateLimited) {
		t.Errorf("classifyAPIError(plain 403) = %v, want original error", got)
	}
}

func TestAPIErrorClassifier(t *testing.T) {
	if apiErrorClassifier(ErrPlaylistNotFound) {
		t.Error("apiErrorClassifier(ErrPlaylistNotFound) = true, want false")
	}
	if apiErrorClassifier(&googleapi.Error{Code: 400}) {
		t.Error("apiErrorClassifier(400) = true, want false")
	}
	if !apiErrorClassifier(&googleapi.Error{Code: 429}) {
		t.Error("apiErrorClassifier(429) = false, want true")
	}
	if !apiErrorClassifier(&googleapi.Error{Code: 503}) {
		t.Error("apiErrorClassifier(503) = false, want true")
	}
}
