// Command ytscribe downloads audio from YouTube playlists or videos and
// transcribes it with the OpenAI Whisper API. Transcripts land in the output
// directory keyed by video ID; rerunning skips videos that already have one.
package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"path/filepath"
	"time"
	"ytscribe/config"
	"ytscribe/internal/retry"
	"ytscribe/internal/storage"
	"ytscribe/pipeline"
	"ytscribe/transcribe"
	"ytscribe/youtube"
)

const stateFileName = ".ytscribe-state.json"

func main() {
	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error loading config: %v\n", err)
		os.Exit(1)
	}

	url := flag.String("url", "", "YouTube playlist or video URL (required)")
	apiKey := flag.String("api-key", "", "OpenAI API key (defaults to OPENAI_API_KEY)")
	output := flag.String("output", cfg.OutputDir, "Directory for transcript files")
	downloads := flag.String("downloads", cfg.DownloadsDir, "Directory for downloaded audio")
	delay := flag.Duration("delay", cfg.Delay, "Delay between transcriptions")
	resolverName := flag.String("resolver", "ytdlp", "Video resolution strategy: ytdlp or api")
	flag.Usage = printUsage
	flag.Parse()

	if *url == "" {
		fmt.Fprintf(os.Stderr, "Error: --url is required\n\n")
		printUsage()
		os.Exit(1)
	}

	key := *apiKey
	if key == "" {
		key = os.Getenv("OPENAI_API_KEY")
	}
	if key == "" {
		fmt.Fprintf(os.Stderr, "Error: --api-key is required (or set OPENAI_API_KEY)\n")
		os.Exit(1)
	}

	cfg.OutputDir = *output
	cfg.DownloadsDir = *downloads
	cfg.Delay = *delay
	if err := cfg.Validate(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: invalid configuration: %v\n", err)
		os.Exit(1)
	}

	ctx := context.Background()

	retryCfg := retry.Config{
		MaxRetries:     cfg.MaxRetries,
		InitialBackoff: cfg.InitialBackoff,
		MaxBackoff:     cfg.MaxBackoff,
		Multiplier:     cfg.BackoffMultiplier,
		JitterFraction: 0.2,
	}

	resolver, err := buildResolver(ctx, *resolverName, cfg, &retryCfg)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}

	fetcher := youtube.NewAudioFetcher(cfg.DownloadsDir)
	fetcher.YtdlpPath = cfg.YtdlpPath
	fetcher.Timeout = cfg.YtdlpTimeout

	client, err := transcribe.NewClient(transcribe.ClientConfig{
		APIKey:        key,
		Model:         cfg.WhisperModel,
		BaseURL:       cfg.APIBaseURL,
		MaxAudioBytes: cfg.MaxAudioBytes,
		Retry:         &retryCfg,
	})
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}

	// The manifest records per-video outcomes; losing it costs nothing but
	// history, so a store failure downgrades to a warning.
	var store *storage.RunStore
	store, err = storage.NewRunStore(filepath.Join(cfg.OutputDir, stateFileName))
	if err != nil {
		fmt.Fprintf(os.Stderr, "Warning: run manifest unavailable: %v\n", err)
		store = nil
	} else {
		defer store.Close()
	}

	runner := &pipeline.Runner{
		Resolver:    resolver,
		Fetcher:     fetcher,
		Transcriber: client,
		Store:       store,
		OutputDir:   cfg.OutputDir,
		Delay:       cfg.Delay,
	}

	fmt.Fprintf(os.Stderr, "Resolving %s...\n", *url)
	summary, err := runner.Run(ctx, *url)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}

	fmt.Fprintf(os.Stderr, "\nDone: %d video(s) total, %d transcribed, %d skipped, %d failed\n",
		summary.Total, summary.Transcribed, summary.Skipped, summary.Failed)
	fmt.Fprintf(os.Stderr, "Transcripts saved to: %s\n", cfg.OutputDir)
}

// buildResolver constructs the configured resolution strategy. The yt-dlp
// strategy verifies the tool is installed so a missing binary fails at
// startup instead of on the first video.
func buildResolver(ctx context.Context, name string, cfg *config.Config, retryCfg *retry.Config) (youtube.VideoResolver, error) {
	switch name {
	case "ytdlp":
		r := youtube.NewYtdlpResolver()
		r.Path = cfg.YtdlpPath
		r.Timeout = cfg.YtdlpTimeout
		r.RetryConfig = retryCfg

		checkCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
		defer cancel()
		if err := r.CheckInstalled(checkCtx); err != nil {
			return nil, err
		}
		return r, nil

	case "api":
		if cfg.YouTubeAPIKey == "" {
			return nil, fmt.Errorf("--resolver api requires YTSCRIBE_YOUTUBE_API_KEY")
		}
		r, err := youtube.NewAPIResolver(ctx, cfg.YouTubeAPIKey)
		if err != nil {
			return nil, err
		}
		r.RetryConfig = retryCfg
		return r, nil

	default:
		return nil, fmt.Errorf("invalid --resolver value %q (use ytdlp or api)", name)
	}
}

func printUsage() {
	fmt.Fprintf(os.Stderr, `ytscribe - transcribe YouTube playlists and videos with the Whisper API

Usage:
  ytscribe --url <youtube-url> --api-key <openai-key> [flags]

Flags:
`)
	flag.PrintDefaults()
	fmt.Fprintf(os.Stderr, `
Examples:
  ytscribe --url "https://www.youtube.com/playlist?list=PL..." --api-key sk-...
  ytscribe --url "https://www.youtube.com/watch?v=..." --delay 10s
  ytscribe --url "https://youtu.be/..." --output ./texts --downloads ./audio

Audio lands in <downloads>/<video-id>.mp3 and transcripts in
<output>/<video-id>.txt. A video whose transcript file already exists is
skipped entirely, so interrupted runs can simply be restarted.
`)
}
