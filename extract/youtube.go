package extract

import (
	"context"
	"fmt"
	"regexp"
	"strings"

	"github.com/poiesic/studyforge/core"
)

// Transcript is a fetched video transcript.
type Transcript struct {
	Title    string
	Language string
	Text     string
}

// TranscriptFetcher retrieves the transcript of a video.
type TranscriptFetcher interface {
	FetchTranscript(ctx context.Context, videoID string) (*Transcript, error)
}

// YouTube ingests a video through its transcript.
type YouTube struct {
	Fetcher TranscriptFetcher
}

var videoIDPatterns = []*regexp.Regexp{
	regexp.MustCompile(`(?:youtube\.com/watch\?(?:.*&)?v=|youtu\.be/)([^&\n?#/]+)`),
	regexp.MustCompile(`youtube\.com/embed/([^&\n?#/]+)`),
	regexp.MustCompile(`youtube\.com/v/([^&\n?#/]+)`),
	regexp.MustCompile(`youtube\.com/shorts/([^&\n?#/]+)`),
}

// VideoID extracts the video id from a YouTube URL.
func VideoID(url string) (string, error) {
	for _, p := range videoIDPatterns {
		if m := p.FindStringSubmatch(url); m != nil {
			return m[1], nil
		}
	}
	return "", fmt.Errorf("%w: %q", ErrInvalidVideoURL, url)
}

// Extract implements Extractor.
func (y *YouTube) Extract(ctx context.Context, payload core.Payload) (*Result, error) {
	if y.Fetcher == nil {
		return nil, ErrFetcherRequired
	}
	id, err := VideoID(payload.URL)
	if err != nil {
		return nil, core.NewValidationError("url", err)
	}

	tr, err := y.Fetcher.FetchTranscript(ctx, id)
	if err != nil {
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		return nil, err
	}

	title := strings.TrimSpace(payload.Title)
	if title == "" {
		title = tr.Title
	}
	if title == "" {
		title = "YouTube video " + id
	}
	return &Result{
		Title:     title,
		Text:      strings.TrimSpace(tr.Text),
		SourceURL: payload.URL,
		Metadata:  map[string]any{"video_id": id, "language": tr.Language},
	}, nil
}

var (
	vttTag    = regexp.MustCompile(`<[^>]+>`)
	vttEntity = strings.NewReplacer("&amp;", "&", "&lt;", "<", "&gt;", ">", "&nbsp;", " ")
)

// ParseVTT returns the spoken text of a WebVTT subtitle file. Cue timing,
// headers and inline tags are dropped. Consecutive duplicate lines, common in
// auto-generated captions, are collapsed.
func ParseVTT(vtt string) string {
	lines := strings.Split(strings.ReplaceAll(vtt, "\r\n", "\n"), "\n")
	var out []string
	inCue := false
	for _, raw := range lines {
		line := strings.TrimSpace(raw)
		switch {
		case line == "":
			inCue = false
		case strings.Contains(line, "-->"):
			inCue = true
		case inCue:
			text := strings.TrimSpace(vttEntity.Replace(vttTag.ReplaceAllString(line, "")))
			if text != "" && (len(out) == 0 || out[len(out)-1] != text) {
				out = append(out, text)
			}
		}
	}
	return strings.Join(out, " ")
}
