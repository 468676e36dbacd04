package extract

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/poiesic/studyforge/ai/mock"
	"github.com/poiesic/studyforge/core"
)

func writeFile(t *testing.T, name, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

func TestRegistry_UnknownKind(t *testing.T) {
	reg := NewRegistry()
	_, err := reg.Extract(context.Background(), core.ContentTypeText, core.Payload{Text: "x"})
	require.ErrorIs(t, err, ErrUnsupportedKind)
	assert.Equal(t, core.ErrorKindInvalidInput, core.KindOf(err))
}

func TestRegistry_RejectsBlankResult(t *testing.T) {
	reg := NewRegistry()
	reg.Register(core.ContentTypeText, ExtractorFunc(func(ctx context.Context, p core.Payload) (*Result, error) {
		return &Result{Text: "  \n "}, nil
	}))
	_, err := reg.Extract(context.Background(), core.ContentTypeText, core.Payload{Text: "x"})
	assert.ErrorIs(t, err, ErrNoText)
}

func TestRegistry_MergesMetadataAndTitle(t *testing.T) {
	reg := NewRegistry()
	reg.Register(core.ContentTypeText, ExtractorFunc(func(ctx context.Context, p core.Payload) (*Result, error) {
		return &Result{Text: "body", Metadata: map[string]any{"b": 2}}, nil
	}))
	res, err := reg.Extract(context.Background(), core.ContentTypeText, core.Payload{
		Title:    "Given",
		Metadata: map[string]any{"a": 1},
	})
	require.NoError(t, err)
	assert.Equal(t, "Given", res.Title)
	assert.Equal(t, map[string]any{"a": 1, "b": 2}, res.Metadata)
}

func TestRegistry_CancelledContext(t *testing.T) {
	reg := Standard(nil)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err := reg.Extract(ctx, core.ContentTypeText, core.Payload{Text: "x"})
	assert.ErrorIs(t, err, context.Canceled)
}

func TestStandard_Registration(t *testing.T) {
	reg := Standard(nil)
	assert.True(t, reg.Supports(core.ContentTypeText))
	assert.True(t, reg.Supports(core.ContentTypeDocument))
	assert.True(t, reg.Supports(core.ContentTypeWebpage))
	assert.False(t, reg.Supports(core.ContentTypeImage))
	assert.False(t, reg.Supports(core.ContentTypeYouTube))

	reg = Standard(mock.NewMockImageDescriber(), WithTranscriptFetcher(stubFetcher{}))
	assert.True(t, reg.Supports(core.ContentTypeImage))
	assert.True(t, reg.Supports(core.ContentTypeYouTube))
}

func TestText_TitleFromFirstLine(t *testing.T) {
	res, err := Text{}.Extract(context.Background(), core.Payload{Text: "\n  Cell biology notes\nMitochondria make ATP."})
	require.NoError(t, err)
	assert.Equal(t, "Cell biology notes", res.Title)
	assert.Equal(t, "Cell biology notes\nMitochondria make ATP.", res.Text)
}

func TestDocument_NativeFormats(t *testing.T) {
	d := &Document{}

	md := writeFile(t, "notes.md", "# Osmosis\n\nWater moves across membranes.")
	res, err := d.Extract(context.Background(), core.Payload{FilePath: md})
	require.NoError(t, err)
	assert.Equal(t, "notes.md", res.Title)
	assert.Equal(t, md, res.FilePath)
	assert.Contains(t, res.Text, "Water moves across membranes.")

	page := writeFile(t, "page.html", "<html><head><title>T</title><script>var x;</script></head><body><p>Enzymes speed reactions.</p></body></html>")
	res, err = d.Extract(context.Background(), core.Payload{FilePath: page})
	require.NoError(t, err)
	assert.Equal(t, "Enzymes speed reactions.", res.Text)
}

func TestDocument_Errors(t *testing.T) {
	d := &Document{}

	_, err := d.Extract(context.Background(), core.Payload{FilePath: filepath.Join(t.TempDir(), "missing.txt")})
	assert.Equal(t, core.ErrorKindInvalidInput, core.KindOf(err))

	pdf := writeFile(t, "paper.pdf", "%PDF-1.7")
	_, err = d.Extract(context.Background(), core.Payload{FilePath: pdf})
	assert.ErrorIs(t, err, ErrUnsupportedFormat)

	bin := writeFile(t, "blob.txt", string([]byte{0xff, 0xfe, 0x00}))
	_, err = d.Extract(context.Background(), core.Payload{FilePath: bin})
	assert.ErrorIs(t, err, ErrBinaryContent)
}

type stubConverter struct {
	err error
}

func (stubConverter) Supports(ext string) bool { return ext == ".pdf" }

func (c stubConverter) Convert(ctx context.Context, path string) (string, error) {
	return "converted text", c.err
}

func TestDocument_Converter(t *testing.T) {
	pdf := writeFile(t, "paper.pdf", "%PDF-1.7")

	res, err := (&Document{Converter: stubConverter{}}).Extract(context.Background(), core.Payload{FilePath: pdf})
	require.NoError(t, err)
	assert.Equal(t, "converted text", res.Text)

	_, err = (&Document{Converter: stubConverter{err: errors.New("corrupt")}}).Extract(context.Background(), core.Payload{FilePath: pdf})
	assert.Equal(t, core.ErrorKindExternalService, core.KindOf(err))
}

func TestWebpage_ExtractsReadableText(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/html; charset=utf-8")
		_, _ = w.Write([]byte(`<html><head><title>Photosynthesis</title><style>p{}</style></head>
<body><nav>Home | About</nav><h2>Overview</h2><p>Plants convert   light into energy.</p>
<ul><li>Chlorophyll</li><li>Glucose</li></ul></body></html>`))
	}))
	defer srv.Close()

	w := &Webpage{Client: srv.Client()}
	res, err := w.Extract(context.Background(), core.Payload{URL: srv.URL})
	require.NoError(t, err)
	assert.Equal(t, "Photosynthesis", res.Title)
	assert.Equal(t, srv.URL, res.SourceURL)
	assert.Contains(t, res.Text, "## Overview")
	assert.Contains(t, res.Text, "Plants convert light into energy.")
	assert.Contains(t, res.Text, "- Chlorophyll")
	assert.NotContains(t, res.Text, "Home | About")
}

func TestWebpage_PlainText(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/plain")
		_, _ = w.Write([]byte("<b>literal</b>"))
	}))
	defer srv.Close()

	res, err := (&Webpage{Client: srv.Client()}).Extract(context.Background(), core.Payload{URL: srv.URL})
	require.NoError(t, err)
	assert.Equal(t, "<b>literal</b>", res.Text)
	assert.Equal(t, srv.URL, res.Title)
}

func TestWebpage_StatusErrors(t *testing.T) {
	tests := []struct {
		code      int
		reason    string
		retryable bool
	}{
		{http.StatusNotFound, core.ReasonUpstream, false},
		{http.StatusTooManyRequests, core.ReasonRateLimited, true},
		{http.StatusForbidden, core.ReasonAuth, false},
		{http.StatusBadGateway, core.ReasonUnavailable, true},
	}
	for _, tt := range tests {
		t.Run(http.StatusText(tt.code), func(t *testing.T) {
			srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				w.WriteHeader(tt.code)
			}))
			defer srv.Close()

			_, err := (&Webpage{Client: srv.Client()}).Extract(context.Background(), core.Payload{URL: srv.URL})
			var ese *core.ExternalServiceError
			require.ErrorAs(t, err, &ese)
			assert.Equal(t, tt.reason, ese.Reason)
			assert.Equal(t, tt.retryable, ese.Retryable)
		})
	}
}

func TestImage_DescribesWithDefaultPrompt(t *testing.T) {
	describer := mock.NewMockImageDescriber()
	var gotPrompt, gotMime string
	describer.DescribeImageFunc = func(ctx context.Context, mimeType string, image []byte, prompt string) (string, error) {
		gotPrompt, gotMime = prompt, mimeType
		return "A cell diagram showing the nucleus.", nil
	}

	path := writeFile(t, "cell.JPG", "fake-jpeg")
	res, err := (&Image{Describer: describer}).Extract(context.Background(), core.Payload{FilePath: path})
	require.NoError(t, err)
	assert.Equal(t, DefaultImagePrompt, gotPrompt)
	assert.Equal(t, "image/jpeg", gotMime)
	assert.Equal(t, "cell.JPG", res.Title)
	assert.Equal(t, "A cell diagram showing the nucleus.", res.Text)
	assert.Equal(t, DefaultImagePrompt, res.Metadata["prompt"])
}

func TestImage_RejectsOtherFormats(t *testing.T) {
	describer := mock.NewMockImageDescriber()
	path := writeFile(t, "cell.gif", "GIF89a")
	_, err := (&Image{Describer: describer}).Extract(context.Background(), core.Payload{FilePath: path})
	assert.ErrorIs(t, err, ErrUnsupportedFormat)
	assert.Equal(t, 0, describer.CallCount())
}

type stubFetcher struct {
	err error
}

func (f stubFetcher) FetchTranscript(ctx context.Context, videoID string) (*Transcript, error) {
	if f.err != nil {
		return nil, f.err
	}
	return &Transcript{Title: "Lecture " + videoID, Language: "en", Text: "Today we cover entropy."}, nil
}

func TestVideoID(t *testing.T) {
	tests := map[string]string{
		"https://www.youtube.com/watch?v=abc123":             "abc123",
		"https://www.youtube.com/watch?feature=share&v=xyz9": "xyz9",
		"https://youtu.be/qwe?t=10":                          "qwe",
		"https://www.youtube.com/embed/emb1":                 "emb1",
		"https://youtube.com/shorts/sh0rt":                   "sh0rt",
	}
	for url, want := range tests {
		got, err := VideoID(url)
		require.NoError(t, err, url)
		assert.Equal(t, want, got)
	}

	_, err := VideoID("https://vimeo.com/123")
	assert.ErrorIs(t, err, ErrInvalidVideoURL)
}

func TestYouTube_Extract(t *testing.T) {
	res, err := (&YouTube{Fetcher: stubFetcher{}}).Extract(context.Background(),
		core.Payload{URL: "https://youtu.be/abc123"})
	require.NoError(t, err)
	assert.Equal(t, "Lecture abc123", res.Title)
	assert.Equal(t, "Today we cover entropy.", res.Text)
	assert.Equal(t, "abc123", res.Metadata["video_id"])

	_, err = (&YouTube{Fetcher: stubFetcher{}}).Extract(context.Background(),
		core.Payload{URL: "https://example.com/video"})
	assert.Equal(t, core.ErrorKindInvalidInput, core.KindOf(err))
}

func TestParseVTT(t *testing.T) {
	vtt := strings.Join([]string{
		"WEBVTT",
		"Kind: captions",
		"Language: en",
		"",
		"00:00:00.000 --> 00:00:02.000",
		"<c>Hello</c> &amp; welcome",
		"",
		"00:00:02.000 --> 00:00:04.000",
		"Hello &amp; welcome",
		"to thermodynamics",
		"",
	}, "\n")
	assert.Equal(t, "Hello & welcome to thermodynamics", ParseVTT(vtt))
}
