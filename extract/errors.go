package extract

import "errors"

var (
	// ErrUnsupportedKind is returned for a kind with no registered extractor.
	ErrUnsupportedKind = errors.New("no extractor for content kind")

	// ErrUnsupportedFormat is returned for a file extension that cannot be read.
	ErrUnsupportedFormat = errors.New("unsupported file format")

	// ErrNoText is returned when extraction produced no usable text.
	ErrNoText = errors.New("no text extracted")

	// ErrBinaryContent is returned when a text format file is not valid UTF-8.
	ErrBinaryContent = errors.New("file is not valid UTF-8 text")

	// ErrDescriberRequired is returned when an image extractor has no describer.
	ErrDescriberRequired = errors.New("image describer required")

	// ErrFetcherRequired is returned when a YouTube extractor has no fetcher.
	ErrFetcherRequired = errors.New("transcript fetcher required")

	// ErrInvalidVideoURL is returned for a URL with no recognizable video id.
	ErrInvalidVideoURL = errors.New("invalid YouTube URL")
)
