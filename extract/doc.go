// Package extract turns ingestion payloads into plain text.
//
// Each content kind has an Extractor. A Registry maps kinds to extractors and
// is what the task manager consults:
//
//	reg := extract.Standard(provider.ImageDescriber(),
//	    extract.WithTranscriptFetcher(fetcher),
//	)
//	res, err := reg.Extract(ctx, core.ContentTypeWebpage, core.Payload{URL: "https://example.com"})
//
// Documents in text formats (.txt, .md, .markdown, .csv, .json, .html) are
// read natively. Other formats need a Converter. YouTube is only registered
// when a TranscriptFetcher is supplied.
package extract
