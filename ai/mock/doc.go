// Package mock provides deterministic test doubles for the ai interfaces.
//
// The defaults are chosen so retrieval behaves sensibly without a model:
//
//   - MockEmbedder hashes words into a bag-of-words vector, so texts sharing
//     words have a high cosine similarity
//   - MockConceptExtractor turns content words into concepts
//   - MockCompleter echoes the prompt, which lets tests assert on what the
//     model would have been shown
//   - MockImageDescriber returns a fixed description
//
// Every mock accepts an injected func for custom behavior and counts calls.
// All of them are safe for concurrent use.
//
//	completer := mock.NewMockCompleter()
//	completer.CompleteFunc = func(ctx context.Context, system, prompt string) (string, error) {
//	    return "", core.NewExternalServiceError("completion", core.ReasonRateLimited, true, nil)
//	}
package mock
