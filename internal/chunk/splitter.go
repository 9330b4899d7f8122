package chunk

import "strings"

// DefaultSeparators is the order the recursive splitter tries before
// falling back to splitting by individual characters.
var DefaultSeparators = []string{"\n\n", "\n", ". ", " ", ""}

// Splitter recursively splits text on a sequence of separators, packing
// the resulting pieces into chunks of at most sizeTokens, with overlapTokens
// of context repeated between consecutive chunks.
type Splitter struct {
	sizeTokens    int
	overlapTokens int
	separators    []string
	keepSeparator bool
	tokenizer     Tokenizer
}

// NewSplitter builds a Splitter. separators defaults to DefaultSeparators
// when nil. Panics are avoided: callers are expected to have validated
// overlapTokens < sizeTokens via config.Validate before constructing one.
func NewSplitter(tokenizer Tokenizer, sizeTokens, overlapTokens int, separators []string, keepSeparator bool) *Splitter {
	if separators == nil {
		separators = DefaultSeparators
	}
	return &Splitter{
		sizeTokens:    sizeTokens,
		overlapTokens: overlapTokens,
		separators:    separators,
		keepSeparator: keepSeparator,
		tokenizer:     tokenizer,
	}
}

// Split divides text into token-bounded pieces, in order, with no overlap
// logic applied below the character level (overlap is applied once pieces
// are packed into token-sized chunks).
func (s *Splitter) Split(text string) []string {
	pieces := s.splitRecursive(text, s.separators)
	return s.pack(pieces)
}

// splitRecursive splits text on the first usable separator, then recurses
// on any resulting piece still over the size budget using the remaining
// separators. The empty-string separator splits by rune as a last resort.
func (s *Splitter) splitRecursive(text string, separators []string) []string {
	if text == "" {
		return nil
	}
	if s.tokenizer.CountTokens(text) <= s.sizeTokens {
		return []string{text}
	}
	if len(separators) == 0 {
		return []string{text}
	}

	sep := separators[0]
	rest := separators[1:]

	var parts []string
	if sep == "" {
		for _, r := range text {
			parts = append(parts, string(r))
		}
	} else {
		parts = strings.Split(text, sep)
	}

	if len(parts) == 1 {
		// Separator did not occur in text; try the next one.
		return s.splitRecursive(text, rest)
	}

	var out []string
	for i, part := range parts {
		piece := part
		if s.keepSeparator && sep != "" && i < len(parts)-1 {
			piece += sep
		}
		if piece == "" {
			continue
		}
		if s.tokenizer.CountTokens(piece) > s.sizeTokens {
			out = append(out, s.splitRecursive(piece, rest)...)
		} else {
			out = append(out, piece)
		}
	}
	return out
}

// pack greedily merges adjacent pieces into chunks up to sizeTokens,
// repeating overlapTokens worth of trailing content from one chunk at the
// start of the next.
func (s *Splitter) pack(pieces []string) []string {
	if len(pieces) == 0 {
		return nil
	}

	var chunks []string
	var current strings.Builder
	currentTokens := 0

	flush := func() {
		if current.Len() > 0 {
			chunks = append(chunks, current.String())
		}
	}

	for _, piece := range pieces {
		pieceTokens := s.tokenizer.CountTokens(piece)
		if currentTokens > 0 && currentTokens+pieceTokens > s.sizeTokens {
			flush()
			overlap := s.popOverlapToFit(current.String(), pieceTokens)
			current.Reset()
			current.WriteString(overlap)
			currentTokens = s.tokenizer.CountTokens(overlap)
		}
		current.WriteString(piece)
		currentTokens += pieceTokens
	}
	flush()

	return chunks
}

// popOverlapToFit returns the suffix of prevChunk worth at most
// overlapTokens tokens, popping further tokens off the front of that
// suffix while it would still leave no room for incomingTokens. Mirrors
// langchain_text_splitters.RecursiveCharacterTextSplitter's merge loop,
// which shrinks its overlap buffer rather than ever emitting a chunk over
// sizeTokens.
func (s *Splitter) popOverlapToFit(prevChunk string, incomingTokens int) string {
	n := s.overlapTokens
	if n <= 0 {
		return ""
	}

	tokens := s.tokenizer.Encode(prevChunk)
	if n > len(tokens) {
		n = len(tokens)
	}
	for n > 0 && n+incomingTokens > s.sizeTokens {
		n--
	}
	if n <= 0 {
		return ""
	}
	return s.tokenizer.Decode(tokens[len(tokens)-n:])
}
