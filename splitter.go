package ragchat

import (
	"context"
	"strings"
	"unicode/utf8"
)

// Splitter defaults.
const (
	DefaultChunkSize    = 1000
	DefaultChunkOverlap = 0
)

// DefaultSeparators are tried in order when splitting text.
var DefaultSeparators = []string{" ", ",", "\n"}

// LengthFunc measures text for chunking, in characters or tokens.
type LengthFunc func(text string) (int, error)

// CharacterLength counts Unicode code points.
func CharacterLength(text string) (int, error) {
	return utf8.RuneCountInString(text), nil
}

// TokenLength measures text in tokens of the given counter.
func TokenLength(ctx context.Context, tc TokenCounter) LengthFunc {
	return func(text string) (int, error) {
		if text == "" {
			return 0, nil
		}
		return tc.CountTokens(ctx, text)
	}
}

// TextSplitter recursively splits text into chunks of at most ChunkSize,
// measured by Length. The first separator found in the text is used; pieces
// that are still too long are split again with the remaining separators. A
// piece with no separator left is kept whole unless "" is a separator, which
// splits by character.
type TextSplitter struct {
	ChunkSize    int
	ChunkOverlap int
	Separators   []string

	// Length defaults to CharacterLength.
	Length LengthFunc
}

// SplitText splits text into trimmed, non-empty chunks.
func (s *TextSplitter) SplitText(text string) ([]string, error) {
	if s.ChunkSize <= 0 {
		return nil, Errorf(EINVALID, "chunk size must be positive, got %d", s.ChunkSize)
	}
	if s.ChunkOverlap < 0 || s.ChunkOverlap > s.ChunkSize {
		return nil, Errorf(EINVALID, "chunk overlap (%d) must be between 0 and chunk size (%d)", s.ChunkOverlap, s.ChunkSize)
	}
	separators := s.Separators
	if len(separators) == 0 {
		separators = DefaultSeparators
	}
	return s.split(text, separators)
}

// SplitDocuments splits every document and copies its metadata onto each
// of its chunks.
func (s *TextSplitter) SplitDocuments(docs []*Document) ([]*Document, error) {
	var out []*Document
	for _, doc := range docs {
		chunks, err := s.SplitText(doc.Content)
		if err != nil {
			return nil, err
		}
		for _, chunk := range chunks {
			meta := make(map[string]string, len(doc.Metadata))
			for k, v := range doc.Metadata {
				meta[k] = v
			}
			out = append(out, &Document{Content: chunk, Metadata: meta})
		}
	}
	return out, nil
}

func (s *TextSplitter) length(text string) (int, error) {
	if s.Length == nil {
		return CharacterLength(text)
	}
	return s.Length(text)
}

func (s *TextSplitter) split(text string, separators []string) ([]string, error) {
	separator := separators[len(separators)-1]
	var next []string
	for i, sep := range separators {
		if sep == "" {
			separator = sep
			break
		}
		if strings.Contains(text, sep) {
			separator = sep
			next = separators[i+1:]
			break
		}
	}

	var chunks, good []string
	flush := func() error {
		if len(good) == 0 {
			return nil
		}
		merged, err := s.merge(good)
		if err != nil {
			return err
		}
		chunks = append(chunks, merged...)
		good = nil
		return nil
	}

	for _, piece := range splitKeepingSeparator(text, separator) {
		n, err := s.length(piece)
		if err != nil {
			return nil, err
		}
		if n < s.ChunkSize {
			good = append(good, piece)
			continue
		}
		if err := flush(); err != nil {
			return nil, err
		}
		if len(next) == 0 {
			if piece = strings.TrimSpace(piece); piece != "" {
				chunks = append(chunks, piece)
			}
			continue
		}
		sub, err := s.split(piece, next)
		if err != nil {
			return nil, err
		}
		chunks = append(chunks, sub...)
	}
	if err := flush(); err != nil {
		return nil, err
	}
	return chunks, nil
}

// merge combines small pieces into chunks, carrying up to ChunkOverlap of
// the previous chunk's tail into the next one. Pieces keep their leading
// separator so they are joined without one.
func (s *TextSplitter) merge(pieces []string) ([]string, error) {
	var (
		chunks  []string
		current []string
		lengths []int
		total   int
	)
	for _, piece := range pieces {
		n, err := s.length(piece)
		if err != nil {
			return nil, err
		}
		if total+n > s.ChunkSize && len(current) > 0 {
			if chunk := strings.TrimSpace(strings.Join(current, "")); chunk != "" {
				chunks = append(chunks, chunk)
			}
			for total > s.ChunkOverlap || (total+n > s.ChunkSize && total > 0) {
				total -= lengths[0]
				current, lengths = current[1:], lengths[1:]
			}
		}
		current = append(current, piece)
		lengths = append(lengths, n)
		total += n
	}
	if chunk := strings.TrimSpace(strings.Join(current, "")); chunk != "" {
		chunks = append(chunks, chunk)
	}
	return chunks, nil
}

// splitKeepingSeparator splits text on sep and prefixes every piece after
// the first with sep. Empty pieces are dropped.
func splitKeepingSeparator(text, sep string) []string {
	var pieces []string
	if sep == "" {
		for _, r := range text {
			pieces = append(pieces, string(r))
		}
		return pieces
	}
	for i, p := range strings.Split(text, sep) {
		if i > 0 {
			p = sep + p
		}
		if p != "" {
			pieces = append(pieces, p)
		}
	}
	return pieces
}
