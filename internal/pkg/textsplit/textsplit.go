// Package textsplit splits document text into overlapping chunks sized for
// embedding. Splits prefer paragraph breaks, then line breaks, then word
// boundaries; a hard character cut is the last resort, so chunks stay as
// semantically coherent as the source allows.
package textsplit

import "strings"

const (
	// DefaultChunkSize is the maximum chunk length in runes.
	DefaultChunkSize = 1000
	// DefaultOverlap is the number of runes shared between neighbors.
	DefaultOverlap = 200
)

var defaultSeparators = []string{"\n\n", "\n", " ", ""}

// Splitter produces overlapping chunks of bounded size.
type Splitter struct {
	chunkSize  int
	overlap    int
	separators []string
}

// New creates a Splitter. Non-positive arguments fall back to the defaults,
// and an overlap at or above the chunk size is clamped to half of it.
func New(chunkSize, overlap int) *Splitter {
	if chunkSize <= 0 {
		chunkSize = DefaultChunkSize
	}
	if overlap < 0 {
		overlap = DefaultOverlap
	}
	if overlap >= chunkSize {
		overlap = chunkSize / 2
	}
	return &Splitter{
		chunkSize:  chunkSize,
		overlap:    overlap,
		separators: defaultSeparators,
	}
}

// Split breaks text into chunks of at most the configured size. Separators are
// kept attached to the preceding piece so concatenating chunks (minus the
// overlapping prefixes) reproduces the input.
func (s *Splitter) Split(text string) []string {
	if strings.TrimSpace(text) == "" {
		return nil
	}
	return s.split(text, s.separators)
}

func (s *Splitter) split(text string, separators []string) []string {
	if runeLen(text) <= s.chunkSize {
		return []string{text}
	}

	sep, rest := pickSeparator(text, separators)
	if sep == "" {
		return s.hardCut(text)
	}

	pieces := splitKeep(text, sep)

	var chunks []string
	var window []string
	windowLen := 0

	flush := func() {
		if windowLen > 0 {
			chunks = append(chunks, strings.Join(window, ""))
		}
	}

	for _, piece := range pieces {
		pieceLen := runeLen(piece)

		if pieceLen > s.chunkSize {
			flush()
			window, windowLen = nil, 0
			chunks = append(chunks, s.split(piece, rest)...)
			continue
		}

		if windowLen > 0 && windowLen+pieceLen > s.chunkSize {
			flush()
			// Keep a tail of recent pieces as overlap for the next chunk.
			for windowLen > s.overlap || (windowLen > 0 && windowLen+pieceLen > s.chunkSize) {
				windowLen -= runeLen(window[0])
				window = window[1:]
			}
		}
		window = append(window, piece)
		windowLen += pieceLen
	}
	flush()

	return chunks
}

// hardCut slices text into fixed rune windows with exact overlap.
func (s *Splitter) hardCut(text string) []string {
	runes := []rune(text)
	stride := s.chunkSize - s.overlap
	var chunks []string
	for start := 0; start < len(runes); start += stride {
		end := start + s.chunkSize
		if end > len(runes) {
			end = len(runes)
		}
		chunks = append(chunks, string(runes[start:end]))
		if end == len(runes) {
			break
		}
	}
	return chunks
}

// pickSeparator returns the first separator present in text and the remaining
// fallbacks. The empty separator always matches.
func pickSeparator(text string, separators []string) (string, []string) {
	for i, sep := range separators {
		if sep == "" {
			return "", nil
		}
		if strings.Contains(text, sep) {
			return sep, separators[i+1:]
		}
	}
	return "", nil
}

// splitKeep splits on sep, keeping sep attached to the preceding piece.
func splitKeep(text, sep string) []string {
	parts := strings.Split(text, sep)
	pieces := make([]string, 0, len(parts))
	for i, part := range parts {
		if i < len(parts)-1 {
			part += sep
		}
		if part != "" {
			pieces = append(pieces, part)
		}
	}
	return pieces
}

func runeLen(s string) int {
	return len([]rune(s))
}
