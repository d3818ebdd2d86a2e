// Package rag implements the retrieval-augmented context builder: chunking
// a user-supplied knowledge base, embedding the chunks, storing them in a
// vector store, and retrieving the most relevant ones for a query.
package rag

import (
	"strings"

	"github.com/pkoukk/tiktoken-go"
)

const (
	defaultChunkSize    = 800
	defaultChunkOverlap = 200
	defaultTokenizer    = "cl100k_base"
)

// ChunkerConfig configures text chunking. Zero values fall back to the
// package defaults.
type ChunkerConfig struct {
	ChunkSize    int
	ChunkOverlap int
}

func (c *ChunkerConfig) defaults() {
	if c.ChunkSize <= 0 {
		c.ChunkSize = defaultChunkSize
	}
	if c.ChunkOverlap < 0 || c.ChunkOverlap >= c.ChunkSize {
		c.ChunkOverlap = defaultChunkOverlap
	}
}

// Chunk is one slice of a document plus the caller-supplied metadata and the
// line range it spans in the original text.
type Chunk struct {
	Content   string
	Metadata  map[string]string
	StartLine int
	EndLine   int
}

// Chunker splits text into overlapping fixed-size character windows (which
// may start and end mid-line) and counts tokens using the same encoding
// OpenAI's embedding models expect.
type Chunker struct {
	config ChunkerConfig
	enc    *tiktoken.Tiktoken
}

// NewChunker builds a Chunker. An unset config uses the package defaults
// (800 characters per chunk, 200 character overlap).
func NewChunker(cfg ChunkerConfig) (*Chunker, error) {
	cfg.defaults()
	enc, err := tiktoken.GetEncoding(defaultTokenizer)
	if err != nil {
		return nil, err
	}
	return &Chunker{config: cfg, enc: enc}, nil
}

// ChunkText splits text into chunks of roughly ChunkSize characters with
// ChunkOverlap characters of overlap between consecutive chunks, tracking
// the 1-based line range each chunk spans. metadata is copied onto every
// chunk unchanged.
func (c *Chunker) ChunkText(text string, metadata map[string]string) ([]Chunk, error) {
	if strings.TrimSpace(text) == "" {
		return nil, nil
	}

	lineStarts := computeLineStarts(text)
	step := c.config.ChunkSize - c.config.ChunkOverlap

	var chunks []Chunk
	for start := 0; start < len(text); start += step {
		end := start + c.config.ChunkSize
		if end > len(text) {
			end = len(text)
		}

		chunks = append(chunks, Chunk{
			Content:   text[start:end],
			Metadata:  copyMetadata(metadata),
			StartLine: lineForOffset(lineStarts, start),
			EndLine:   lineForOffset(lineStarts, end-1),
		})

		if end == len(text) {
			break
		}
	}
	return chunks, nil
}

// CountTokens reports the tiktoken cl100k_base token count of text, the
// encoding used by the embedding models this package targets.
func (c *Chunker) CountTokens(text string) (int, error) {
	return len(c.enc.Encode(text, nil, nil)), nil
}

func copyMetadata(m map[string]string) map[string]string {
	out := make(map[string]string, len(m))
	for k, v := range m {
		out[k] = v
	}
	return out
}

// computeLineStarts returns the byte offset each line begins at (line 0 is
// offset 0).
func computeLineStarts(text string) []int {
	starts := []int{0}
	for i, r := range text {
		if r == '\n' && i+1 < len(text) {
			starts = append(starts, i+1)
		}
	}
	return starts
}

// lineForOffset returns the 1-based line number containing byte offset off.
func lineForOffset(lineStarts []int, off int) int {
	if off < 0 {
		off = 0
	}
	line := 0
	for i, s := range lineStarts {
		if s <= off {
			line = i
		} else {
			break
		}
	}
	return line + 1
}
