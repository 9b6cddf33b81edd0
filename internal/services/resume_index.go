package services

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"

	"github.com/google/uuid"

	"resuchain/resume-pipeline/internal/models"
)

var ErrIndexDisabled = errors.New("resume search is not configured")

// ResumeIndex makes completed resumes searchable by meaning.
type ResumeIndex interface {
	Index(ctx context.Context, resume *models.ResumeRecord) error
	Remove(ctx context.Context, resumeID uuid.UUID) error
	Search(ctx context.Context, ownerID, query string, limit int) ([]models.SearchHit, error)
}

const (
	indexChunkSize    = 1200
	indexOverlapLines = 2
	snippetLength     = 240
)

type resumeIndex struct {
	store   VectorStore
	gemini  GeminiService
	chunker TextChunker
}

func NewResumeIndex(store VectorStore, gemini GeminiService, chunker TextChunker) ResumeIndex {
	return &resumeIndex{
		store:   store,
		gemini:  gemini,
		chunker: chunker,
	}
}

// Index implements ResumeIndex. Point ids derive from the resume id and the
// chunk position, so indexing a resume twice overwrites its points.
func (i *resumeIndex) Index(ctx context.Context, resume *models.ResumeRecord) error {
	chunks := i.chunker.ChunkText(resume.RawText, indexChunkSize, indexOverlapLines)

	points := make([]ChunkPoint, 0, len(chunks))
	for n, chunk := range chunks {
		embedding, err := i.gemini.GenerateEmbedding(ctx, chunk)
		if err != nil {
			return fmt.Errorf("failed to embed chunk %d: %w", n, err)
		}

		points = append(points, ChunkPoint{
			ID:        uuid.NewSHA1(resume.ID, []byte(fmt.Sprintf("chunk-%d", n))).String(),
			ResumeID:  resume.ID.String(),
			OwnerID:   resume.OwnerID,
			FileName:  resume.FileName,
			Text:      chunk,
			Embedding: embedding,
		})
	}

	return i.store.Upsert(ctx, points)
}

// Remove implements ResumeIndex.
func (i *resumeIndex) Remove(ctx context.Context, resumeID uuid.UUID) error {
	return i.store.DeleteByResume(ctx, resumeID.String())
}

// Search implements ResumeIndex. Hits are collapsed to one per resume,
// keeping the best scoring chunk.
func (i *resumeIndex) Search(ctx context.Context, ownerID, query string, limit int) ([]models.SearchHit, error) {
	embedding, err := i.gemini.GenerateEmbedding(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("failed to embed query: %w", err)
	}

	// Several chunks of one resume can crowd the top results.
	results, err := i.store.Search(ctx, embedding, ownerID, limit*4)
	if err != nil {
		return nil, err
	}

	best := make(map[string]models.SearchHit)
	for _, r := range results {
		if hit, ok := best[r.ResumeID]; ok && hit.Score >= r.Score {
			continue
		}
		best[r.ResumeID] = models.SearchHit{
			ResumeID: r.ResumeID,
			FileName: r.FileName,
			Score:    r.Score,
			Snippet:  snippet(r.Text),
		}
	}

	hits := make([]models.SearchHit, 0, len(best))
	for _, hit := range best {
		hits = append(hits, hit)
	}
	sort.Slice(hits, func(a, b int) bool {
		if hits[a].Score == hits[b].Score {
			return hits[a].ResumeID < hits[b].ResumeID
		}
		return hits[a].Score > hits[b].Score
	})
	if len(hits) > limit {
		hits = hits[:limit]
	}

	return hits, nil
}

func snippet(text string) string {
	text = strings.Join(strings.Fields(text), " ")
	runes := []rune(text)
	if len(runes) <= snippetLength {
		return text
	}
	return string(runes[:snippetLength]) + "..."
}

type disabledIndex struct{}

// NewDisabledIndex is used when no vector store is configured.
func NewDisabledIndex() ResumeIndex {
	return disabledIndex{}
}

func (disabledIndex) Index(context.Context, *models.ResumeRecord) error { return nil }

func (disabledIndex) Remove(context.Context, uuid.UUID) error { return nil }

func (disabledIndex) Search(context.Context, string, string, int) ([]models.SearchHit, error) {
	return nil, ErrIndexDisabled
}
