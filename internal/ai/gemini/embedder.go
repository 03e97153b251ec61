package gemini

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"
	"golang.org/x/time/rate"
	"google.golang.org/genai"

	"github.com/spigell/skill-gap/internal/logger"
)

// maxEmbedBatch is the largest number of texts a single embed request accepts.
const maxEmbedBatch = 100

const taskSemanticSimilarity = "SEMANTIC_SIMILARITY"

type contentEmbedder interface {
	EmbedContent(ctx context.Context, model string, contents []*genai.Content, config *genai.EmbedContentConfig) (*genai.EmbedContentResponse, error)
}

// Embedder implements matching.Embedder on top of the Gemini embeddings API.
type Embedder struct {
	models  contentEmbedder
	model   string
	timeout time.Duration
	limiter *rate.Limiter
	logger  *zap.Logger
}

func NewEmbedder(client *genai.Client, cfg Config, log *zap.Logger) (*Embedder, error) {
	if client == nil {
		return nil, errors.New("genai client is required")
	}
	cfg = cfg.withDefaults()

	return &Embedder{
		models:  client.Models,
		model:   cfg.EmbeddingModel,
		timeout: cfg.Timeout,
		limiter: NewLimiter(cfg.RequestsPerMinute),
		logger:  logger.WithAI(log, Provider, cfg.EmbeddingModel),
	}, nil
}

func (e *Embedder) Model() string { return e.model }

// Embed returns one vector per text, in order. Texts are sent in batches of
// at most maxEmbedBatch.
func (e *Embedder) Embed(ctx context.Context, texts []string) ([][]float32, error) {
	if e == nil || e.models == nil {
		return nil, errors.New("gemini embedder is not initialized")
	}

	out := make([][]float32, 0, len(texts))
	for start := 0; start < len(texts); start += maxEmbedBatch {
		end := min(start+maxEmbedBatch, len(texts))

		vectors, err := e.embedBatch(ctx, texts[start:end])
		if err != nil {
			return nil, err
		}
		out = append(out, vectors...)
	}

	e.logger.Debug("embedded texts", zap.Int("texts", len(texts)), zap.Int("vectors", len(out)))
	return out, nil
}

func (e *Embedder) embedBatch(ctx context.Context, texts []string) ([][]float32, error) {
	if e.limiter != nil {
		if err := e.limiter.Wait(ctx); err != nil {
			return nil, fmt.Errorf("rate limit: %w", err)
		}
	}

	if e.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, e.timeout)
		defer cancel()
	}

	contents := make([]*genai.Content, 0, len(texts))
	for _, text := range texts {
		contents = append(contents, &genai.Content{Role: "user", Parts: []*genai.Part{{Text: text}}})
	}

	resp, err := e.models.EmbedContent(ctx, e.model, contents, &genai.EmbedContentConfig{TaskType: taskSemanticSimilarity})
	if err != nil {
		return nil, fmt.Errorf("embed content: %w", err)
	}
	if resp == nil || len(resp.Embeddings) != len(texts) {
		got := 0
		if resp != nil {
			got = len(resp.Embeddings)
		}
		return nil, fmt.Errorf("gemini api returned %d embeddings for %d texts", got, len(texts))
	}

	vectors := make([][]float32, len(resp.Embeddings))
	for i, emb := range resp.Embeddings {
		if emb == nil {
			return nil, fmt.Errorf("gemini api returned empty embedding at position %d", i)
		}
		vectors[i] = emb.Values
	}
	return vectors, nil
}
