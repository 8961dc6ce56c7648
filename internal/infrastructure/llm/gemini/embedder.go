package gemini

import (
	"context"
	"fmt"

	"github.com/lake2804/ChatPDF/internal/core/domain"
)

// batchEmbedContents accepts at most 100 texts per call.
const embedBatchSize = 100

// Embedder maps chunk and query text into the configured embedding space.
type Embedder struct {
	client *Client
}

func NewEmbedder(client *Client) *Embedder {
	return &Embedder{client: client}
}

type embedContentRequest struct {
	Model   string  `json:"model"`
	Content content `json:"content"`
}

type batchEmbedRequest struct {
	Requests []embedContentRequest `json:"requests"`
}

type batchEmbedResponse struct {
	Embeddings []struct {
		Values []float32 `json:"values"`
	} `json:"embeddings"`
}

func (e *Embedder) Embed(ctx context.Context, texts []string) ([][]float32, error) {
	if len(texts) == 0 {
		return nil, nil
	}

	out := make([][]float32, 0, len(texts))
	for start := 0; start < len(texts); start += embedBatchSize {
		end := start + embedBatchSize
		if end > len(texts) {
			end = len(texts)
		}
		vectors, err := e.embedBatch(ctx, texts[start:end])
		if err != nil {
			return nil, err
		}
		out = append(out, vectors...)
	}
	return out, nil
}

func (e *Embedder) embedBatch(ctx context.Context, texts []string) ([][]float32, error) {
	requests := make([]embedContentRequest, 0, len(texts))
	for _, text := range texts {
		requests = append(requests, embedContentRequest{
			Model:   "models/" + e.client.embedModel,
			Content: content{Parts: []part{{Text: text}}},
		})
	}

	var response batchEmbedResponse
	url := e.client.modelPath(e.client.embedModel, "batchEmbedContents")
	if err := e.client.postJSON(ctx, url, batchEmbedRequest{Requests: requests}, &response, "embed"); err != nil {
		return nil, wrapProviderError(domain.ErrEmbeddingProvider, "embed", err)
	}
	if len(response.Embeddings) != len(texts) {
		return nil, domain.WrapError(
			domain.ErrEmbeddingProvider,
			"embed",
			fmt.Errorf("embeddings/texts mismatch: %d/%d", len(response.Embeddings), len(texts)),
		)
	}

	vectors := make([][]float32, 0, len(response.Embeddings))
	for _, embedding := range response.Embeddings {
		vectors = append(vectors, embedding.Values)
	}
	return vectors, nil
}

func (e *Embedder) EmbedQuery(ctx context.Context, text string) ([]float32, error) {
	vectors, err := e.Embed(ctx, []string{text})
	if err != nil {
		return nil, err
	}
	if len(vectors) == 0 {
		return nil, domain.WrapError(domain.ErrEmbeddingProvider, "embed query", fmt.Errorf("empty embedding result"))
	}
	return vectors[0], nil
}
