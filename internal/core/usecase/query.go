package usecase

import (
	"context"
	"fmt"
	"log/slog"
	"sort"
	"strings"

	"github.com/lake2804/ChatPDF/internal/core/domain"
	"github.com/lake2804/ChatPDF/internal/core/ports"
)

const defaultSummaryQuestion = "Provide a comprehensive summary of the uploaded documents. Cover the main topics, key findings and important details."

// QueryUseCase answers questions over the indexed corpus with citations.
type QueryUseCase struct {
	embedder  ports.Embedder
	vectors   ports.VectorStore
	generator ports.AnswerGenerator
	logger    *slog.Logger

	defaultK int
	summaryK int
}

func NewQueryUseCase(
	embedder ports.Embedder,
	vectors ports.VectorStore,
	generator ports.AnswerGenerator,
	logger *slog.Logger,
	defaultK, summaryK int,
) *QueryUseCase {
	if logger == nil {
		logger = slog.Default()
	}
	if defaultK <= 0 {
		defaultK = 5
	}
	if summaryK <= 0 {
		summaryK = 10
	}
	return &QueryUseCase{
		embedder:  embedder,
		vectors:   vectors,
		generator: generator,
		logger:    logger,
		defaultK:  defaultK,
		summaryK:  summaryK,
	}
}

func (uc *QueryUseCase) Ask(ctx context.Context, question string, k int) (*domain.Answer, error) {
	chunks, err := uc.retrieve(ctx, question, k)
	if err != nil {
		return nil, err
	}

	text, err := uc.generator.GenerateAnswer(ctx, question, chunks)
	if err != nil {
		return nil, err
	}
	return uc.buildAnswer(text, chunks), nil
}

func (uc *QueryUseCase) AskStream(ctx context.Context, question string, k int, emit func(delta string) error) (*domain.Answer, error) {
	chunks, err := uc.retrieve(ctx, question, k)
	if err != nil {
		return nil, err
	}

	text, err := uc.generator.StreamAnswer(ctx, question, chunks, emit)
	if err != nil {
		return nil, err
	}
	return uc.buildAnswer(text, chunks), nil
}

func (uc *QueryUseCase) Summarize(ctx context.Context, question string) (*domain.Answer, error) {
	if strings.TrimSpace(question) == "" {
		question = defaultSummaryQuestion
	}
	return uc.Ask(ctx, question, uc.summaryK)
}

// retrieve embeds the question and pulls the top-k chunks. An empty index
// is reported before any generative call is made.
func (uc *QueryUseCase) retrieve(ctx context.Context, question string, k int) ([]domain.RetrievedChunk, error) {
	if strings.TrimSpace(question) == "" {
		return nil, domain.WrapError(domain.ErrInvalidInput, "ask", fmt.Errorf("question is required"))
	}
	if k <= 0 {
		k = uc.defaultK
	}

	queryVector, err := uc.embedder.EmbedQuery(ctx, question)
	if err != nil {
		return nil, err
	}

	chunks, err := uc.vectors.Search(ctx, queryVector, k)
	if err != nil {
		return nil, err
	}
	if len(chunks) == 0 {
		return nil, domain.WrapError(domain.ErrEmptyIndex, "retrieve", fmt.Errorf("no indexed chunks matched"))
	}

	// Equal scores settle by insertion order so results stay stable.
	sort.SliceStable(chunks, func(i, j int) bool {
		if chunks[i].Score != chunks[j].Score {
			return chunks[i].Score > chunks[j].Score
		}
		return chunks[i].Seq < chunks[j].Seq
	})

	uc.logger.Info("chunks_retrieved", "count", len(chunks), "k", k)
	return chunks, nil
}

// buildAnswer keeps only the sources the answer text actually cited; an
// answer with no explicit citations keeps every retrieved chunk.
func (uc *QueryUseCase) buildAnswer(text string, chunks []domain.RetrievedChunk) *domain.Answer {
	cited := domain.CitedIndexes(text, len(chunks))

	var sources []domain.Citation
	if len(cited) == 0 {
		sources = make([]domain.Citation, 0, len(chunks))
		for i, chunk := range chunks {
			sources = append(sources, domain.CitationFor(i+1, chunk))
		}
	} else {
		sources = make([]domain.Citation, 0, len(cited))
		for _, index := range cited {
			sources = append(sources, domain.CitationFor(index, chunks[index-1]))
		}
	}

	return &domain.Answer{
		Text:        text,
		Sources:     sources,
		SourceCount: len(sources),
	}
}
