package gemini

import (
	"bufio"
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/lake2804/ChatPDF/internal/core/domain"
)

// Generator builds grounded prompts and calls the generative model.
type Generator struct {
	client        *Client
	contextBudget int
}

// NewGenerator caps the combined retrieved-chunk characters in a prompt
// at contextBudget; lower-scoring chunks are trimmed first.
func NewGenerator(client *Client, contextBudget int) *Generator {
	return &Generator{client: client, contextBudget: contextBudget}
}

func (g *Generator) GenerateAnswer(ctx context.Context, question string, chunks []domain.RetrievedChunk) (string, error) {
	prompt := buildAnswerPrompt(question, trimToBudget(chunks, g.contextBudget))

	request := generateRequest{
		Contents:         []content{{Parts: []part{{Text: prompt}}}},
		GenerationConfig: generationConfig{Temperature: 0.7},
	}

	var response generateResponse
	url := g.client.modelPath(g.client.genModel, "generateContent")
	if err := g.client.postJSON(ctx, url, request, &response, "generate"); err != nil {
		return "", wrapProviderError(domain.ErrGeneration, "generate", err)
	}

	text := response.text()
	if text == "" {
		return "", domain.WrapError(domain.ErrGeneration, "generate", fmt.Errorf("model returned no text"))
	}
	return text, nil
}

// StreamAnswer emits answer fragments in order as the model produces
// them. A non-nil error from emit (the consumer closing the stream)
// stops generation; partial output before a mid-stream failure is not
// retried.
func (g *Generator) StreamAnswer(
	ctx context.Context,
	question string,
	chunks []domain.RetrievedChunk,
	emit func(delta string) error,
) (string, error) {
	prompt := buildAnswerPrompt(question, trimToBudget(chunks, g.contextBudget))

	request := generateRequest{
		Contents:         []content{{Parts: []part{{Text: prompt}}}},
		GenerationConfig: generationConfig{Temperature: 0.7},
	}

	url := g.client.modelPath(g.client.genModel, "streamGenerateContent") + "?alt=sse"
	resp, err := g.client.post(ctx, url, request, "generate_stream")
	if err != nil {
		return "", wrapProviderError(domain.ErrGeneration, "generate stream", err)
	}
	defer resp.Body.Close()

	var full strings.Builder
	scanner := bufio.NewScanner(resp.Body)
	scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if !strings.HasPrefix(line, "data:") {
			continue
		}
		payload := strings.TrimSpace(strings.TrimPrefix(line, "data:"))
		if payload == "" || payload == "[DONE]" {
			continue
		}

		delta, err := decodeStreamChunk(payload)
		if err != nil {
			return full.String(), domain.WrapError(domain.ErrGeneration, "decode stream chunk", err)
		}
		if delta == "" {
			continue
		}
		full.WriteString(delta)
		if err := emit(delta); err != nil {
			// Consumer closed the stream; stop emitting, keep what we have.
			return full.String(), nil
		}
	}
	if err := scanner.Err(); err != nil {
		if ctx.Err() != nil {
			return full.String(), nil
		}
		return full.String(), domain.WrapError(domain.ErrGeneration, "read stream", err)
	}

	if full.Len() == 0 {
		return "", domain.WrapError(domain.ErrGeneration, "generate stream", fmt.Errorf("model returned no text"))
	}
	return full.String(), nil
}

func decodeStreamChunk(payload string) (string, error) {
	var fragment generateResponse
	if err := json.Unmarshal([]byte(payload), &fragment); err != nil {
		return "", err
	}
	var b strings.Builder
	for _, candidate := range fragment.Candidates {
		for _, p := range candidate.Content.Parts {
			b.WriteString(p.Text)
		}
		break
	}
	return b.String(), nil
}
