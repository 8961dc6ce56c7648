package gemini

import (
	"fmt"
	"strings"

	"github.com/lake2804/ChatPDF/internal/core/domain"
)

// sourceLabel renders the header of one context block, e.g.
// "[Source 3: report.pdf (Page 2)]".
func sourceLabel(index int, chunk domain.RetrievedChunk) string {
	position := ""
	switch {
	case chunk.Page > 0:
		position = fmt.Sprintf(" (Page %d)", chunk.Page)
	case chunk.Slide > 0:
		position = fmt.Sprintf(" (Slide %d)", chunk.Slide)
	}
	return fmt.Sprintf("[Source %d: %s%s]", index, chunk.SourceFile, position)
}

// trimToBudget drops whole chunks from the lowest-scoring end until the
// combined text fits the context budget. At least one chunk survives.
func trimToBudget(chunks []domain.RetrievedChunk, budgetChars int) []domain.RetrievedChunk {
	if budgetChars <= 0 {
		return chunks
	}
	total := 0
	for _, chunk := range chunks {
		total += len([]rune(chunk.Text))
	}
	kept := chunks
	for total > budgetChars && len(kept) > 1 {
		last := kept[len(kept)-1]
		total -= len([]rune(last.Text))
		kept = kept[:len(kept)-1]
	}
	return kept
}

func buildContext(chunks []domain.RetrievedChunk) string {
	blocks := make([]string, 0, len(chunks))
	for i, chunk := range chunks {
		blocks = append(blocks, sourceLabel(i+1, chunk)+"\n"+chunk.Text)
	}
	return strings.Join(blocks, "\n\n---\n\n")
}

func buildAnswerPrompt(question string, chunks []domain.RetrievedChunk) string {
	return fmt.Sprintf(`You are an expert assistant answering questions about uploaded documents.
Answer ONLY from the context below. If the context is insufficient, say so directly.

Context from documents:
%s

User's question: %s

Instructions:
1. %s
2. When you use information from a source, cite it inline as "Source N" matching the context labels.
3. Be thorough: cover every part of the question the context can answer, with clear paragraphs and lists where they help.
4. For image sources, rely on the OCR text and image descriptions provided.
5. Do not invent facts that are not in the context.
`, buildContext(chunks), question, languageInstruction(question))
}
