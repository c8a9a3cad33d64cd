package service

import (
	"context"
	"fmt"
	"log"
	"strings"

	"github.com/AngelaHan1129/qinguoqinchen-sub000/internal/model"
)

// textGenerator is the opaque generation collaborator, implemented by
// generator.Client.
type textGenerator interface {
	Generate(ctx context.Context, prompt string) (string, error)
}

// AnswerService assembles a grounding context from retrieved chunks,
// delegates to the generator and attaches citations back to source chunks.
type AnswerService struct {
	generator textGenerator
}

func NewAnswerService(gen textGenerator) *AnswerService {
	return &AnswerService{generator: gen}
}

// Synthesize produces an answer grounded in the retrieved chunks. When the
// generator is unavailable it degrades to a template response built from the
// top-ranked chunks; a generator failure never reaches the caller as an error.
func (s *AnswerService) Synthesize(ctx context.Context, question string, results []model.SearchResult) (string, []model.Citation) {
	prompt := s.buildPrompt(question, results)

	if s.generator != nil {
		answer, err := s.generator.Generate(ctx, prompt)
		if err == nil && strings.TrimSpace(answer) != "" {
			return answer, s.extractCitations(answer, results)
		}
		if err != nil {
			log.Printf("generator unavailable, falling back to template answer: %v", err)
		}
	}

	return s.templateAnswer(question, results)
}

func (s *AnswerService) buildPrompt(question string, results []model.SearchResult) string {
	var b strings.Builder
	if len(results) == 0 {
		b.WriteString("Answer the following question. No supporting documents were found, ")
		b.WriteString("so state clearly that the answer is not grounded in the knowledge base.\n\n")
		b.WriteString("Question: ")
		b.WriteString(question)
		return b.String()
	}

	b.WriteString("Answer the question using only the numbered sources below. ")
	b.WriteString("Reference sources inline as [1], [2] and so on.\n\n")
	for i, r := range results {
		b.WriteString(fmt.Sprintf("[%d] %s", i+1, sourceLabel(r.Chunk)))
		b.WriteString("\n")
		b.WriteString(r.Chunk.Content)
		b.WriteString("\n\n")
	}
	b.WriteString("Question: ")
	b.WriteString(question)
	return b.String()
}

// templateAnswer concatenates the top-ranked chunk summaries directly.
func (s *AnswerService) templateAnswer(question string, results []model.SearchResult) (string, []model.Citation) {
	if len(results) == 0 {
		return "No relevant sources were found in the knowledge base, and the answer service is currently unavailable. Please rephrase the question or try again later.", nil
	}

	var b strings.Builder
	b.WriteString("The answer service is unavailable; the most relevant sources are summarized below.\n\n")
	citations := make([]model.Citation, 0, len(results))
	for i, r := range results {
		b.WriteString(fmt.Sprintf("[%d] %s: %s\n", i+1, sourceLabel(r.Chunk), summarize(r.Chunk.Content, 200)))
		citations = append(citations, toCitation(r))
	}
	return b.String(), citations
}

// extractCitations scans the generated text for references back to the
// supplied chunks: [n] markers, source titles, or leading-text overlap.
func (s *AnswerService) extractCitations(answer string, results []model.SearchResult) []model.Citation {
	var citations []model.Citation
	lowerAnswer := strings.ToLower(answer)
	for i, r := range results {
		marker := fmt.Sprintf("[%d]", i+1)
		title := strings.ToLower(strings.TrimSpace(r.Chunk.DocTitle))
		cited := strings.Contains(answer, marker)
		if !cited && len(title) > 4 {
			cited = strings.Contains(lowerAnswer, title)
		}
		if !cited {
			lead := leadingText(r.Chunk.Content, 40)
			if len(lead) >= 20 {
				cited = strings.Contains(lowerAnswer, strings.ToLower(lead))
			}
		}
		if cited {
			citations = append(citations, toCitation(r))
		}
	}
	return citations
}

func toCitation(r model.SearchResult) model.Citation {
	return model.Citation{
		ChunkID:    r.Chunk.ID.String(),
		DocumentID: r.Chunk.DocumentID.String(),
		Title:      r.Chunk.DocTitle,
		ArticleRef: r.Chunk.ArticleRef,
		Similarity: r.Similarity,
	}
}

func sourceLabel(c *model.Chunk) string {
	label := c.DocTitle
	if label == "" {
		label = "Untitled source"
	}
	if c.ArticleRef != "" {
		label += " (" + c.ArticleRef + ")"
	}
	return label
}

func summarize(text string, maxRunes int) string {
	text = strings.Join(strings.Fields(text), " ")
	runes := []rune(text)
	if len(runes) <= maxRunes {
		return text
	}
	return string(runes[:maxRunes]) + "..."
}

func leadingText(text string, maxRunes int) string {
	text = strings.Join(strings.Fields(text), " ")
	runes := []rune(text)
	if len(runes) > maxRunes {
		runes = runes[:maxRunes]
	}
	return strings.TrimSpace(string(runes))
}
