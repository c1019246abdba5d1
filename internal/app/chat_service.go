package app

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	"cortex-rag/internal/ai"
	"cortex-rag/internal/model"
	"cortex-rag/internal/pkg/logger"
	"cortex-rag/internal/vectorindex"
)

const (
	// maxQuestionLen bounds a single chat question.
	maxQuestionLen = 2000
	// retrievalTopK is how many chunks ground each answer.
	retrievalTopK = 3
)

const answerSystemPrompt = `You are a research assistant answering questions about the user's documents.
Ground every answer in the CONTEXT section. If the context does not contain the answer, say so plainly.
If web search is available and the context is insufficient, you may search the web once; say when an answer comes from the web.
Be concise and cite the source names you relied on.`

// Answerer generates a grounded reply, optionally running one web search
// through the given searcher.
type Answerer interface {
	Answer(ctx context.Context, credential, system, prompt string, searcher ai.Searcher) (answer string, searched bool, err error)
}

// ChatService answers questions against one notebook's ingested content and
// keeps the conversation history.
type ChatService struct {
	notebooks NotebookStore
	messages  MessageStore
	embedder  Embedder
	answerer  Answerer
	searcher  ai.Searcher
	index     vectorindex.Index
	log       *logger.Logger
}

func NewChatService(
	notebooks NotebookStore,
	messages MessageStore,
	embedder Embedder,
	answerer Answerer,
	searcher ai.Searcher,
	index vectorindex.Index,
	log *logger.Logger,
) *ChatService {
	if log == nil {
		log = logger.NewNop()
	}
	return &ChatService{
		notebooks: notebooks,
		messages:  messages,
		embedder:  embedder,
		answerer:  answerer,
		searcher:  searcher,
		index:     index,
		log:       log,
	}
}

// Chat answers one question. The user turn is persisted before the model is
// called so the history keeps the question even when answering fails; the
// assistant turn is persisted with its citations once the answer exists.
func (s *ChatService) Chat(ctx context.Context, credential, userID, notebookID, question string, useWebSearch bool) (*model.Message, error) {
	question = strings.TrimSpace(question)
	if question == "" {
		return nil, fmt.Errorf("%w: question is empty", ErrInvalidInput)
	}
	if len(question) > maxQuestionLen {
		return nil, fmt.Errorf("%w: question exceeds %d characters", ErrInvalidInput, maxQuestionLen)
	}
	if _, err := requireOwned(s.notebooks, userID, notebookID); err != nil {
		return nil, err
	}

	userTurn := &model.Message{
		ID:         uuid.NewString(),
		NotebookID: notebookID,
		Role:       model.RoleUser,
		Content:    question,
		CreatedAt:  time.Now(),
	}
	userTurn.SetSources(nil)
	if err := s.messages.Create(userTurn); err != nil {
		return nil, err
	}

	matches, err := s.retrieve(ctx, credential, notebookID, question)
	if err != nil {
		return nil, err
	}
	contextBlock, sources := buildContext(matches)

	prompt := fmt.Sprintf("CONTEXT:\n%s\n\nQUESTION:\n%s", contextBlock, question)
	var searcher ai.Searcher
	if useWebSearch {
		searcher = s.searcher
	}

	answer, searched, err := s.answerer.Answer(ctx, credential, answerSystemPrompt, prompt, searcher)
	if err != nil {
		if errors.Is(err, ai.ErrCredential) {
			return nil, err
		}
		return nil, fmt.Errorf("%w: %v", ErrUpstream, err)
	}
	if searched {
		s.log.Info("answer used web search", "notebook_id", notebookID)
		sources = append(sources, model.Source{Origin: "web search", Kind: "web"})
	}

	assistantTurn := &model.Message{
		ID:         uuid.NewString(),
		NotebookID: notebookID,
		Role:       model.RoleAssistant,
		Content:    answer,
		CreatedAt:  time.Now(),
	}
	assistantTurn.SetSources(sources)
	if err := s.messages.Create(assistantTurn); err != nil {
		return nil, err
	}
	return assistantTurn, nil
}

func (s *ChatService) retrieve(ctx context.Context, credential, notebookID, question string) ([]vectorindex.Match, error) {
	vectors, err := s.embedder.EmbedTexts(ctx, credential, []string{question})
	if err != nil {
		if errors.Is(err, ai.ErrCredential) {
			return nil, err
		}
		return nil, fmt.Errorf("%w: embed question: %v", ErrUpstream, err)
	}
	if len(vectors) != 1 {
		return nil, fmt.Errorf("%w: embed question returned %d vectors", ErrUpstream, len(vectors))
	}

	matches, err := s.index.Query(ctx, notebookID, vectors[0], retrievalTopK)
	if err != nil {
		return nil, fmt.Errorf("query vectors failed: %w", err)
	}
	return matches, nil
}

// buildContext renders retrieved chunks for the prompt and collects the
// deduplicated citations backing them.
func buildContext(matches []vectorindex.Match) (string, []model.Source) {
	if len(matches) == 0 {
		return "(no documents matched the question)", nil
	}

	var b strings.Builder
	var sources []model.Source
	seen := make(map[string]bool)

	for i, match := range matches {
		source, _ := match.Meta["source"].(string)
		text, _ := match.Meta["text"].(string)
		page := metaInt(match.Meta["page"])
		kind, _ := match.Meta["kind"].(string)

		if i > 0 {
			b.WriteString("\n\n")
		}
		fmt.Fprintf(&b, "[%d] %s (page %d)\n%s", i+1, source, page, text)

		dedup := fmt.Sprintf("%s|%d", source, page)
		if !seen[dedup] {
			seen[dedup] = true
			sources = append(sources, model.Source{Origin: source, Page: page, Kind: kind})
		}
	}
	return b.String(), sources
}

// metaInt copes with the numeric types the index round-trip produces.
func metaInt(v any) int {
	switch n := v.(type) {
	case int:
		return n
	case int64:
		return int(n)
	case float64:
		return int(n)
	default:
		return 0
	}
}
