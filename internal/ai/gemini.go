// Package ai wraps the Gemini API for embedding, image understanding, and
// grounded answer generation. Every call takes the caller's credential
// explicitly because the key in force depends on who is asking.
package ai

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"google.golang.org/genai"
)

// ErrCredential marks upstream failures caused by the credential itself,
// either rejected outright or out of quota. Callers surface these
// differently from transient upstream trouble.
var ErrCredential = errors.New("gemini credential rejected or exhausted")

// embedBatchSize is the per-request content limit of the embedding API.
const embedBatchSize = 100

const visionPrompt = "Analyze this image in detail. Read all data values, " +
	"axis labels, and text inside diagrams. If decorative, return empty string."

type Config struct {
	ChatModel      string
	VisionModel    string
	EmbeddingModel string
	EmbeddingDim   int
}

// Searcher runs one web search and returns a text digest of the results.
type Searcher interface {
	Search(ctx context.Context, credential, query string) (string, error)
}

type Gemini struct {
	cfg Config
}

func NewGemini(cfg Config) *Gemini {
	return &Gemini{cfg: cfg}
}

func (g *Gemini) client(ctx context.Context, credential string) (*genai.Client, error) {
	client, err := genai.NewClient(ctx, &genai.ClientConfig{
		APIKey:  credential,
		Backend: genai.BackendGeminiAPI,
	})
	if err != nil {
		return nil, fmt.Errorf("create gemini client failed: %w", err)
	}
	return client, nil
}

// EmbedTexts embeds the given texts, batching to stay under the API's
// per-request content limit. The result has one vector per input, in order.
func (g *Gemini) EmbedTexts(ctx context.Context, credential string, texts []string) ([][]float32, error) {
	if len(texts) == 0 {
		return nil, nil
	}
	client, err := g.client(ctx, credential)
	if err != nil {
		return nil, err
	}

	dim := int32(g.cfg.EmbeddingDim)
	vectors := make([][]float32, 0, len(texts))
	for start := 0; start < len(texts); start += embedBatchSize {
		end := start + embedBatchSize
		if end > len(texts) {
			end = len(texts)
		}

		contents := make([]*genai.Content, 0, end-start)
		for _, text := range texts[start:end] {
			contents = append(contents, genai.NewContentFromText(text, genai.RoleUser))
		}

		resp, err := client.Models.EmbedContent(ctx, g.cfg.EmbeddingModel, contents, &genai.EmbedContentConfig{
			OutputDimensionality: &dim,
		})
		if err != nil {
			return nil, classify(err)
		}
		if len(resp.Embeddings) != end-start {
			return nil, fmt.Errorf("embedding count mismatch: sent %d, got %d", end-start, len(resp.Embeddings))
		}
		for _, embedding := range resp.Embeddings {
			vectors = append(vectors, embedding.Values)
		}
	}
	return vectors, nil
}

// DescribeImage asks the vision model to describe one image. An empty result
// means the model judged the image decorative; callers should drop it.
func (g *Gemini) DescribeImage(ctx context.Context, credential string, data []byte, mimeType string) (string, error) {
	client, err := g.client(ctx, credential)
	if err != nil {
		return "", err
	}

	content := genai.NewContentFromParts([]*genai.Part{
		genai.NewPartFromText(visionPrompt),
		genai.NewPartFromBytes(data, mimeType),
	}, genai.RoleUser)

	resp, err := client.Models.GenerateContent(ctx, g.cfg.VisionModel, []*genai.Content{content}, nil)
	if err != nil {
		return "", classify(err)
	}
	return strings.TrimSpace(flattenText(resp)), nil
}

// Answer generates a reply to the user prompt under the given system
// instruction. When a searcher is provided the model may request at most one
// web search; the follow-up round runs without tools so the model has to
// settle on a final answer. Returns the answer and whether a search ran.
func (g *Gemini) Answer(ctx context.Context, credential, system, prompt string, searcher Searcher) (string, bool, error) {
	client, err := g.client(ctx, credential)
	if err != nil {
		return "", false, err
	}

	cfg := &genai.GenerateContentConfig{
		SystemInstruction: genai.NewContentFromText(system, genai.RoleUser),
	}
	if searcher != nil {
		cfg.Tools = []*genai.Tool{{
			FunctionDeclarations: []*genai.FunctionDeclaration{{
				Name:        "web_search",
				Description: "Search the web when the provided context does not contain the answer.",
				Parameters: &genai.Schema{
					Type: genai.TypeObject,
					Properties: map[string]*genai.Schema{
						"query": {
							Type:        genai.TypeString,
							Description: "The search query.",
						},
					},
					Required: []string{"query"},
				},
			}},
		}}
	}

	contents := []*genai.Content{genai.NewContentFromText(prompt, genai.RoleUser)}
	resp, err := client.Models.GenerateContent(ctx, g.cfg.ChatModel, contents, cfg)
	if err != nil {
		return "", false, classify(err)
	}

	call := firstFunctionCall(resp)
	if call == nil || searcher == nil {
		return flattenText(resp), false, nil
	}

	query, _ := call.Args["query"].(string)
	results, err := searcher.Search(ctx, credential, query)
	if err != nil {
		// The model still has the retrieved context; let it answer from that.
		results = "Search is currently unavailable."
	}

	if len(resp.Candidates) > 0 && resp.Candidates[0].Content != nil {
		contents = append(contents, resp.Candidates[0].Content)
	}
	contents = append(contents, genai.NewContentFromParts([]*genai.Part{{
		FunctionResponse: &genai.FunctionResponse{
			Name:     call.Name,
			Response: map[string]any{"results": results},
		},
	}}, genai.RoleUser))

	// No tools on the second round, so the model cannot loop on searches.
	final, err := client.Models.GenerateContent(ctx, g.cfg.ChatModel, contents, &genai.GenerateContentConfig{
		SystemInstruction: cfg.SystemInstruction,
	})
	if err != nil {
		return "", true, classify(err)
	}
	return flattenText(final), true, nil
}

// Search implements Searcher using Gemini's native Google Search grounding.
func (g *Gemini) Search(ctx context.Context, credential, query string) (string, error) {
	client, err := g.client(ctx, credential)
	if err != nil {
		return "", err
	}

	contents := []*genai.Content{genai.NewContentFromText(query, genai.RoleUser)}
	resp, err := client.Models.GenerateContent(ctx, g.cfg.ChatModel, contents, &genai.GenerateContentConfig{
		Tools: []*genai.Tool{{GoogleSearch: &genai.GoogleSearch{}}},
	})
	if err != nil {
		return "", classify(err)
	}
	return flattenText(resp), nil
}

// flattenText joins all text parts of the first candidate into one string.
// The model may emit several parts for a single reply.
func flattenText(resp *genai.GenerateContentResponse) string {
	if resp == nil || len(resp.Candidates) == 0 {
		return ""
	}
	candidate := resp.Candidates[0]
	if candidate.Content == nil {
		return ""
	}
	var b strings.Builder
	for _, part := range candidate.Content.Parts {
		if part == nil || part.Text == "" {
			continue
		}
		b.WriteString(part.Text)
	}
	return b.String()
}

func firstFunctionCall(resp *genai.GenerateContentResponse) *genai.FunctionCall {
	if resp == nil || len(resp.Candidates) == 0 || resp.Candidates[0].Content == nil {
		return nil
	}
	for _, part := range resp.Candidates[0].Content.Parts {
		if part != nil && part.FunctionCall != nil {
			return part.FunctionCall
		}
	}
	return nil
}

// classify maps upstream failures onto ErrCredential when the credential is
// at fault. The status code is authoritative; the string match covers errors
// that arrive without one.
func classify(err error) error {
	if err == nil {
		return nil
	}
	var apiErr genai.APIError
	if errors.As(err, &apiErr) {
		switch apiErr.Code {
		case 401, 403, 429:
			return fmt.Errorf("%w: %v", ErrCredential, err)
		case 400:
			// Invalid keys come back as 400 INVALID_ARGUMENT, but so do
			// genuinely malformed requests; only the key case is ours.
			if strings.Contains(strings.ToLower(apiErr.Message), "api key") {
				return fmt.Errorf("%w: %v", ErrCredential, err)
			}
		}
		return err
	}

	msg := strings.ToLower(err.Error())
	for _, marker := range []string{"api key", "api_key", "permission denied", "unauthenticated", "quota", "resource_exhausted"} {
		if strings.Contains(msg, marker) {
			return fmt.Errorf("%w: %v", ErrCredential, err)
		}
	}
	return err
}
