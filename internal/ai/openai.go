package ai

import (
	"context"
	"fmt"
	"sort"

	openai "github.com/sashabaranov/go-openai"
)

// openaiProvider embeds through the OpenAI embeddings API.
type openaiProvider struct {
	client *openai.Client
	model  string
}

func newOpenAIProvider(apiKey, model string) (*openaiProvider, error) {
	if apiKey == "" {
		return nil, fmt.Errorf("missing OPENAI_API_KEY for embeddings")
	}
	return &openaiProvider{client: openai.NewClient(apiKey), model: model}, nil
}

func (o *openaiProvider) modelID() string { return "openai/" + o.model }

func (o *openaiProvider) embed(ctx context.Context, texts []string) ([][]float32, error) {
	resp, err := o.client.CreateEmbeddings(ctx, openai.EmbeddingRequest{
		Model: openai.EmbeddingModel(o.model),
		Input: texts,
	})
	if err != nil {
		return nil, err
	}
	if len(resp.Data) != len(texts) {
		return nil, fmt.Errorf("expected %d embeddings, got %d", len(texts), len(resp.Data))
	}

	// The API reports the input position per item; order by it rather than
	// trusting response order.
	sort.Slice(resp.Data, func(i, j int) bool { return resp.Data[i].Index < resp.Data[j].Index })

	vectors := make([][]float32, len(resp.Data))
	for i, d := range resp.Data {
		if len(d.Embedding) == 0 {
			return nil, fmt.Errorf("no embedding returned for text %d", i)
		}
		vectors[i] = d.Embedding
	}
	return vectors, nil
}
