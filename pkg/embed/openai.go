package embed

import (
	"context"
	"fmt"
	"sort"

	openai "github.com/sashabaranov/go-openai"
)

type embeddingsAPI interface {
	CreateEmbeddings(ctx context.Context, conv openai.EmbeddingRequestConverter) (openai.EmbeddingResponse, error)
}

// OpenAI embeds through the OpenAI embeddings endpoint.
type OpenAI struct {
	api   embeddingsAPI
	model openai.EmbeddingModel
}

func NewOpenAI(apiKey, model string) *OpenAI {
	if model == "" {
		model = string(openai.SmallEmbedding3)
	}
	return &OpenAI{api: openai.NewClient(apiKey), model: openai.EmbeddingModel(model)}
}

func (o *OpenAI) Embed(ctx context.Context, text string) ([]float32, error) {
	vecs, err := o.embed(ctx, []string{text})
	if err != nil {
		return nil, err
	}
	return vecs[0], nil
}

func (o *OpenAI) EmbedBatch(ctx context.Context, texts []string) ([][]float32, error) {
	out := make([][]float32, 0, len(texts))
	for i, batch := range batches(texts) {
		vecs, err := o.embed(ctx, batch)
		if err != nil {
			return nil, fmt.Errorf("embed batch [%d]: %w", i, err)
		}
		out = append(out, vecs...)
	}
	return out, nil
}

func (o *OpenAI) embed(ctx context.Context, texts []string) ([][]float32, error) {
	resp, err := o.api.CreateEmbeddings(ctx, openai.EmbeddingRequest{Input: texts, Model: o.model})
	if err != nil {
		return nil, fmt.Errorf("openai embed: %w", err)
	}
	if len(resp.Data) != len(texts) {
		return nil, fmt.Errorf("openai embed: %w: sent %d, got %d", ErrDimension, len(texts), len(resp.Data))
	}
	data := resp.Data
	sort.SliceStable(data, func(i, j int) bool { return data[i].Index < data[j].Index })
	out := make([][]float32, len(data))
	for i, d := range data {
		out[i] = d.Embedding
	}
	return out, nil
}
