//go:build cgo
// +build cgo

package embedding

import (
	"context"
	"fmt"
	"strings"
	"sync"

	ort "github.com/yalue/onnxruntime_go"

	"github.com/hireloop/recall/pkg/utils"
)

// ONNXEmbedder runs a local sentence-embedding model through ONNX Runtime.
// It requires CGO and the onnxruntime shared library.
type ONNXEmbedder struct {
	session    *ort.AdvancedSession
	dimensions int
	maxTokens  int
	cache      *Cache
	tokenizer  Tokenizer
	// Tensors are allocated once; input data is overwritten per call under mu.
	inputs [3]*ort.Tensor[int64] // input_ids, attention_mask, token_type_ids
	output *ort.Tensor[float32]
	mu     sync.Mutex
}

func destroyTensors(tensors []ort.ArbitraryTensor) {
	for _, t := range tensors {
		_ = t.Destroy()
	}
}

// NewONNXEmbedder creates an ONNX embedder. InitializeEnvironment is called
// if not already done.
func NewONNXEmbedder(modelPath string, dimensions, maxTokens, cacheSize int) (*ONNXEmbedder, error) {
	if err := ort.InitializeEnvironment(); err != nil {
		return nil, fmt.Errorf("failed to initialize ONNX runtime: %w", err)
	}

	tokenizer := &SimpleTokenizer{}
	seed := [3][]int64{}
	seed[0], seed[1], seed[2] = tokenizer.Tokenize("", maxTokens)

	var created []ort.ArbitraryTensor
	var inputs [3]*ort.Tensor[int64]
	inputNames := []string{"input_ids", "attention_mask", "token_type_ids"}
	for i, data := range seed {
		t, err := ort.NewTensor(ort.NewShape(1, int64(maxTokens)), data)
		if err != nil {
			destroyTensors(created)
			return nil, fmt.Errorf("failed to create %s tensor: %w", inputNames[i], err)
		}
		inputs[i] = t
		created = append(created, t)
	}
	output, err := ort.NewTensor(ort.NewShape(1, int64(dimensions)), make([]float32, dimensions))
	if err != nil {
		destroyTensors(created)
		return nil, fmt.Errorf("failed to create output tensor: %w", err)
	}
	created = append(created, output)

	session, err := ort.NewAdvancedSession(
		modelPath,
		inputNames,
		[]string{"output"},
		[]ort.ArbitraryTensor{inputs[0], inputs[1], inputs[2]},
		[]ort.ArbitraryTensor{output},
		nil,
	)
	if err != nil {
		destroyTensors(created)
		return nil, fmt.Errorf("failed to create ONNX session: %w", err)
	}

	return &ONNXEmbedder{
		session:    session,
		dimensions: dimensions,
		maxTokens:  maxTokens,
		cache:      NewCache(cacheSize),
		tokenizer:  tokenizer,
		inputs:     inputs,
		output:     output,
	}, nil
}

// Embed returns the embedding for text, using the cache when available.
func (e *ONNXEmbedder) Embed(ctx context.Context, text string) ([]float32, error) {
	if strings.TrimSpace(text) == "" {
		return nil, ErrEmptyText
	}
	if cached, ok := e.cache.Get(text); ok {
		return cached, nil
	}

	e.mu.Lock()
	defer e.mu.Unlock()

	inputIDs, attentionMask, tokenTypeIDs := e.tokenizer.Tokenize(text, e.maxTokens)
	copy(e.inputs[0].GetData(), inputIDs)
	copy(e.inputs[1].GetData(), attentionMask)
	copy(e.inputs[2].GetData(), tokenTypeIDs)

	if err := e.session.Run(); err != nil {
		return nil, fmt.Errorf("inference failed: %w", err)
	}

	embedding := make([]float32, e.dimensions)
	copy(embedding, e.output.GetData()[:e.dimensions])

	utils.NormalizeL2(embedding)
	e.cache.Set(text, embedding)
	return embedding, nil
}

// EmbedBatch calls Embed for each text.
func (e *ONNXEmbedder) EmbedBatch(ctx context.Context, texts []string) ([][]float32, error) {
	embeddings := make([][]float32, len(texts))
	for i, text := range texts {
		emb, err := e.Embed(ctx, text)
		if err != nil {
			return nil, err
		}
		embeddings[i] = emb
	}
	return embeddings, nil
}

// Dimensions returns the embedding dimension.
func (e *ONNXEmbedder) Dimensions() int {
	return e.dimensions
}

// Close destroys the session and tensors.
func (e *ONNXEmbedder) Close() error {
	var err error
	if e.session != nil {
		err = e.session.Destroy()
		e.session = nil
	}
	for i, t := range e.inputs {
		if t != nil {
			_ = t.Destroy()
			e.inputs[i] = nil
		}
	}
	if e.output != nil {
		_ = e.output.Destroy()
		e.output = nil
	}
	return err
}
