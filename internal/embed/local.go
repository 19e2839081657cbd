package embed

import (
	"context"
	"hash/fnv"
	"math"
	"strings"
)

// LocalEmbedder is a deterministic, dependency-free encoder: it hashes byte
// 3-grams into a fixed-size vector and L2-normalizes the result. It stands
// in for a local dense-transformer encoder (the "local" Embedding.Provider)
// so the pipeline runs end to end without a live embeddings server.
type LocalEmbedder struct {
	dim  int
	seed uint64
}

// NewLocalEmbedder constructs a LocalEmbedder producing vectors of the
// given dimension.
func NewLocalEmbedder(dim int) *LocalEmbedder {
	if dim <= 0 {
		dim = 768
	}
	return &LocalEmbedder{dim: dim, seed: 0x5bd1e995}
}

func (l *LocalEmbedder) Name() string   { return "local-dense-v1" }
func (l *LocalEmbedder) Dimension() int { return l.dim }
func (l *LocalEmbedder) Ping(_ context.Context) error { return nil }

func (l *LocalEmbedder) EmbedBatch(_ context.Context, texts []string) ([][]float32, error) {
	out := make([][]float32, len(texts))
	for i, t := range texts {
		out[i] = l.embedOne(t)
	}
	return out, nil
}

func (l *LocalEmbedder) embedOne(s string) []float32 {
	v := make([]float32, l.dim)
	if strings.TrimSpace(s) == "" {
		return v
	}
	b := []byte(s)
	if len(b) < 3 {
		accumulateGram(l.seed, b, v)
	} else {
		for i := 0; i <= len(b)-3; i++ {
			accumulateGram(l.seed, b[i:i+3], v)
		}
	}

	var sumSq float64
	for _, x := range v {
		sumSq += float64(x) * float64(x)
	}
	if sumSq > 0 {
		inv := float32(1.0 / math.Sqrt(sumSq))
		for i := range v {
			v[i] *= inv
		}
	}
	return v
}

func accumulateGram(seed uint64, gram []byte, v []float32) {
	h := fnv.New64a()
	var seedBytes [8]byte
	for i := 0; i < 8; i++ {
		seedBytes[i] = byte(seed >> (8 * i))
	}
	_, _ = h.Write(seedBytes[:])
	_, _ = h.Write(gram)
	hv := h.Sum64()
	idx := int(hv % uint64(len(v)))
	weight := float32(int32(hv>>32)) / float32(1<<31)
	v[idx] += weight
}
