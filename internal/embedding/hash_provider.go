package embedding

import (
	"context"
	"hash/fnv"
	"math"
	"strings"
	"unicode"
)

// HashProvider embeds text locally with signed feature hashing over word
// tokens. It needs no model or network, and identical text always maps to the
// identical vector.
type HashProvider struct {
	dimensions int
}

// NewHashProvider creates a hashing provider; non-positive sizes fall back to 384
func NewHashProvider(dimensions int) *HashProvider {
	if dimensions <= 0 {
		dimensions = 384
	}

	return &HashProvider{dimensions: dimensions}
}

// GenerateEmbedding returns an L2-normalized vector; blank text yields all zeros
func (p *HashProvider) GenerateEmbedding(ctx context.Context, text string) ([]float32, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	vec := make([]float64, p.dimensions)

	for _, token := range tokenize(text) {
		h := fnv.New64a()
		_, _ = h.Write([]byte(token))
		sum := h.Sum64()

		idx := int(sum % uint64(p.dimensions))
		if sum>>63 == 1 {
			vec[idx]--
		} else {
			vec[idx]++
		}
	}

	var norm float64
	for _, v := range vec {
		norm += v * v
	}

	if norm > 0 {
		norm = math.Sqrt(norm)
		for i := range vec {
			vec[i] /= norm
		}
	}

	return toFloat32(vec), nil
}

// GetDimensions returns the vector size
func (p *HashProvider) GetDimensions() int {
	return p.dimensions
}

// GetName returns the provider name for identification
func (p *HashProvider) GetName() string {
	return "hash"
}

// tokenize lowercases text, splits on anything that is not a letter, digit or
// underscore, and also emits the parts of snake_case identifiers. A trailing
// plural "s" is dropped so "orders" and "order" share a feature.
func tokenize(text string) []string {
	words := strings.FieldsFunc(strings.ToLower(text), func(r rune) bool {
		return !unicode.IsLetter(r) && !unicode.IsDigit(r) && r != '_'
	})

	tokens := make([]string, 0, len(words))

	for _, w := range words {
		w = strings.Trim(w, "_")
		if w == "" {
			continue
		}

		tokens = append(tokens, stem(w))

		if strings.Contains(w, "_") {
			for _, part := range strings.Split(w, "_") {
				if part != "" {
					tokens = append(tokens, stem(part))
				}
			}
		}
	}

	return tokens
}

func stem(w string) string {
	if len(w) > 3 && strings.HasSuffix(w, "s") && !strings.HasSuffix(w, "ss") {
		return w[:len(w)-1]
	}

	return w
}
