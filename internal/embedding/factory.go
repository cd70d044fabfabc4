package embedding

import (
	"os"
	"strconv"
	"strings"

	"github.com/entropyguard/entropyguard/internal/core/ports/driven"
)

var _ driven.EmbeddingServiceFactory = (*Factory)(nil)

// Factory constructs an EmbeddingService from a model name. Two forms are
// recognized:
//
//   - "local" or "local:<dim>" builds the deterministic offline
//     LocalHashEmbedding (the default for tests and dry runs without a
//     configured provider).
//   - anything else is treated as an OpenAI-compatible model name.
//
// APIKey and BaseURL normally come from the decrypted credentials file;
// the EMBEDDING_API_KEY / EMBEDDING_BASE_URL environment variables remain
// a fallback for ad hoc runs.
type Factory struct {
	APIKey  string
	BaseURL string
}

func NewFactory() *Factory { return &Factory{} }

func (f *Factory) CreateEmbeddingService(modelName string) (driven.EmbeddingService, error) {
	if modelName == "" || modelName == "local" || strings.HasPrefix(modelName, "local:") {
		dim := defaultDimensions
		if parts := strings.SplitN(modelName, ":", 2); len(parts) == 2 {
			if n, err := strconv.Atoi(parts[1]); err == nil && n > 0 {
				dim = n
			}
		}
		return NewLocalHashEmbedding(modelName, dim), nil
	}

	apiKey := f.APIKey
	if apiKey == "" {
		apiKey = os.Getenv("EMBEDDING_API_KEY")
	}
	baseURL := f.BaseURL
	if baseURL == "" {
		baseURL = os.Getenv("EMBEDDING_BASE_URL")
	}
	return NewHTTPEmbedding(apiKey, modelName, baseURL, defaultDimensions), nil
}
