package classifier

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"

	"github.com/rs/zerolog/log"
)

const warmupText = "Patient reports mild fatigue."

// HTTPLoader returns a LoadFunc that reads the code index from codesPath and
// probes the inference endpoint once so failures surface at startup.
func HTTPLoader(endpoint, token, codesPath string, client *http.Client) LoadFunc {
	return func(ctx context.Context) (Model, *Index, error) {
		if endpoint == "" {
			return nil, nil, errors.New("CLASSIFIER_URL is not set")
		}

		index, err := LoadIndex(codesPath)
		if err != nil {
			if !errors.Is(err, os.ErrNotExist) {
				return nil, nil, err
			}
			log.Warn().Str("path", codesPath).Msg("ICD-9 codes file not found, relying on remote lookup")
			index = EmptyIndex()
		}

		model := NewHTTPModel(endpoint, token, client)
		logits, err := model.Logits(ctx, warmupText)
		if err != nil {
			return nil, nil, fmt.Errorf("warm up classifier: %w", err)
		}
		if len(logits) == 0 {
			return nil, nil, errors.New("warm up classifier: endpoint returned no labels")
		}
		return model, index, nil
	}
}
