package cmd

import (
	"context"
	"fmt"
	"time"

	"github.com/zpam/spamscan/pkg/config"
	"github.com/zpam/spamscan/pkg/registry"
	"github.com/zpam/spamscan/pkg/scanner"
)

// scannerOptions maps the highlight block to snapshot options
func scannerOptions(c *config.Config) scanner.Options {
	return scanner.Options{
		OpenTag:   c.Highlight.OpenTag,
		CloseTag:  c.Highlight.CloseTag,
		MaxWords:  c.Highlight.MaxWords,
		SeedWords: c.Highlight.SeedWords,
	}
}

// loadSnapshot loads the model from the configured source
func loadSnapshot(ctx context.Context, c *config.Config) (*scanner.Snapshot, error) {
	if c.Model.Source == config.SourceRedis {
		reg, err := registry.New(ctx, &c.Redis)
		if err != nil {
			return nil, err
		}
		defer reg.Close()

		art, err := reg.Fetch(ctx)
		if err != nil {
			return nil, fmt.Errorf("failed to fetch model from registry: %v", err)
		}
		return scanner.LoadFromBytes(art.Model, art.Words, "redis", art.Version, scannerOptions(c))
	}

	return scanner.LoadFromFiles(c.Model.Path, c.Model.WordsPath, scannerOptions(c))
}

func millis(ms int) time.Duration {
	return time.Duration(ms) * time.Millisecond
}
