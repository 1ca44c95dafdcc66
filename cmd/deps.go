package main

import (
	"context"

	"github.com/rotisserie/eris"

	"github.com/sells-group/ytm-tracker/internal/browse"
	"github.com/sells-group/ytm-tracker/internal/doctext"
	"github.com/sells-group/ytm-tracker/internal/extractor"
	"github.com/sells-group/ytm-tracker/internal/fund"
	"github.com/sells-group/ytm-tracker/internal/store"
)

func initStore(ctx context.Context) (store.Store, error) {
	switch cfg.Store.Driver {
	case "sqlite":
		path := cfg.Store.Path
		if path == "" {
			path = "ytm_history.db"
		}
		return store.NewSQLite(path)
	case "postgres":
		return store.NewPostgres(ctx, cfg.Store.DatabaseURL)
	default:
		return nil, eris.Errorf("unsupported store driver: %s", cfg.Store.Driver)
	}
}

func loadRegistry() (*fund.Registry, error) {
	return fund.LoadFile(cfg.FundsFile)
}

// buildExtractors creates one extractor per registered fund, in registry
// order. An optional fundID narrows the batch to a single fund.
func buildExtractors(registry *fund.Registry, fundID string) ([]extractor.Extractor, error) {
	renderer, err := doctext.NewRenderer(doctext.Config{
		Backend:       cfg.Document.Backend,
		PdfToTextPath: cfg.Document.PdfToTextPath,
	})
	if err != nil {
		return nil, err
	}

	engine := browse.NewHTTPEngine(browse.EngineConfig{
		NavigationTimeout: cfg.HTTP.NavigationTimeout(),
		DownloadTimeout:   cfg.HTTP.DownloadTimeout(),
		UserAgent:         cfg.HTTP.UserAgent,
		RequestsPerSecond: cfg.HTTP.RequestsPerSecond,
	})

	deps := extractor.Deps{Sessions: engine, Renderer: renderer}
	opts := extractor.Options{
		OutputDir:    cfg.OutputDir,
		GateTimeout:  cfg.Consent.GateTimeout(),
		CloseTimeout: cfg.Consent.CloseTimeout(),
	}

	funds := registry.All()
	if fundID != "" {
		f, ok := registry.Get(fundID)
		if !ok {
			return nil, eris.Errorf("unknown fund: %s", fundID)
		}
		funds = []fund.Config{f}
	}

	extractors := make([]extractor.Extractor, 0, len(funds))
	for _, f := range funds {
		ex, err := extractor.New(f, deps, opts)
		if err != nil {
			return nil, eris.Wrapf(err, "build extractor for %s", f.FundID)
		}
		extractors = append(extractors, ex)
	}
	return extractors, nil
}
