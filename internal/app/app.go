// Package app wires configuration, rules, the scoring engine, the optional
// AI client and the HTTP server together.
package app

import (
	"errors"
	"fmt"

	"github.com/sirupsen/logrus"

	"github.com/meddiag-engine/internal/ai"
	"github.com/meddiag-engine/internal/api"
	"github.com/meddiag-engine/internal/domain"
	"github.com/meddiag-engine/internal/health"
	"github.com/meddiag-engine/internal/medication"
	"github.com/meddiag-engine/internal/monitoring"
	"github.com/meddiag-engine/internal/rules"
	"github.com/meddiag-engine/internal/scoring"
	"github.com/meddiag-engine/internal/service"
	"github.com/meddiag-engine/internal/treatment"
)

// App holds the assembled components.
type App struct {
	Rules   *rules.RuleSet
	Engine  *scoring.Engine
	Metrics *monitoring.Collector
	Service *service.DiagnosticService
	AI      *ai.Client
	Server  *api.Server
}

// New assembles every component from configuration. When AI is enabled the
// API key is mandatory and a missing key is an error.
func New(configManager domain.ConfigManager, logger *logrus.Logger) (*App, error) {
	cfg := configManager.GetConfig()

	rs, err := rules.LoadOrDefault(cfg.Rules.Path)
	if err != nil {
		return nil, fmt.Errorf("failed to load rules: %w", err)
	}
	logger.WithFields(logrus.Fields{
		"categories": rs.Registry.Len(),
		"diseases":   rs.Registry.DiseaseCount(),
		"source":     rulesSource(cfg.Rules.Path),
	}).Info("Rule set loaded")

	engine := scoring.NewEngineFromConfig(rs.Registry, cfg.Scoring, logger)

	a := &App{Rules: rs, Engine: engine, Metrics: monitoring.NewCollector(0)}

	svcOpts := []service.Option{service.WithMetrics(a.Metrics)}
	srvOpts := []api.Option{api.WithMetrics(a.Metrics)}
	if cfg.AI.Enabled {
		client, err := newAIClient(cfg, logger)
		if err != nil {
			return nil, err
		}
		a.AI = client
		svcOpts = append(svcOpts, service.WithAdvisor(client))
		srvOpts = append(srvOpts, api.WithHealthChecks(health.NewAICheck(client)))
		if cache := client.Cache(); cache != nil {
			srvOpts = append(srvOpts, api.WithHealthChecks(health.NewCacheCheck(cache)))
		}
		logger.WithField("model", client.Model()).Info("AI diagnostics enabled")
	} else {
		logger.Info("AI diagnostics disabled, using deterministic engine only")
	}

	a.Service = service.NewDiagnosticService(logger, engine,
		treatment.NewResolver(rs.Treatments),
		medication.NewSuggester(rs.Medications),
		svcOpts...)
	a.Server = api.NewServer(configManager, logger, a.Service, engine, srvOpts...)
	return a, nil
}

func newAIClient(cfg *domain.Config, logger *logrus.Logger) (*ai.Client, error) {
	var opts []ai.Option
	if cfg.Cache.Enabled {
		cache, err := ai.NewResponseCache(cfg.Cache, logger)
		if err != nil {
			logger.WithError(err).Warn("Redis cache unavailable, using in-memory cache only")
			cache = ai.NewDegradedCache(cfg.Cache, logger, err)
		}
		opts = append(opts, ai.WithCache(cache))
	}

	client, err := ai.NewClient(cfg.AI, logger, opts...)
	if err != nil {
		return nil, fmt.Errorf("failed to create AI client: %w", err)
	}
	return client, nil
}

func rulesSource(path string) string {
	if path == "" {
		return "embedded"
	}
	return path
}

// Close releases external connections.
func (a *App) Close() error {
	var errs []error
	if a.AI != nil {
		errs = append(errs, a.AI.Close())
	}
	return errors.Join(errs...)
}
