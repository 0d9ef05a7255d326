package cmd

import (
	"context"
	"fmt"
	"strings"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/redis/go-redis/v9"
	"github.com/spf13/afero"
	"go.uber.org/zap"

	"github.com/spigell/job-autopilot/internal/ai"
	"github.com/spigell/job-autopilot/internal/ai/gemini"
	"github.com/spigell/job-autopilot/internal/applicant"
	"github.com/spigell/job-autopilot/internal/browser"
	"github.com/spigell/job-autopilot/internal/documents"
	"github.com/spigell/job-autopilot/internal/formfill"
	"github.com/spigell/job-autopilot/internal/mailer"
	"github.com/spigell/job-autopilot/internal/metrics"
	"github.com/spigell/job-autopilot/internal/notify"
	"github.com/spigell/job-autopilot/internal/platforms"
	"github.com/spigell/job-autopilot/internal/platforms/adzuna"
	"github.com/spigell/job-autopilot/internal/platforms/hackernews"
	"github.com/spigell/job-autopilot/internal/platforms/headhunter"
	"github.com/spigell/job-autopilot/internal/scheduler"
	"github.com/spigell/job-autopilot/internal/scoring"
	"github.com/spigell/job-autopilot/internal/search"
	"github.com/spigell/job-autopilot/internal/secrets"
	"github.com/spigell/job-autopilot/internal/storage"
	"github.com/spigell/job-autopilot/internal/tasks"
)

// components is the wired pipeline shared by every command.
type components struct {
	registry  *prometheus.Registry
	store     storage.Store
	engine    *search.Engine
	applicant *applicant.Applicant
	scheduler *scheduler.Scheduler
	pipeline  *tasks.Pipeline
	closers   []func() error
}

func (c *components) Close(logger *zap.Logger) {
	for i := len(c.closers) - 1; i >= 0; i-- {
		if err := c.closers[i](); err != nil {
			logger.Warn("closing component", zap.Error(err))
		}
	}
}

func build(ctx context.Context, config *Config, logger *zap.Logger) (*components, error) {
	c := &components{registry: prometheus.NewRegistry()}
	c.registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	m := metrics.New(c.registry)

	store, err := newStore(ctx, config.Storage, c)
	if err != nil {
		c.Close(logger)
		return nil, fmt.Errorf("opening storage: %w", err)
	}
	c.store = store

	completer, err := newCompleter(ctx, config.AI, logger)
	if err != nil {
		logger.Warn("running without ai, heuristics only", zap.Error(err))
	}

	adapters, err := newAdapters(config.Platforms, store, completer, logger)
	if err != nil {
		c.Close(logger)
		return nil, err
	}

	c.engine = search.New(store, adapters, scoring.New(completer, logger.Named("scoring"), m), logger.Named("search"), m)

	mail, err := newMail(config.Mail, logger)
	if err != nil {
		c.Close(logger)
		return nil, err
	}

	notifier, err := newNotifier(config.Notifications, store, c, logger)
	if err != nil {
		c.Close(logger)
		return nil, err
	}

	c.applicant = applicant.New(&config.Apply.Config, &applicant.Deps{
		Store:     store,
		Jobs:      c.engine,
		Documents: documents.New(store, afero.NewOsFs()),
		Forms:     formfill.New(completer, logger.Named("formfill")),
		Launch:    launcher(config.Browser, logger.Named("browser")),
		Mail:      mail,
		Notifier:  notifier,
		Metrics:   m,
		Logger:    logger.Named("applicant"),
	})

	c.scheduler = scheduler.New(logger.Named("scheduler"), m, scheduler.WithRunOnStart(config.Scheduler.RunOnStart))
	c.pipeline = tasks.New(&config.Apply.Pacing, &tasks.Deps{
		Store:     store,
		Search:    c.engine,
		Applicant: c.applicant,
		Logger:    logger.Named("tasks"),
	})
	if err := c.pipeline.Register(c.scheduler); err != nil {
		c.Close(logger)
		return nil, fmt.Errorf("registering tasks: %w", err)
	}
	for _, name := range config.Scheduler.Disabled {
		if err := c.scheduler.Disable(name); err != nil {
			logger.Warn("ignoring disabled task", zap.Error(err))
		}
	}

	return c, nil
}

func newStore(ctx context.Context, config StorageConfig, c *components) (storage.Store, error) {
	switch strings.ToLower(strings.TrimSpace(config.Backend)) {
	case "", "fs":
		return storage.NewFS(config.Dir)
	case "redis":
		url, err := secrets.Load(secrets.Source{Name: "redis url", Value: config.RedisURL})
		if err != nil {
			return nil, err
		}
		store, err := storage.DialRedis(ctx, url, config.Prefix)
		if err != nil {
			return nil, err
		}
		c.closers = append(c.closers, store.Close)
		return store, nil
	default:
		return nil, fmt.Errorf("unsupported storage backend: %s", config.Backend)
	}
}

// newCompleter returns nil without an error when ai is switched off.
func newCompleter(ctx context.Context, config *AIConfig, logger *zap.Logger) (ai.Completer, error) {
	if config == nil || !config.Enabled {
		return nil, nil
	}

	provider := strings.TrimSpace(strings.ToLower(config.Provider))
	if provider != "" && provider != "gemini" {
		return nil, fmt.Errorf("unsupported ai provider: %s", config.Provider)
	}
	if config.Gemini == nil {
		return nil, fmt.Errorf("gemini configuration is required when ai is enabled")
	}

	apiKey, err := secrets.Load(secrets.Source{
		Name:  "gemini api key",
		Value: config.Gemini.APIKey,
		Env:   "GEMINI_API_KEY",
		File:  config.Gemini.APIKeyFile,
	})
	if err != nil {
		return nil, fmt.Errorf("%w (set ai.gemini.api-key-file or GEMINI_API_KEY)", err)
	}

	genLogger := logger.With(
		zap.String("provider", "gemini"),
		zap.String("model", config.Gemini.Model),
		zap.Int("ai_retry_attempts", config.Gemini.MaxRetries),
	)

	generator, err := gemini.NewGenerator(ctx, gemini.Config{
		APIKey:     apiKey,
		Model:      config.Gemini.Model,
		MaxRetries: config.Gemini.MaxRetries,
	}, genLogger)
	if err != nil {
		return nil, err
	}
	return generator, nil
}

func newAdapters(config PlatformsConfig, store storage.Store, completer ai.Completer, logger *zap.Logger) ([]platforms.Adapter, error) {
	appKey, err := secrets.Optional(secrets.Source{Name: "adzuna app key", Env: "ADZUNA_APP_KEY", File: config.Adzuna.AppKeyFile})
	if err != nil {
		return nil, err
	}
	token, err := secrets.Optional(secrets.Source{Name: "hh token", Env: "HH_TOKEN", File: config.HeadHunter.TokenFile})
	if err != nil {
		return nil, err
	}

	adapters := []platforms.Adapter{
		adzuna.New(adzuna.Config{
			AppID:    config.Adzuna.AppID,
			AppKey:   appKey,
			Country:  config.Adzuna.Country,
			MaxPages: config.Adzuna.MaxPages,
			CacheTTL: config.Adzuna.CacheTTL,
		}, logger),
		headhunter.New(headhunter.Config{
			Token:      token,
			Areas:      config.HeadHunter.Areas,
			Experience: config.HeadHunter.Experience,
			Period:     config.HeadHunter.Period,
			CacheTTL:   config.HeadHunter.CacheTTL,
		}, logger),
	}
	if config.HackerNews.Enabled {
		adapters = append(adapters, hackernews.New(hackernews.Config{
			CacheTTL:      config.HackerNews.CacheTTL,
			BatchSize:     config.HackerNews.BatchSize,
			MaxItems:      config.HackerNews.MaxItems,
			RatePerSecond: config.HackerNews.RatePerSecond,
		}, store, completer, logger))
	}

	out := make([]platforms.Adapter, 0, len(adapters))
	for _, a := range adapters {
		if !a.IsAvailable() {
			logger.Info("platform is not configured, skipping", zap.String("platform", a.Name()))
			continue
		}
		out = append(out, platforms.WithFilters(a, logger))
	}
	return out, nil
}

// newMail returns nil when no IMAP server is configured so email postings
// fall back to manual handling.
func newMail(config MailConfig, logger *zap.Logger) (applicant.MailChannel, error) {
	if config.Address == "" {
		return nil, nil
	}
	password, err := secrets.Load(secrets.Source{Name: "imap password", Env: "IMAP_PASSWORD", File: config.PasswordFile})
	if err != nil {
		return nil, err
	}
	cfg := config.Config
	cfg.Password = password
	return mailer.NewDrafts(cfg, logger.Named("mailer")), nil
}

func newNotifier(config NotificationsConfig, store storage.Store, c *components, logger *zap.Logger) (*notify.Dispatcher, error) {
	senders := []notify.Sender{notify.NewLog(logger.Named("notify"))}
	if config.Redis == nil {
		return notify.NewDispatcher(logger, senders...), nil
	}

	var client *redis.Client
	switch {
	case config.Redis.URL != "":
		opts, err := redis.ParseURL(config.Redis.URL)
		if err != nil {
			return nil, fmt.Errorf("parse notification redis url: %w", err)
		}
		client = redis.NewClient(opts)
		c.closers = append(c.closers, client.Close)
	default:
		rs, ok := store.(*storage.Redis)
		if !ok {
			return nil, fmt.Errorf("notifications.redis.url is required unless storage.backend is redis")
		}
		client = rs.Client()
	}

	senders = append(senders, notify.NewRedis(client, config.Redis.Stream))
	return notify.NewDispatcher(logger, senders...), nil
}

func launcher(opts browser.Options, logger *zap.Logger) applicant.Launcher {
	return func(ctx context.Context) (applicant.Browser, error) {
		s, err := browser.Launch(ctx, opts, logger)
		if err != nil {
			return nil, err
		}
		return s, nil
	}
}
