package cli

import (
	"context"
	"errors"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/jackc/pgx/v4/pgxpool"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"quiz-session-engine/internal/app"
	"quiz-session-engine/internal/auth"
	"quiz-session-engine/internal/config"
	"quiz-session-engine/internal/domain"
	"quiz-session-engine/internal/infra/memory"
	"quiz-session-engine/internal/infra/postgres"
	redisinfra "quiz-session-engine/internal/infra/redis"
	"quiz-session-engine/internal/logging"
	transport "quiz-session-engine/internal/transport/http"
)

// NewStartCmd builds the CLI subcommand to start the server.
func NewStartCmd(configPath, port *string) *cobra.Command {
	return &cobra.Command{
		Use:   "start",
		Short: "Start the quiz server",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runServer(cmd.Context(), *configPath, *port)
		},
	}
}

func runServer(ctx context.Context, configPath, portFlag string) error {
	cfg, err := config.Load(configPath)
	if err != nil {
		return err
	}
	log := logging.New(cfg)

	ctx, stop := signal.NotifyContext(ctx, syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	tokens, err := newTokens(cfg)
	if err != nil {
		return err
	}

	finalPort := portFlag
	if finalPort == "" {
		finalPort = cfg.Server.Port
	}
	if finalPort == "" {
		finalPort = "8080"
	}

	var (
		store  app.Store
		loader memory.BankLoader
	)
	if cfg.Postgres.URL != "" {
		if err := runMigrations(ctx, cfg, log); err != nil {
			return err
		}
		db := postgres.Open(cfg.Postgres.URL)
		defer db.Close()
		store = postgres.NewStore(db)

		pool, err := pgxpool.Connect(ctx, cfg.Postgres.URL)
		if err != nil {
			return err
		}
		defer pool.Close()
		loader = postgres.NewBankLoader(pool)
	} else {
		log.Warn().Msg("postgres not configured; sessions are kept in memory")
		store = memory.NewStore()
		loader = memory.NewStaticBankLoader(sampleBanks())
	}

	hub := transport.NewHub()
	bankTTL := config.TTLDuration(cfg.Bank.TTL, 10*time.Minute)

	group, ctx := errgroup.WithContext(ctx)

	var (
		banks  app.BankSource
		codes  app.CodeRegistry
		events app.Broadcaster = hub
	)
	if cfg.Redis.Addr != "" {
		client := redis.NewClient(&redis.Options{
			Addr:     cfg.Redis.Addr,
			Password: cfg.Redis.Password,
			DB:       cfg.Redis.DB,
		})
		defer client.Close()
		if err := client.Ping(ctx).Err(); err != nil {
			return err
		}
		banks = redisinfra.NewBankRepository(client, loader, bankTTL, log)
		codes = redisinfra.NewCodeRegistry(client, config.TTLDuration(cfg.Redis.TTL, 24*time.Hour))
		bus := redisinfra.NewEventBus(client, hub, cfg.Redis.Channel, log)
		if err := bus.Start(ctx); err != nil {
			return err
		}
		events = bus
	} else {
		banks = memory.NewBankRepository(loader, bankTTL)
		codes = memory.NewCodeRegistry()
	}

	engine := app.NewEngine(store, banks, codes, auth.ContextIdentity{}, events,
		app.WithLogger(log.With().Str("component", "engine").Logger()),
		app.WithJoinCodeAttempts(cfg.Engine.JoinCodeAttempts),
		app.WithLeaderboardLimit(cfg.Engine.LeaderboardLimit),
	)

	router := transport.NewRouter(
		transport.NewAPI(engine, log),
		transport.NewWSHandler(engine, hub, log),
		tokens,
	)
	server := &http.Server{
		Addr:              ":" + finalPort,
		Handler:           requestLogger(log, router),
		ReadHeaderTimeout: 15 * time.Second,
	}

	group.Go(func() error {
		log.Info().Str("port", finalPort).Msg("starting quiz engine")
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})
	group.Go(func() error {
		<-ctx.Done()
		log.Info().Msg("shutting down server")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		return server.Shutdown(shutdownCtx)
	})
	return group.Wait()
}

func requestLogger(log zerolog.Logger, next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		next.ServeHTTP(w, r)
		log.Debug().Str("method", r.Method).Str("path", r.URL.Path).Dur("took", time.Since(start)).Msg("request")
	})
}

// sampleBanks seeds the in-memory bank loader so the server is usable without Postgres.
func sampleBanks() map[string]domain.QuestionBank {
	return map[string]domain.QuestionBank{
		"demo": {
			ID:   "demo",
			Name: "Demo bank",
			Questions: []domain.Question{
				{
					ID:           "demo-1",
					BankID:       "demo",
					Type:         domain.MultipleChoice,
					Text:         "What is 2 + 2?",
					Points:       100,
					TimeLimit:    20,
					DisplayOrder: 1,
					IsActive:     true,
					Options: []domain.Option{
						{ID: "demo-1-a", Text: "3", DisplayOrder: 1},
						{ID: "demo-1-b", Text: "4", Correct: true, DisplayOrder: 2},
						{ID: "demo-1-c", Text: "5", DisplayOrder: 3},
					},
				},
				{
					ID:           "demo-2",
					BankID:       "demo",
					Type:         domain.TrueFalse,
					Text:         "The Pacific is the largest ocean.",
					Points:       100,
					TimeLimit:    15,
					DisplayOrder: 2,
					IsActive:     true,
					Options: []domain.Option{
						{ID: "demo-2-t", Text: "True", Correct: true, DisplayOrder: 1},
						{ID: "demo-2-f", Text: "False", DisplayOrder: 2},
					},
				},
				{
					ID:                     "demo-3",
					BankID:                 "demo",
					Type:                   domain.PinOnMap,
					Text:                   "Drop a pin on the Eiffel Tower.",
					Points:                 200,
					TimeLimit:              30,
					CorrectLocation:        &domain.Coordinate{Latitude: 48.8584, Longitude: 2.2945},
					AcceptanceRadiusMeters: 500,
					DisplayOrder:           3,
					IsActive:               true,
				},
			},
		},
	}
}
