package integration

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"testing"
	"time"

	"github.com/jackc/pgx/v4/pgxpool"
	goredis "github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
	tc "github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/wait"
	"github.com/uptrace/bun"
	"github.com/uptrace/bun/migrate"

	"quiz-session-engine/internal/app"
	"quiz-session-engine/internal/auth"
	"quiz-session-engine/internal/domain"
	"quiz-session-engine/internal/infra/postgres"
	pgmigrations "quiz-session-engine/internal/infra/postgres/migrations"
	infraredis "quiz-session-engine/internal/infra/redis"
	transport "quiz-session-engine/internal/transport/http"
)

const hostID = "host-1"

func TestSessionEndToEnd(t *testing.T) {
	ctx := context.Background()
	requireDocker(t)

	pgURL, pgCleanup := startPostgres(t, ctx)
	defer pgCleanup()
	redisURL, redisCleanup := startRedis(t, ctx)
	defer redisCleanup()

	db := postgres.Open(pgURL)
	defer db.Close()
	runMigrations(t, ctx, db)

	pool, err := pgxpool.Connect(ctx, pgURL)
	if err != nil {
		t.Fatalf("connect pg: %v", err)
	}
	defer pool.Close()
	loader := postgres.NewBankLoader(pool)
	if err := loader.SaveBank(ctx, sampleBank()); err != nil {
		t.Fatalf("seed bank: %v", err)
	}

	redisClient, err := redisClientFromURL(redisURL)
	if err != nil {
		t.Fatalf("redis client: %v", err)
	}
	defer redisClient.Close()

	hub := transport.NewHub()
	bus := infraredis.NewEventBus(redisClient, hub, "", zerolog.Nop())
	busCtx, stopBus := context.WithCancel(ctx)
	defer stopBus()
	if err := bus.Start(busCtx); err != nil {
		t.Fatalf("start event bus: %v", err)
	}

	store := postgres.NewStore(db)
	newEngine := func() *app.Engine {
		return app.NewEngine(
			store,
			infraredis.NewBankRepository(redisClient, loader, 5*time.Minute, zerolog.Nop()),
			infraredis.NewCodeRegistry(redisClient, time.Hour),
			auth.ContextIdentity{},
			bus,
		)
	}
	engine := newEngine()
	host := auth.WithActor(ctx, hostID)

	session, err := engine.CreateSession(host, app.CreateSessionRequest{Name: "Integration quiz", QuestionBankID: "bank-1"})
	if err != nil {
		t.Fatalf("create session: %v", err)
	}
	events, cancelEvents := hub.Subscribe(session.ID, "watcher")
	defer cancelEvents()

	if _, err := engine.OpenLobby(host, session.ID); err != nil {
		t.Fatalf("open lobby: %v", err)
	}
	alice, err := engine.JoinByCode(ctx, session.Code, "Alice", "")
	if err != nil {
		t.Fatalf("join alice: %v", err)
	}
	bob, err := engine.Join(ctx, session.ID, "Bob", "")
	if err != nil {
		t.Fatalf("join bob: %v", err)
	}
	if _, err := engine.Start(host, session.ID); err != nil {
		t.Fatalf("start: %v", err)
	}
	qi, err := engine.ActivateNext(host, session.ID)
	if err != nil {
		t.Fatalf("activate: %v", err)
	}
	waitForEvent(t, events, domain.EventQuestionActivated)

	if _, err := engine.Submit(ctx, alice.Participant.ID, qi.ID, domain.Submission{OptionID: "q1-wrong", ResponseTimeSeconds: 4}); err != nil {
		t.Fatalf("submit alice: %v", err)
	}
	res, err := engine.Submit(ctx, bob.Participant.ID, qi.ID, domain.Submission{OptionID: "q1-right", ResponseTimeSeconds: 2})
	if err != nil {
		t.Fatalf("submit bob: %v", err)
	}
	if !res.Correct || res.Rank != 1 {
		t.Fatalf("expected bob correct and leading, got %+v", res)
	}
	_, err = engine.Submit(ctx, bob.Participant.ID, qi.ID, domain.Submission{OptionID: "q1-right", ResponseTimeSeconds: 2})
	if !errors.Is(err, domain.ErrAlreadySubmitted) {
		t.Fatalf("expected duplicate rejection, got %v", err)
	}

	// a fresh engine rebuilds the session from Postgres
	restarted := newEngine()
	reloaded, err := restarted.GetSession(ctx, session.ID)
	if err != nil {
		t.Fatalf("reload session: %v", err)
	}
	if reloaded.Status != domain.StatusInProgress || reloaded.TotalResponses != 2 || reloaded.TotalParticipants != 2 {
		t.Fatalf("unexpected reloaded session: %+v", reloaded)
	}
	lb, err := restarted.Leaderboard(ctx, session.ID, 0)
	if err != nil {
		t.Fatalf("leaderboard: %v", err)
	}
	if len(lb.Entries) != 2 || lb.Entries[0].ParticipantID != bob.Participant.ID {
		t.Fatalf("expected bob first, got %+v", lb.Entries)
	}

	responses, err := restarted.QuestionResults(host, qi.ID)
	if err != nil {
		t.Fatalf("results: %v", err)
	}
	if len(responses) != 2 {
		t.Fatalf("expected 2 responses, got %d", len(responses))
	}

	if _, err := restarted.End(host, session.ID); err != nil {
		t.Fatalf("end: %v", err)
	}
	if _, err := restarted.RankOf(ctx, alice.Participant.ID); err != nil {
		t.Fatalf("rank after end: %v", err)
	}
	if err := restarted.DeleteSession(host, session.ID); err != nil {
		t.Fatalf("delete: %v", err)
	}
	if _, err := newEngine().GetSession(ctx, session.ID); !errors.Is(err, domain.ErrSessionNotFound) {
		t.Fatalf("expected deleted session to be gone, got %v", err)
	}
}

func waitForEvent(t *testing.T, events <-chan domain.Event, want domain.EventType) {
	t.Helper()
	timeout := time.After(5 * time.Second)
	for {
		select {
		case e := <-events:
			if e.Type == want {
				return
			}
		case <-timeout:
			t.Fatalf("no %s event within timeout", want)
		}
	}
}

func runMigrations(t *testing.T, ctx context.Context, db *bun.DB) {
	t.Helper()
	migrator := migrate.NewMigrator(db, pgmigrations.Migrations)
	if err := migrator.Init(ctx); err != nil {
		t.Fatalf("migrator init: %v", err)
	}
	if _, err := migrator.Migrate(ctx); err != nil {
		t.Fatalf("migrate: %v", err)
	}
}

func sampleBank() domain.QuestionBank {
	bank := domain.QuestionBank{ID: "bank-1", Name: "Integration", OwnerID: hostID}
	for i := 1; i <= 2; i++ {
		bank.Questions = append(bank.Questions, domain.Question{
			ID:           fmt.Sprintf("q%d", i),
			BankID:       "bank-1",
			Type:         domain.MultipleChoice,
			Text:         fmt.Sprintf("Question %d", i),
			Points:       100,
			TimeLimit:    30,
			DisplayOrder: i,
			IsActive:     true,
			Options: []domain.Option{
				{ID: fmt.Sprintf("q%d-wrong", i), Text: "wrong", DisplayOrder: 1},
				{ID: fmt.Sprintf("q%d-right", i), Text: "right", Correct: true, DisplayOrder: 2},
			},
		})
	}
	return bank
}

func startPostgres(t *testing.T, ctx context.Context) (string, func()) {
	t.Helper()
	req := tc.ContainerRequest{
		Image:        "postgres:15-alpine",
		Env:          map[string]string{"POSTGRES_USER": "quiz", "POSTGRES_PASSWORD": "quizpass", "POSTGRES_DB": "quizdb"},
		ExposedPorts: []string{"5432/tcp"},
		WaitingFor:   wait.ForLog("database system is ready to accept connections").WithOccurrence(2).WithStartupTimeout(60 * time.Second),
	}
	container, err := tc.GenericContainer(ctx, tc.GenericContainerRequest{
		ContainerRequest: req,
		Started:          true,
	})
	if err != nil {
		if strings.Contains(err.Error(), "Cannot connect to the Docker daemon") {
			t.Skipf("docker not available: %v", err)
		}
		t.Fatalf("start postgres: %v", err)
	}
	host, err := container.Host(ctx)
	if err != nil {
		t.Fatalf("host: %v", err)
	}
	port, err := container.MappedPort(ctx, "5432/tcp")
	if err != nil {
		t.Fatalf("port: %v", err)
	}
	dsn := fmt.Sprintf("postgres://quiz:quizpass@%s:%s/quizdb?sslmode=disable", host, port.Port())
	return dsn, func() {
		_ = container.Terminate(ctx)
	}
}

func startRedis(t *testing.T, ctx context.Context) (string, func()) {
	t.Helper()
	req := tc.ContainerRequest{
		Image:        "redis:7-alpine",
		ExposedPorts: []string{"6379/tcp"},
		WaitingFor:   wait.ForListeningPort("6379/tcp").WithStartupTimeout(30 * time.Second),
	}
	container, err := tc.GenericContainer(ctx, tc.GenericContainerRequest{
		ContainerRequest: req,
		Started:          true,
	})
	if err != nil {
		if strings.Contains(err.Error(), "Cannot connect to the Docker daemon") {
			t.Skipf("docker not available: %v", err)
		}
		t.Fatalf("start redis: %v", err)
	}
	host, err := container.Host(ctx)
	if err != nil {
		t.Fatalf("redis host: %v", err)
	}
	port, err := container.MappedPort(ctx, "6379/tcp")
	if err != nil {
		t.Fatalf("redis port: %v", err)
	}
	url := fmt.Sprintf("redis://%s:%s", host, port.Port())
	return url, func() {
		_ = container.Terminate(ctx)
	}
}

func redisClientFromURL(url string) (*goredis.Client, error) {
	opts, err := goredis.ParseURL(url)
	if err != nil {
		return nil, err
	}
	return goredis.NewClient(opts), nil
}

func requireDocker(t *testing.T) {
	t.Helper()
	if _, err := tc.NewDockerProvider(); err != nil {
		t.Skipf("docker not available: %v", err)
	}
}
