package app

import (
	"context"
	"errors"
	"math/rand"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"quiz-session-engine/internal/domain"
)

const (
	defaultJoinCodeAttempts = 10
	defaultLeaderboardLimit = 10
)

// Engine is the session execution engine. Every operation on a session runs under
// that session's lock; different sessions never contend beyond the runtime lookup.
type Engine struct {
	store    Store
	banks    BankSource
	codes    CodeRegistry
	identity Identity
	events   Broadcaster
	log      zerolog.Logger

	joinCodeAttempts int
	leaderboardLimit int

	now      func() time.Time
	newID    func() string
	drawCode func() (string, error)
	shuffle  func(n int, swap func(i, j int))

	mu       sync.Mutex
	runtimes map[string]*sessionRuntime
}

// Option customizes an Engine.
type Option func(*Engine)

func WithClock(now func() time.Time) Option {
	return func(e *Engine) { e.now = now }
}

func WithLogger(log zerolog.Logger) Option {
	return func(e *Engine) { e.log = log }
}

func WithIDGenerator(newID func() string) Option {
	return func(e *Engine) { e.newID = newID }
}

// WithCodeGenerator replaces the random join code source.
func WithCodeGenerator(draw func() (string, error)) Option {
	return func(e *Engine) { e.drawCode = draw }
}

func WithShuffle(shuffle func(n int, swap func(i, j int))) Option {
	return func(e *Engine) { e.shuffle = shuffle }
}

// WithJoinCodeAttempts caps how many codes are drawn before creation gives up.
func WithJoinCodeAttempts(n int) Option {
	return func(e *Engine) {
		if n > 0 {
			e.joinCodeAttempts = n
		}
	}
}

func WithLeaderboardLimit(n int) Option {
	return func(e *Engine) {
		if n > 0 {
			e.leaderboardLimit = n
		}
	}
}

func NewEngine(store Store, banks BankSource, codes CodeRegistry, identity Identity, events Broadcaster, opts ...Option) *Engine {
	e := &Engine{
		store:            store,
		banks:            banks,
		codes:            codes,
		identity:         identity,
		events:           events,
		log:              zerolog.Nop(),
		joinCodeAttempts: defaultJoinCodeAttempts,
		leaderboardLimit: defaultLeaderboardLimit,
		now:              func() time.Time { return time.Now().UTC() },
		newID:            uuid.NewString,
		drawCode:         randomJoinCode,
		shuffle:          rand.Shuffle,
		runtimes:         make(map[string]*sessionRuntime),
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// sessionRuntime is the in-memory owner of one session. Its fields are only touched
// with mu held.
type sessionRuntime struct {
	id      string
	mu      sync.Mutex
	loaded  bool
	retired bool

	session   *domain.Session
	machine   *stateMachine
	queue     *questionQueue
	registry  *participantRegistry
	responses *responseCoordinator
}

func (e *Engine) runtimeFor(id string) *sessionRuntime {
	e.mu.Lock()
	defer e.mu.Unlock()
	rt, ok := e.runtimes[id]
	if !ok {
		rt = &sessionRuntime{id: id}
		e.runtimes[id] = rt
	}
	return rt
}

// retire drops rt from the runtime map. Callers hold rt.mu.
func (e *Engine) retire(rt *sessionRuntime) {
	rt.retired = true
	rt.loaded = false
	e.mu.Lock()
	if e.runtimes[rt.id] == rt {
		delete(e.runtimes, rt.id)
	}
	e.mu.Unlock()
}

// withSession runs fn with the session's lock held and its state loaded.
func (e *Engine) withSession(ctx context.Context, id string, fn func(rt *sessionRuntime) error) error {
	if id == "" {
		return domain.ErrSessionNotFound
	}
	for {
		rt := e.runtimeFor(id)
		rt.mu.Lock()
		if rt.retired {
			rt.mu.Unlock()
			continue
		}
		if !rt.loaded {
			if err := e.hydrate(ctx, rt); err != nil {
				if domain.KindOf(err) == domain.KindNotFound {
					e.retire(rt)
				}
				rt.mu.Unlock()
				return err
			}
		}
		err := fn(rt)
		// finished sessions are served from the store from now on
		if rt.session != nil && rt.session.Status.Terminal() {
			e.retire(rt)
		}
		rt.mu.Unlock()
		return err
	}
}

// LiveSessions reports how many sessions currently hold an in-memory runtime.
func (e *Engine) LiveSessions() int {
	e.mu.Lock()
	defer e.mu.Unlock()
	return len(e.runtimes)
}

func (e *Engine) hydrate(ctx context.Context, rt *sessionRuntime) error {
	session, err := e.store.GetSession(ctx, rt.id)
	if err != nil {
		return err
	}
	questions, err := e.store.ListQuestionInstances(ctx, rt.id)
	if err != nil {
		return err
	}
	participants, err := e.store.ListParticipants(ctx, rt.id)
	if err != nil {
		return err
	}
	changedQuestions, changedParticipants, sessionChanged, err := reconcileStats(ctx, e.store, session, questions, participants)
	if err != nil {
		return err
	}

	rt.session = session
	rt.machine = newStateMachine(session, e.now)
	rt.queue = newQuestionQueue(questions, e.now)
	rt.registry = newParticipantRegistry(session, participants, e.now, e.newID)
	rt.responses = &responseCoordinator{
		session:  session,
		queue:    rt.queue,
		registry: rt.registry,
		store:    e.store,
		now:      e.now,
		newID:    e.newID,
	}
	if active := rt.registry.activeCount(); session.TotalParticipants != active {
		session.TotalParticipants = active
		sessionChanged = true
	}
	_, reranked := rt.registry.Rerank()
	for _, p := range reranked {
		changedParticipants = withParticipant(changedParticipants, p)
	}
	rt.loaded = true

	if len(changedQuestions) > 0 || len(changedParticipants) > 0 || sessionChanged {
		e.log.Warn().Str("session_id", rt.id).
			Int("questions", len(changedQuestions)).
			Int("participants", len(changedParticipants)).
			Msg("reconciled session stats")
		// The rebuilt state is derived from durable responses, so it stays loaded
		// even if writing it back fails.
		if err := e.writeBack(ctx, rt, changedQuestions, changedParticipants); err != nil {
			e.log.Error().Err(err).Str("session_id", rt.id).Msg("write back reconciled stats")
		}
	}
	return nil
}

func (e *Engine) writeBack(ctx context.Context, rt *sessionRuntime, questions []*domain.QuestionInstance, participants []*domain.Participant) error {
	if len(questions) > 0 {
		if err := e.store.UpdateQuestionInstances(ctx, questions...); err != nil {
			return err
		}
	}
	if len(participants) > 0 {
		if err := e.store.UpdateParticipants(ctx, participants...); err != nil {
			return err
		}
	}
	return e.store.UpdateSession(ctx, rt.session)
}

// persist writes the changed entities and the session. On failure the in-memory state
// may be ahead of the store, so the runtime is reloaded on next access.
func (e *Engine) persist(ctx context.Context, rt *sessionRuntime, op string, questions []*domain.QuestionInstance, participants []*domain.Participant) error {
	if err := e.writeBack(ctx, rt, questions, participants); err != nil {
		return e.persistFailed(rt, op, err)
	}
	return nil
}

func (e *Engine) persistFailed(rt *sessionRuntime, op string, err error) error {
	rt.loaded = false
	e.log.Error().Err(err).Str("session_id", rt.id).Str("op", op).Msg("persist failed")
	return domain.Failure("Session.PersistFailed", "failed to %s", op)
}

func (e *Engine) requireActor(ctx context.Context) (string, error) {
	actor, ok := e.identity.CurrentActor(ctx)
	if !ok || actor == "" {
		return "", domain.ErrUnauthorized
	}
	return actor, nil
}

func (e *Engine) requireHost(ctx context.Context, session *domain.Session) (string, error) {
	actor, err := e.requireActor(ctx)
	if err != nil {
		return "", err
	}
	if actor != session.HostID {
		return "", domain.ErrForbidden
	}
	return actor, nil
}

func (e *Engine) currentActor(ctx context.Context) string {
	actor, _ := e.identity.CurrentActor(ctx)
	return actor
}

// CreateSessionRequest describes a new session. A nil Settings means defaults.
type CreateSessionRequest struct {
	Name               string
	Description        string
	Type               domain.SessionType
	QuestionBankID     string
	MapID              string
	Settings           *domain.Settings
	ScheduledStartTime *time.Time
}

// CreateSession snapshots the bank into a new Draft session with a fresh join code.
func (e *Engine) CreateSession(ctx context.Context, req CreateSessionRequest) (domain.Session, error) {
	actor, err := e.requireActor(ctx)
	if err != nil {
		return domain.Session{}, err
	}
	req.Name = strings.TrimSpace(req.Name)
	if req.Name == "" {
		return domain.Session{}, domain.Invalid("session name is required")
	}
	if req.QuestionBankID == "" {
		return domain.Session{}, domain.Invalid("question bank id is required")
	}
	switch req.Type {
	case "":
		req.Type = domain.SessionLive
	case domain.SessionLive, domain.SessionSelfPaced, domain.SessionPractice:
	default:
		return domain.Session{}, domain.Invalid("unknown session type %q", req.Type)
	}
	settings := domain.DefaultSettings()
	if req.Settings != nil {
		settings = *req.Settings
	}
	if settings.MaxParticipants < 0 {
		return domain.Session{}, domain.Invalid("max participants cannot be negative")
	}

	bank, err := e.banks.GetBank(ctx, req.QuestionBankID)
	if err != nil {
		return domain.Session{}, err
	}

	now := e.now()
	session := &domain.Session{
		ID:                 e.newID(),
		Name:               req.Name,
		Description:        req.Description,
		Type:               req.Type,
		Status:             domain.StatusDraft,
		HostID:             actor,
		QuestionBankID:     bank.ID,
		MapID:              req.MapID,
		Settings:           settings,
		ScheduledStartTime: req.ScheduledStartTime,
		CreatedAt:          now,
		UpdatedAt:          now,
	}
	questions := e.snapshotQuestions(session, bank)

	for attempt := 0; attempt < e.joinCodeAttempts; attempt++ {
		code, err := e.drawCode()
		if err != nil {
			return domain.Session{}, domain.Failure("Session.CreateFailed", "failed to create session")
		}
		claimed, err := e.codes.Claim(ctx, code, session.ID)
		if err != nil {
			e.log.Error().Err(err).Str("code", code).Msg("claim join code")
			return domain.Session{}, domain.Failure("Session.CreateFailed", "failed to create session")
		}
		if !claimed {
			continue
		}
		session.Code = code
		err = e.store.CreateSession(ctx, session, questions)
		if errors.Is(err, domain.ErrJoinCodeTaken) {
			continue
		}
		if err != nil {
			e.log.Error().Err(err).Str("session_id", session.ID).Msg("create session")
			if rerr := e.codes.Release(ctx, code, session.ID); rerr != nil {
				e.log.Warn().Err(rerr).Str("code", code).Msg("release join code")
			}
			return domain.Session{}, domain.Failure("Session.CreateFailed", "failed to create session")
		}
		e.log.Info().Str("session_id", session.ID).Str("code", code).Int("questions", len(questions)).Msg("session created")
		return *session.Clone(), nil
	}
	e.log.Warn().Str("session_id", session.ID).Int("attempts", e.joinCodeAttempts).Msg("join codes exhausted")
	return domain.Session{}, domain.ErrJoinCodeExhausted
}

// snapshotQuestions copies the bank's active questions into queued instances,
// shuffled once when the session asks for it.
func (e *Engine) snapshotQuestions(session *domain.Session, bank domain.QuestionBank) []*domain.QuestionInstance {
	var source []domain.Question
	for _, q := range bank.Questions {
		if q.IsActive {
			source = append(source, q.Clone())
		}
	}
	sort.SliceStable(source, func(i, j int) bool { return source[i].DisplayOrder < source[j].DisplayOrder })
	if session.Settings.ShuffleQuestions {
		e.shuffle(len(source), func(i, j int) { source[i], source[j] = source[j], source[i] })
	}

	instances := make([]*domain.QuestionInstance, 0, len(source))
	for i, q := range source {
		sort.SliceStable(q.Options, func(a, b int) bool { return q.Options[a].DisplayOrder < q.Options[b].DisplayOrder })
		if session.Settings.ShuffleOptions {
			opts := q.Options
			e.shuffle(len(opts), func(a, b int) { opts[a], opts[b] = opts[b], opts[a] })
			for k := range opts {
				opts[k].DisplayOrder = k + 1
			}
		}
		instances = append(instances, &domain.QuestionInstance{
			ID:         e.newID(),
			SessionID:  session.ID,
			QuestionID: q.ID,
			Question:   q,
			QueueOrder: i + 1,
			Status:     domain.QuestionQueued,
		})
	}
	return instances
}

func (e *Engine) GetSession(ctx context.Context, id string) (domain.Session, error) {
	var out domain.Session
	err := e.withSession(ctx, id, func(rt *sessionRuntime) error {
		out = *rt.session.Clone()
		return nil
	})
	return out, err
}

func (e *Engine) GetSessionByCode(ctx context.Context, code string) (domain.Session, error) {
	found, err := e.store.GetSessionByCode(ctx, strings.TrimSpace(code))
	if err != nil {
		return domain.Session{}, err
	}
	return e.GetSession(ctx, found.ID)
}

// ListMySessions returns the sessions hosted by the current actor, newest first.
func (e *Engine) ListMySessions(ctx context.Context) ([]domain.Session, error) {
	actor, err := e.requireActor(ctx)
	if err != nil {
		return nil, err
	}
	sessions, err := e.store.ListSessionsByHost(ctx, actor)
	if err != nil {
		return nil, err
	}
	sort.SliceStable(sessions, func(i, j int) bool { return sessions[i].CreatedAt.After(sessions[j].CreatedAt) })
	out := make([]domain.Session, 0, len(sessions))
	for _, s := range sessions {
		out = append(out, *s)
	}
	return out, nil
}

// DeleteSession soft-deletes a session. Only its host may do this.
func (e *Engine) DeleteSession(ctx context.Context, id string) error {
	return e.withSession(ctx, id, func(rt *sessionRuntime) error {
		if _, err := e.requireHost(ctx, rt.session); err != nil {
			return err
		}
		if err := e.store.DeleteSession(ctx, id); err != nil {
			e.log.Error().Err(err).Str("session_id", id).Msg("delete session")
			return domain.Failure("Session.PersistFailed", "failed to delete session")
		}
		e.retire(rt)
		e.log.Info().Str("session_id", id).Msg("session deleted")
		return nil
	})
}

func (e *Engine) OpenLobby(ctx context.Context, id string) (domain.Session, error) {
	return e.transition(ctx, id, "open session", "Session is open for participants", func(rt *sessionRuntime) ([]*domain.QuestionInstance, []*domain.Participant, error) {
		return nil, nil, rt.machine.OpenLobby()
	})
}

func (e *Engine) Start(ctx context.Context, id string) (domain.Session, error) {
	return e.transition(ctx, id, "start session", "Session started", func(rt *sessionRuntime) ([]*domain.QuestionInstance, []*domain.Participant, error) {
		return nil, nil, rt.machine.Start()
	})
}

func (e *Engine) Pause(ctx context.Context, id string) (domain.Session, error) {
	return e.transition(ctx, id, "pause session", "Session paused", func(rt *sessionRuntime) ([]*domain.QuestionInstance, []*domain.Participant, error) {
		return nil, nil, rt.machine.Pause()
	})
}

func (e *Engine) Resume(ctx context.Context, id string) (domain.Session, error) {
	return e.transition(ctx, id, "resume session", "Session resumed", func(rt *sessionRuntime) ([]*domain.QuestionInstance, []*domain.Participant, error) {
		return nil, nil, rt.machine.Resume()
	})
}

// End completes the session, closing the active question and marking everyone left.
func (e *Engine) End(ctx context.Context, id string) (domain.Session, error) {
	return e.transition(ctx, id, "end session", "Session ended", func(rt *sessionRuntime) ([]*domain.QuestionInstance, []*domain.Participant, error) {
		if err := rt.machine.End(); err != nil {
			return nil, nil, err
		}
		return finishRuntime(rt)
	})
}

func (e *Engine) Cancel(ctx context.Context, id string) (domain.Session, error) {
	return e.transition(ctx, id, "cancel session", "Session cancelled", func(rt *sessionRuntime) ([]*domain.QuestionInstance, []*domain.Participant, error) {
		if err := rt.machine.Cancel(); err != nil {
			return nil, nil, err
		}
		return finishRuntime(rt)
	})
}

func finishRuntime(rt *sessionRuntime) ([]*domain.QuestionInstance, []*domain.Participant, error) {
	var questions []*domain.QuestionInstance
	if qi := rt.queue.CompleteActive(); qi != nil {
		questions = append(questions, qi)
	}
	return questions, rt.registry.LeaveAll(), nil
}

type transitionFunc func(rt *sessionRuntime) ([]*domain.QuestionInstance, []*domain.Participant, error)

func (e *Engine) transition(ctx context.Context, id, op, message string, apply transitionFunc) (domain.Session, error) {
	var out domain.Session
	err := e.withSession(ctx, id, func(rt *sessionRuntime) error {
		if _, err := e.requireHost(ctx, rt.session); err != nil {
			return err
		}
		from := rt.machine.Status()
		questions, participants, err := apply(rt)
		if err != nil {
			return err
		}
		if err := e.persist(ctx, rt, op, questions, participants); err != nil {
			return err
		}
		e.log.Info().Str("session_id", id).Str("from", string(from)).Str("to", string(rt.session.Status)).Msg("session status changed")
		e.events.Broadcast(ctx, id, domain.Event{
			Type:      domain.EventSessionStatusChanged,
			SessionID: id,
			Payload: domain.SessionStatusChangedPayload{
				Status:    rt.session.Status,
				Message:   message,
				ChangedAt: rt.session.UpdatedAt,
			},
		})
		out = *rt.session.Clone()
		return nil
	})
	return out, err
}

// JoinResult is what a joining participant gets back.
type JoinResult struct {
	Participant domain.Participant `json:"participant"`
	Session     domain.Session     `json:"session"`
}

// Join admits the current actor, or a guest when no actor is resolved.
func (e *Engine) Join(ctx context.Context, sessionID, displayName, deviceInfo string) (JoinResult, error) {
	actor := e.currentActor(ctx)
	var out JoinResult
	err := e.withSession(ctx, sessionID, func(rt *sessionRuntime) error {
		p, created, err := rt.registry.Join(displayName, actor, deviceInfo)
		if err != nil {
			return err
		}
		_, reranked := rt.registry.Rerank()
		if created {
			if err := e.store.CreateParticipant(ctx, p); err != nil {
				return e.persistFailed(rt, "join session", err)
			}
		} else {
			reranked = withParticipant(reranked, p)
		}
		if err := e.persist(ctx, rt, "join session", nil, reranked); err != nil {
			return err
		}
		e.log.Info().Str("session_id", sessionID).Str("participant_id", p.ID).Bool("guest", p.IsGuest).Msg("participant joined")
		e.events.BroadcastOthers(ctx, sessionID, p.ID, domain.Event{
			Type:      domain.EventParticipantJoined,
			SessionID: sessionID,
			Payload: domain.ParticipantJoinedPayload{
				ParticipantID:     p.ID,
				DisplayName:       p.DisplayName,
				IsGuest:           p.IsGuest,
				TotalParticipants: rt.session.TotalParticipants,
				JoinedAt:          p.JoinedAt,
			},
		})
		out = JoinResult{Participant: *p.Clone(), Session: *rt.session.Clone()}
		return nil
	})
	return out, err
}

// JoinByCode resolves a join code and joins that session.
func (e *Engine) JoinByCode(ctx context.Context, code, displayName, deviceInfo string) (JoinResult, error) {
	session, err := e.store.GetSessionByCode(ctx, strings.TrimSpace(code))
	if err != nil {
		return JoinResult{}, err
	}
	return e.Join(ctx, session.ID, displayName, deviceInfo)
}

// sessionOfParticipant finds which session a participant belongs to.
func (e *Engine) sessionOfParticipant(ctx context.Context, participantID string) (string, error) {
	if participantID == "" {
		return "", domain.ErrParticipantNotFound
	}
	p, err := e.store.GetParticipant(ctx, participantID)
	if err != nil {
		return "", err
	}
	return p.SessionID, nil
}

// authorizeParticipant lets a linked participant act only as themselves. Guests are
// addressed by their participant id alone. The host may act on anyone when allowHost is set.
func (e *Engine) authorizeParticipant(ctx context.Context, rt *sessionRuntime, p *domain.Participant, allowHost bool) error {
	if p.ActorID == "" {
		return nil
	}
	actor := e.currentActor(ctx)
	if actor == "" {
		return domain.ErrUnauthorized
	}
	if actor == p.ActorID || (allowHost && actor == rt.session.HostID) {
		return nil
	}
	return domain.ErrForbidden
}

// Leave marks a participant as left. Leaving twice is not an error.
func (e *Engine) Leave(ctx context.Context, participantID string) error {
	sessionID, err := e.sessionOfParticipant(ctx, participantID)
	if err != nil {
		return err
	}
	return e.withSession(ctx, sessionID, func(rt *sessionRuntime) error {
		p, ok := rt.registry.Get(participantID)
		if !ok {
			return domain.ErrParticipantNotFound
		}
		if err := e.authorizeParticipant(ctx, rt, p, true); err != nil {
			return err
		}
		_, changed, err := rt.registry.Leave(participantID)
		if err != nil || !changed {
			return err
		}
		_, reranked := rt.registry.Rerank()
		if err := e.persist(ctx, rt, "leave session", nil, withParticipant(reranked, p)); err != nil {
			return err
		}
		e.log.Info().Str("session_id", sessionID).Str("participant_id", p.ID).Msg("participant left")
		e.events.Broadcast(ctx, sessionID, domain.Event{
			Type:      domain.EventParticipantLeft,
			SessionID: sessionID,
			Payload: domain.ParticipantLeftPayload{
				ParticipantID:     p.ID,
				DisplayName:       p.DisplayName,
				TotalParticipants: rt.session.TotalParticipants,
				LeftAt:            *p.LeftAt,
			},
		})
		return nil
	})
}

// Leaderboard ranks the active participants. A non-positive limit uses the configured default.
func (e *Engine) Leaderboard(ctx context.Context, sessionID string, limit int) (domain.Leaderboard, error) {
	if limit <= 0 {
		limit = e.leaderboardLimit
	}
	actor := e.currentActor(ctx)
	var out domain.Leaderboard
	err := e.withSession(ctx, sessionID, func(rt *sessionRuntime) error {
		out = domain.Leaderboard{
			SessionID: sessionID,
			Entries:   rt.registry.Leaderboard(limit, actor),
			UpdatedAt: e.now(),
		}
		return nil
	})
	return out, err
}

// RankOf returns a participant's current rank, or 0 once they have left.
func (e *Engine) RankOf(ctx context.Context, participantID string) (int, error) {
	sessionID, err := e.sessionOfParticipant(ctx, participantID)
	if err != nil {
		return 0, err
	}
	var rank int
	err = e.withSession(ctx, sessionID, func(rt *sessionRuntime) error {
		r, rankErr := rt.registry.RankOf(participantID)
		rank = r
		return rankErr
	})
	return rank, err
}

// ActivateNext completes the active question and activates the next queued one.
// ErrNoMoreQuestions marks the end of the queue.
func (e *Engine) ActivateNext(ctx context.Context, sessionID string) (domain.QuestionInstance, error) {
	var out domain.QuestionInstance
	err := e.withSession(ctx, sessionID, func(rt *sessionRuntime) error {
		if _, err := e.requireHost(ctx, rt.session); err != nil {
			return err
		}
		if rt.session.Status != domain.StatusInProgress {
			return domain.ErrSessionNotRunning
		}
		changed, activateErr := rt.queue.ActivateNext()
		if activateErr != nil && !errors.Is(activateErr, domain.ErrNoMoreQuestions) {
			return activateErr
		}
		if len(changed) > 0 {
			rt.session.UpdatedAt = e.now()
			if err := e.persist(ctx, rt, "activate question", changed, nil); err != nil {
				return err
			}
		}
		if activateErr != nil {
			e.log.Info().Str("session_id", sessionID).Msg("question queue drained")
			return activateErr
		}
		qi := changed[len(changed)-1]
		e.log.Info().Str("session_id", sessionID).Str("question_id", qi.ID).Int("order", qi.QueueOrder).Msg("question activated")
		e.events.Broadcast(ctx, sessionID, domain.Event{
			Type:      domain.EventQuestionActivated,
			SessionID: sessionID,
			Payload:   activatedPayload(rt, qi),
		})
		out = *qi.Clone()
		return nil
	})
	return out, err
}

func activatedPayload(rt *sessionRuntime, qi *domain.QuestionInstance) domain.QuestionActivatedPayload {
	payload := domain.QuestionActivatedPayload{
		QuestionInstanceID: qi.ID,
		QuestionID:         qi.QuestionID,
		Text:               qi.Question.Text,
		Type:               qi.Question.Type,
		Points:             qi.Points(),
		TimeLimit:          qi.TimeLimit(),
		QuestionNumber:     qi.QueueOrder,
		TotalQuestions:     rt.queue.Len(),
		ActivatedAt:        *qi.StartedAt,
	}
	if rt.session.Settings.EnableHints {
		payload.Hint = qi.Question.Hint
	}
	for _, opt := range qi.Question.Options {
		payload.Options = append(payload.Options, domain.OptionView{ID: opt.ID, Text: opt.Text})
	}
	return payload
}

// SkipActive marks the active question skipped without activating another one.
func (e *Engine) SkipActive(ctx context.Context, sessionID string) (domain.QuestionInstance, error) {
	var out domain.QuestionInstance
	err := e.withSession(ctx, sessionID, func(rt *sessionRuntime) error {
		if _, err := e.requireHost(ctx, rt.session); err != nil {
			return err
		}
		if s := rt.session.Status; s != domain.StatusInProgress && s != domain.StatusPaused {
			return domain.ErrSessionNotRunning
		}
		qi, err := rt.queue.SkipActive()
		if err != nil {
			return err
		}
		rt.session.UpdatedAt = e.now()
		if err := e.persist(ctx, rt, "skip question", []*domain.QuestionInstance{qi}, nil); err != nil {
			return err
		}
		e.log.Info().Str("session_id", sessionID).Str("question_id", qi.ID).Msg("question skipped")
		out = *qi.Clone()
		return nil
	})
	return out, err
}

// ExtendTime adds extraSeconds (1..120) to the active question's time limit.
func (e *Engine) ExtendTime(ctx context.Context, sessionID, questionInstanceID string, extraSeconds int) (domain.QuestionInstance, error) {
	var out domain.QuestionInstance
	err := e.withSession(ctx, sessionID, func(rt *sessionRuntime) error {
		if _, err := e.requireHost(ctx, rt.session); err != nil {
			return err
		}
		qi, err := rt.queue.ExtendActiveTime(questionInstanceID, extraSeconds)
		if err != nil {
			return err
		}
		rt.session.UpdatedAt = e.now()
		if err := e.persist(ctx, rt, "extend time", []*domain.QuestionInstance{qi}, nil); err != nil {
			return err
		}
		e.events.Broadcast(ctx, sessionID, domain.Event{
			Type:      domain.EventTimeExtended,
			SessionID: sessionID,
			Payload: domain.TimeExtendedPayload{
				QuestionInstanceID: qi.ID,
				AdditionalSeconds:  extraSeconds,
				NewTimeLimit:       qi.TimeLimit(),
				ExtendedAt:         rt.session.UpdatedAt,
			},
		})
		out = *qi.Clone()
		return nil
	})
	return out, err
}

// Submit scores a participant's answer to the active question. When the response is
// stored but the follow-up stat writes fail, the result is returned with a Failure error.
func (e *Engine) Submit(ctx context.Context, participantID, questionInstanceID string, in domain.Submission) (domain.SubmitResult, error) {
	sessionID, err := e.sessionOfParticipant(ctx, participantID)
	if err != nil {
		return domain.SubmitResult{}, err
	}
	var out domain.SubmitResult
	err = e.withSession(ctx, sessionID, func(rt *sessionRuntime) error {
		if p, ok := rt.registry.Get(participantID); ok {
			if err := e.authorizeParticipant(ctx, rt, p, false); err != nil {
				return err
			}
		}
		sub, err := rt.responses.Submit(ctx, participantID, questionInstanceID, in)
		if sub == nil {
			if err != nil && domain.KindOf(err) == domain.KindFailure {
				e.log.Error().Err(err).Str("session_id", sessionID).Str("participant_id", participantID).Msg("store response")
				return domain.Failure("Response.PersistFailed", "failed to submit response")
			}
			return err
		}
		out = sub.result
		if err != nil {
			return e.persistFailed(rt, "update response stats", err)
		}
		e.broadcastSubmission(ctx, rt, sub)
		return nil
	})
	return out, err
}

func (e *Engine) broadcastSubmission(ctx context.Context, rt *sessionRuntime, sub *submission) {
	e.events.Broadcast(ctx, rt.id, domain.Event{
		Type:      domain.EventResponseSubmitted,
		SessionID: rt.id,
		Payload: domain.ResponseSubmittedPayload{
			QuestionInstanceID:  sub.question.ID,
			ParticipantID:       sub.participant.ID,
			DisplayName:         sub.participant.DisplayName,
			Correct:             sub.response.Correct,
			PointsEarned:        sub.response.PointsEarned,
			ResponseTimeSeconds: sub.response.ResponseTimeSeconds,
			TotalResponses:      sub.question.TotalResponses,
			SubmittedAt:         sub.response.SubmittedAt,
		},
	})
	if !rt.session.Settings.ShowLeaderboard {
		return
	}
	e.events.Broadcast(ctx, rt.id, domain.Event{
		Type:      domain.EventLeaderboardUpdated,
		SessionID: rt.id,
		Payload: domain.Leaderboard{
			SessionID: rt.id,
			Entries:   rt.registry.Leaderboard(e.leaderboardLimit, ""),
			UpdatedAt: sub.response.SubmittedAt,
		},
	})
}

// QuestionResults lists the responses to one question instance. Host only.
func (e *Engine) QuestionResults(ctx context.Context, questionInstanceID string) ([]domain.Response, error) {
	qi, err := e.store.GetQuestionInstance(ctx, questionInstanceID)
	if err != nil {
		return nil, err
	}
	var out []domain.Response
	err = e.withSession(ctx, qi.SessionID, func(rt *sessionRuntime) error {
		if _, err := e.requireHost(ctx, rt.session); err != nil {
			return err
		}
		responses, err := e.store.ListResponses(ctx, questionInstanceID)
		if err != nil {
			return err
		}
		sort.SliceStable(responses, func(i, j int) bool { return responses[i].SubmittedAt.Before(responses[j].SubmittedAt) })
		out = make([]domain.Response, 0, len(responses))
		for _, r := range responses {
			out = append(out, *r)
		}
		return nil
	})
	return out, err
}

// SyncMapState pushes the host's map viewport to every other observer of the session.
func (e *Engine) SyncMapState(ctx context.Context, sessionID, observerID string, state domain.MapState) error {
	return e.withSession(ctx, sessionID, func(rt *sessionRuntime) error {
		actor, err := e.requireHost(ctx, rt.session)
		if err != nil {
			return err
		}
		if rt.session.Status.Terminal() {
			return domain.ErrSessionNotRunning
		}
		if !(domain.Coordinate{Latitude: state.Latitude, Longitude: state.Longitude}).Valid() {
			return domain.Invalid("map coordinates out of range")
		}
		e.events.BroadcastOthers(ctx, sessionID, observerID, domain.Event{
			Type:      domain.EventMapStateSynced,
			SessionID: sessionID,
			Payload: domain.MapStateSyncedPayload{
				MapState: state,
				SyncedBy: actor,
				SyncedAt: e.now(),
			},
		})
		return nil
	})
}
