package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/uptrace/bun"
	"github.com/uptrace/bun/dialect/pgdialect"
	"github.com/uptrace/bun/driver/pgdriver"

	"quiz-session-engine/internal/domain"
)

const (
	uniqueViolation = "23505"

	sessionCodeConstraint  = "sessions_code_key"
	participantActorIndex  = "session_participants_actor_key"
	responseOnceConstraint = "session_responses_once_key"
)

// Open connects bun to Postgres through pgdriver.
func Open(dsn string) *bun.DB {
	sqldb := sql.OpenDB(pgdriver.NewConnector(pgdriver.WithDSN(dsn)))
	return bun.NewDB(sqldb, pgdialect.New())
}

// Store implements app.Store on Postgres. Sessions are soft-deleted through deleted_at.
type Store struct {
	db *bun.DB
}

func NewStore(db *bun.DB) *Store {
	return &Store{db: db}
}

func (s *Store) CreateSession(ctx context.Context, session *domain.Session, questions []*domain.QuestionInstance) error {
	err := s.db.RunInTx(ctx, nil, func(ctx context.Context, tx bun.Tx) error {
		if _, err := tx.NewInsert().Model(newSessionModel(session)).Exec(ctx); err != nil {
			return err
		}
		if len(questions) == 0 {
			return nil
		}
		models := make([]*questionInstanceModel, 0, len(questions))
		for _, q := range questions {
			models = append(models, newQuestionInstanceModel(q))
		}
		_, err := tx.NewInsert().Model(&models).Exec(ctx)
		return err
	})
	if isUniqueViolation(err, sessionCodeConstraint) {
		return domain.ErrJoinCodeTaken
	}
	if err != nil {
		return fmt.Errorf("create session: %w", err)
	}
	return nil
}

func (s *Store) GetSession(ctx context.Context, id string) (*domain.Session, error) {
	m := new(sessionModel)
	err := s.db.NewSelect().Model(m).Where("s.id = ?", id).Scan(ctx)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, domain.ErrSessionNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get session: %w", err)
	}
	return m.toDomain(), nil
}

func (s *Store) GetSessionByCode(ctx context.Context, code string) (*domain.Session, error) {
	m := new(sessionModel)
	err := s.db.NewSelect().Model(m).Where("s.code = ?", code).Scan(ctx)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, domain.ErrSessionNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get session by code: %w", err)
	}
	return m.toDomain(), nil
}

func (s *Store) ListSessionsByHost(ctx context.Context, hostID string) ([]*domain.Session, error) {
	var models []sessionModel
	err := s.db.NewSelect().Model(&models).Where("s.host_id = ?", hostID).Order("s.created_at DESC").Scan(ctx)
	if err != nil {
		return nil, fmt.Errorf("list sessions: %w", err)
	}
	out := make([]*domain.Session, 0, len(models))
	for i := range models {
		out = append(out, models[i].toDomain())
	}
	return out, nil
}

func (s *Store) UpdateSession(ctx context.Context, session *domain.Session) error {
	res, err := s.db.NewUpdate().Model(newSessionModel(session)).
		ExcludeColumn("id", "code", "host_id", "question_bank_id", "created_at", "deleted_at").
		WherePK().
		Exec(ctx)
	if err != nil {
		return fmt.Errorf("update session: %w", err)
	}
	return expectRow(res, domain.ErrSessionNotFound)
}

func (s *Store) DeleteSession(ctx context.Context, id string) error {
	res, err := s.db.NewDelete().Model(&sessionModel{ID: id}).WherePK().Exec(ctx)
	if err != nil {
		return fmt.Errorf("delete session: %w", err)
	}
	return expectRow(res, domain.ErrSessionNotFound)
}

func (s *Store) ListQuestionInstances(ctx context.Context, sessionID string) ([]*domain.QuestionInstance, error) {
	var models []questionInstanceModel
	err := s.db.NewSelect().Model(&models).Where("sq.session_id = ?", sessionID).Order("sq.queue_order ASC").Scan(ctx)
	if err != nil {
		return nil, fmt.Errorf("list questions: %w", err)
	}
	out := make([]*domain.QuestionInstance, 0, len(models))
	for i := range models {
		out = append(out, models[i].toDomain())
	}
	return out, nil
}

func (s *Store) GetQuestionInstance(ctx context.Context, id string) (*domain.QuestionInstance, error) {
	m := new(questionInstanceModel)
	err := s.db.NewSelect().Model(m).Where("sq.id = ?", id).Scan(ctx)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, domain.ErrQuestionNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get question: %w", err)
	}
	return m.toDomain(), nil
}

func (s *Store) UpdateQuestionInstances(ctx context.Context, questions ...*domain.QuestionInstance) error {
	return s.db.RunInTx(ctx, nil, func(ctx context.Context, tx bun.Tx) error {
		for _, q := range questions {
			res, err := tx.NewUpdate().Model(newQuestionInstanceModel(q)).
				ExcludeColumn("id", "session_id", "question_id", "question", "queue_order").
				WherePK().
				Exec(ctx)
			if err != nil {
				return fmt.Errorf("update question: %w", err)
			}
			if err := expectRow(res, domain.ErrQuestionNotFound); err != nil {
				return err
			}
		}
		return nil
	})
}

func (s *Store) CreateParticipant(ctx context.Context, participant *domain.Participant) error {
	_, err := s.db.NewInsert().Model(newParticipantModel(participant)).Exec(ctx)
	if isUniqueViolation(err, participantActorIndex) {
		return domain.ErrAlreadyJoined
	}
	if err != nil {
		return fmt.Errorf("create participant: %w", err)
	}
	return nil
}

func (s *Store) GetParticipant(ctx context.Context, id string) (*domain.Participant, error) {
	m := new(participantModel)
	err := s.db.NewSelect().Model(m).Where("sp.id = ?", id).Scan(ctx)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, domain.ErrParticipantNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get participant: %w", err)
	}
	return m.toDomain(), nil
}

func (s *Store) ListParticipants(ctx context.Context, sessionID string) ([]*domain.Participant, error) {
	var models []participantModel
	err := s.db.NewSelect().Model(&models).Where("sp.session_id = ?", sessionID).Order("sp.joined_at ASC").Scan(ctx)
	if err != nil {
		return nil, fmt.Errorf("list participants: %w", err)
	}
	out := make([]*domain.Participant, 0, len(models))
	for i := range models {
		out = append(out, models[i].toDomain())
	}
	return out, nil
}

func (s *Store) UpdateParticipants(ctx context.Context, participants ...*domain.Participant) error {
	return s.db.RunInTx(ctx, nil, func(ctx context.Context, tx bun.Tx) error {
		for _, p := range participants {
			res, err := tx.NewUpdate().Model(newParticipantModel(p)).
				ExcludeColumn("id", "session_id", "actor_id", "is_guest", "joined_at").
				WherePK().
				Exec(ctx)
			if err != nil {
				return fmt.Errorf("update participant: %w", err)
			}
			if err := expectRow(res, domain.ErrParticipantNotFound); err != nil {
				return err
			}
		}
		return nil
	})
}

func (s *Store) CreateResponse(ctx context.Context, response *domain.Response) error {
	_, err := s.db.NewInsert().Model(newResponseModel(response)).Exec(ctx)
	if isUniqueViolation(err, responseOnceConstraint) {
		return domain.ErrAlreadySubmitted
	}
	if err != nil {
		return fmt.Errorf("create response: %w", err)
	}
	return nil
}

func (s *Store) ListResponses(ctx context.Context, questionInstanceID string) ([]*domain.Response, error) {
	var models []responseModel
	err := s.db.NewSelect().Model(&models).Where("sr.question_instance_id = ?", questionInstanceID).Order("sr.submitted_at ASC").Scan(ctx)
	if err != nil {
		return nil, fmt.Errorf("list responses: %w", err)
	}
	out := make([]*domain.Response, 0, len(models))
	for i := range models {
		out = append(out, models[i].toDomain())
	}
	return out, nil
}

func isUniqueViolation(err error, constraint string) bool {
	var pgErr pgdriver.Error
	if !errors.As(err, &pgErr) {
		return false
	}
	return pgErr.Field('C') == uniqueViolation && pgErr.Field('n') == constraint
}

func expectRow(res sql.Result, notFound error) error {
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return notFound
	}
	return nil
}
