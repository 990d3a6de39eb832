package http

import (
	"context"
	"net/http"
	"reflect"
	"strconv"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/gorilla/mux"
	"github.com/rs/zerolog"

	"quiz-session-engine/internal/app"
	"quiz-session-engine/internal/domain"
)

// API exposes the engine over REST.
type API struct {
	engine   *app.Engine
	validate *validator.Validate
	log      zerolog.Logger
}

func NewAPI(engine *app.Engine, log zerolog.Logger) *API {
	v := validator.New()
	v.RegisterTagNameFunc(func(fld reflect.StructField) string {
		name := strings.SplitN(fld.Tag.Get("json"), ",", 2)[0]
		if name == "-" {
			return ""
		}
		return name
	})
	return &API{engine: engine, validate: v, log: log}
}

// Register mounts the session routes on r. Literal path segments are registered
// before the {sessionId} routes so they are not captured as ids.
func (a *API) Register(r *mux.Router) {
	s := r.PathPrefix("/api/sessions").Subrouter()

	s.HandleFunc("", a.createSession).Methods(http.MethodPost)
	s.HandleFunc("/mine", a.listMine).Methods(http.MethodGet)
	s.HandleFunc("/code/{code}", a.getByCode).Methods(http.MethodGet)
	s.HandleFunc("/code/{code}/join", a.joinByCode).Methods(http.MethodPost)

	s.HandleFunc("/participants/{participantId}/leave", a.leave).Methods(http.MethodPost)
	s.HandleFunc("/participants/{participantId}/rank", a.rank).Methods(http.MethodGet)

	s.HandleFunc("/questions/{questionId}/responses", a.submit).Methods(http.MethodPost)
	s.HandleFunc("/questions/{questionId}/responses", a.results).Methods(http.MethodGet)

	s.HandleFunc("/{sessionId}", a.getSession).Methods(http.MethodGet)
	s.HandleFunc("/{sessionId}", a.deleteSession).Methods(http.MethodDelete)
	s.HandleFunc("/{sessionId}/open", a.transition(a.engine.OpenLobby)).Methods(http.MethodPost)
	s.HandleFunc("/{sessionId}/start", a.transition(a.engine.Start)).Methods(http.MethodPost)
	s.HandleFunc("/{sessionId}/pause", a.transition(a.engine.Pause)).Methods(http.MethodPost)
	s.HandleFunc("/{sessionId}/resume", a.transition(a.engine.Resume)).Methods(http.MethodPost)
	s.HandleFunc("/{sessionId}/end", a.transition(a.engine.End)).Methods(http.MethodPost)
	s.HandleFunc("/{sessionId}/cancel", a.transition(a.engine.Cancel)).Methods(http.MethodPost)
	s.HandleFunc("/{sessionId}/join", a.join).Methods(http.MethodPost)
	s.HandleFunc("/{sessionId}/leaderboard", a.leaderboard).Methods(http.MethodGet)
	s.HandleFunc("/{sessionId}/questions/next", a.activateNext).Methods(http.MethodPost)
	s.HandleFunc("/{sessionId}/questions/skip", a.skip).Methods(http.MethodPost)
	s.HandleFunc("/{sessionId}/questions/{questionId}/extend", a.extend).Methods(http.MethodPost)
	s.HandleFunc("/{sessionId}/map", a.syncMap).Methods(http.MethodPost)
}

type createSessionRequest struct {
	Name               string           `json:"sessionName" validate:"required,max=200"`
	Description        string           `json:"description" validate:"max=1000"`
	Type               string           `json:"sessionType" validate:"omitempty,oneof=LIVE SELF_PACED PRACTICE"`
	QuestionBankID     string           `json:"questionBankId" validate:"required"`
	MapID              string           `json:"mapId"`
	Settings           *domain.Settings `json:"settings"`
	ScheduledStartTime *time.Time       `json:"scheduledStartTime"`
}

type joinRequest struct {
	DisplayName string `json:"displayName" validate:"required,max=100"`
	DeviceInfo  string `json:"deviceInfo" validate:"max=500"`
}

type healthResponse struct {
	Status       string `json:"status"`
	LiveSessions int    `json:"liveSessions"`
}

// Health reports liveness and how many sessions are held in memory.
func (a *API) Health(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, healthResponse{Status: "ok", LiveSessions: a.engine.LiveSessions()})
}

type extendRequest struct {
	AdditionalSeconds int `json:"additionalSeconds"`
}

type coordinateRequest struct {
	Latitude  float64 `json:"latitude" validate:"min=-90,max=90"`
	Longitude float64 `json:"longitude" validate:"min=-180,max=180"`
}

type submitRequest struct {
	ParticipantID       string             `json:"sessionParticipantId" validate:"required"`
	OptionID            string             `json:"questionOptionId"`
	Text                string             `json:"responseText" validate:"max=1000"`
	Location            *coordinateRequest `json:"location"`
	ResponseTimeSeconds float64            `json:"responseTimeSeconds" validate:"min=0"`
	UsedHint            bool               `json:"usedHint"`
}

func (req submitRequest) submission() domain.Submission {
	sub := domain.Submission{
		OptionID:            req.OptionID,
		Text:                req.Text,
		ResponseTimeSeconds: req.ResponseTimeSeconds,
		UsedHint:            req.UsedHint,
	}
	if req.Location != nil {
		sub.Location = &domain.Coordinate{Latitude: req.Location.Latitude, Longitude: req.Location.Longitude}
	}
	return sub
}

type mapSyncRequest struct {
	ObserverID         string  `json:"observerId"`
	Latitude           float64 `json:"latitude" validate:"min=-90,max=90"`
	Longitude          float64 `json:"longitude" validate:"min=-180,max=180"`
	ZoomLevel          int     `json:"zoomLevel" validate:"min=0,max=22"`
	Bearing            float64 `json:"bearing"`
	Pitch              float64 `json:"pitch"`
	TransitionDuration int     `json:"transitionDuration" validate:"min=0"`
}

func (a *API) createSession(w http.ResponseWriter, r *http.Request) {
	var req createSessionRequest
	if err := a.decodeAndValidate(r, &req); err != nil {
		a.writeError(w, r, err)
		return
	}
	session, err := a.engine.CreateSession(r.Context(), app.CreateSessionRequest{
		Name:               req.Name,
		Description:        req.Description,
		Type:               domain.SessionType(req.Type),
		QuestionBankID:     req.QuestionBankID,
		MapID:              req.MapID,
		Settings:           req.Settings,
		ScheduledStartTime: req.ScheduledStartTime,
	})
	if err != nil {
		a.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, session)
}

func (a *API) getSession(w http.ResponseWriter, r *http.Request) {
	session, err := a.engine.GetSession(r.Context(), mux.Vars(r)["sessionId"])
	if err != nil {
		a.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, session)
}

func (a *API) getByCode(w http.ResponseWriter, r *http.Request) {
	session, err := a.engine.GetSessionByCode(r.Context(), mux.Vars(r)["code"])
	if err != nil {
		a.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, session)
}

func (a *API) listMine(w http.ResponseWriter, r *http.Request) {
	sessions, err := a.engine.ListMySessions(r.Context())
	if err != nil {
		a.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, sessions)
}

func (a *API) deleteSession(w http.ResponseWriter, r *http.Request) {
	if err := a.engine.DeleteSession(r.Context(), mux.Vars(r)["sessionId"]); err != nil {
		a.writeError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (a *API) transition(op func(ctx context.Context, id string) (domain.Session, error)) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		session, err := op(r.Context(), mux.Vars(r)["sessionId"])
		if err != nil {
			a.writeError(w, r, err)
			return
		}
		writeJSON(w, http.StatusOK, session)
	}
}

func (a *API) join(w http.ResponseWriter, r *http.Request) {
	var req joinRequest
	if err := a.decodeAndValidate(r, &req); err != nil {
		a.writeError(w, r, err)
		return
	}
	res, err := a.engine.Join(r.Context(), mux.Vars(r)["sessionId"], req.DisplayName, req.DeviceInfo)
	if err != nil {
		a.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, res)
}

func (a *API) joinByCode(w http.ResponseWriter, r *http.Request) {
	var req joinRequest
	if err := a.decodeAndValidate(r, &req); err != nil {
		a.writeError(w, r, err)
		return
	}
	res, err := a.engine.JoinByCode(r.Context(), mux.Vars(r)["code"], req.DisplayName, req.DeviceInfo)
	if err != nil {
		a.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, res)
}

func (a *API) leave(w http.ResponseWriter, r *http.Request) {
	if err := a.engine.Leave(r.Context(), mux.Vars(r)["participantId"]); err != nil {
		a.writeError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (a *API) leaderboard(w http.ResponseWriter, r *http.Request) {
	limit := 0
	if raw := r.URL.Query().Get("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n < 0 {
			a.writeError(w, r, domain.Invalid("limit must be a non-negative integer"))
			return
		}
		limit = n
	}
	lb, err := a.engine.Leaderboard(r.Context(), mux.Vars(r)["sessionId"], limit)
	if err != nil {
		a.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, lb)
}

func (a *API) rank(w http.ResponseWriter, r *http.Request) {
	id := mux.Vars(r)["participantId"]
	rank, err := a.engine.RankOf(r.Context(), id)
	if err != nil {
		a.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"sessionParticipantId": id, "rank": rank})
}

func (a *API) activateNext(w http.ResponseWriter, r *http.Request) {
	qi, err := a.engine.ActivateNext(r.Context(), mux.Vars(r)["sessionId"])
	if err != nil {
		a.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, qi)
}

func (a *API) skip(w http.ResponseWriter, r *http.Request) {
	qi, err := a.engine.SkipActive(r.Context(), mux.Vars(r)["sessionId"])
	if err != nil {
		a.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, qi)
}

func (a *API) extend(w http.ResponseWriter, r *http.Request) {
	var req extendRequest
	if err := a.decodeAndValidate(r, &req); err != nil {
		a.writeError(w, r, err)
		return
	}
	vars := mux.Vars(r)
	qi, err := a.engine.ExtendTime(r.Context(), vars["sessionId"], vars["questionId"], req.AdditionalSeconds)
	if err != nil {
		a.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, qi)
}

func (a *API) submit(w http.ResponseWriter, r *http.Request) {
	var req submitRequest
	if err := a.decodeAndValidate(r, &req); err != nil {
		a.writeError(w, r, err)
		return
	}
	res, err := a.engine.Submit(r.Context(), req.ParticipantID, mux.Vars(r)["questionId"], req.submission())
	if err != nil {
		a.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, res)
}

func (a *API) results(w http.ResponseWriter, r *http.Request) {
	responses, err := a.engine.QuestionResults(r.Context(), mux.Vars(r)["questionId"])
	if err != nil {
		a.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, responses)
}

func (a *API) syncMap(w http.ResponseWriter, r *http.Request) {
	var req mapSyncRequest
	if err := a.decodeAndValidate(r, &req); err != nil {
		a.writeError(w, r, err)
		return
	}
	err := a.engine.SyncMapState(r.Context(), mux.Vars(r)["sessionId"], req.ObserverID, domain.MapState{
		Latitude:           req.Latitude,
		Longitude:          req.Longitude,
		ZoomLevel:          req.ZoomLevel,
		Bearing:            req.Bearing,
		Pitch:              req.Pitch,
		TransitionDuration: req.TransitionDuration,
	})
	if err != nil {
		a.writeError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusAccepted)
}
