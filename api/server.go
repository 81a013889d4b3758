package api

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"time"

	"guildbot/models"
	"guildbot/roster"
	"guildbot/scheduler"
	"guildbot/service"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	log "github.com/sirupsen/logrus"
)

const requestTimeout = 5 * time.Second

// Pinger checks the database
type Pinger interface {
	Ping(ctx context.Context) error
}

// RosterStatus reports the roster cache state
type RosterStatus interface {
	Status() roster.Status
}

// JobLister reports scheduled announcement jobs
type JobLister interface {
	Jobs() []scheduler.JobInfo
}

// QueueReader is the read side of the queue engine
type QueueReader interface {
	ListQueues(ctx context.Context) ([]*models.QueueSummary, error)
	GetQueue(ctx context.Context, queueID int64) (*models.QueueDetail, error)
}

// LimitReader is the read side of the limit resolver
type LimitReader interface {
	GlobalLimit(ctx context.Context) (int, error)
	EffectiveLimit(ctx context.Context, memberID int64) (int, error)
}

// RewardReader returns a member's reward history
type RewardReader interface {
	MemberRewards(ctx context.Context, memberID int64, limit int) ([]*models.RewardHistoryEntry, error)
}

// Server is the read-only status API
type Server struct {
	db      Pinger
	roster  RosterStatus
	jobs    JobLister
	queues  QueueReader
	limits  LimitReader
	rewards RewardReader
	router  chi.Router
}

func NewServer(db Pinger, rosterStatus RosterStatus, jobs JobLister, queues QueueReader, limits LimitReader, rewards RewardReader) *Server {
	s := &Server{
		db:      db,
		roster:  rosterStatus,
		jobs:    jobs,
		queues:  queues,
		limits:  limits,
		rewards: rewards,
	}

	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.Recoverer)
	r.Use(middleware.Timeout(requestTimeout))

	r.Get("/healthz", s.handleHealth)
	r.Get("/status", s.handleStatus)
	r.Get("/queues", s.handleQueues)
	r.Get("/queues/{queueID}", s.handleQueue)
	r.Get("/limits", s.handleGlobalLimit)
	r.Route("/members/{memberID}", func(r chi.Router) {
		r.Get("/limit", s.handleMemberLimit)
		r.Get("/rewards", s.handleMemberRewards)
	})

	s.router = r
	return s
}

// ServeHTTP implements http.Handler
func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.router.ServeHTTP(w, r)
}

type statusResponse struct {
	Roster roster.Status       `json:"roster"`
	Jobs   []scheduler.JobInfo `json:"jobs"`
}

type queueResponse struct {
	ID          int64  `json:"id"`
	Name        string `json:"name"`
	Description string `json:"description"`
	Locked      bool   `json:"locked"`
	Members     int    `json:"members"`
}

type membershipResponse struct {
	Character string    `json:"character"`
	Handle    string    `json:"handle"`
	JoinedAt  time.Time `json:"joined_at"`
}

type queueDetailResponse struct {
	queueResponse
	Memberships []membershipResponse `json:"memberships"`
}

type limitResponse struct {
	MemberID int64 `json:"member_id,omitempty"`
	Limit    int   `json:"limit"`
}

type rewardResponse struct {
	Queue     string    `json:"queue"`
	Character string    `json:"character"`
	Issuer    string    `json:"issuer"`
	IssuedAt  time.Time `json:"issued_at"`
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	if err := s.db.Ping(r.Context()); err != nil {
		log.WithError(err).Warn("Health check failed")
		writeJSON(w, http.StatusServiceUnavailable, map[string]string{"status": "unavailable"})
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (s *Server) handleStatus(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, statusResponse{
		Roster: s.roster.Status(),
		Jobs:   s.jobs.Jobs(),
	})
}

func (s *Server) handleQueues(w http.ResponseWriter, r *http.Request) {
	summaries, err := s.queues.ListQueues(r.Context())
	if err != nil {
		writeError(w, err)
		return
	}

	response := make([]queueResponse, 0, len(summaries))
	for _, summary := range summaries {
		response = append(response, toQueueResponse(summary.Queue, summary.MemberCount))
	}
	writeJSON(w, http.StatusOK, response)
}

func (s *Server) handleQueue(w http.ResponseWriter, r *http.Request) {
	queueID, err := strconv.ParseInt(chi.URLParam(r, "queueID"), 10, 64)
	if err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid queue id"})
		return
	}

	detail, err := s.queues.GetQueue(r.Context(), queueID)
	if err != nil {
		writeError(w, err)
		return
	}

	response := queueDetailResponse{
		queueResponse: toQueueResponse(detail.Queue, len(detail.Memberships)),
		Memberships:   make([]membershipResponse, 0, len(detail.Memberships)),
	}
	for _, membership := range detail.Memberships {
		response.Memberships = append(response.Memberships, membershipResponse{
			Character: membership.CharacterNickname,
			Handle:    membership.MemberHandle,
			JoinedAt:  membership.JoinedAt,
		})
	}
	writeJSON(w, http.StatusOK, response)
}

func (s *Server) handleGlobalLimit(w http.ResponseWriter, r *http.Request) {
	limit, err := s.limits.GlobalLimit(r.Context())
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, limitResponse{Limit: limit})
}

func (s *Server) handleMemberLimit(w http.ResponseWriter, r *http.Request) {
	memberID, ok := memberIDParam(w, r)
	if !ok {
		return
	}

	limit, err := s.limits.EffectiveLimit(r.Context(), memberID)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, limitResponse{MemberID: memberID, Limit: limit})
}

func (s *Server) handleMemberRewards(w http.ResponseWriter, r *http.Request) {
	memberID, ok := memberIDParam(w, r)
	if !ok {
		return
	}

	entries, err := s.rewards.MemberRewards(r.Context(), memberID, 0)
	if err != nil {
		writeError(w, err)
		return
	}

	response := make([]rewardResponse, 0, len(entries))
	for _, entry := range entries {
		response = append(response, rewardResponse{
			Queue:     entry.QueueName,
			Character: entry.CharacterNickname,
			Issuer:    entry.IssuerHandle,
			IssuedAt:  entry.IssuedAt,
		})
	}
	writeJSON(w, http.StatusOK, response)
}

func memberIDParam(w http.ResponseWriter, r *http.Request) (int64, bool) {
	memberID, err := strconv.ParseInt(chi.URLParam(r, "memberID"), 10, 64)
	if err != nil || memberID <= 0 {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid member id"})
		return 0, false
	}
	return memberID, true
}

func toQueueResponse(queue *models.QueueDefinition, members int) queueResponse {
	return queueResponse{
		ID:          queue.ID,
		Name:        queue.Name,
		Description: queue.Description,
		Locked:      queue.IsLocked,
		Members:     members,
	}
}

func writeError(w http.ResponseWriter, err error) {
	if errors.Is(err, service.ErrNotFound) {
		writeJSON(w, http.StatusNotFound, map[string]string{"error": "not found"})
		return
	}
	log.WithError(err).Error("Status API request failed")
	writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "internal error"})
}

func writeJSON(w http.ResponseWriter, status int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(body); err != nil {
		log.WithError(err).Warn("Failed to encode response")
	}
}
