package api

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"guildbot/models"
	"guildbot/roster"
	"guildbot/scheduler"
	"guildbot/service"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakePinger struct{ err error }

func (f fakePinger) Ping(context.Context) error { return f.err }

type fakeRoster struct{ status roster.Status }

func (f fakeRoster) Status() roster.Status { return f.status }

type fakeJobs struct{ jobs []scheduler.JobInfo }

func (f fakeJobs) Jobs() []scheduler.JobInfo { return f.jobs }

type fakeQueues struct {
	summaries []*models.QueueSummary
	details   map[int64]*models.QueueDetail
	err       error
}

func (f fakeQueues) ListQueues(context.Context) ([]*models.QueueSummary, error) {
	return f.summaries, f.err
}

func (f fakeQueues) GetQueue(_ context.Context, queueID int64) (*models.QueueDetail, error) {
	if f.err != nil {
		return nil, f.err
	}
	detail, ok := f.details[queueID]
	if !ok {
		return nil, fmt.Errorf("queue %d: %w", queueID, service.ErrNotFound)
	}
	return detail, nil
}

type fakeLimits struct {
	global   int
	personal map[int64]int
}

func (f fakeLimits) GlobalLimit(context.Context) (int, error) { return f.global, nil }

func (f fakeLimits) EffectiveLimit(_ context.Context, memberID int64) (int, error) {
	limit, ok := f.personal[memberID]
	if !ok {
		return 0, fmt.Errorf("member %d: %w", memberID, service.ErrNotFound)
	}
	return limit, nil
}

type fakeRewards struct {
	entries map[int64][]*models.RewardHistoryEntry
}

func (f fakeRewards) MemberRewards(_ context.Context, memberID int64, _ int) ([]*models.RewardHistoryEntry, error) {
	return f.entries[memberID], nil
}

var meteors = &models.QueueDefinition{ID: 10, Name: "Meteors", Description: "Standard terms", IsActive: true}

func newTestServer(db fakePinger, queues fakeQueues) *Server {
	refreshed := time.Date(2025, 6, 1, 7, 0, 0, 0, time.UTC)
	return NewServer(
		db,
		fakeRoster{status: roster.Status{Populated: true, Entries: 120, LastRefresh: refreshed, LastAttempt: refreshed}},
		fakeJobs{jobs: []scheduler.JobInfo{{AnnouncementID: 3, Repeats: true, Next: refreshed.Add(2 * time.Hour)}}},
		queues,
		fakeLimits{global: 1, personal: map[int64]int{7: 3}},
		fakeRewards{entries: map[int64][]*models.RewardHistoryEntry{
			7: {{ID: 1, MemberID: 7, CharacterNickname: "Hero", QueueName: "Meteors", IssuerHandle: "boss", IssuedAt: refreshed}},
		}},
	)
}

func get(t *testing.T, handler http.Handler, path string) *httptest.ResponseRecorder {
	t.Helper()
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, path, nil))
	return rec
}

func TestHealth(t *testing.T) {
	rec := get(t, newTestServer(fakePinger{}, fakeQueues{}), "/healthz")
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"status":"ok"}`, rec.Body.String())

	rec = get(t, newTestServer(fakePinger{err: errors.New("connection refused")}, fakeQueues{}), "/healthz")
	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
}

func TestStatus(t *testing.T) {
	rec := get(t, newTestServer(fakePinger{}, fakeQueues{}), "/status")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "application/json", rec.Header().Get("Content-Type"))

	var body statusResponse
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&body))
	assert.True(t, body.Roster.Populated)
	assert.Equal(t, 120, body.Roster.Entries)
	require.Len(t, body.Jobs, 1)
	assert.Equal(t, int64(3), body.Jobs[0].AnnouncementID)
}

func TestQueues(t *testing.T) {
	queues := fakeQueues{summaries: []*models.QueueSummary{
		{Queue: meteors, MemberCount: 2},
		{Queue: &models.QueueDefinition{ID: 11, Name: "Qilin", IsLocked: true}},
	}}

	rec := get(t, newTestServer(fakePinger{}, queues), "/queues")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `[
		{"id":10,"name":"Meteors","description":"Standard terms","locked":false,"members":2},
		{"id":11,"name":"Qilin","description":"","locked":true,"members":0}
	]`, rec.Body.String())
}

func TestQueueDetail(t *testing.T) {
	joined := time.Date(2025, 6, 1, 8, 0, 0, 0, time.UTC)
	queues := fakeQueues{details: map[int64]*models.QueueDetail{
		10: {Queue: meteors, Memberships: []*models.Membership{
			{ID: 1, QueueID: 10, CharacterNickname: "Hero", MemberHandle: "hero", JoinedAt: joined},
		}},
	}}
	server := newTestServer(fakePinger{}, queues)

	rec := get(t, server, "/queues/10")
	require.Equal(t, http.StatusOK, rec.Code)
	var body queueDetailResponse
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&body))
	assert.Equal(t, "Meteors", body.Name)
	assert.Equal(t, 1, body.Members)
	require.Len(t, body.Memberships, 1)
	assert.Equal(t, "Hero", body.Memberships[0].Character)

	assert.Equal(t, http.StatusNotFound, get(t, server, "/queues/99").Code)
	assert.Equal(t, http.StatusBadRequest, get(t, server, "/queues/meteors").Code)
}

func TestQueues_InternalError(t *testing.T) {
	rec := get(t, newTestServer(fakePinger{}, fakeQueues{err: errors.New("pool closed")}), "/queues")
	assert.Equal(t, http.StatusInternalServerError, rec.Code)
	assert.JSONEq(t, `{"error":"internal error"}`, rec.Body.String())
}

func TestLimits(t *testing.T) {
	server := newTestServer(fakePinger{}, fakeQueues{})

	rec := get(t, server, "/limits")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"limit":1}`, rec.Body.String())

	rec = get(t, server, "/members/7/limit")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"member_id":7,"limit":3}`, rec.Body.String())

	assert.Equal(t, http.StatusNotFound, get(t, server, "/members/8/limit").Code)
	assert.Equal(t, http.StatusBadRequest, get(t, server, "/members/-1/limit").Code)
}

func TestMemberRewards(t *testing.T) {
	server := newTestServer(fakePinger{}, fakeQueues{})

	rec := get(t, server, "/members/7/rewards")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `[
		{"queue":"Meteors","character":"Hero","issuer":"boss","issued_at":"2025-06-01T07:00:00Z"}
	]`, rec.Body.String())

	rec = get(t, server, "/members/8/rewards")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `[]`, rec.Body.String())
}
