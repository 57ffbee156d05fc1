package service

import (
	"context"
	"database/sql"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/komunitas-api/internal/models"
	appErrors "github.com/noah-isme/komunitas-api/pkg/errors"
)

type mockEventRepo struct {
	events     map[string]*models.Event
	nextID     int
	lastFilter *models.EventFilter
}

func newMockEventRepo() *mockEventRepo {
	return &mockEventRepo{events: map[string]*models.Event{}}
}

func (m *mockEventRepo) List(ctx context.Context, filter models.EventFilter) ([]models.Event, int, error) {
	m.lastFilter = &filter
	out := []models.Event{}
	for _, event := range m.events {
		if event.IsCancelled && !filter.IncludeCancelled {
			continue
		}
		out = append(out, *event)
	}
	return out, len(out), nil
}

func (m *mockEventRepo) GetByID(ctx context.Context, id string) (*models.Event, error) {
	event, ok := m.events[id]
	if !ok {
		return nil, sql.ErrNoRows
	}
	clone := *event
	return &clone, nil
}

func (m *mockEventRepo) Create(ctx context.Context, event *models.Event) error {
	m.nextID++
	event.ID = fmt.Sprintf("ev-%d", m.nextID)
	clone := *event
	m.events[event.ID] = &clone
	return nil
}

func (m *mockEventRepo) Update(ctx context.Context, event *models.Event) error {
	clone := *event
	m.events[event.ID] = &clone
	return nil
}

func (m *mockEventRepo) SetCancelled(ctx context.Context, id string, cancelled bool) error {
	if event, ok := m.events[id]; ok {
		event.IsCancelled = cancelled
	}
	return nil
}

func (m *mockEventRepo) Delete(ctx context.Context, id string) error {
	delete(m.events, id)
	return nil
}

func newEventService(repo *mockEventRepo, ledger *mockLedger, counter *mockDeniedCounter) *EventService {
	return NewEventService(repo, &mockLabelReader{}, ledger, newTestResolver(), counter, nil, nil, PageBounds{})
}

func intPtr(v int) *int { return &v }

func timePtr(t time.Time) *time.Time { return &t }

func TestEventCreateRejectsEndBeforeStart(t *testing.T) {
	svc := newEventService(newMockEventRepo(), newMockLedger(), nil)

	starts := time.Now().Add(24 * time.Hour)
	_, err := svc.Create(context.Background(), "adm", CreateEventRequest{
		Title:      "Quarterly gathering",
		Body:       "Hall B",
		Visibility: "PUBLIC",
		StartsAt:   starts,
		EndsAt:     timePtr(starts.Add(-time.Hour)),
		Location:   "Jakarta",
	})
	require.Error(t, err)
	assert.True(t, appErrors.Is(err, appErrors.ErrValidation))
}

func TestEventCreateRejectsNonPositiveCapacity(t *testing.T) {
	svc := newEventService(newMockEventRepo(), newMockLedger(), nil)

	_, err := svc.Create(context.Background(), "adm", CreateEventRequest{
		Title:      "Quarterly gathering",
		Body:       "Hall B",
		Visibility: "PUBLIC",
		StartsAt:   time.Now().Add(24 * time.Hour),
		Location:   "Jakarta",
		Capacity:   intPtr(0),
	})
	require.Error(t, err)
	assert.True(t, appErrors.Is(err, appErrors.ErrValidation))
}

func TestEventCreateValidatesTargeting(t *testing.T) {
	repo := newMockEventRepo()
	svc := newEventService(repo, newMockLedger(), nil)

	_, err := svc.Create(context.Background(), "adm", CreateEventRequest{
		Title:      "Chapter meetup",
		Body:       "Members only",
		Visibility: "GROUPS",
		StartsAt:   time.Now().Add(24 * time.Hour),
		Location:   "Bandung",
	})
	require.Error(t, err)
	assert.True(t, appErrors.Is(err, appErrors.ErrValidation))

	event, err := svc.Create(context.Background(), "adm", CreateEventRequest{
		Title:        "Chapter meetup",
		Body:         "Members only",
		Visibility:   "GROUPS",
		TargetGroups: []string{"g1"},
		StartsAt:     time.Now().Add(24 * time.Hour),
		Location:     "Bandung",
	})
	require.NoError(t, err)
	assert.Equal(t, "adm", event.AuthorID)
	assert.Equal(t, []string{"g1"}, event.TargetGroups)
}

func TestEventListRejectsInvertedDateRange(t *testing.T) {
	svc := newEventService(newMockEventRepo(), newMockLedger(), nil)

	from := time.Now()
	_, _, err := svc.List(context.Background(), memberScope("u1"), EventListRequest{
		From: timePtr(from),
		To:   timePtr(from.Add(-time.Hour)),
	})
	require.Error(t, err)
	assert.True(t, appErrors.Is(err, appErrors.ErrValidation))
}

func TestEventListIncludeCancelledIsAdminOnly(t *testing.T) {
	repo := newMockEventRepo()
	svc := newEventService(repo, newMockLedger(), nil)

	_, _, err := svc.List(context.Background(), memberScope("u1"), EventListRequest{IncludeCancelled: true})
	require.NoError(t, err)
	assert.False(t, repo.lastFilter.IncludeCancelled)

	_, _, err = svc.List(context.Background(), adminScope("adm"), EventListRequest{IncludeCancelled: true})
	require.NoError(t, err)
	assert.True(t, repo.lastFilter.IncludeCancelled)
}

func TestEventGetCancelledHiddenFromMembers(t *testing.T) {
	repo := newMockEventRepo()
	svc := newEventService(repo, newMockLedger(), nil)

	event, err := svc.Create(context.Background(), "adm", CreateEventRequest{
		Title:      "Quarterly gathering",
		Body:       "Hall B",
		Visibility: "PUBLIC",
		StartsAt:   time.Now().Add(24 * time.Hour),
		Location:   "Jakarta",
	})
	require.NoError(t, err)
	require.NoError(t, svc.Cancel(context.Background(), event.ID, true))

	_, err = svc.Get(context.Background(), memberScope("u1"), event.ID)
	require.Error(t, err)
	assert.True(t, appErrors.Is(err, appErrors.ErrNotFound))

	got, err := svc.Get(context.Background(), adminScope("adm2"), event.ID)
	require.NoError(t, err)
	assert.True(t, got.IsCancelled)
}

func TestEventGetDeniedCollapsesToNotFound(t *testing.T) {
	repo := newMockEventRepo()
	counter := &mockDeniedCounter{byKind: map[string]int{}}
	svc := newEventService(repo, newMockLedger(), counter)

	event, err := svc.Create(context.Background(), "adm", CreateEventRequest{
		Title:        "Chapter meetup",
		Body:         "Members only",
		Visibility:   "GROUPS",
		TargetGroups: []string{"g1"},
		StartsAt:     time.Now().Add(24 * time.Hour),
		Location:     "Bandung",
	})
	require.NoError(t, err)

	_, err = svc.Get(context.Background(), memberScope("outsider"), event.ID)
	require.Error(t, err)
	assert.True(t, appErrors.Is(err, appErrors.ErrNotFound))
	assert.Equal(t, 1, counter.byKind["event"])

	got, err := svc.Get(context.Background(), memberScope("u1", "g1"), event.ID)
	require.NoError(t, err)
	assert.Equal(t, 1, got.ViewsCount)
	assert.True(t, got.Viewed)
}

func TestEventUpdateReplacesTargetSets(t *testing.T) {
	repo := newMockEventRepo()
	svc := newEventService(repo, newMockLedger(), nil)

	event, err := svc.Create(context.Background(), "adm", CreateEventRequest{
		Title:        "Chapter meetup",
		Body:         "Members only",
		Visibility:   "GROUPS",
		TargetGroups: []string{"g1"},
		StartsAt:     time.Now().Add(24 * time.Hour),
		Location:     "Bandung",
	})
	require.NoError(t, err)

	updated, err := svc.Update(context.Background(), event.ID, UpdateEventRequest{
		Title:      "Chapter meetup",
		Body:       "Now open to everyone",
		Visibility: "PUBLIC",
		StartsAt:   event.StartsAt,
		Location:   "Bandung",
	})
	require.NoError(t, err)
	assert.Equal(t, models.VisibilityPublic, updated.Visibility)
	assert.Empty(t, updated.TargetGroups)
}

func TestEventCancelUnknownID(t *testing.T) {
	svc := newEventService(newMockEventRepo(), newMockLedger(), nil)

	err := svc.Cancel(context.Background(), "missing", true)
	require.Error(t, err)
	assert.True(t, appErrors.Is(err, appErrors.ErrNotFound))
}
