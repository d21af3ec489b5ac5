package service

import (
	"context"
	"fmt"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/spec-kit/servicedesk/internal/domain"
	"github.com/spec-kit/servicedesk/internal/events"
	"github.com/spec-kit/servicedesk/internal/observability"
	apperrors "github.com/spec-kit/servicedesk/pkg/util"
)

func newClaimFixture() (*ClaimService, *memTicketRepo, *memTechnicianRepo, *memHistoryRepo, *recordingDispatcher, *observability.Metrics) {
	tickets := newMemTicketRepo()
	technicians := newMemTechnicianRepo()
	tickets.technicians = technicians
	history := &memHistoryRepo{}
	dispatcher := &recordingDispatcher{}
	metrics := observability.NewMetrics()
	svc := NewClaimService(ClaimDependencies{
		TicketRepo:     tickets,
		TechnicianRepo: technicians,
		HistoryRepo:    history,
		Dispatcher:     dispatcher,
		Metrics:        metrics,
	})
	return svc, tickets, technicians, history, dispatcher, metrics
}

func TestClaimAssignsOpenTicket(t *testing.T) {
	svc, tickets, _, history, dispatcher, _ := newClaimFixture()
	seeded := tickets.seed(domain.Ticket{RequesterID: "req-1", Status: domain.TicketStatusOpen})

	ticket, err := svc.Claim(context.Background(), technicianActor("tech-1"), seeded.ID)
	require.NoError(t, err)
	require.NotNil(t, ticket.AssigneeID)
	assert.Equal(t, "tech-1", *ticket.AssigneeID)
	assert.Equal(t, domain.TicketStatusInProgress, ticket.Status)

	require.Len(t, history.byType(domain.ChangeTypeAssignee), 1)
	require.Len(t, dispatcher.byType(events.EventTicketClaimed), 1)
}

func TestClaimRequiresTechnicianRole(t *testing.T) {
	svc, tickets, _, _, _, _ := newClaimFixture()
	seeded := tickets.seed(domain.Ticket{RequesterID: "req-1", Status: domain.TicketStatusOpen})

	_, err := svc.Claim(context.Background(), requesterActor("req-1"), seeded.ID)
	require.Error(t, err)
	assert.True(t, apperrors.IsCode(err, "PERMISSION_DENIED"))
}

func TestClaimLostRace(t *testing.T) {
	svc, tickets, _, _, _, _ := newClaimFixture()
	holder := "tech-1"
	seeded := tickets.seed(domain.Ticket{
		RequesterID: "req-1",
		Status:      domain.TicketStatusInProgress,
		AssigneeID:  &holder,
	})

	_, err := svc.Claim(context.Background(), technicianActor("tech-2"), seeded.ID)
	require.Error(t, err)
	assert.True(t, apperrors.IsCode(err, "ALREADY_CLAIMED"))
}

func TestClaimByHolderIsNoOp(t *testing.T) {
	svc, tickets, _, history, _, _ := newClaimFixture()
	seeded := tickets.seed(domain.Ticket{RequesterID: "req-1", Status: domain.TicketStatusOpen})
	actor := technicianActor("tech-1")

	_, err := svc.Claim(context.Background(), actor, seeded.ID)
	require.NoError(t, err)

	ticket, err := svc.Claim(context.Background(), actor, seeded.ID)
	require.NoError(t, err)
	assert.Equal(t, "tech-1", *ticket.AssigneeID)

	// the retry records no second assignment
	assert.Len(t, history.byType(domain.ChangeTypeAssignee), 1)
}

func TestClaimClosedTicket(t *testing.T) {
	svc, tickets, _, _, _, _ := newClaimFixture()
	seeded := tickets.seed(domain.Ticket{RequesterID: "req-1", Status: domain.TicketStatusClosed})

	_, err := svc.Claim(context.Background(), technicianActor("tech-1"), seeded.ID)
	require.Error(t, err)
	assert.True(t, apperrors.IsCode(err, "TICKET_CLOSED"))
}

func TestClaimMissingTicket(t *testing.T) {
	svc, _, _, _, _, _ := newClaimFixture()
	_, err := svc.Claim(context.Background(), technicianActor("tech-1"), "missing")
	require.Error(t, err)
	assert.True(t, apperrors.IsCode(err, "NOT_FOUND"))
}

// TestConcurrentClaimSingleWinner races many technicians for one ticket and
// asserts exactly one wins while everyone else observes ALREADY_CLAIMED.
func TestConcurrentClaimSingleWinner(t *testing.T) {
	svc, tickets, _, history, _, metrics := newClaimFixture()
	seeded := tickets.seed(domain.Ticket{RequesterID: "req-1", Status: domain.TicketStatusOpen})

	const contenders = 32
	var wg sync.WaitGroup
	errs := make([]error, contenders)
	start := make(chan struct{})

	for i := 0; i < contenders; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			<-start
			_, errs[i] = svc.Claim(context.Background(), technicianActor(fmt.Sprintf("tech-%d", i)), seeded.ID)
		}(i)
	}
	close(start)
	wg.Wait()

	winners := 0
	for _, err := range errs {
		if err == nil {
			winners++
			continue
		}
		assert.True(t, apperrors.IsCode(err, "ALREADY_CLAIMED"), "unexpected error: %v", err)
	}
	assert.Equal(t, 1, winners)

	ticket, err := tickets.GetByID(context.Background(), seeded.ID)
	require.NoError(t, err)
	require.NotNil(t, ticket.AssigneeID)
	assert.Equal(t, domain.TicketStatusInProgress, ticket.Status)

	assert.Len(t, history.byType(domain.ChangeTypeAssignee), 1)
	won, lost := metrics.ClaimCounts()
	assert.Equal(t, int64(1), won)
	assert.Equal(t, int64(contenders-1), lost)
}

func TestAutoAssignPicksAvailableTechnician(t *testing.T) {
	svc, tickets, technicians, _, dispatcher, _ := newClaimFixture()
	technicians.seed(domain.Technician{ID: "tech-1", Role: domain.RoleTechnician, Available: false, Active: true})
	technicians.seed(domain.Technician{ID: "tech-2", Role: domain.RoleTechnician, Available: true, Active: true})
	seeded := tickets.seed(domain.Ticket{RequesterID: "req-1", Status: domain.TicketStatusOpen})

	ticket, err := svc.AutoAssign(context.Background(), adminActor("admin-1"), seeded.ID)
	require.NoError(t, err)
	require.NotNil(t, ticket.AssigneeID)
	assert.Equal(t, "tech-2", *ticket.AssigneeID)
	assert.Equal(t, domain.TicketStatusInProgress, ticket.Status)

	// assignment marks the technician unavailable
	tech, err := technicians.GetByID(context.Background(), "tech-2")
	require.NoError(t, err)
	assert.False(t, tech.Available)

	claims := dispatcher.byType(events.EventTicketClaimed)
	require.Len(t, claims, 1)
	payload, ok := claims[0].Payload.(events.TicketClaimedPayload)
	require.True(t, ok)
	assert.True(t, payload.AutoAssigned)
}

func TestAutoAssignAdminOnly(t *testing.T) {
	svc, tickets, _, _, _, _ := newClaimFixture()
	seeded := tickets.seed(domain.Ticket{RequesterID: "req-1", Status: domain.TicketStatusOpen})

	_, err := svc.AutoAssign(context.Background(), technicianActor("tech-1"), seeded.ID)
	require.Error(t, err)
	assert.True(t, apperrors.IsCode(err, "PERMISSION_DENIED"))
}

func TestAutoAssignNoTechnicianAvailable(t *testing.T) {
	svc, tickets, technicians, _, _, _ := newClaimFixture()
	technicians.seed(domain.Technician{ID: "tech-1", Role: domain.RoleTechnician, Available: false, Active: true})
	seeded := tickets.seed(domain.Ticket{RequesterID: "req-1", Status: domain.TicketStatusOpen})

	_, err := svc.AutoAssign(context.Background(), adminActor("admin-1"), seeded.ID)
	require.Error(t, err)
	assert.True(t, apperrors.IsCode(err, "CONFLICT"))
}

func TestAutoAssignLostRaceKeepsAvailability(t *testing.T) {
	svc, tickets, technicians, _, _, _ := newClaimFixture()
	technicians.seed(domain.Technician{ID: "tech-1", Role: domain.RoleTechnician, Available: true, Active: true})
	holder := "tech-9"
	seeded := tickets.seed(domain.Ticket{
		RequesterID: "req-1",
		Status:      domain.TicketStatusInProgress,
		AssigneeID:  &holder,
	})

	_, err := svc.AutoAssign(context.Background(), adminActor("admin-1"), seeded.ID)
	require.Error(t, err)
	assert.True(t, apperrors.IsCode(err, "ALREADY_CLAIMED"))

	// the rolled-back claim leaves the roster untouched
	tech, err := technicians.GetByID(context.Background(), "tech-1")
	require.NoError(t, err)
	assert.True(t, tech.Available)
}

func TestSetAvailabilityIdempotent(t *testing.T) {
	svc, _, technicians, _, _, _ := newClaimFixture()
	technicians.seed(domain.Technician{ID: "tech-1", Role: domain.RoleTechnician, Available: false, Active: true})
	actor := technicianActor("tech-1")

	tech, err := svc.SetAvailability(context.Background(), actor, true)
	require.NoError(t, err)
	assert.True(t, tech.Available)

	// requesting the current state again succeeds
	tech, err = svc.SetAvailability(context.Background(), actor, true)
	require.NoError(t, err)
	assert.True(t, tech.Available)
}
