package domain

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestIsValidTransition(t *testing.T) {
	cases := []struct {
		from, to TicketStatus
		want     bool
	}{
		{TicketStatusOpen, TicketStatusInProgress, true},
		{TicketStatusInProgress, TicketStatusResolved, true},
		{TicketStatusInProgress, TicketStatusOpen, true},
		{TicketStatusResolved, TicketStatusClosed, true},
		{TicketStatusResolved, TicketStatusOpen, true},

		{TicketStatusOpen, TicketStatusResolved, false},
		{TicketStatusOpen, TicketStatusClosed, false},
		{TicketStatusInProgress, TicketStatusClosed, false},
		{TicketStatusClosed, TicketStatusOpen, false},
		{TicketStatusClosed, TicketStatusInProgress, false},
		{TicketStatusClosed, TicketStatusResolved, false},
	}
	for _, tc := range cases {
		assert.Equal(t, tc.want, IsValidTransition(tc.from, tc.to), "%s -> %s", tc.from, tc.to)
	}
}

func TestCanReopen(t *testing.T) {
	assert.True(t, CanReopen(TicketStatusInProgress))
	assert.True(t, CanReopen(TicketStatusResolved))
	assert.False(t, CanReopen(TicketStatusOpen))
	assert.False(t, CanReopen(TicketStatusClosed))
}

func TestRoleCanWorkTickets(t *testing.T) {
	assert.True(t, RoleTechnician.CanWorkTickets())
	assert.True(t, RoleAdmin.CanWorkTickets())
	assert.False(t, RoleRequester.CanWorkTickets())
}
