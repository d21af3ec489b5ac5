package service

import (
	"github.com/spec-kit/servicedesk/internal/domain"
	"github.com/spec-kit/servicedesk/internal/events"
)

// Actor is the acting identity as resolved by the identity boundary: an id
// and a closed role. Services consume the role only; they never authenticate.
type Actor struct {
	ID   string
	Role domain.Role
}

func (a Actor) eventActor() events.Actor {
	id := a.ID
	return events.Actor{Role: a.Role, ID: &id}
}
