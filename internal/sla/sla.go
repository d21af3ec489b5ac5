// Package sla computes resolution deadlines from ticket priority.
package sla

import (
	"time"

	"github.com/spec-kit/servicedesk/internal/domain"
)

// Policy is the per-priority resolution commitment table. Values are policy
// constants sourced from configuration, centralized here so SLA commitments
// stay auditable in one place.
type Policy struct {
	durations map[domain.TicketPriority]time.Duration
}

// NewPolicy builds a policy from explicit per-priority durations.
func NewPolicy(critical, high, medium, low time.Duration) Policy {
	return Policy{durations: map[domain.TicketPriority]time.Duration{
		domain.TicketPriorityCritical: critical,
		domain.TicketPriorityHigh:     high,
		domain.TicketPriorityMedium:   medium,
		domain.TicketPriorityLow:      low,
	}}
}

// Duration returns the resolution duration for a priority. Unrecognized
// priorities fail closed to the longest configured duration so the service
// never under-commits on unknown input.
func (p Policy) Duration(priority domain.TicketPriority) time.Duration {
	if d, ok := p.durations[priority]; ok {
		return d
	}
	return p.longest()
}

// Deadline computes the resolution deadline for a ticket created at now.
// Pure and deterministic: the only time source is the injected instant.
func (p Policy) Deadline(priority domain.TicketPriority, now time.Time) time.Time {
	return now.Add(p.Duration(priority))
}

func (p Policy) longest() time.Duration {
	var max time.Duration
	for _, d := range p.durations {
		if d > max {
			max = d
		}
	}
	return max
}
