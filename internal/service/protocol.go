package service

import (
	"context"
	"fmt"
	"strconv"
	"strings"

	"github.com/spec-kit/helpdesk-service/internal/repository"
)

const protocolTag = "TICK"

// ProtocolAllocator issues the next unique ticket protocol for a year.
// Allocate must run inside the creation transaction: it takes a
// transaction-scoped advisory lock keyed by the year so that concurrent
// creations cannot read the same maximum. The unique constraint on the
// protocol column is the backstop; callers retry on a conflict.
type ProtocolAllocator struct {
	tickets repository.TicketRepository
}

// NewProtocolAllocator constructs the allocator.
func NewProtocolAllocator(tickets repository.TicketRepository) *ProtocolAllocator {
	return &ProtocolAllocator{tickets: tickets}
}

// Allocate returns the next protocol for the given calendar year.
func (a *ProtocolAllocator) Allocate(ctx context.Context, year int) (string, error) {
	if err := a.tickets.AcquireProtocolLock(ctx, year); err != nil {
		return "", fmt.Errorf("acquire protocol lock: %w", err)
	}
	last, err := a.tickets.LatestProtocol(ctx, protocolPrefix(year))
	if err != nil {
		return "", fmt.Errorf("read latest protocol: %w", err)
	}
	return nextProtocol(last, year)
}

func protocolPrefix(year int) string {
	return fmt.Sprintf("%s-%d-", protocolTag, year)
}

// nextProtocol increments the trailing counter of the latest protocol, or
// starts the year's sequence at 1. The counter is zero-padded to four
// digits and widens past 9999 instead of truncating.
func nextProtocol(last string, year int) (string, error) {
	seq := 1
	if last != "" {
		idx := strings.LastIndex(last, "-")
		if idx < 0 || idx == len(last)-1 {
			return "", fmt.Errorf("malformed protocol %q", last)
		}
		n, err := strconv.Atoi(last[idx+1:])
		if err != nil {
			return "", fmt.Errorf("malformed protocol counter in %q: %w", last, err)
		}
		seq = n + 1
	}
	return fmt.Sprintf("%s-%d-%04d", protocolTag, year, seq), nil
}
