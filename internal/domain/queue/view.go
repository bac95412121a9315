package queue

import (
	"fmt"
	"sort"
	"strings"

	"github.com/alanyang/agent-queue/internal/domain/agent"
)

// SortOption selects how the waiting section is ordered on the dashboard.
type SortOption string

const (
	SortManual SortOption = "manual"
	SortName   SortOption = "name"
	SortStatus SortOption = "status"
)

func (s SortOption) Valid() bool {
	switch s {
	case SortManual, SortName, SortStatus:
		return true
	}
	return false
}

// ViewOptions filters and orders the read model. Views never touch positions.
type ViewOptions struct {
	Sort          SortOption
	AvailableOnly bool
	Search        string
}

// View classifies the roster and then applies search, filter and sort.
// Busy agents always keep session-start order.
func View(r Roster, opts ViewOptions) Partitions {
	p := Classify(r)

	if q := strings.ToLower(strings.TrimSpace(opts.Search)); q != "" {
		match := func(a agent.Agent) bool {
			return strings.Contains(strings.ToLower(a.Name), q) ||
				strings.Contains(strings.ToLower(a.ContactNumber), q)
		}
		p.Queued = filter(p.Queued, match)
		p.Busy = filter(p.Busy, match)
		p.Paused = filter(p.Paused, match)
	}
	if opts.AvailableOnly {
		p.Paused = []agent.Agent{}
	}

	switch opts.Sort {
	case SortName:
		byName(p.Queued)
		byName(p.Paused)
	case SortStatus:
		// Queued already precedes Paused; inside Paused fall back to name.
		byName(p.Paused)
	}
	return p
}

func filter(in []agent.Agent, keep func(agent.Agent) bool) []agent.Agent {
	out := []agent.Agent{}
	for _, a := range in {
		if keep(a) {
			out = append(out, a)
		}
	}
	return out
}

func byName(in []agent.Agent) {
	sort.SliceStable(in, func(i, j int) bool {
		return strings.ToLower(in[i].Name) < strings.ToLower(in[j].Name)
	})
}

// CheckPositions verifies that queued positions are exactly 1..N and that no
// agent outside the queue holds a non-zero position.
func CheckPositions(r Roster) error {
	queued := Classify(r).Queued
	for i, a := range queued {
		if a.QueuePosition != i+1 {
			return fmt.Errorf("queued agent %d at position %d, want %d", a.ID, a.QueuePosition, i+1)
		}
	}
	for _, a := range r {
		if !a.IsQueued() && a.QueuePosition != 0 {
			return fmt.Errorf("%s agent %d holds position %d", a.Partition(), a.ID, a.QueuePosition)
		}
	}
	return nil
}
