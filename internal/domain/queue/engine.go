// Package queue holds the queue-state machine for the agent roster.
//
// Every function here is a pure transformation over a Roster snapshot: the
// input is never mutated, and each action returns the new roster together with
// the write-set of agents whose persisted fields changed. Callers own the one
// mutable roster reference and must serialize actions.
package queue

import (
	"errors"
	"sort"
	"time"

	"github.com/alanyang/agent-queue/internal/domain/agent"
)

var (
	// ErrInvalidTransition rejects an action whose preconditions do not hold
	// for the agent's current partition.
	ErrInvalidTransition = errors.New("invalid queue transition")
	// ErrQueueEmpty rejects a dispatch when no agent is queued.
	ErrQueueEmpty = errors.New("no queued agent available")
)

// Roster is the full agent list in insertion order.
type Roster []agent.Agent

// Partitions is the classified read model.
type Partitions struct {
	Queued []agent.Agent `json:"queued"`
	Busy   []agent.Agent `json:"busy"`
	Paused []agent.Agent `json:"paused"`
}

// Result is the outcome of one action.
//
// When Applied is false the roster is returned unchanged, Writes is empty and
// Reason says why (nil for a harmless no-op such as dropping an agent on its
// own slot).
type Result struct {
	Roster  Roster
	Writes  []agent.Agent
	Subject agent.Agent
	Applied bool
	Reason  error
}

func rejected(r Roster, reason error) Result {
	return Result{Roster: r, Reason: reason}
}

func (r Roster) clone() Roster {
	out := make(Roster, len(r))
	copy(out, r)
	return out
}

func (r Roster) indexOf(id int64) int {
	for i := range r {
		if r[i].ID == id {
			return i
		}
	}
	return -1
}

// Find returns the agent with the given id.
func (r Roster) Find(id int64) (agent.Agent, bool) {
	if i := r.indexOf(id); i >= 0 {
		return r[i], true
	}
	return agent.Agent{}, false
}

// Classify splits the roster into its three partitions. Queued is ordered by
// position, Busy by session start (missing stamps sort first), Paused keeps
// roster order. All sorts are stable.
func Classify(r Roster) Partitions {
	p := Partitions{
		Queued: []agent.Agent{},
		Busy:   []agent.Agent{},
		Paused: []agent.Agent{},
	}
	for _, a := range r {
		switch a.Partition() {
		case agent.PartitionQueued:
			p.Queued = append(p.Queued, a)
		case agent.PartitionBusy:
			p.Busy = append(p.Busy, a)
		default:
			p.Paused = append(p.Paused, a)
		}
	}
	sort.SliceStable(p.Queued, func(i, j int) bool {
		return p.Queued[i].QueuePosition < p.Queued[j].QueuePosition
	})
	sort.SliceStable(p.Busy, func(i, j int) bool {
		return startedAt(p.Busy[i]).Before(startedAt(p.Busy[j]))
	})
	return p
}

func startedAt(a agent.Agent) time.Time {
	if a.SessionStartedAt == nil {
		return time.Time{}
	}
	return *a.SessionStartedAt
}

// tailPosition is max(queued position)+1, or 1 when nobody is queued.
func tailPosition(r Roster) int {
	maxPos := 0
	for _, a := range r {
		if a.IsQueued() && a.QueuePosition > maxPos {
			maxPos = a.QueuePosition
		}
	}
	return maxPos + 1
}

// closeGap decrements every queued agent ranked after pos. The agent with id
// skip is ignored. Changed agents are returned in roster order.
func closeGap(r Roster, pos int, skip int64) []agent.Agent {
	var shifted []agent.Agent
	for i := range r {
		if r[i].ID == skip || !r[i].IsQueued() {
			continue
		}
		if r[i].QueuePosition > pos {
			r[i].QueuePosition--
			shifted = append(shifted, r[i])
		}
	}
	return shifted
}

// NextInLine returns the queued agent with the lowest position.
func NextInLine(r Roster) (agent.Agent, bool) {
	var (
		next  agent.Agent
		found bool
	)
	for _, a := range r {
		if !a.IsQueued() {
			continue
		}
		if !found || a.QueuePosition < next.QueuePosition {
			next, found = a, true
		}
	}
	return next, found
}

// AddAgent appends a new queued agent at the tail. Fields must already be
// validated. id is whatever the store assigned, or 0 for a draft that is
// re-keyed with Rekey once the store answers.
func AddAgent(r Roster, f agent.Fields, id int64) Result {
	out := r.clone()
	a := agent.Agent{
		ID:            id,
		Available:     true,
		QueuePosition: tailPosition(out),
	}
	f.Apply(&a)
	out = append(out, a)
	return Result{Roster: out, Writes: []agent.Agent{a}, Subject: a, Applied: true}
}

// EditAgent overwrites the provided fields. Only an explicit Available change
// moves the agent: off leaves the queue (pause), on joins at the tail. Busy
// agents keep their partition because InSession wins.
func EditAgent(r Roster, id int64, f agent.Fields) Result {
	i := r.indexOf(id)
	if i < 0 {
		return rejected(r, agent.ErrNotFound)
	}
	out := r.clone()
	a := out[i]
	f.Apply(&a)

	var shifted []agent.Agent
	if f.Available != nil && *f.Available != a.Available {
		switch {
		case a.InSession:
			a.Available = *f.Available
		case a.Available:
			pos := a.QueuePosition
			a.Available = false
			a.QueuePosition = 0
			out[i] = a
			shifted = closeGap(out, pos, a.ID)
		default:
			a.QueuePosition = tailPosition(out)
			a.Available = true
		}
	}
	out[i] = a
	return Result{Roster: out, Writes: append([]agent.Agent{a}, shifted...), Subject: a, Applied: true}
}

// DeleteAgent removes the agent. If it was queued, agents ranked after it move
// up by one and form the write-set.
func DeleteAgent(r Roster, id int64) Result {
	i := r.indexOf(id)
	if i < 0 {
		return rejected(r, agent.ErrNotFound)
	}
	removed := r[i]
	out := make(Roster, 0, len(r)-1)
	out = append(out, r[:i]...)
	out = append(out, r[i+1:]...)

	var shifted []agent.Agent
	if removed.IsQueued() {
		shifted = closeGap(out, removed.QueuePosition, removed.ID)
	}
	return Result{Roster: out, Writes: shifted, Subject: removed, Applied: true}
}

// ToggleAvailability flips the administrative switch of an agent that is not
// in session.
//
// Turning off leaves the queue: with session data the agent becomes Busy,
// without it the agent is Paused. Either way its position drops to 0 and the
// agents ranked after it move up. Turning on appends the agent at the tail;
// session data is ignored in that direction.
func ToggleAvailability(r Roster, id int64, session *agent.SessionStart, now time.Time) Result {
	i := r.indexOf(id)
	if i < 0 {
		return rejected(r, agent.ErrNotFound)
	}
	if r[i].InSession {
		return rejected(r, ErrInvalidTransition)
	}
	out := r.clone()
	a := out[i]

	if !a.Available {
		a.Available = true
		a.QueuePosition = tailPosition(out)
		a.ClientName = nil
		a.ClientContact = nil
		out[i] = a
		return Result{Roster: out, Writes: []agent.Agent{a}, Subject: a, Applied: true}
	}

	pos := a.QueuePosition
	a.Available = false
	a.QueuePosition = 0
	if session != nil {
		name, contact := session.ClientName, session.ClientContact
		started := now.UTC()
		a.InSession = true
		a.ClientName = &name
		a.ClientContact = &contact
		a.SessionStartedAt = &started
	}
	out[i] = a
	shifted := closeGap(out, pos, a.ID)
	return Result{Roster: out, Writes: append([]agent.Agent{a}, shifted...), Subject: a, Applied: true}
}

// Dispatch starts a session for the next agent in line. It is
// ToggleAvailability with session data, so the reindex runs exactly once.
func Dispatch(r Roster, session agent.SessionStart, now time.Time) Result {
	next, ok := NextInLine(r)
	if !ok {
		return rejected(r, ErrQueueEmpty)
	}
	return ToggleAvailability(r, next.ID, &session, now)
}

// FinishSession ends a Busy agent's session and puts it back at the tail.
func FinishSession(r Roster, id int64, now time.Time) Result {
	i := r.indexOf(id)
	if i < 0 {
		return rejected(r, agent.ErrNotFound)
	}
	if !r[i].IsBusy() {
		return rejected(r, ErrInvalidTransition)
	}
	out := r.clone()
	a := out[i]
	ended := now.UTC()
	a.InSession = false
	a.ClientName = nil
	a.ClientContact = nil
	a.SessionStartedAt = nil
	a.SessionEndedAt = &ended
	a.QueuePosition = tailPosition(out)
	a.Available = true
	out[i] = a
	return Result{Roster: out, Writes: []agent.Agent{a}, Subject: a, Applied: true}
}

// ReorderQueue moves activeID to overID's slot with list-move semantics and
// resequences every queued agent to 1..N. Every queued agent is written.
func ReorderQueue(r Roster, activeID, overID int64) Result {
	if activeID == overID {
		return rejected(r, nil)
	}
	queued := Classify(r).Queued
	from, to := -1, -1
	for i, a := range queued {
		switch a.ID {
		case activeID:
			from = i
		case overID:
			to = i
		}
	}
	if from < 0 || to < 0 {
		if r.indexOf(activeID) < 0 || r.indexOf(overID) < 0 {
			return rejected(r, agent.ErrNotFound)
		}
		return rejected(r, ErrInvalidTransition)
	}

	moved := queued[from]
	order := make([]agent.Agent, 0, len(queued))
	order = append(order, queued[:from]...)
	order = append(order, queued[from+1:]...)
	order = append(order[:to], append([]agent.Agent{moved}, order[to:]...)...)

	out := r.clone()
	writes := make([]agent.Agent, 0, len(order))
	for pos, a := range order {
		i := out.indexOf(a.ID)
		out[i].QueuePosition = pos + 1
		writes = append(writes, out[i])
	}
	subject, _ := out.Find(activeID)
	return Result{Roster: out, Writes: writes, Subject: subject, Applied: true}
}

// ApplyRemoteUpsert merges one externally written record: replace by id or
// append. Positions of other agents are left as they are.
func ApplyRemoteUpsert(r Roster, a agent.Agent) Roster {
	out := r.clone()
	if i := out.indexOf(a.ID); i >= 0 {
		out[i] = a
		return out
	}
	return append(out, a)
}

// ApplyRemoteDelete drops one externally deleted record without reindexing.
func ApplyRemoteDelete(r Roster, id int64) Roster {
	i := r.indexOf(id)
	if i < 0 {
		return r
	}
	out := make(Roster, 0, len(r)-1)
	out = append(out, r[:i]...)
	return append(out, r[i+1:]...)
}

// Rekey replaces the draft with id oldID by the stored record, keeping its
// place in roster order.
func Rekey(r Roster, oldID int64, stored agent.Agent) Roster {
	out := r.clone()
	if i := out.indexOf(oldID); i >= 0 {
		out[i] = stored
		return out
	}
	return append(out, stored)
}
