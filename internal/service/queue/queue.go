package queue

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"math/rand/v2"
	"sync"
	"time"

	domainagent "github.com/alanyang/agent-queue/internal/domain/agent"
	"github.com/alanyang/agent-queue/internal/domain/event"
	domainqueue "github.com/alanyang/agent-queue/internal/domain/queue"
	portagent "github.com/alanyang/agent-queue/internal/port/agent"
	portlocker "github.com/alanyang/agent-queue/internal/port/locker"
	portnotifier "github.com/alanyang/agent-queue/internal/port/notifier"
)

// LockKey is the advisory lock id shared by every replica that writes the roster.
const LockKey int64 = 0x61746e64

type Status string

const (
	StatusPersisted Status = "persisted"
	StatusReverted  Status = "reverted"
	StatusNoop      Status = "noop"
)

// Outcome is what a command returns to the caller. Roster is the snapshot
// after the command settled (optimistic, persisted or refetched).
type Outcome struct {
	Status Status                 `json:"outcome"`
	Agent  *domainagent.Agent     `json:"agent,omitempty"`
	Roster domainqueue.Partitions `json:"roster"`
}

const (
	MessageRoster = "roster"
	MessageError  = "error"
)

// Message is pushed to every dashboard after the roster changes.
type Message struct {
	Type   string                  `json:"type"`
	Roster *domainqueue.Partitions `json:"roster,omitempty"`
	Error  string                  `json:"error,omitempty"`
}

type Option func(*Coordinator)

// WithClock replaces time.Now for session stamps and write bookkeeping.
func WithClock(now func() time.Time) Option {
	return func(c *Coordinator) { c.now = now }
}

// WithRefetch makes every command reload the roster from the store once the
// store lock is held, so positions written by another replica since the last
// merged notification are seen before the write-set is computed.
func WithRefetch() Option {
	return func(c *Coordinator) { c.refetch = true }
}

// WithContactGenerator replaces the generator used when a dispatch has no
// client contact.
func WithContactGenerator(gen func() string) Option {
	return func(c *Coordinator) { c.contact = gen }
}

// Coordinator owns the single mutable roster. Local commands run one at a
// time: compute with the queue engine, publish the optimistic roster, persist
// the write-set, reconcile with a refetch on failure. Remote changes from the
// feed are merged under the same mutex.
type Coordinator struct {
	store    portagent.Store
	locker   portlocker.Locker
	notifier portnotifier.RosterNotifier
	now      func() time.Time
	contact  func() string
	refetch  bool

	mu     sync.Mutex
	roster domainqueue.Roster
	// lastWrite is the persist time of the latest local write per agent id.
	lastWrite map[int64]time.Time
}

func NewCoordinator(store portagent.Store, locker portlocker.Locker, notifier portnotifier.RosterNotifier, opts ...Option) *Coordinator {
	c := &Coordinator{
		store:     store,
		locker:    locker,
		notifier:  notifier,
		now:       time.Now,
		contact:   randomContact,
		roster:    domainqueue.Roster{},
		lastWrite: make(map[int64]time.Time),
	}
	for _, o := range opts {
		o(c)
	}
	return c
}

func randomContact() string {
	return fmt.Sprintf("(11) 9%04d-%04d", rand.IntN(10000), rand.IntN(10000))
}

// Load replaces the roster with the store's rows.
func (c *Coordinator) Load(ctx context.Context) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	agents, err := c.store.FetchAll(ctx)
	if err != nil {
		return fmt.Errorf("load roster: %w", err)
	}
	c.roster = domainqueue.Roster(agents)
	c.lastWrite = make(map[int64]time.Time)
	c.broadcastLocked(ctx)
	return nil
}

// Refresh is the manual refetch behind the dashboard's refresh button.
func (c *Coordinator) Refresh(ctx context.Context) (domainqueue.Partitions, error) {
	if err := c.Load(ctx); err != nil {
		return domainqueue.Partitions{}, fmt.Errorf("refresh roster: %w", err)
	}
	return c.Snapshot(), nil
}

func (c *Coordinator) Snapshot() domainqueue.Partitions {
	c.mu.Lock()
	defer c.mu.Unlock()
	return domainqueue.Classify(c.roster)
}

// WithSnapshot runs fn with the current partitions while holding the roster
// mutex, so no roster broadcast interleaves with fn.
func (c *Coordinator) WithSnapshot(fn func(domainqueue.Partitions)) {
	c.mu.Lock()
	defer c.mu.Unlock()
	fn(domainqueue.Classify(c.roster))
}

func (c *Coordinator) View(opts domainqueue.ViewOptions) domainqueue.Partitions {
	c.mu.Lock()
	defer c.mu.Unlock()
	return domainqueue.View(c.roster, opts)
}

func (c *Coordinator) Get(id int64) (domainagent.Agent, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	a, ok := c.roster.Find(id)
	if !ok {
		return domainagent.Agent{}, fmt.Errorf("get agent %d: %w", id, domainagent.ErrNotFound)
	}
	return a, nil
}

func (c *Coordinator) Add(ctx context.Context, f domainagent.Fields) (Outcome, error) {
	if err := f.Validate(true); err != nil {
		return c.noop(), fmt.Errorf("add agent: %w", err)
	}
	return c.run(ctx, "add agent", func(r domainqueue.Roster) domainqueue.Result {
		return domainqueue.AddAgent(r, f, 0)
	}, c.persistInsert)
}

func (c *Coordinator) Edit(ctx context.Context, id int64, f domainagent.Fields) (Outcome, error) {
	if err := f.Validate(false); err != nil {
		return c.noop(), fmt.Errorf("edit agent: %w", err)
	}
	return c.run(ctx, "edit agent", func(r domainqueue.Roster) domainqueue.Result {
		return domainqueue.EditAgent(r, id, f)
	}, c.persistWrites)
}

func (c *Coordinator) Delete(ctx context.Context, id int64) (Outcome, error) {
	return c.run(ctx, "delete agent", func(r domainqueue.Roster) domainqueue.Result {
		return domainqueue.DeleteAgent(r, id)
	}, c.persistDelete)
}

// Toggle flips availability. session is only honored when turning off.
func (c *Coordinator) Toggle(ctx context.Context, id int64, session *domainagent.SessionStart) (Outcome, error) {
	if session != nil {
		if err := session.Validate(); err != nil {
			return c.noop(), fmt.Errorf("toggle availability: %w", err)
		}
	}
	return c.run(ctx, "toggle availability", func(r domainqueue.Roster) domainqueue.Result {
		return domainqueue.ToggleAvailability(r, id, session, c.now())
	}, c.persistWrites)
}

// CallNext dispatches the head of the queue to a client. A missing client
// contact is filled with a generated number.
func (c *Coordinator) CallNext(ctx context.Context, session domainagent.SessionStart) (Outcome, error) {
	if err := session.Validate(); err != nil {
		return c.noop(), fmt.Errorf("call next: %w", err)
	}
	if session.ClientContact == "" {
		session.ClientContact = c.contact()
	}
	return c.run(ctx, "call next", func(r domainqueue.Roster) domainqueue.Result {
		return domainqueue.Dispatch(r, session, c.now())
	}, c.persistWrites)
}

func (c *Coordinator) Finish(ctx context.Context, id int64) (Outcome, error) {
	return c.run(ctx, "finish session", func(r domainqueue.Roster) domainqueue.Result {
		return domainqueue.FinishSession(r, id, c.now())
	}, c.persistWrites)
}

func (c *Coordinator) Reorder(ctx context.Context, activeID, overID int64) (Outcome, error) {
	return c.run(ctx, "reorder queue", func(r domainqueue.Roster) domainqueue.Result {
		return domainqueue.ReorderQueue(r, activeID, overID)
	}, c.persistWrites)
}

type persistFunc func(ctx context.Context, res domainqueue.Result) (domainagent.Agent, error)

func (c *Coordinator) run(ctx context.Context, op string, compute func(domainqueue.Roster) domainqueue.Result, persist persistFunc) (Outcome, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	var (
		out    Outcome
		runErr error
	)
	lockErr := c.locker.WithLock(ctx, LockKey, func(ctx context.Context) error {
		out, runErr = c.apply(ctx, op, compute, persist)
		return nil
	})
	if lockErr != nil {
		slog.ErrorContext(ctx, "queue lock unavailable", "op", op, "error", lockErr)
		return Outcome{Status: StatusNoop, Roster: domainqueue.Classify(c.roster)},
			fmt.Errorf("%s: %w: %w", op, domainagent.ErrStoreUnavailable, lockErr)
	}
	return out, runErr
}

// apply runs with c.mu and the store lock held.
func (c *Coordinator) apply(ctx context.Context, op string, compute func(domainqueue.Roster) domainqueue.Result, persist persistFunc) (Outcome, error) {
	if c.refetch {
		agents, err := c.store.FetchAll(ctx)
		if err != nil {
			return Outcome{Status: StatusNoop, Roster: domainqueue.Classify(c.roster)}, fmt.Errorf("%s: %w", op, err)
		}
		c.roster = domainqueue.Roster(agents)
	}

	before := c.roster
	res := compute(before)
	if !res.Applied {
		out := Outcome{Status: StatusNoop, Roster: domainqueue.Classify(before)}
		if res.Reason != nil {
			return out, fmt.Errorf("%s: %w", op, res.Reason)
		}
		return out, nil
	}

	c.roster = res.Roster
	c.broadcastLocked(ctx)

	subject, err := persist(ctx, res)
	if err != nil {
		slog.ErrorContext(ctx, "persist failed, reconciling", "op", op, "agent_id", res.Subject.ID, "error", err)
		c.reconcileLocked(ctx, before, op, err)
		return Outcome{Status: StatusReverted, Roster: domainqueue.Classify(c.roster)}, fmt.Errorf("%s: %w", op, err)
	}

	stamp := c.now()
	c.lastWrite[subject.ID] = stamp
	for _, w := range res.Writes {
		if w.ID != 0 {
			c.lastWrite[w.ID] = stamp
		}
	}
	slog.DebugContext(ctx, "queue command persisted", "op", op, "agent_id", subject.ID, "writes", len(res.Writes))

	return Outcome{Status: StatusPersisted, Agent: &subject, Roster: domainqueue.Classify(c.roster)}, nil
}

// reconcileLocked refetches after a failed persist. If the refetch fails too,
// the pre-command roster is restored.
func (c *Coordinator) reconcileLocked(ctx context.Context, before domainqueue.Roster, op string, cause error) {
	agents, err := c.store.FetchAll(ctx)
	if err != nil {
		slog.ErrorContext(ctx, "refetch after failed persist", "op", op, "error", err)
		c.roster = before
	} else {
		c.roster = domainqueue.Roster(agents)
	}
	c.notifier.Broadcast(ctx, Message{Type: MessageError, Error: fmt.Sprintf("%s: %v", op, cause)})
	c.broadcastLocked(ctx)
}

func (c *Coordinator) persistInsert(ctx context.Context, res domainqueue.Result) (domainagent.Agent, error) {
	stored, err := c.store.Insert(ctx, res.Subject)
	if err != nil {
		return domainagent.Agent{}, err
	}
	c.roster = domainqueue.Rekey(c.roster, res.Subject.ID, stored)
	c.broadcastLocked(ctx)
	return stored, nil
}

func (c *Coordinator) persistWrites(ctx context.Context, res domainqueue.Result) (domainagent.Agent, error) {
	switch len(res.Writes) {
	case 0:
	case 1:
		if err := c.store.Update(ctx, res.Writes[0]); err != nil {
			return domainagent.Agent{}, err
		}
	default:
		if err := c.store.UpsertMany(ctx, res.Writes); err != nil {
			return domainagent.Agent{}, err
		}
	}
	return res.Subject, nil
}

func (c *Coordinator) persistDelete(ctx context.Context, res domainqueue.Result) (domainagent.Agent, error) {
	if err := c.store.Remove(ctx, res.Subject.ID); err != nil {
		return domainagent.Agent{}, err
	}
	if len(res.Writes) > 0 {
		if err := c.store.UpsertMany(ctx, res.Writes); err != nil {
			return domainagent.Agent{}, err
		}
	}
	return res.Subject, nil
}

// HandleChange merges one change from the feed. A change committed before
// this process last persisted the same agent is stale and dropped.
func (c *Coordinator) HandleChange(ctx context.Context, ch event.Change) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if last, ok := c.lastWrite[ch.AgentID]; ok && ch.CommittedAt.Before(last) {
		slog.DebugContext(ctx, "dropping stale change", "agent_id", ch.AgentID, "type", ch.Type)
		return
	}

	switch ch.Type {
	case event.TypeInsert, event.TypeUpdate:
		if ch.Agent == nil {
			slog.WarnContext(ctx, "change without record", "agent_id", ch.AgentID, "type", ch.Type)
			return
		}
		c.roster = domainqueue.ApplyRemoteUpsert(c.roster, *ch.Agent)
	case event.TypeDelete:
		if _, ok := c.roster.Find(ch.AgentID); !ok {
			return
		}
		c.roster = domainqueue.ApplyRemoteDelete(c.roster, ch.AgentID)
	default:
		slog.WarnContext(ctx, "unknown change type", "type", ch.Type)
		return
	}
	c.broadcastLocked(ctx)
}

func (c *Coordinator) noop() Outcome {
	return Outcome{Status: StatusNoop, Roster: c.Snapshot()}
}

func (c *Coordinator) broadcastLocked(ctx context.Context) {
	p := domainqueue.Classify(c.roster)
	c.notifier.Broadcast(ctx, Message{Type: MessageRoster, Roster: &p})
}

// IsRejection reports whether err is a queue rule rejection rather than a
// store failure.
func IsRejection(err error) bool {
	return errors.Is(err, domainqueue.ErrInvalidTransition) || errors.Is(err, domainqueue.ErrQueueEmpty)
}
