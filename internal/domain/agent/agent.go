package agent

import (
	"strings"
	"time"
)

// Partition is derived from (Available, InSession) and never stored.
type Partition string

const (
	PartitionQueued Partition = "queued"
	PartitionBusy   Partition = "busy"
	PartitionPaused Partition = "paused"
)

const (
	maxNameLen    = 120
	maxContactLen = 40
)

// Agent is the persisted record. JSON keys are the external contract shared
// with the atendentes table and the dashboard.
type Agent struct {
	ID               int64      `json:"id"`
	Name             string     `json:"nome"`
	ContactNumber    string     `json:"numero"`
	Available        bool       `json:"status"`
	InSession        bool       `json:"em_atendimento"`
	ClientName       *string    `json:"cliente_nome"`
	ClientContact    *string    `json:"cliente_numero"`
	QueuePosition    int        `json:"posicao_fila"`
	SessionStartedAt *time.Time `json:"inicio_atendimento"`
	SessionEndedAt   *time.Time `json:"fim_atendimento"`
}

// Partition reports which of the three partitions the agent belongs to.
// InSession wins over Available.
func (a Agent) Partition() Partition {
	switch {
	case a.InSession:
		return PartitionBusy
	case a.Available:
		return PartitionQueued
	default:
		return PartitionPaused
	}
}

func (a Agent) IsQueued() bool { return a.Partition() == PartitionQueued }
func (a Agent) IsBusy() bool   { return a.Partition() == PartitionBusy }

// Fields is a partial create/edit payload. Nil fields are left untouched.
type Fields struct {
	Name          *string `json:"nome"`
	ContactNumber *string `json:"numero"`
	Available     *bool   `json:"status"`
}

// Validate checks the payload. Name is mandatory when create is true.
func (f Fields) Validate(create bool) error {
	if f.Name == nil {
		if create {
			return &ValidationError{Field: "nome", Reason: "is required"}
		}
	} else {
		name := strings.TrimSpace(*f.Name)
		if name == "" {
			return &ValidationError{Field: "nome", Reason: "must not be empty"}
		}
		if len(name) > maxNameLen {
			return &ValidationError{Field: "nome", Reason: "is too long"}
		}
	}
	if f.ContactNumber != nil && len(strings.TrimSpace(*f.ContactNumber)) > maxContactLen {
		return &ValidationError{Field: "numero", Reason: "is too long"}
	}
	return nil
}

// Apply copies the set fields onto a, trimming strings. Available is not
// applied here; partition moves go through the queue engine.
func (f Fields) Apply(a *Agent) {
	if f.Name != nil {
		a.Name = strings.TrimSpace(*f.Name)
	}
	if f.ContactNumber != nil {
		a.ContactNumber = strings.TrimSpace(*f.ContactNumber)
	}
}

// SessionStart is the client data supplied when an agent is dispatched.
type SessionStart struct {
	ClientName    string `json:"cliente_nome"`
	ClientContact string `json:"cliente_numero"`
}

func (s SessionStart) Validate() error {
	if strings.TrimSpace(s.ClientName) == "" {
		return &ValidationError{Field: "cliente_nome", Reason: "is required"}
	}
	if len(strings.TrimSpace(s.ClientContact)) > maxContactLen {
		return &ValidationError{Field: "cliente_numero", Reason: "is too long"}
	}
	return nil
}

// ByID indexes a slice of agents by id.
func ByID(agents []Agent) map[int64]Agent {
	out := make(map[int64]Agent, len(agents))
	for _, a := range agents {
		out[a.ID] = a
	}
	return out
}
