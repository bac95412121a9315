package sqlite

import (
	"context"
	"errors"
	"fmt"
	"time"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	domainagent "github.com/alanyang/agent-queue/internal/domain/agent"
	"github.com/alanyang/agent-queue/internal/domain/event"
	portagent "github.com/alanyang/agent-queue/internal/port/agent"
)

var _ portagent.Store = (*Store)(nil)

// Publisher receives every committed change. memory.Feed satisfies it.
type Publisher interface {
	Publish(c event.Change)
}

type agentRow struct {
	ID                int64      `gorm:"column:id;primaryKey;autoIncrement"`
	Nome              string     `gorm:"column:nome;not null"`
	Numero            string     `gorm:"column:numero;not null;default:''"`
	Status            bool       `gorm:"column:status;not null"`
	EmAtendimento     bool       `gorm:"column:em_atendimento;not null"`
	ClienteNome       *string    `gorm:"column:cliente_nome"`
	ClienteNumero     *string    `gorm:"column:cliente_numero"`
	PosicaoFila       int        `gorm:"column:posicao_fila;not null;default:0;index"`
	InicioAtendimento *time.Time `gorm:"column:inicio_atendimento"`
	FimAtendimento    *time.Time `gorm:"column:fim_atendimento"`
}

func (agentRow) TableName() string { return "atendentes" }

func toRow(a domainagent.Agent) agentRow {
	return agentRow{
		ID:                a.ID,
		Nome:              a.Name,
		Numero:            a.ContactNumber,
		Status:            a.Available,
		EmAtendimento:     a.InSession,
		ClienteNome:       a.ClientName,
		ClienteNumero:     a.ClientContact,
		PosicaoFila:       a.QueuePosition,
		InicioAtendimento: utc(a.SessionStartedAt),
		FimAtendimento:    utc(a.SessionEndedAt),
	}
}

func (r agentRow) toAgent() domainagent.Agent {
	return domainagent.Agent{
		ID:               r.ID,
		Name:             r.Nome,
		ContactNumber:    r.Numero,
		Available:        r.Status,
		InSession:        r.EmAtendimento,
		ClientName:       r.ClienteNome,
		ClientContact:    r.ClienteNumero,
		QueuePosition:    r.PosicaoFila,
		SessionStartedAt: utc(r.InicioAtendimento),
		SessionEndedAt:   utc(r.FimAtendimento),
	}
}

func utc(t *time.Time) *time.Time {
	if t == nil {
		return nil
	}
	u := t.UTC()
	return &u
}

type Store struct {
	db  *gorm.DB
	pub Publisher
}

// New wraps db. pub may be nil when nobody needs the change feed.
func New(db *gorm.DB, pub Publisher) *Store {
	return &Store{db: db, pub: pub}
}

func (s *Store) publish(c event.Change) {
	if s.pub != nil {
		s.pub.Publish(c)
	}
}

func (s *Store) FetchAll(ctx context.Context) ([]domainagent.Agent, error) {
	var rows []agentRow
	if err := s.db.WithContext(ctx).Order("id").Find(&rows).Error; err != nil {
		return nil, translate("listing agents", err)
	}
	agents := make([]domainagent.Agent, 0, len(rows))
	for _, r := range rows {
		agents = append(agents, r.toAgent())
	}
	return agents, nil
}

func (s *Store) Insert(ctx context.Context, a domainagent.Agent) (domainagent.Agent, error) {
	row := toRow(a)
	row.ID = 0
	if err := s.db.WithContext(ctx).Create(&row).Error; err != nil {
		return domainagent.Agent{}, translate("inserting agent", err)
	}
	created := row.toAgent()
	s.publish(event.NewUpsert(event.TypeInsert, created))
	return created, nil
}

func (s *Store) Update(ctx context.Context, a domainagent.Agent) error {
	row := toRow(a)
	res := s.db.WithContext(ctx).Model(&agentRow{}).Where("id = ?", a.ID).Select("*").Omit("id").Updates(&row)
	if res.Error != nil {
		return translate("updating agent", res.Error)
	}
	if res.RowsAffected == 0 {
		return fmt.Errorf("updating agent %d: %w", a.ID, domainagent.ErrNotFound)
	}
	s.publish(event.NewUpsert(event.TypeUpdate, row.toAgent()))
	return nil
}

// UpsertMany writes every record in a single transaction.
func (s *Store) UpsertMany(ctx context.Context, agents []domainagent.Agent) error {
	if len(agents) == 0 {
		return nil
	}
	rows := make([]agentRow, 0, len(agents))
	for _, a := range agents {
		rows = append(rows, toRow(a))
	}
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		return tx.Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "id"}},
			UpdateAll: true,
		}).Create(&rows).Error
	})
	if err != nil {
		return translate("upserting agents", err)
	}
	for _, r := range rows {
		s.publish(event.NewUpsert(event.TypeUpdate, r.toAgent()))
	}
	return nil
}

func (s *Store) Remove(ctx context.Context, id int64) error {
	res := s.db.WithContext(ctx).Delete(&agentRow{}, id)
	if res.Error != nil {
		return translate("removing agent", res.Error)
	}
	if res.RowsAffected == 0 {
		return fmt.Errorf("removing agent %d: %w", id, domainagent.ErrNotFound)
	}
	s.publish(event.NewDelete(id))
	return nil
}

func translate(op string, err error) error {
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return fmt.Errorf("%s: %w", op, domainagent.ErrNotFound)
	}
	return fmt.Errorf("%s: %w: %w", op, domainagent.ErrStoreUnavailable, err)
}
