package agent

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	domainagent "github.com/alanyang/agent-queue/internal/domain/agent"
	portagent "github.com/alanyang/agent-queue/internal/port/agent"
)

var _ portagent.Store = (*Repository)(nil)

const columns = `id, nome, numero, status, em_atendimento, cliente_nome, cliente_numero,
	posicao_fila, inicio_atendimento, fim_atendimento`

const upsertQuery = `
	INSERT INTO atendentes (` + columns + `)
	VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10)
	ON CONFLICT (id) DO UPDATE SET
		nome = EXCLUDED.nome,
		numero = EXCLUDED.numero,
		status = EXCLUDED.status,
		em_atendimento = EXCLUDED.em_atendimento,
		cliente_nome = EXCLUDED.cliente_nome,
		cliente_numero = EXCLUDED.cliente_numero,
		posicao_fila = EXCLUDED.posicao_fila,
		inicio_atendimento = EXCLUDED.inicio_atendimento,
		fim_atendimento = EXCLUDED.fim_atendimento`

type Repository struct {
	pool *pgxpool.Pool
}

func New(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool}
}

func (r *Repository) FetchAll(ctx context.Context) ([]domainagent.Agent, error) {
	rows, err := r.pool.Query(ctx, `SELECT `+columns+` FROM atendentes ORDER BY id`)
	if err != nil {
		return nil, translate("listing agents", err)
	}
	defer rows.Close()

	agents := []domainagent.Agent{}
	for rows.Next() {
		a, err := scan(rows)
		if err != nil {
			return nil, translate("scanning agent row", err)
		}
		agents = append(agents, a)
	}
	if err := rows.Err(); err != nil {
		return nil, translate("listing agents", err)
	}
	return agents, nil
}

func (r *Repository) Insert(ctx context.Context, a domainagent.Agent) (domainagent.Agent, error) {
	query := `
		INSERT INTO atendentes (nome, numero, status, em_atendimento, cliente_nome, cliente_numero,
			posicao_fila, inicio_atendimento, fim_atendimento)
		VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9)
		RETURNING ` + columns

	created, err := scan(r.pool.QueryRow(ctx, query,
		a.Name, a.ContactNumber, a.Available, a.InSession, a.ClientName, a.ClientContact,
		a.QueuePosition, a.SessionStartedAt, a.SessionEndedAt,
	))
	if err != nil {
		return domainagent.Agent{}, translate("inserting agent", err)
	}
	return created, nil
}

func (r *Repository) Update(ctx context.Context, a domainagent.Agent) error {
	query := `
		UPDATE atendentes SET
			nome = $2, numero = $3, status = $4, em_atendimento = $5,
			cliente_nome = $6, cliente_numero = $7, posicao_fila = $8,
			inicio_atendimento = $9, fim_atendimento = $10
		WHERE id = $1`

	tag, err := r.pool.Exec(ctx, query, args(a)...)
	if err != nil {
		return translate("updating agent", err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("updating agent %d: %w", a.ID, domainagent.ErrNotFound)
	}
	return nil
}

// UpsertMany sends one batch; pgx runs a batch in an implicit transaction, so
// a resequence lands all-or-nothing.
func (r *Repository) UpsertMany(ctx context.Context, agents []domainagent.Agent) error {
	if len(agents) == 0 {
		return nil
	}
	batch := &pgx.Batch{}
	for _, a := range agents {
		batch.Queue(upsertQuery, args(a)...)
	}

	br := r.pool.SendBatch(ctx, batch)
	for range agents {
		if _, err := br.Exec(); err != nil {
			br.Close()
			return translate("upserting agents", err)
		}
	}
	if err := br.Close(); err != nil {
		return translate("upserting agents", err)
	}
	return nil
}

func (r *Repository) Remove(ctx context.Context, id int64) error {
	tag, err := r.pool.Exec(ctx, `DELETE FROM atendentes WHERE id = $1`, id)
	if err != nil {
		return translate("removing agent", err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("removing agent %d: %w", id, domainagent.ErrNotFound)
	}
	return nil
}

func args(a domainagent.Agent) []any {
	return []any{
		a.ID, a.Name, a.ContactNumber, a.Available, a.InSession,
		a.ClientName, a.ClientContact, a.QueuePosition,
		a.SessionStartedAt, a.SessionEndedAt,
	}
}

func scan(row pgx.Row) (domainagent.Agent, error) {
	var a domainagent.Agent
	err := row.Scan(
		&a.ID, &a.Name, &a.ContactNumber, &a.Available, &a.InSession,
		&a.ClientName, &a.ClientContact, &a.QueuePosition,
		&a.SessionStartedAt, &a.SessionEndedAt,
	)
	return a, err
}

// translate maps driver errors onto the store error taxonomy.
func translate(op string, err error) error {
	if errors.Is(err, pgx.ErrNoRows) {
		return fmt.Errorf("%s: %w", op, domainagent.ErrNotFound)
	}
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) && len(pgErr.Code) >= 2 && pgErr.Code[:2] == "23" {
		field := pgErr.ColumnName
		if field == "" {
			field = pgErr.ConstraintName
		}
		return fmt.Errorf("%s: %w", op, &domainagent.ValidationError{Field: field, Reason: pgErr.Message})
	}
	return fmt.Errorf("%s: %w: %w", op, domainagent.ErrStoreUnavailable, err)
}
