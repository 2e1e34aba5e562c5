package store

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/rotisserie/eris"

	"github.com/sells-group/leadflow/internal/db"
	"github.com/sells-group/leadflow/internal/model"
)

// PostgresStore implements Store using pgxpool.
type PostgresStore struct {
	pool    db.Pool
	closeFn func()
}

// PoolConfig holds optional connection pool tuning parameters.
type PoolConfig struct {
	MaxConns int32 `yaml:"max_conns" mapstructure:"max_conns"`
	MinConns int32 `yaml:"min_conns" mapstructure:"min_conns"`
}

// preparedStatements lists queries to prepare on each new connection for
// faster execution of the hot-path store operations.
var preparedStatements = map[string]string{
	"insert_lead": `INSERT INTO leads
		(id, company, industry, employee_count, annual_budget, source, location, email, phone, website, description, status, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13)`,
	"get_lead": `SELECT id, company, industry, employee_count, annual_budget, source, location, email, phone, website, description, status, created_at
		FROM leads WHERE id = $1`,
	"update_lead_status": `UPDATE leads SET status = $1 WHERE id = $2`,
	"insert_decision": `INSERT INTO decisions (id, lead_id, tier, score, handler_class, payload, decided_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7)`,
	"get_latest_decision": `SELECT payload FROM decisions WHERE lead_id = $1 ORDER BY decided_at DESC LIMIT 1`,
}

// NewPostgres creates a PostgresStore with a connection pool.
func NewPostgres(ctx context.Context, connString string, poolCfg *PoolConfig) (*PostgresStore, error) {
	pgxCfg, err := pgxpool.ParseConfig(connString)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: parse config")
	}

	maxConns := int32(10)
	minConns := int32(2)
	if poolCfg != nil {
		if poolCfg.MaxConns > 0 {
			maxConns = poolCfg.MaxConns
		}
		if poolCfg.MinConns > 0 {
			minConns = poolCfg.MinConns
		}
	}
	pgxCfg.MaxConns = maxConns
	pgxCfg.MinConns = minConns
	pgxCfg.MaxConnLifetime = 30 * time.Minute
	pgxCfg.MaxConnIdleTime = 5 * time.Minute

	pgxCfg.AfterConnect = func(ctx context.Context, conn *pgx.Conn) error {
		for name, sql := range preparedStatements {
			if _, err := conn.Prepare(ctx, name, sql); err != nil {
				return eris.Wrapf(err, "postgres: prepare %s", name)
			}
		}
		return nil
	}

	pool, err := pgxpool.NewWithConfig(ctx, pgxCfg)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: create pool")
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, eris.Wrap(err, "postgres: ping")
	}
	return &PostgresStore{pool: pool, closeFn: pool.Close}, nil
}

// Pool returns the underlying database pool for subsystems that need direct
// query access (e.g., bulk import).
func (s *PostgresStore) Pool() db.Pool {
	return s.pool
}

const postgresMigration = `
CREATE TABLE IF NOT EXISTS leads (
	id             TEXT PRIMARY KEY DEFAULT gen_random_uuid()::text,
	company        TEXT NOT NULL,
	industry       TEXT NOT NULL DEFAULT '',
	employee_count INTEGER NOT NULL DEFAULT 0,
	annual_budget  DOUBLE PRECISION NOT NULL DEFAULT 0,
	source         TEXT NOT NULL DEFAULT '',
	location       TEXT NOT NULL DEFAULT '',
	email          TEXT NOT NULL DEFAULT '',
	phone          TEXT NOT NULL DEFAULT '',
	website        TEXT NOT NULL DEFAULT '',
	description    TEXT NOT NULL DEFAULT '',
	status         TEXT NOT NULL DEFAULT 'new',
	created_at     TIMESTAMPTZ NOT NULL DEFAULT now()
);

CREATE TABLE IF NOT EXISTS decisions (
	id            TEXT PRIMARY KEY DEFAULT gen_random_uuid()::text,
	lead_id       TEXT NOT NULL REFERENCES leads(id),
	tier          TEXT NOT NULL,
	score         INTEGER NOT NULL,
	handler_class TEXT NOT NULL,
	payload       JSONB NOT NULL,
	decided_at    TIMESTAMPTZ NOT NULL DEFAULT now()
);

CREATE INDEX IF NOT EXISTS idx_leads_status ON leads(status);
CREATE UNIQUE INDEX IF NOT EXISTS idx_leads_email ON leads(email) WHERE email <> '';
CREATE INDEX IF NOT EXISTS idx_leads_source ON leads(source);
CREATE INDEX IF NOT EXISTS idx_decisions_lead_id ON decisions(lead_id);
CREATE INDEX IF NOT EXISTS idx_decisions_tier ON decisions(tier);
CREATE INDEX IF NOT EXISTS idx_decisions_lead_decided ON decisions(lead_id, decided_at DESC);
`

func (s *PostgresStore) Ping(ctx context.Context) error {
	_, err := s.pool.Exec(ctx, "SELECT 1")
	return eris.Wrap(err, "postgres: ping")
}

func (s *PostgresStore) Migrate(ctx context.Context) error {
	_, err := s.pool.Exec(ctx, postgresMigration)
	return eris.Wrap(err, "postgres: migrate")
}

func (s *PostgresStore) Close() error {
	if s.closeFn != nil {
		s.closeFn()
	}
	return nil
}

var leadColumns = []string{
	"id", "company", "industry", "employee_count", "annual_budget",
	"source", "location", "email", "phone", "website",
	"description", "status", "created_at",
}

func (s *PostgresStore) CreateLead(ctx context.Context, lead model.Lead) (*model.Lead, error) {
	prepareLead(&lead)

	_, err := s.pool.Exec(ctx,
		`INSERT INTO leads
		 (id, company, industry, employee_count, annual_budget, source, location, email, phone, website, description, status, created_at)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13)`,
		lead.ID, lead.Company, lead.Industry, lead.EmployeeCount, lead.AnnualBudget,
		lead.Source, lead.Location, lead.Email, lead.Phone, lead.Website,
		lead.Description, string(lead.Status), lead.CreatedAt,
	)
	if err != nil {
		return nil, eris.Wrapf(err, "postgres: insert lead %s", lead.Company)
	}
	return &lead, nil
}

// BulkCreateLeads loads leads via the COPY protocol.
func (s *PostgresStore) BulkCreateLeads(ctx context.Context, leads []model.Lead) (int, error) {
	if len(leads) == 0 {
		return 0, nil
	}

	rows := make([][]any, len(leads))
	for i := range leads {
		lead := leads[i]
		prepareLead(&lead)
		rows[i] = []any{
			lead.ID, lead.Company, lead.Industry, lead.EmployeeCount, lead.AnnualBudget,
			lead.Source, lead.Location, lead.Email, lead.Phone, lead.Website,
			lead.Description, string(lead.Status), lead.CreatedAt,
		}
	}

	n, err := db.CopyInto(ctx, s.pool, "leads", leadColumns, rows)
	if err != nil {
		return 0, eris.Wrap(err, "postgres: bulk create leads")
	}
	return int(n), nil
}

// upsertUpdateCols excludes id, email, status, and created_at: re-importing a
// broker file refreshes firmographics without resetting pipeline state.
var upsertUpdateCols = []string{
	"company", "industry", "employee_count", "annual_budget",
	"source", "location", "phone", "website", "description",
}

// UpsertLeads loads leads keyed on email, updating firmographic fields for
// leads already present. Re-importing the same broker file is idempotent.
// Leads without an email fall outside the unique index and always insert.
func (s *PostgresStore) UpsertLeads(ctx context.Context, leads []model.Lead) (int, error) {
	if len(leads) == 0 {
		return 0, nil
	}

	rows := make([][]any, len(leads))
	for i := range leads {
		lead := leads[i]
		prepareLead(&lead)
		rows[i] = []any{
			lead.ID, lead.Company, lead.Industry, lead.EmployeeCount, lead.AnnualBudget,
			lead.Source, lead.Location, lead.Email, lead.Phone, lead.Website,
			lead.Description, string(lead.Status), lead.CreatedAt,
		}
	}

	n, err := db.BulkUpsert(ctx, s.pool, db.UpsertConfig{
		Table:         "leads",
		Columns:       leadColumns,
		ConflictKeys:  []string{"email"},
		ConflictWhere: "email <> ''",
		UpdateCols:    upsertUpdateCols,
	}, rows)
	if err != nil {
		return 0, eris.Wrap(err, "postgres: upsert leads")
	}
	return int(n), nil
}

func (s *PostgresStore) GetLead(ctx context.Context, leadID string) (*model.Lead, error) {
	var l model.Lead
	var status string

	err := s.pool.QueryRow(ctx,
		`SELECT id, company, industry, employee_count, annual_budget, source, location, email, phone, website, description, status, created_at
		 FROM leads WHERE id = $1`,
		leadID,
	).Scan(&l.ID, &l.Company, &l.Industry, &l.EmployeeCount, &l.AnnualBudget,
		&l.Source, &l.Location, &l.Email, &l.Phone, &l.Website,
		&l.Description, &status, &l.CreatedAt)
	if err != nil {
		return nil, eris.Wrapf(err, "postgres: get lead %s", leadID)
	}
	l.Status = model.LeadStatus(status)
	return &l, nil
}

func (s *PostgresStore) ListLeads(ctx context.Context, filter LeadFilter) ([]model.Lead, error) {
	query := `SELECT id, company, industry, employee_count, annual_budget, source, location, email, phone, website, description, status, created_at
	          FROM leads WHERE true`
	args := []any{}
	argIdx := 1

	if filter.Status != "" {
		query += fmt.Sprintf(` AND status = $%d`, argIdx)
		args = append(args, string(filter.Status))
		argIdx++
	}
	if filter.Source != "" {
		query += fmt.Sprintf(` AND source = $%d`, argIdx)
		args = append(args, filter.Source)
		argIdx++
	}
	query += ` ORDER BY created_at DESC`

	limit := filter.Limit
	if limit <= 0 {
		limit = 100
	}
	query += fmt.Sprintf(` LIMIT $%d`, argIdx)
	args = append(args, limit)
	argIdx++

	if filter.Offset > 0 {
		query += fmt.Sprintf(` OFFSET $%d`, argIdx)
		args = append(args, filter.Offset)
		argIdx++
	}

	rows, err := s.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: list leads")
	}
	defer rows.Close()

	var leads []model.Lead
	for rows.Next() {
		var l model.Lead
		var status string
		if err := rows.Scan(&l.ID, &l.Company, &l.Industry, &l.EmployeeCount, &l.AnnualBudget,
			&l.Source, &l.Location, &l.Email, &l.Phone, &l.Website,
			&l.Description, &status, &l.CreatedAt); err != nil {
			return nil, eris.Wrap(err, "postgres: scan lead")
		}
		l.Status = model.LeadStatus(status)
		leads = append(leads, l)
	}
	return leads, eris.Wrap(rows.Err(), "postgres: list leads iterate")
}

func (s *PostgresStore) UpdateLeadStatus(ctx context.Context, leadID string, status model.LeadStatus) error {
	tag, err := s.pool.Exec(ctx,
		`UPDATE leads SET status = $1 WHERE id = $2`,
		string(status), leadID,
	)
	if err != nil {
		return eris.Wrapf(err, "postgres: update lead status %s", leadID)
	}
	if tag.RowsAffected() == 0 {
		return eris.Errorf("lead not found: %s", leadID)
	}
	return nil
}

func (s *PostgresStore) SaveDecision(ctx context.Context, decision model.Decision) (*model.Decision, error) {
	prepareDecision(&decision)

	payload, err := json.Marshal(decision)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: marshal decision")
	}

	_, err = s.pool.Exec(ctx,
		`INSERT INTO decisions (id, lead_id, tier, score, handler_class, payload, decided_at)
		 VALUES ($1, $2, $3, $4, $5, $6, $7)`,
		decision.ID, decision.LeadID, string(decision.Qualification.Tier), decision.Scored.Score,
		string(decision.Routing.HandlerClass), payload, decision.DecidedAt,
	)
	if err != nil {
		return nil, eris.Wrapf(err, "postgres: insert decision for lead %s", decision.LeadID)
	}
	return &decision, nil
}

func (s *PostgresStore) GetLatestDecision(ctx context.Context, leadID string) (*model.Decision, error) {
	var payload []byte
	err := s.pool.QueryRow(ctx,
		`SELECT payload FROM decisions WHERE lead_id = $1 ORDER BY decided_at DESC LIMIT 1`,
		leadID,
	).Scan(&payload)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, eris.Wrapf(err, "postgres: get latest decision %s", leadID)
	}

	var d model.Decision
	if err := json.Unmarshal(payload, &d); err != nil {
		return nil, eris.Wrap(err, "postgres: unmarshal decision")
	}
	return &d, nil
}

func (s *PostgresStore) ListDecisions(ctx context.Context, filter DecisionFilter) ([]model.Decision, error) {
	query := `SELECT payload FROM decisions WHERE true`
	args := []any{}
	argIdx := 1

	if filter.Tier != "" {
		query += fmt.Sprintf(` AND tier = $%d`, argIdx)
		args = append(args, string(filter.Tier))
		argIdx++
	}
	if filter.LeadID != "" {
		query += fmt.Sprintf(` AND lead_id = $%d`, argIdx)
		args = append(args, filter.LeadID)
		argIdx++
	}
	if !filter.DecidedAfter.IsZero() {
		query += fmt.Sprintf(` AND decided_at > $%d`, argIdx)
		args = append(args, filter.DecidedAfter)
		argIdx++
	}
	query += ` ORDER BY decided_at DESC`

	limit := filter.Limit
	if limit <= 0 {
		limit = 100
	}
	query += fmt.Sprintf(` LIMIT $%d`, argIdx)
	args = append(args, limit)

	rows, err := s.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: list decisions")
	}
	defer rows.Close()

	var decisions []model.Decision
	for rows.Next() {
		var payload []byte
		if err := rows.Scan(&payload); err != nil {
			return nil, eris.Wrap(err, "postgres: scan decision")
		}
		var d model.Decision
		if err := json.Unmarshal(payload, &d); err != nil {
			return nil, eris.Wrap(err, "postgres: unmarshal decision")
		}
		decisions = append(decisions, d)
	}
	return decisions, eris.Wrap(rows.Err(), "postgres: list decisions iterate")
}

func (s *PostgresStore) CountLeadsByStatus(ctx context.Context) (map[model.LeadStatus]int, error) {
	rows, err := s.pool.Query(ctx, `SELECT status, COUNT(*) FROM leads GROUP BY status`)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: count leads by status")
	}
	defer rows.Close()

	counts := make(map[model.LeadStatus]int)
	for rows.Next() {
		var status string
		var n int
		if err := rows.Scan(&status, &n); err != nil {
			return nil, eris.Wrap(err, "postgres: scan status count")
		}
		counts[model.LeadStatus(status)] = n
	}
	return counts, eris.Wrap(rows.Err(), "postgres: count leads iterate")
}

func (s *PostgresStore) CountDecisionsByTier(ctx context.Context) (map[model.Tier]int, error) {
	rows, err := s.pool.Query(ctx, `SELECT tier, COUNT(*) FROM decisions GROUP BY tier`)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: count decisions by tier")
	}
	defer rows.Close()

	counts := make(map[model.Tier]int)
	for rows.Next() {
		var tier string
		var n int
		if err := rows.Scan(&tier, &n); err != nil {
			return nil, eris.Wrap(err, "postgres: scan tier count")
		}
		counts[model.Tier(tier)] = n
	}
	return counts, eris.Wrap(rows.Err(), "postgres: count decisions iterate")
}
