package postgres

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	_ "github.com/jackc/pgx/v5/stdlib"

	"github.com/covenantlabs/covenant/internal/core/domain"
)

// ContractStore reads structured contract metadata. Writes happen in the
// ingestion pipeline outside this service; the store only bootstraps the
// schema so a fresh database serves empty results instead of erroring.
type ContractStore struct {
	db *sql.DB
}

func NewContractStore(db *sql.DB) *ContractStore {
	return &ContractStore{db: db}
}

func OpenDB(dsn string) (*sql.DB, error) {
	db, err := sql.Open("pgx", dsn)
	if err != nil {
		return nil, fmt.Errorf("sql open: %w", err)
	}
	db.SetMaxOpenConns(10)
	db.SetMaxIdleConns(10)
	db.SetConnMaxLifetime(30 * time.Minute)

	if err := db.Ping(); err != nil {
		return nil, fmt.Errorf("db ping: %w", err)
	}
	return db, nil
}

func (s *ContractStore) EnsureSchema(ctx context.Context) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin schema tx: %w", err)
	}
	defer func() {
		_ = tx.Rollback()
	}()

	// Serialize bootstrap DDL across api/worker startups.
	if _, err := tx.ExecContext(ctx, `SELECT pg_advisory_xact_lock($1)`, int64(2026082501)); err != nil {
		return fmt.Errorf("acquire schema lock: %w", err)
	}

	const query = `
CREATE TABLE IF NOT EXISTS contracts (
	id TEXT PRIMARY KEY,
	filename TEXT NOT NULL,
	counterparty TEXT NOT NULL DEFAULT '',
	parties JSONB NOT NULL DEFAULT '[]'::jsonb,
	effective_date DATE,
	term_months INTEGER,
	survival_months INTEGER,
	governing_law TEXT,
	is_mutual BOOLEAN,
	source_uri TEXT NOT NULL DEFAULT '',
	status TEXT NOT NULL DEFAULT 'active',
	created_at TIMESTAMPTZ NOT NULL,
	updated_at TIMESTAMPTZ NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_contracts_effective_date ON contracts(effective_date);

CREATE TABLE IF NOT EXISTS contract_parties (
	document_id TEXT NOT NULL REFERENCES contracts(id) ON DELETE CASCADE,
	party_name TEXT NOT NULL,
	PRIMARY KEY (document_id, party_name)
);

CREATE TABLE IF NOT EXISTS contract_field_locations (
	document_id TEXT NOT NULL REFERENCES contracts(id) ON DELETE CASCADE,
	field TEXT NOT NULL,
	page_num INTEGER NOT NULL DEFAULT 0,
	span_start INTEGER NOT NULL DEFAULT 0,
	span_end INTEGER NOT NULL DEFAULT 0,
	source_uri TEXT NOT NULL DEFAULT '',
	PRIMARY KEY (document_id, field)
);

CREATE TABLE IF NOT EXISTS contract_texts (
	document_id TEXT PRIMARY KEY REFERENCES contracts(id) ON DELETE CASCADE,
	body TEXT NOT NULL
);
`
	if _, err := tx.ExecContext(ctx, query); err != nil {
		return fmt.Errorf("execute schema ddl: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit schema tx: %w", err)
	}
	return nil
}

const contractColumns = `id, filename, counterparty, parties, effective_date, term_months, survival_months, governing_law, is_mutual, source_uri, status, created_at, updated_at`

func (s *ContractStore) GetByID(ctx context.Context, id string) (*domain.ContractRecord, error) {
	row := s.db.QueryRowContext(ctx, `
SELECT `+contractColumns+`
FROM contracts
WHERE id = $1
`, id)

	rec, err := scanContract(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, domain.WrapError(domain.ErrDocumentNotFound, "get contract", fmt.Errorf("id %s", id))
		}
		return nil, fmt.Errorf("scan contract: %w", err)
	}
	return rec, nil
}

// GetField loads one structured field with its source location, when the
// ingestion pipeline recorded one. A stored contract with the field unset
// yields (nil, nil) so callers fall through to retrieval.
func (s *ContractStore) GetField(ctx context.Context, id, field string) (*domain.MetadataValue, error) {
	rec, err := s.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}

	value := fieldValue(rec, field)
	if value == nil {
		return nil, nil
	}

	loc, err := s.fieldLocation(ctx, id, field)
	if err != nil {
		return nil, err
	}
	value.Location = loc
	return value, nil
}

func (s *ContractStore) ListByEffectiveDateRange(ctx context.Context, dr domain.DateRange) ([]domain.ContractRecord, error) {
	rows, err := s.db.QueryContext(ctx, `
SELECT `+contractColumns+`
FROM contracts
WHERE effective_date IS NOT NULL AND effective_date >= $1 AND effective_date <= $2
ORDER BY effective_date ASC, id ASC
`, dr.Start, dr.End)
	if err != nil {
		return nil, fmt.Errorf("list contracts by effective date: %w", err)
	}
	defer rows.Close()

	out := make([]domain.ContractRecord, 0)
	for rows.Next() {
		rec, err := scanContract(rows)
		if err != nil {
			return nil, fmt.Errorf("scan listed contract: %w", err)
		}
		out = append(out, *rec)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate listed contracts: %w", err)
	}
	return out, nil
}

func (s *ContractStore) fieldLocation(ctx context.Context, id, field string) (*domain.FieldLocation, error) {
	row := s.db.QueryRowContext(ctx, `
SELECT page_num, span_start, span_end, source_uri
FROM contract_field_locations
WHERE document_id = $1 AND field = $2
`, id, field)

	var loc domain.FieldLocation
	err := row.Scan(&loc.PageNum, &loc.SpanStart, &loc.SpanEnd, &loc.SourceURI)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("scan field location: %w", err)
	}
	return &loc, nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanContract(row rowScanner) (*domain.ContractRecord, error) {
	var (
		rec        domain.ContractRecord
		partiesRaw []byte
		effective  sql.NullTime
		term       sql.NullInt64
		survival   sql.NullInt64
		law        sql.NullString
		mutual     sql.NullBool
		status     string
	)
	err := row.Scan(
		&rec.ID, &rec.Filename, &rec.Counterparty, &partiesRaw, &effective,
		&term, &survival, &law, &mutual, &rec.SourceURI, &status,
		&rec.CreatedAt, &rec.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}

	if len(partiesRaw) > 0 {
		if err := json.Unmarshal(partiesRaw, &rec.Parties); err != nil {
			return nil, fmt.Errorf("unmarshal parties: %w", err)
		}
	}
	if effective.Valid {
		t := effective.Time
		rec.EffectiveDate = &t
	}
	if term.Valid {
		v := int(term.Int64)
		rec.TermMonths = &v
	}
	if survival.Valid {
		v := int(survival.Int64)
		rec.SurvivalMonths = &v
	}
	rec.GoverningLaw = law.String
	if mutual.Valid {
		v := mutual.Bool
		rec.IsMutual = &v
	}
	rec.Status = domain.ContractStatus(status)
	return &rec, nil
}

func fieldValue(rec *domain.ContractRecord, field string) *domain.MetadataValue {
	switch field {
	case domain.FieldEffectiveDate:
		if rec.EffectiveDate == nil {
			return nil
		}
		return &domain.MetadataValue{Field: field, Date: rec.EffectiveDate}
	case domain.FieldGoverningLaw:
		if rec.GoverningLaw == "" {
			return nil
		}
		return &domain.MetadataValue{Field: field, Text: rec.GoverningLaw}
	case domain.FieldTermMonths:
		if rec.TermMonths == nil {
			return nil
		}
		return &domain.MetadataValue{Field: field, Months: rec.TermMonths}
	case domain.FieldIsMutual:
		if rec.IsMutual == nil {
			return nil
		}
		return &domain.MetadataValue{Field: field, Bool: rec.IsMutual}
	case domain.FieldParties:
		if len(rec.Parties) == 0 {
			return nil
		}
		return &domain.MetadataValue{Field: field, List: rec.Parties}
	default:
		return nil
	}
}
