package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	lru "github.com/hashicorp/golang-lru/v2"

	"github.com/covenantlabs/covenant/internal/core/domain"
)

const defaultExcerptCacheSize = 128

// Directory serves the naming surfaces entity resolution scans: party names,
// filenames, and the leading text window used by location-intent probes. The
// probe window is cached because re-ranking hits the same few documents on
// every location question.
type Directory struct {
	db       *sql.DB
	excerpts *lru.Cache[string, string]
}

func NewDirectory(db *sql.DB, cacheSize int) (*Directory, error) {
	if cacheSize <= 0 {
		cacheSize = defaultExcerptCacheSize
	}
	cache, err := lru.New[string, string](cacheSize)
	if err != nil {
		return nil, fmt.Errorf("excerpt cache: %w", err)
	}
	return &Directory{db: db, excerpts: cache}, nil
}

func (d *Directory) ListParties(ctx context.Context) ([]domain.PartyRecord, error) {
	rows, err := d.db.QueryContext(ctx, `
SELECT document_id, party_name
FROM contract_parties
ORDER BY document_id ASC, party_name ASC
`)
	if err != nil {
		return nil, fmt.Errorf("list parties: %w", err)
	}
	defer rows.Close()

	out := make([]domain.PartyRecord, 0)
	for rows.Next() {
		var rec domain.PartyRecord
		if err := rows.Scan(&rec.DocumentID, &rec.PartyName); err != nil {
			return nil, fmt.Errorf("scan party: %w", err)
		}
		out = append(out, rec)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate parties: %w", err)
	}
	return out, nil
}

func (d *Directory) ListFilenames(ctx context.Context) ([]domain.FileRecord, error) {
	rows, err := d.db.QueryContext(ctx, `
SELECT id, filename
FROM contracts
ORDER BY id ASC
`)
	if err != nil {
		return nil, fmt.Errorf("list filenames: %w", err)
	}
	defer rows.Close()

	out := make([]domain.FileRecord, 0)
	for rows.Next() {
		var rec domain.FileRecord
		if err := rows.Scan(&rec.DocumentID, &rec.Filename); err != nil {
			return nil, fmt.Errorf("scan filename: %w", err)
		}
		out = append(out, rec)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate filenames: %w", err)
	}
	return out, nil
}

// DocumentExcerpt returns the first maxLen characters of the extracted text.
// NDA address blocks sit on the first page, so a bounded prefix is enough for
// the location probes.
func (d *Directory) DocumentExcerpt(ctx context.Context, documentID string, maxLen int) (string, error) {
	if maxLen <= 0 {
		return "", nil
	}

	key := fmt.Sprintf("%s:%d", documentID, maxLen)
	if cached, ok := d.excerpts.Get(key); ok {
		return cached, nil
	}

	var excerpt string
	err := d.db.QueryRowContext(ctx, `
SELECT substring(body FROM 1 FOR $2)
FROM contract_texts
WHERE document_id = $1
`, documentID, maxLen).Scan(&excerpt)
	if errors.Is(err, sql.ErrNoRows) {
		return "", domain.WrapError(domain.ErrDocumentNotFound, "document excerpt", fmt.Errorf("id %s", documentID))
	}
	if err != nil {
		return "", fmt.Errorf("read document excerpt: %w", err)
	}

	d.excerpts.Add(key, excerpt)
	return excerpt, nil
}
