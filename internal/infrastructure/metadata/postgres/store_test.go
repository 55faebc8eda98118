package postgres

import (
	"context"
	"database/sql"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"

	"github.com/covenantlabs/covenant/internal/core/domain"
)

func newStoreWithMock(t *testing.T) (*ContractStore, sqlmock.Sqlmock, func()) {
	t.Helper()
	db, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("sqlmock.New() error = %v", err)
	}
	return &ContractStore{db: db}, mock, func() { _ = db.Close() }
}

func contractColumnsList() []string {
	return []string{
		"id", "filename", "counterparty", "parties", "effective_date",
		"term_months", "survival_months", "governing_law", "is_mutual",
		"source_uri", "status", "created_at", "updated_at",
	}
}

func TestGetByIDScansNullableFields(t *testing.T) {
	store, mock, done := newStoreWithMock(t)
	defer done()

	now := time.Date(2025, time.March, 1, 10, 0, 0, 0, time.UTC)
	eff := time.Date(2025, time.January, 15, 0, 0, 0, 0, time.UTC)
	rows := sqlmock.NewRows(contractColumnsList()).AddRow(
		"doc-1", "vallen_nda.pdf", "Vallen Distribution", []byte(`["Acme Corp","Vallen Distribution, Inc."]`),
		eff, int64(24), nil, "Texas", true, "s3://ndas/doc-1.pdf", "active", now, now,
	)
	mock.ExpectQuery("SELECT id, filename, counterparty, parties").
		WithArgs("doc-1").
		WillReturnRows(rows)

	rec, err := store.GetByID(context.Background(), "doc-1")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if rec.EffectiveDate == nil || !rec.EffectiveDate.Equal(eff) {
		t.Fatalf("effective date = %v, want %v", rec.EffectiveDate, eff)
	}
	if rec.TermMonths == nil || *rec.TermMonths != 24 {
		t.Fatalf("term months = %v, want 24", rec.TermMonths)
	}
	if rec.SurvivalMonths != nil {
		t.Fatalf("survival months should stay nil for NULL, got %v", *rec.SurvivalMonths)
	}
	if rec.IsMutual == nil || !*rec.IsMutual {
		t.Fatalf("is_mutual = %v, want true", rec.IsMutual)
	}
	if len(rec.Parties) != 2 || rec.Parties[1] != "Vallen Distribution, Inc." {
		t.Fatalf("parties = %v", rec.Parties)
	}
	if rec.Status != domain.ContractActive {
		t.Fatalf("status = %q", rec.Status)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("expectations: %v", err)
	}
}

func TestGetByIDReturnsDomainNotFound(t *testing.T) {
	store, mock, done := newStoreWithMock(t)
	defer done()

	mock.ExpectQuery("SELECT id, filename, counterparty, parties").
		WithArgs("missing").
		WillReturnError(sql.ErrNoRows)

	_, err := store.GetByID(context.Background(), "missing")
	if err == nil {
		t.Fatalf("expected error")
	}
	if !domain.IsKind(err, domain.ErrDocumentNotFound) {
		t.Fatalf("expected ErrDocumentNotFound, got %v", err)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("expectations: %v", err)
	}
}

func TestGetFieldAttachesLocation(t *testing.T) {
	store, mock, done := newStoreWithMock(t)
	defer done()

	now := time.Now().UTC()
	rows := sqlmock.NewRows(contractColumnsList()).AddRow(
		"doc-1", "vallen_nda.pdf", "Vallen", []byte(`[]`),
		nil, nil, nil, "Delaware", nil, "", "active", now, now,
	)
	mock.ExpectQuery("SELECT id, filename, counterparty, parties").
		WithArgs("doc-1").
		WillReturnRows(rows)
	mock.ExpectQuery("SELECT page_num, span_start, span_end, source_uri").
		WithArgs("doc-1", domain.FieldGoverningLaw).
		WillReturnRows(sqlmock.NewRows([]string{"page_num", "span_start", "span_end", "source_uri"}).
			AddRow(3, 120, 180, "s3://ndas/doc-1.pdf"))

	value, err := store.GetField(context.Background(), "doc-1", domain.FieldGoverningLaw)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if value == nil || value.Text != "Delaware" {
		t.Fatalf("value = %+v, want Delaware", value)
	}
	if value.Location == nil || value.Location.PageNum != 3 || value.Location.SpanEnd != 180 {
		t.Fatalf("location = %+v", value.Location)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("expectations: %v", err)
	}
}

func TestGetFieldReturnsNilWhenUnset(t *testing.T) {
	store, mock, done := newStoreWithMock(t)
	defer done()

	now := time.Now().UTC()
	rows := sqlmock.NewRows(contractColumnsList()).AddRow(
		"doc-1", "vallen_nda.pdf", "Vallen", []byte(`[]`),
		nil, nil, nil, nil, nil, "", "active", now, now,
	)
	mock.ExpectQuery("SELECT id, filename, counterparty, parties").
		WithArgs("doc-1").
		WillReturnRows(rows)

	value, err := store.GetField(context.Background(), "doc-1", domain.FieldGoverningLaw)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if value != nil {
		t.Fatalf("expected nil value for NULL column, got %+v", value)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("expectations: %v", err)
	}
}

func TestGetFieldMissingLocationStaysNil(t *testing.T) {
	store, mock, done := newStoreWithMock(t)
	defer done()

	now := time.Now().UTC()
	rows := sqlmock.NewRows(contractColumnsList()).AddRow(
		"doc-1", "vallen_nda.pdf", "Vallen", []byte(`[]`),
		nil, nil, nil, "Delaware", nil, "", "active", now, now,
	)
	mock.ExpectQuery("SELECT id, filename, counterparty, parties").
		WithArgs("doc-1").
		WillReturnRows(rows)
	mock.ExpectQuery("SELECT page_num, span_start, span_end, source_uri").
		WithArgs("doc-1", domain.FieldGoverningLaw).
		WillReturnError(sql.ErrNoRows)

	value, err := store.GetField(context.Background(), "doc-1", domain.FieldGoverningLaw)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if value == nil || value.Location != nil {
		t.Fatalf("expected value without location, got %+v", value)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("expectations: %v", err)
	}
}

func TestListByEffectiveDateRange(t *testing.T) {
	store, mock, done := newStoreWithMock(t)
	defer done()

	start := time.Date(2025, time.January, 1, 0, 0, 0, 0, time.UTC)
	end := time.Date(2025, time.January, 31, 0, 0, 0, 0, time.UTC)
	now := time.Now().UTC()
	eff := time.Date(2025, time.January, 10, 0, 0, 0, 0, time.UTC)
	rows := sqlmock.NewRows(contractColumnsList()).
		AddRow("doc-1", "a.pdf", "Acme", []byte(`[]`), eff, nil, nil, nil, nil, "", "active", now, now).
		AddRow("doc-2", "b.pdf", "Globex", []byte(`[]`), eff, nil, nil, nil, nil, "", "active", now, now)
	mock.ExpectQuery("SELECT id, filename, counterparty, parties").
		WithArgs(start, end).
		WillReturnRows(rows)

	records, err := store.ListByEffectiveDateRange(context.Background(), domain.DateRange{Start: start, End: end})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(records) != 2 || records[0].ID != "doc-1" || records[1].ID != "doc-2" {
		t.Fatalf("records = %+v", records)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("expectations: %v", err)
	}
}
