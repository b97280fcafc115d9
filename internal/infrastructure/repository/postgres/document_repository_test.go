package postgres

import (
	"context"
	"database/sql"
	"regexp"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"

	"github.com/kirillkom/pii-redactor/internal/core/domain"
)

var documentRowColumns = []string{
	"id", "name", "file_kind", "mime_type", "source_uri", "owner", "status", "findings", "metadata", "created_at", "updated_at",
}

func newRepoWithMock(t *testing.T) (*DocumentRepository, sqlmock.Sqlmock, func()) {
	t.Helper()
	db, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("sqlmock.New() error = %v", err)
	}
	return &DocumentRepository{db: db}, mock, func() { _ = db.Close() }
}

func analyzedDocument() domain.Document {
	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	return domain.Document{
		ID:        "doc-1",
		Name:      "payroll.pdf",
		FileKind:  domain.FileKindPDF,
		MimeType:  "application/pdf",
		SourceURI: "file:///data/doc-1_payroll.pdf",
		Owner:     "alice@example.com",
		Status:    domain.StatusAnalyzed,
		Findings:  []domain.Finding{{Kind: domain.KindSSN, Value: "123-45-6789", Confidence: 0.9}},
		Metadata:  domain.AnalyzedMetadata{ExtractedText: "ssn 123-45-6789", RiskLevel: domain.RiskHigh, ProcessedAt: now},
		CreatedAt: now,
		UpdatedAt: now,
	}
}

func TestGetByIDReturnsDomainNotFound(t *testing.T) {
	repo, mock, done := newRepoWithMock(t)
	defer done()

	mock.ExpectQuery("SELECT id, name, file_kind, mime_type").
		WithArgs("missing").
		WillReturnError(sql.ErrNoRows)

	_, err := repo.GetByID(context.Background(), "missing")
	if !domain.IsKind(err, domain.ErrDocumentNotFound) {
		t.Fatalf("expected ErrDocumentNotFound, got %v", err)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("expectations: %v", err)
	}
}

func TestGetByIDDecodesStageMetadata(t *testing.T) {
	repo, mock, done := newRepoWithMock(t)
	defer done()

	now := time.Now().UTC()
	rows := sqlmock.NewRows(documentRowColumns).AddRow(
		"doc-1", "payroll.pdf", "pdf", "application/pdf", "file:///data/doc-1", "alice@example.com", "redacted",
		[]byte(`[{"type":"ssn","value":"123-45-6789","confidence":0.9,"redacted":true}]`),
		[]byte(`{"stage":"redacted","extracted_text":"ssn 123-45-6789","risk_level":"high","redacted_text":"ssn [REDACTED-SSN]"}`),
		now, now,
	)
	mock.ExpectQuery("SELECT id, name, file_kind").WithArgs("doc-1").WillReturnRows(rows)

	doc, err := repo.GetByID(context.Background(), "doc-1")
	if err != nil {
		t.Fatalf("GetByID() error = %v", err)
	}
	if doc.Status != domain.StatusRedacted || len(doc.Findings) != 1 || !doc.Findings[0].Redacted {
		t.Fatalf("unexpected document %+v", doc)
	}
	if text, ok := doc.RedactedText(); !ok || text != "ssn [REDACTED-SSN]" {
		t.Fatalf("unexpected redacted text %q", text)
	}
	if doc.RiskLevel() != domain.RiskHigh {
		t.Fatalf("expected high risk, got %s", doc.RiskLevel())
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("expectations: %v", err)
	}
}

func TestCreateRejectsMismatchedMetadata(t *testing.T) {
	repo, mock, done := newRepoWithMock(t)
	defer done()

	doc := analyzedDocument()
	doc.Status = domain.StatusProcessing

	if _, err := repo.Create(context.Background(), doc); !domain.IsKind(err, domain.ErrInvalidInput) {
		t.Fatalf("expected ErrInvalidInput, got %v", err)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("expectations: %v", err)
	}
}

func TestCreateInsertsEncodedDocument(t *testing.T) {
	repo, mock, done := newRepoWithMock(t)
	defer done()

	doc := analyzedDocument()
	mock.ExpectExec("INSERT INTO documents").
		WithArgs("doc-1", "payroll.pdf", "pdf", "application/pdf", doc.SourceURI, doc.Owner, "analyzed",
			sqlmock.AnyArg(), sqlmock.AnyArg(), doc.CreatedAt, doc.UpdatedAt).
		WillReturnResult(sqlmock.NewResult(0, 1))

	if _, err := repo.Create(context.Background(), doc); err != nil {
		t.Fatalf("Create() error = %v", err)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("expectations: %v", err)
	}
}

func TestUpdateCommitsForwardTransition(t *testing.T) {
	repo, mock, done := newRepoWithMock(t)
	defer done()

	doc := analyzedDocument()
	mock.ExpectBegin()
	mock.ExpectQuery("SELECT status FROM documents").
		WithArgs("doc-1").
		WillReturnRows(sqlmock.NewRows([]string{"status"}).AddRow("processing"))
	mock.ExpectExec("UPDATE documents").
		WithArgs("doc-1", "analyzed", sqlmock.AnyArg(), sqlmock.AnyArg(), doc.UpdatedAt).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectCommit()

	saved, err := repo.Update(context.Background(), doc)
	if err != nil {
		t.Fatalf("Update() error = %v", err)
	}
	if saved.Status != domain.StatusAnalyzed {
		t.Fatalf("unexpected status %s", saved.Status)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("expectations: %v", err)
	}
}

func TestUpdateRejectsStatusRegression(t *testing.T) {
	repo, mock, done := newRepoWithMock(t)
	defer done()

	mock.ExpectBegin()
	mock.ExpectQuery("SELECT status FROM documents").
		WithArgs("doc-1").
		WillReturnRows(sqlmock.NewRows([]string{"status"}).AddRow("redacted"))
	mock.ExpectRollback()

	_, err := repo.Update(context.Background(), analyzedDocument())
	if !domain.IsKind(err, domain.ErrInvalidTransition) {
		t.Fatalf("expected ErrInvalidTransition, got %v", err)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("expectations: %v", err)
	}
}

func TestUpdateRejectsRepeatedStage(t *testing.T) {
	analyzed := analyzedDocument()
	redacted, err := analyzed.Redact([]int{0}, domain.Rewrite{RedactedText: "ssn [REDACTED-SSN]"}, analyzed.UpdatedAt.Add(time.Minute))
	if err != nil {
		t.Fatalf("Redact() error = %v", err)
	}

	tests := []struct {
		name   string
		stored string
		doc    domain.Document
	}{
		{name: "second redaction", stored: "redacted", doc: redacted},
		{name: "second analysis", stored: "analyzed", doc: analyzed},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			repo, mock, done := newRepoWithMock(t)
			defer done()

			mock.ExpectBegin()
			mock.ExpectQuery("SELECT status FROM documents").
				WithArgs("doc-1").
				WillReturnRows(sqlmock.NewRows([]string{"status"}).AddRow(tt.stored))
			mock.ExpectRollback()

			_, err := repo.Update(context.Background(), tt.doc)
			if !domain.IsKind(err, domain.ErrInvalidTransition) {
				t.Fatalf("expected ErrInvalidTransition, got %v", err)
			}
			if err := mock.ExpectationsWereMet(); err != nil {
				t.Fatalf("expectations: %v", err)
			}
		})
	}
}

func TestUpdateRewritesProcessingRecord(t *testing.T) {
	repo, mock, done := newRepoWithMock(t)
	defer done()

	doc := analyzedDocument()
	doc.Status = domain.StatusProcessing
	doc.Findings = nil
	doc.Metadata = domain.PendingMetadata{ExtractedText: "ssn 123-45-6789"}

	mock.ExpectBegin()
	mock.ExpectQuery("SELECT status FROM documents").
		WithArgs("doc-1").
		WillReturnRows(sqlmock.NewRows([]string{"status"}).AddRow("processing"))
	mock.ExpectExec("UPDATE documents").
		WithArgs("doc-1", "processing", sqlmock.AnyArg(), sqlmock.AnyArg(), doc.UpdatedAt).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectCommit()

	if _, err := repo.Update(context.Background(), doc); err != nil {
		t.Fatalf("Update() error = %v", err)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("expectations: %v", err)
	}
}

func TestUpdateReturnsDomainNotFound(t *testing.T) {
	repo, mock, done := newRepoWithMock(t)
	defer done()

	mock.ExpectBegin()
	mock.ExpectQuery("SELECT status FROM documents").
		WithArgs("doc-1").
		WillReturnError(sql.ErrNoRows)
	mock.ExpectRollback()

	_, err := repo.Update(context.Background(), analyzedDocument())
	if !domain.IsKind(err, domain.ErrDocumentNotFound) {
		t.Fatalf("expected ErrDocumentNotFound, got %v", err)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("expectations: %v", err)
	}
}

func TestFilterBuildsConditionsInOrder(t *testing.T) {
	repo, mock, done := newRepoWithMock(t)
	defer done()

	doc := analyzedDocument()
	rows := sqlmock.NewRows(documentRowColumns).AddRow(
		doc.ID, doc.Name, "pdf", doc.MimeType, doc.SourceURI, doc.Owner, "analyzed",
		[]byte(`[]`), []byte(`{"stage":"analyzed","risk_level":"high"}`), doc.CreatedAt, doc.UpdatedAt,
	)
	mock.ExpectQuery(regexp.QuoteMeta(
		"WHERE owner = $1 AND status = $2 AND metadata->>'risk_level' = $3 AND name ILIKE '%' || $4 || '%'\nORDER BY created_at DESC\nLIMIT $5",
	)).
		WithArgs("alice@example.com", "analyzed", "high", `pay\_roll`, 20).
		WillReturnRows(rows)

	docs, err := repo.Filter(context.Background(), domain.DocumentQuery{
		Owner:     "alice@example.com",
		Status:    domain.StatusAnalyzed,
		RiskLevel: domain.RiskHigh,
		Search:    "pay_roll",
	}, domain.SortCreatedDesc, 20)
	if err != nil {
		t.Fatalf("Filter() error = %v", err)
	}
	if len(docs) != 1 || docs[0].RiskLevel() != domain.RiskHigh {
		t.Fatalf("unexpected result %+v", docs)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("expectations: %v", err)
	}
}

func TestFilterRejectsUnknownSort(t *testing.T) {
	repo, mock, done := newRepoWithMock(t)
	defer done()

	_, err := repo.Filter(context.Background(), domain.DocumentQuery{}, "name", 10)
	if !domain.IsKind(err, domain.ErrInvalidInput) {
		t.Fatalf("expected ErrInvalidInput, got %v", err)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("expectations: %v", err)
	}
}
