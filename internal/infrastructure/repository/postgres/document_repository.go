package postgres

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	_ "github.com/jackc/pgx/v5/stdlib"

	"github.com/kirillkom/pii-redactor/internal/core/domain"
)

type DocumentRepository struct {
	db *sql.DB
}

func NewDocumentRepository(db *sql.DB) *DocumentRepository {
	return &DocumentRepository{db: db}
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

func (r *DocumentRepository) EnsureSchema(ctx context.Context) error {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin schema tx: %w", err)
	}
	defer func() {
		_ = tx.Rollback()
	}()

	// Serialize bootstrap DDL across api/worker startups.
	if _, err := tx.ExecContext(ctx, `SELECT pg_advisory_xact_lock($1)`, int64(2026101801)); err != nil {
		return fmt.Errorf("acquire schema lock: %w", err)
	}

	const query = `
CREATE TABLE IF NOT EXISTS documents (
	id TEXT PRIMARY KEY,
	name TEXT NOT NULL,
	file_kind TEXT NOT NULL,
	mime_type TEXT NOT NULL,
	source_uri TEXT NOT NULL,
	owner TEXT NOT NULL,
	status TEXT NOT NULL,
	findings JSONB NOT NULL DEFAULT '[]'::jsonb,
	metadata JSONB NOT NULL DEFAULT '{}'::jsonb,
	created_at TIMESTAMPTZ NOT NULL,
	updated_at TIMESTAMPTZ NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_documents_owner_created_at ON documents(owner, created_at DESC);
CREATE INDEX IF NOT EXISTS idx_documents_status ON documents(status);

CREATE TABLE IF NOT EXISTS document_events (
	id TEXT PRIMARY KEY,
	document_id TEXT NOT NULL,
	type TEXT NOT NULL,
	status TEXT NOT NULL,
	owner TEXT NOT NULL,
	detail TEXT NOT NULL DEFAULT '',
	occurred_at TIMESTAMPTZ NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_document_events_document ON document_events(document_id, occurred_at);
`
	if _, err := tx.ExecContext(ctx, query); err != nil {
		return fmt.Errorf("execute schema ddl: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit schema tx: %w", err)
	}
	return nil
}

const documentColumns = `id, name, file_kind, mime_type, source_uri, owner, status, findings, metadata, created_at, updated_at`

func (r *DocumentRepository) Create(ctx context.Context, doc domain.Document) (domain.Document, error) {
	if err := doc.Validate(); err != nil {
		return domain.Document{}, err
	}
	findingsJSON, metadataJSON, err := encodeDocument(doc)
	if err != nil {
		return domain.Document{}, err
	}

	_, err = r.db.ExecContext(ctx, `
INSERT INTO documents (`+documentColumns+`)
VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11)
`,
		doc.ID, doc.Name, string(doc.FileKind), doc.MimeType, doc.SourceURI, doc.Owner, string(doc.Status),
		findingsJSON, metadataJSON, doc.CreatedAt, doc.UpdatedAt,
	)
	if err != nil {
		return domain.Document{}, fmt.Errorf("insert document: %w", err)
	}
	return doc.Clone(), nil
}

// Update writes status, findings and metadata in one transaction. The stored status is locked
// and a move backwards along the lifecycle is rejected.
func (r *DocumentRepository) Update(ctx context.Context, doc domain.Document) (domain.Document, error) {
	if err := doc.Validate(); err != nil {
		return domain.Document{}, err
	}
	findingsJSON, metadataJSON, err := encodeDocument(doc)
	if err != nil {
		return domain.Document{}, err
	}

	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return domain.Document{}, fmt.Errorf("begin update tx: %w", err)
	}
	defer func() {
		_ = tx.Rollback()
	}()

	var current string
	err = tx.QueryRowContext(ctx, `SELECT status FROM documents WHERE id = $1 FOR UPDATE`, doc.ID).Scan(&current)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return domain.Document{}, domain.WrapError(domain.ErrDocumentNotFound, "update document", fmt.Errorf("id=%s", doc.ID))
		}
		return domain.Document{}, fmt.Errorf("lock document: %w", err)
	}
	if from := domain.DocumentStatus(current); !from.CanAdvanceTo(doc.Status) {
		return domain.Document{}, domain.WrapError(
			domain.ErrInvalidTransition,
			"update document",
			fmt.Errorf("status %q cannot move to %q", from, doc.Status),
		)
	}

	result, err := tx.ExecContext(ctx, `
UPDATE documents
SET status = $2, findings = $3, metadata = $4, updated_at = $5
WHERE id = $1
`, doc.ID, string(doc.Status), findingsJSON, metadataJSON, doc.UpdatedAt)
	if err != nil {
		return domain.Document{}, fmt.Errorf("update document: %w", err)
	}
	rows, err := result.RowsAffected()
	if err != nil {
		return domain.Document{}, fmt.Errorf("update document rows affected: %w", err)
	}
	if rows == 0 {
		return domain.Document{}, domain.WrapError(domain.ErrDocumentNotFound, "update document", fmt.Errorf("id=%s", doc.ID))
	}

	if err := tx.Commit(); err != nil {
		return domain.Document{}, fmt.Errorf("commit update tx: %w", err)
	}
	return doc.Clone(), nil
}

func (r *DocumentRepository) GetByID(ctx context.Context, id string) (domain.Document, error) {
	row := r.db.QueryRowContext(ctx, `
SELECT `+documentColumns+`
FROM documents
WHERE id = $1
`, id)

	doc, err := scanDocument(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return domain.Document{}, domain.WrapError(domain.ErrDocumentNotFound, "get document", fmt.Errorf("id=%s", id))
		}
		return domain.Document{}, fmt.Errorf("scan document: %w", err)
	}
	return doc, nil
}

// Filter lists documents matching every non-empty field of query. Search is a case-insensitive
// substring match on the name.
func (r *DocumentRepository) Filter(ctx context.Context, query domain.DocumentQuery, sortBy string, limit int) ([]domain.Document, error) {
	order, err := orderClause(sortBy)
	if err != nil {
		return nil, err
	}

	var (
		where []string
		args  []any
	)
	add := func(cond string, arg any) {
		args = append(args, arg)
		where = append(where, fmt.Sprintf(cond, len(args)))
	}
	if query.Owner != "" {
		add("owner = $%d", query.Owner)
	}
	if query.Status != "" {
		add("status = $%d", string(query.Status))
	}
	if query.FileKind != "" {
		add("file_kind = $%d", string(query.FileKind))
	}
	if query.RiskLevel != "" {
		add("metadata->>'risk_level' = $%d", string(query.RiskLevel))
	}
	if search := strings.TrimSpace(query.Search); search != "" {
		add("name ILIKE '%%' || $%d || '%%'", escapeLike(search))
	}

	stmt := "SELECT " + documentColumns + "\nFROM documents\n"
	if len(where) > 0 {
		stmt += "WHERE " + strings.Join(where, " AND ") + "\n"
	}
	stmt += "ORDER BY " + order
	if limit > 0 {
		args = append(args, limit)
		stmt += fmt.Sprintf("\nLIMIT $%d", len(args))
	}

	rows, err := r.db.QueryContext(ctx, stmt, args...)
	if err != nil {
		return nil, fmt.Errorf("filter documents: %w", err)
	}
	defer rows.Close()

	out := make([]domain.Document, 0)
	for rows.Next() {
		doc, err := scanDocument(rows)
		if err != nil {
			return nil, fmt.Errorf("scan document: %w", err)
		}
		out = append(out, doc)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate documents: %w", err)
	}
	return out, nil
}

func orderClause(sortBy string) (string, error) {
	switch sortBy {
	case "", domain.SortCreatedDesc:
		return "created_at DESC", nil
	case domain.SortCreatedAsc:
		return "created_at ASC", nil
	default:
		return "", domain.WrapError(domain.ErrInvalidInput, "filter documents", fmt.Errorf("unsupported sort %q", sortBy))
	}
}

func escapeLike(s string) string {
	return strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`).Replace(s)
}

func encodeDocument(doc domain.Document) ([]byte, []byte, error) {
	findings := doc.Findings
	if findings == nil {
		findings = []domain.Finding{}
	}
	findingsJSON, err := json.Marshal(findings)
	if err != nil {
		return nil, nil, fmt.Errorf("marshal findings: %w", err)
	}
	metadataJSON, err := domain.MarshalMetadata(doc.Metadata)
	if err != nil {
		return nil, nil, err
	}
	return findingsJSON, metadataJSON, nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanDocument(row rowScanner) (domain.Document, error) {
	var (
		doc                      domain.Document
		fileKind, status         string
		findingsRaw, metadataRaw []byte
	)
	err := row.Scan(
		&doc.ID, &doc.Name, &fileKind, &doc.MimeType, &doc.SourceURI, &doc.Owner, &status,
		&findingsRaw, &metadataRaw, &doc.CreatedAt, &doc.UpdatedAt,
	)
	if err != nil {
		return domain.Document{}, err
	}
	doc.FileKind = domain.FileKind(fileKind)
	doc.Status = domain.DocumentStatus(status)

	doc.Findings = []domain.Finding{}
	if len(findingsRaw) > 0 {
		if err := json.Unmarshal(findingsRaw, &doc.Findings); err != nil {
			return domain.Document{}, fmt.Errorf("unmarshal findings: %w", err)
		}
	}
	meta, err := domain.UnmarshalMetadata(metadataRaw)
	if err != nil {
		return domain.Document{}, err
	}
	doc.Metadata = meta
	return doc, nil
}
