package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"

	"docflow/internal/model"
	"docflow/internal/repository"
)

// DocumentPostgres is a PostgreSQL implementation of repository.DocumentRepository.
// It uses database/sql with parameterized queries and contains no business logic.
type DocumentPostgres struct {
	db *sql.DB
}

// NewDocumentPostgres creates a new DocumentPostgres repository.
func NewDocumentPostgres(db *sql.DB) *DocumentPostgres {
	return &DocumentPostgres{db: db}
}

var _ repository.DocumentRepository = (*DocumentPostgres)(nil)

const documentColumns = `id, file_name, storage_path, owner_id, status, content_type, size, uploaded_at, updated_at`

// rank mirrors model.Status.Rank so a forward-only update stays a single statement.
const statusRankExpr = `(CASE status WHEN 'pending' THEN 0 WHEN 'processing' THEN 1 ELSE 2 END)`

var orderClauses = map[repository.SortOrder]string{
	repository.SortUploadedDesc: "uploaded_at DESC, seq ASC",
	repository.SortUploadedAsc:  "uploaded_at ASC, seq ASC",
	repository.SortNameAsc:      "file_name ASC, seq ASC",
	repository.SortNameDesc:     "file_name DESC, seq ASC",
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanDocument(row rowScanner) (*model.Document, error) {
	var (
		d       model.Document
		status  string
		updated sql.NullTime
	)
	if err := row.Scan(
		&d.ID,
		&d.FileName,
		&d.StoragePath,
		&d.OwnerID,
		&status,
		&d.ContentType,
		&d.Size,
		&d.UploadedAt,
		&updated,
	); err != nil {
		return nil, err
	}
	d.Status = model.Status(status)
	if updated.Valid {
		t := updated.Time
		d.UpdatedAt = &t
	}
	return &d, nil
}

// Create inserts a new document row and returns the stored record.
func (r *DocumentPostgres) Create(ctx context.Context, doc *model.Document) (*model.Document, error) {
	const q = `
		INSERT INTO documents (file_name, storage_path, owner_id, status, content_type, size)
		VALUES ($1, $2, $3, $4, $5, $6)
		RETURNING ` + documentColumns
	row := r.db.QueryRowContext(ctx, q,
		doc.FileName,
		doc.StoragePath,
		doc.OwnerID,
		string(model.StatusPending),
		doc.ContentType,
		doc.Size,
	)
	return scanDocument(row)
}

// FindByID fetches a single document by its ID.
func (r *DocumentPostgres) FindByID(ctx context.Context, id string) (*model.Document, error) {
	const q = `
		SELECT ` + documentColumns + `
		FROM documents
		WHERE id = $1
	`
	d, err := scanDocument(r.db.QueryRowContext(ctx, q, id))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, repository.ErrNotFound
		}
		return nil, err
	}
	return d, nil
}

// List returns the documents matching f. When f.Page.Limit is set the result is a page
// and Total counts every match; otherwise all matches are returned.
func (r *DocumentPostgres) List(ctx context.Context, f repository.DocumentFilter) (*repository.PageResult[model.Document], error) {
	where, args := buildWhere(f)

	order, ok := orderClauses[f.Sort]
	if !ok {
		order = orderClauses[repository.SortUploadedDesc]
	}

	q := "SELECT " + documentColumns + " FROM documents" + where + " ORDER BY " + order
	listArgs := args
	if f.Page.Limit > 0 {
		q += fmt.Sprintf(" LIMIT $%d OFFSET $%d", len(args)+1, len(args)+2)
		listArgs = append(append([]any{}, args...), f.Page.Limit, f.Page.Offset)
	}

	rows, err := r.db.QueryContext(ctx, q, listArgs...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	items := make([]model.Document, 0)
	for rows.Next() {
		d, err := scanDocument(rows)
		if err != nil {
			return nil, err
		}
		items = append(items, *d)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	total := len(items)
	if f.Page.Limit > 0 {
		if err := r.db.QueryRowContext(ctx, "SELECT COUNT(*) FROM documents"+where, args...).Scan(&total); err != nil {
			return nil, err
		}
	}

	return &repository.PageResult[model.Document]{
		Items: items,
		Total: total,
	}, nil
}

// UpdateStatus applies a forward-only status change in one statement.
func (r *DocumentPostgres) UpdateStatus(ctx context.Context, id string, status model.Status) (*model.Document, error) {
	if !status.Valid() {
		return nil, fmt.Errorf("%w: unknown status %q", repository.ErrInvalidTransition, status)
	}

	const q = `
		UPDATE documents
		SET status = $2, updated_at = now()
		WHERE id = $1 AND ` + statusRankExpr + ` < $3
		RETURNING ` + documentColumns
	d, err := scanDocument(r.db.QueryRowContext(ctx, q, id, string(status), status.Rank()))
	if err == nil {
		return d, nil
	}
	if !errors.Is(err, sql.ErrNoRows) {
		return nil, err
	}

	// Nothing updated: either the row is gone or the move was not forward.
	var current string
	err = r.db.QueryRowContext(ctx, `SELECT status FROM documents WHERE id = $1`, id).Scan(&current)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, repository.ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return nil, fmt.Errorf("%w: %s -> %s", repository.ErrInvalidTransition, current, status)
}

// Delete removes a document by ID and reports ErrNotFound when no row matched.
func (r *DocumentPostgres) Delete(ctx context.Context, id string) error {
	const q = `DELETE FROM documents WHERE id = $1`
	res, err := r.db.ExecContext(ctx, q, id)
	if err != nil {
		return err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return repository.ErrNotFound
	}
	return nil
}

func buildWhere(f repository.DocumentFilter) (string, []any) {
	var (
		clauses []string
		args    []any
	)
	add := func(clause string, arg any) {
		args = append(args, arg)
		clauses = append(clauses, fmt.Sprintf(clause, len(args)))
	}

	if f.OwnerID != "" {
		add("owner_id = $%d", f.OwnerID)
	}
	if f.Status != "" {
		add("status = $%d", string(f.Status))
	}
	if q := strings.TrimSpace(f.Query); q != "" {
		add(`file_name ILIKE $%d ESCAPE '\'`, "%"+escapeLike(q)+"%")
	}

	if len(clauses) == 0 {
		return "", nil
	}
	return " WHERE " + strings.Join(clauses, " AND "), args
}

var likeEscaper = strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`)

func escapeLike(s string) string {
	return likeEscaper.Replace(s)
}
