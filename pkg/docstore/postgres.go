package docstore

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/Gobusters/ectoerror/httperror"
	"github.com/Gobusters/ectologger"
	"github.com/Ramsey-B/briar/pkg/database"
	"github.com/Ramsey-B/briar/pkg/models"
	"github.com/Ramsey-B/briar/pkg/patchpath"
	"github.com/Ramsey-B/briar/pkg/tracing"
)

const documentsTable = "documents"

// PostgresStore keeps documents in the jsonb documents table.
type PostgresStore struct {
	db     database.DB
	logger ectologger.Logger
}

func NewPostgresStore(db database.DB, logger ectologger.Logger) *PostgresStore {
	return &PostgresStore{
		db:     db,
		logger: logger,
	}
}

type documentRow struct {
	ID       string           `db:"id"`
	Revision int64            `db:"revision"`
	Body     database.JSONDoc `db:"body"`
}

func (s *PostgresStore) GetHeader(ctx context.Context, id string, q HeaderQuery) (models.HeaderResult, error) {
	ctx, span := tracing.StartSpan(ctx, "docstore.PostgresStore.GetHeader")
	defer span.End()

	sb := database.NewSelectBuilder()
	sb.Select("id", "revision", "body")
	sb.From(documentsTable)
	conds := []string{sb.Equal("id", id)}
	if q.EntityType != "" {
		conds = append(conds, fmt.Sprintf("lower(entity_type) = lower(%s)", sb.Var(q.EntityType)))
	}
	if q.OwnerOrgID != "" {
		conds = append(conds, fmt.Sprintf("lower(owner_org_id) = lower(%s)", sb.Var(q.OwnerOrgID)))
	}
	sb.Where(conds...)

	query, args := sb.Build()
	var row documentRow
	if err := s.db.GetContext(ctx, &row, query, args...); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return models.NotFound(), nil
		}
		s.logger.WithContext(ctx).WithError(err).WithField("entity_id", id).Error("Failed to get document header")
		return models.NotFound(), fmt.Errorf("failed to get header %s: %w", id, err)
	}
	doc, err := models.ParseDocument(row.Body)
	if err != nil {
		s.logger.WithContext(ctx).WithError(err).WithField("entity_id", id).Warn("Stored document has an invalid envelope")
		return models.NotFound(), nil
	}
	return models.Found(doc.Header()), nil
}

func (s *PostgresStore) QueryHeaders(ctx context.Context, entityType, search string, limit int) ([]models.EntityHeader, error) {
	ctx, span := tracing.StartSpan(ctx, "docstore.PostgresStore.QueryHeaders")
	defer span.End()

	sb := database.NewSelectBuilder()
	sb.Select("id", "revision", "body")
	sb.From(documentsTable)
	conds := []string{fmt.Sprintf("lower(entity_type) = lower(%s)", sb.Var(entityType))}
	if search != "" {
		pattern := "%" + strings.ToLower(search) + "%"
		conds = append(conds, fmt.Sprintf("(lower(key) LIKE %s OR lower(body->>'name') LIKE %s)", sb.Var(pattern), sb.Var(pattern)))
	}
	sb.Where(conds...)
	sb.OrderBy("id")
	if limit > 0 {
		sb.Limit(limit)
	}

	query, args := sb.Build()
	var rows []documentRow
	if err := s.db.SelectContext(ctx, &rows, query, args...); err != nil {
		s.logger.WithContext(ctx).WithError(err).WithField("entity_type", entityType).Error("Failed to query headers")
		return nil, fmt.Errorf("failed to query headers: %w", err)
	}

	out := make([]models.EntityHeader, 0, len(rows))
	for _, row := range rows {
		doc, err := models.ParseDocument(row.Body)
		if err != nil {
			continue
		}
		out = append(out, doc.Header())
	}
	return out, nil
}

func (s *PostgresStore) Read(ctx context.Context, id string) (map[string]any, error) {
	ctx, span := tracing.StartSpan(ctx, "docstore.PostgresStore.Read")
	defer span.End()

	row, err := s.get(ctx, s.db, id, false)
	if err != nil {
		return nil, err
	}
	return row.Body, nil
}

type getter interface {
	GetContext(ctx context.Context, dest any, query string, args ...any) error
}

func (s *PostgresStore) get(ctx context.Context, db getter, id string, forUpdate bool) (documentRow, error) {
	sb := database.NewSelectBuilder()
	sb.Select("id", "revision", "body")
	sb.From(documentsTable)
	sb.Where(sb.Equal("id", id))
	if forUpdate {
		sb.ForUpdate()
	}

	query, args := sb.Build()
	var row documentRow
	if err := db.GetContext(ctx, &row, query, args...); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return documentRow{}, ErrNotFound
		}
		s.logger.WithContext(ctx).WithError(err).WithField("entity_id", id).Error("Failed to read document")
		return documentRow{}, fmt.Errorf("failed to read document %s: %w", id, err)
	}
	return row, nil
}

func (s *PostgresStore) write(ctx context.Context, tx database.Tx, doc *models.Document) error {
	ib := database.NewInsertBuilder()
	ib.InsertInto(documentsTable)
	ib.Cols("id", "entity_type", "key", "owner_org_id", "revision", "body", "last_updated_date", "updated_at")

	var lastUpdated any
	if t, err := time.Parse(time.RFC3339Nano, doc.LastUpdatedDate); err == nil {
		lastUpdated = t.UTC()
	}
	ib.Values(doc.ID, doc.EntityType, doc.Key, doc.OrgID(), doc.Revision, database.JSONDoc(doc.Body), lastUpdated, time.Now().UTC())

	ib.ReplaceOnConflict([]string{"id"},
		"entity_type", "key", "owner_org_id", "revision", "body", "last_updated_date", "updated_at")

	query, args := ib.Build()
	_, err := tx.ExecContext(ctx, query, args...)
	return err
}

func (s *PostgresStore) Upsert(ctx context.Context, raw []byte, expectedRevision int64) (int64, error) {
	ctx, span := tracing.StartSpan(ctx, "docstore.PostgresStore.Upsert")
	defer span.End()

	probe, err := models.ParseRawDocument(raw)
	if err != nil {
		return 0, err
	}
	log := s.logger.WithContext(ctx).WithFields(map[string]any{
		"method":      "Upsert",
		"entity_id":   probe.ID,
		"entity_type": probe.EntityType,
	})

	var revision int64
	err = database.WithTx(ctx, s.logger, s.db, func(ctx context.Context, tx database.Tx) error {
		current, exists := int64(0), true
		row, err := s.get(ctx, tx, probe.ID, true)
		switch {
		case errors.Is(err, ErrNotFound):
			exists = false
		case err != nil:
			return err
		default:
			current = row.Revision
		}

		doc, err := prepareWrite(raw, current, exists, expectedRevision)
		if err != nil {
			return err
		}
		if err := s.write(ctx, tx, doc); err != nil {
			return err
		}
		revision = doc.Revision
		return nil
	})
	if err != nil {
		if errors.Is(err, ErrConflict) || errors.Is(err, models.ErrValidation) {
			log.WithError(err).Warn("Rejected document write")
			return 0, err
		}
		log.WithError(err).Error("Failed to upsert document")
		return 0, fmt.Errorf("failed to upsert document %s: %w", probe.ID, err)
	}
	log.Debugf("Stored document at revision %d", revision)
	return revision, nil
}

func (s *PostgresStore) Patch(ctx context.Context, id string, ops []patchpath.Operation, expectedRevision int64) (int64, error) {
	ctx, span := tracing.StartSpan(ctx, "docstore.PostgresStore.Patch")
	defer span.End()

	var revision int64
	err := database.WithTx(ctx, s.logger, s.db, func(ctx context.Context, tx database.Tx) error {
		row, err := s.get(ctx, tx, id, true)
		if err != nil {
			return err
		}
		doc, err := applyPatch(row.Body, ops, expectedRevision)
		if err != nil {
			return err
		}
		if err := s.write(ctx, tx, doc); err != nil {
			return err
		}
		revision = doc.Revision
		return nil
	})
	if err != nil {
		s.logger.WithContext(ctx).WithError(err).WithField("entity_id", id).Warn("Failed to patch document")
		return 0, err
	}
	return revision, nil
}

func (s *PostgresStore) ScanPage(ctx context.Context, entityType, token string, pageSize int) (Page, error) {
	ctx, span := tracing.StartSpan(ctx, "docstore.PostgresStore.ScanPage")
	defer span.End()

	after, err := DecodeToken(token)
	if err != nil {
		return Page{}, err
	}
	if pageSize <= 0 {
		pageSize = DefaultPageSize
	}

	sb := database.NewSelectBuilder()
	sb.Select("id", "revision", "body")
	sb.From(documentsTable)
	sb.Where(
		fmt.Sprintf("lower(entity_type) = lower(%s)", sb.Var(entityType)),
		sb.GreaterThan("id", after),
	)
	sb.OrderBy("id")
	sb.Limit(pageSize + 1)

	query, args := sb.Build()
	var rows []documentRow
	if err := s.db.SelectContext(ctx, &rows, query, args...); err != nil {
		s.logger.WithContext(ctx).WithError(err).WithField("entity_type", entityType).Error("Failed to scan documents")
		return Page{}, fmt.Errorf("failed to scan %s: %w", entityType, err)
	}

	var page Page
	if len(rows) > pageSize {
		rows = rows[:pageSize]
		page.ContinuationToken = EncodeToken(rows[len(rows)-1].ID)
	}
	for _, row := range rows {
		page.Documents = append(page.Documents, map[string]any(row.Body))
	}
	return page, nil
}

func (s *PostgresStore) Delete(ctx context.Context, id string) error {
	ctx, span := tracing.StartSpan(ctx, "docstore.PostgresStore.Delete")
	defer span.End()

	db := database.NewDeleteBuilder()
	db.DeleteFrom(documentsTable)
	db.Where(db.Equal("id", id))

	query, args := db.Build()
	res, err := s.db.ExecContext(ctx, query, args...)
	if err != nil {
		s.logger.WithContext(ctx).WithError(err).WithField("entity_id", id).Error("Failed to delete document")
		return httperror.NewHTTPError(http.StatusInternalServerError, "failed to delete document")
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return ErrNotFound
	}
	return nil
}
