package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"hash/fnv"
	"log/slog"
	"strconv"
	"strings"
	"time"

	"entgo.io/ent/dialect"
	entsql "entgo.io/ent/dialect/sql"
	"github.com/google/uuid"

	"github.com/joseph-ayodele/expense-docs/internal/common"
	"github.com/joseph-ayodele/expense-docs/internal/entity"
)

const documentTable = "expense_document"

var documentColumns = []string{
	"id",
	"solicitud_id",
	"numero_operacion",
	"tipo_documento",
	"fecha",
	"numero_documento",
	"ruc",
	"razon_social",
	"total",
	"nombre_archivo",
	"archivo_key",
	"mime_type",
	"sha256",
	"pagina",
	"creado",
}

// OperationPrefix is the fixed head of every numero_operacion.
const OperationPrefix = "DOC-"

// FormatOperationNumber renders DOC-YYYYMMDD-NNNN. Past 9999 the counter keeps its digits.
func FormatOperationNumber(day time.Time, seq int) string {
	return fmt.Sprintf("%s%s-%04d", OperationPrefix, day.Format("20060102"), seq)
}

type DocumentRepository interface {
	// CreateMany stores docs in one transaction, assigning id, numero_operacion and creado.
	CreateMany(ctx context.Context, docs []entity.Document) ([]entity.Document, error)
	ListBySolicitud(ctx context.Context, solicitudID string) ([]entity.Document, error)
}

type documentRepository struct {
	db     *DB
	now    func() time.Time
	logger *slog.Logger
}

type DocumentOption func(*documentRepository)

// WithClock overrides the time source used for creado and the daily counter.
func WithClock(now func() time.Time) DocumentOption {
	return func(r *documentRepository) { r.now = now }
}

func NewDocumentRepository(db *DB, logger *slog.Logger, opts ...DocumentOption) DocumentRepository {
	if logger == nil {
		logger = slog.Default()
	}
	r := &documentRepository{db: db, now: time.Now, logger: logger}
	for _, o := range opts {
		o(r)
	}
	return r
}

func (r *documentRepository) CreateMany(ctx context.Context, docs []entity.Document) ([]entity.Document, error) {
	if len(docs) == 0 {
		return nil, nil
	}
	tx, err := r.db.SQL().BeginTx(ctx, nil)
	if err != nil {
		r.logger.Error("failed to begin transaction", "error", err)
		return nil, fmt.Errorf("%w: %w", common.ErrDatabase, err)
	}
	defer func() { _ = tx.Rollback() }()

	now := r.now().UTC()
	seq, err := r.lastSequence(ctx, tx, now)
	if err != nil {
		return nil, err
	}

	out := make([]entity.Document, len(docs))
	ins := entsql.Dialect(r.db.Dialect()).Insert(documentTable).Columns(documentColumns...)
	for i, d := range docs {
		seq++
		d.ID = uuid.New()
		d.NumeroOperacion = FormatOperationNumber(now, seq)
		d.Creado = now
		if d.Pagina <= 0 {
			d.Pagina = 1
		}
		ins.Values(
			d.ID,
			d.SolicitudID,
			d.NumeroOperacion,
			d.TipoDocumento,
			nullString(d.Fecha),
			d.NumeroDocumento,
			nullString(d.RUC),
			d.RazonSocial,
			float64(d.Total),
			d.NombreArchivo,
			d.ArchivoKey,
			d.MIMEType,
			d.SHA256,
			d.Pagina,
			d.Creado,
		)
		out[i] = d
	}
	query, args := ins.Query()
	if _, err := tx.ExecContext(ctx, query, args...); err != nil {
		r.logger.Error("failed to insert documents", "solicitud_id", docs[0].SolicitudID, "rows", len(docs), "error", err)
		return nil, fmt.Errorf("%w: %w", common.ErrDatabase, err)
	}
	if err := tx.Commit(); err != nil {
		r.logger.Error("failed to commit documents", "error", err)
		return nil, fmt.Errorf("%w: %w", common.ErrDatabase, err)
	}
	r.logger.Debug("repository.documents.created", "solicitud_id", docs[0].SolicitudID, "rows", len(out))
	return out, nil
}

// lastSequence returns the highest counter already used on day. On Postgres the
// day is locked for the rest of the transaction.
func (r *documentRepository) lastSequence(ctx context.Context, tx *sql.Tx, day time.Time) (int, error) {
	prefix := FormatOperationNumber(day, 0)
	prefix = prefix[:len(prefix)-4]

	if r.db.Dialect() == dialect.Postgres {
		h := fnv.New64a()
		_, _ = h.Write([]byte(prefix))
		if _, err := tx.ExecContext(ctx, "SELECT pg_advisory_xact_lock($1)", int64(h.Sum64())); err != nil {
			return 0, fmt.Errorf("%w: %w", common.ErrDatabase, err)
		}
	}

	// longest first: past 9999 the counter widens and text order alone breaks
	b := entsql.Dialect(r.db.Dialect())
	query, args := b.Select("numero_operacion").
		From(b.Table(documentTable)).
		Where(entsql.HasPrefix("numero_operacion", prefix)).
		OrderExpr(entsql.Expr("LENGTH(numero_operacion) DESC")).
		OrderBy(entsql.Desc("numero_operacion")).
		Limit(1).
		Query()
	var last sql.NullString
	if err := tx.QueryRowContext(ctx, query, args...).Scan(&last); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return 0, nil
		}
		r.logger.Error("failed to read operation counter", "prefix", prefix, "error", err)
		return 0, fmt.Errorf("%w: %w", common.ErrDatabase, err)
	}
	if !last.Valid {
		return 0, nil
	}
	n, err := strconv.Atoi(strings.TrimPrefix(last.String, prefix))
	if err != nil {
		return 0, fmt.Errorf("%w: malformed numero_operacion %q", common.ErrInternal, last.String)
	}
	return n, nil
}

func (r *documentRepository) ListBySolicitud(ctx context.Context, solicitudID string) ([]entity.Document, error) {
	b := entsql.Dialect(r.db.Dialect())
	query, args := b.Select(documentColumns...).
		From(b.Table(documentTable)).
		Where(entsql.EQ("solicitud_id", solicitudID)).
		OrderBy("creado", "numero_operacion").
		Query()

	rows, err := r.db.SQL().QueryContext(ctx, query, args...)
	if err != nil {
		r.logger.Error("failed to list documents", "solicitud_id", solicitudID, "error", err)
		return nil, fmt.Errorf("%w: %w", common.ErrDatabase, err)
	}
	defer rows.Close()

	docs := make([]entity.Document, 0)
	for rows.Next() {
		var (
			d          entity.Document
			fecha, ruc sql.NullString
			total      float64
		)
		if err := rows.Scan(
			&d.ID,
			&d.SolicitudID,
			&d.NumeroOperacion,
			&d.TipoDocumento,
			&fecha,
			&d.NumeroDocumento,
			&ruc,
			&d.RazonSocial,
			&total,
			&d.NombreArchivo,
			&d.ArchivoKey,
			&d.MIMEType,
			&d.SHA256,
			&d.Pagina,
			&d.Creado,
		); err != nil {
			return nil, fmt.Errorf("%w: %w", common.ErrDatabase, err)
		}
		d.Fecha = stringPtr(fecha)
		d.RUC = stringPtr(ruc)
		d.Total = entity.Amount(total)
		docs = append(docs, d)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("%w: %w", common.ErrDatabase, err)
	}
	return docs, nil
}

func nullString(s *string) sql.NullString {
	if s == nil {
		return sql.NullString{}
	}
	return sql.NullString{String: *s, Valid: true}
}

func stringPtr(ns sql.NullString) *string {
	if !ns.Valid {
		return nil
	}
	v := ns.String
	return &v
}
