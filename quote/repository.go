package quote

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/stripe/stripe-go/v79"
	"go.uber.org/zap"

	"goflare.io/quoting/apperr"
	"goflare.io/quoting/driver"
	"goflare.io/quoting/models"
	"goflare.io/quoting/models/enum"
)

var _ Repository = (*repository)(nil)

type Repository interface {
	Create(ctx context.Context, tx pgx.Tx, quote *models.Quote) error
	// Update saves quote only if the stored revision equals quote.Revision,
	// and advances quote.Revision on success. A stale revision is ErrConflict.
	Update(ctx context.Context, tx pgx.Tx, quote *models.Quote) error
	GetByID(ctx context.Context, tx pgx.Tx, id uint64) (*models.Quote, error)
	// GetForUpdate reads the quote and holds its row lock until tx ends.
	GetForUpdate(ctx context.Context, tx pgx.Tx, id uint64) (*models.Quote, error)
	ListByCustomer(ctx context.Context, tx pgx.Tx, customerID uint64, includeArchived bool) ([]*models.Quote, error)
	// Delete archives the quote and reports whether anything changed.
	Delete(ctx context.Context, tx pgx.Tx, id uint64, at time.Time) (bool, error)
}

const selectColumns = `
    SELECT id, customer_id, state, version, revision, currency, lines, components, payment_schedule,
           malleable_data, malleable_schema_version, sent_at, accepted_at, rejected_at, archived_at,
           created_at, updated_at
    FROM quotes`

type repository struct {
	conn   driver.PostgresPool
	logger *zap.Logger
}

func NewRepository(conn driver.PostgresPool, logger *zap.Logger) Repository {
	return &repository{
		conn:   conn,
		logger: logger,
	}
}

// documents holds the JSON columns of a quote.
type documents struct {
	lines, components, schedule, malleable []byte
}

func encode(q *models.Quote) (documents, error) {
	var (
		d   documents
		err error
	)
	if d.lines, err = json.Marshal(q.Lines); err != nil {
		return d, fmt.Errorf("failed to encode lines: %w", err)
	}
	if d.components, err = json.Marshal(q.Components); err != nil {
		return d, fmt.Errorf("failed to encode components: %w", err)
	}
	if d.schedule, err = json.Marshal(q.PaymentSchedule); err != nil {
		return d, fmt.Errorf("failed to encode payment schedule: %w", err)
	}
	if d.malleable, err = json.Marshal(q.MalleableData); err != nil {
		return d, fmt.Errorf("failed to encode malleable data: %w", err)
	}
	return d, nil
}

func (r *repository) Create(ctx context.Context, tx pgx.Tx, quote *models.Quote) error {
	const query = `
    INSERT INTO quotes (customer_id, state, version, revision, currency, lines, components, payment_schedule,
                        malleable_data, malleable_schema_version, created_at, updated_at)
    VALUES (@customer_id, @state, @version, 1, @currency, @lines, @components, @payment_schedule,
            @malleable_data, @malleable_schema_version, @now, @now)
    RETURNING id, revision, created_at, updated_at
    `

	docs, err := encode(quote)
	if err != nil {
		return err
	}

	args := pgx.NamedArgs{
		"customer_id":              quote.CustomerID,
		"state":                    quote.State,
		"version":                  quote.Version,
		"currency":                 string(quote.Currency),
		"lines":                    docs.lines,
		"components":               docs.components,
		"payment_schedule":         docs.schedule,
		"malleable_data":           docs.malleable,
		"malleable_schema_version": quote.SchemaVersion,
		"now":                      time.Now().UTC(),
	}

	if err = tx.QueryRow(ctx, query, args).Scan(&quote.ID, &quote.Revision, &quote.CreatedAt, &quote.UpdatedAt); err != nil {
		return apperr.FromPg(err, "failed to create quote for customer %d", quote.CustomerID)
	}
	return nil
}

func (r *repository) Update(ctx context.Context, tx pgx.Tx, quote *models.Quote) error {
	const query = `
    UPDATE quotes SET
        state = @state,
        version = @version,
        revision = revision + 1,
        currency = @currency,
        lines = @lines,
        components = @components,
        payment_schedule = @payment_schedule,
        malleable_data = @malleable_data,
        malleable_schema_version = @malleable_schema_version,
        sent_at = @sent_at,
        accepted_at = @accepted_at,
        rejected_at = @rejected_at,
        archived_at = @archived_at,
        updated_at = @now
    WHERE id = @id AND revision = @revision
    RETURNING revision, updated_at
    `

	docs, err := encode(quote)
	if err != nil {
		return err
	}

	args := pgx.NamedArgs{
		"id":                       quote.ID,
		"revision":                 quote.Revision,
		"state":                    quote.State,
		"version":                  quote.Version,
		"currency":                 string(quote.Currency),
		"lines":                    docs.lines,
		"components":               docs.components,
		"payment_schedule":         docs.schedule,
		"malleable_data":           docs.malleable,
		"malleable_schema_version": quote.SchemaVersion,
		"sent_at":                  quote.SentAt,
		"accepted_at":              quote.AcceptedAt,
		"rejected_at":              quote.RejectedAt,
		"archived_at":              quote.ArchivedAt,
		"now":                      time.Now().UTC(),
	}

	err = tx.QueryRow(ctx, query, args).Scan(&quote.Revision, &quote.UpdatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		exists, existsErr := r.exists(ctx, tx, quote.ID)
		if existsErr != nil {
			return existsErr
		}
		if !exists {
			return apperr.NotFound("quote %d does not exist", quote.ID)
		}
		return apperr.Conflict("quote %d was modified concurrently (revision %d is stale)", quote.ID, quote.Revision)
	}
	if err != nil {
		return apperr.FromPg(err, "failed to update quote %d", quote.ID)
	}

	return nil
}

func (r *repository) exists(ctx context.Context, tx pgx.Tx, id uint64) (bool, error) {
	var exists bool
	if err := tx.QueryRow(ctx, `SELECT EXISTS (SELECT 1 FROM quotes WHERE id = $1)`, id).Scan(&exists); err != nil {
		return false, fmt.Errorf("failed to check quote %d: %w", id, err)
	}
	return exists, nil
}

func (r *repository) GetByID(ctx context.Context, tx pgx.Tx, id uint64) (*models.Quote, error) {
	quote, err := r.scan(tx.QueryRow(ctx, selectColumns+` WHERE id = $1`, id))
	if err != nil {
		if !errors.Is(err, pgx.ErrNoRows) {
			r.logger.Error("error getting quote", zap.Error(err), zap.Uint64("quote_id", id))
		}
		return nil, apperr.FromPg(err, "quote %d does not exist", id)
	}
	return quote, nil
}

func (r *repository) GetForUpdate(ctx context.Context, tx pgx.Tx, id uint64) (*models.Quote, error) {
	quote, err := r.scan(tx.QueryRow(ctx, selectColumns+` WHERE id = $1 FOR UPDATE`, id))
	if err != nil {
		if !errors.Is(err, pgx.ErrNoRows) {
			r.logger.Error("error locking quote", zap.Error(err), zap.Uint64("quote_id", id))
		}
		return nil, apperr.FromPg(err, "quote %d does not exist", id)
	}
	return quote, nil
}

func (r *repository) ListByCustomer(ctx context.Context, tx pgx.Tx, customerID uint64, includeArchived bool) ([]*models.Quote, error) {
	query := selectColumns + ` WHERE customer_id = $1 AND ($2 OR state <> 'archived') ORDER BY id`

	rows, err := tx.Query(ctx, query, customerID, includeArchived)
	if err != nil {
		r.logger.Error("error listing quotes", zap.Error(err), zap.Uint64("customer_id", customerID))
		return nil, fmt.Errorf("failed to list quotes of customer %d: %w", customerID, err)
	}
	defer rows.Close()

	quotes := make([]*models.Quote, 0)
	for rows.Next() {
		quote, err := r.scan(rows)
		if err != nil {
			return nil, err
		}
		quotes = append(quotes, quote)
	}
	return quotes, rows.Err()
}

func (r *repository) Delete(ctx context.Context, tx pgx.Tx, id uint64, at time.Time) (bool, error) {
	const query = `
    UPDATE quotes
    SET state = 'archived', archived_at = $2, revision = revision + 1, updated_at = $2
    WHERE id = $1 AND state <> 'archived'
    `

	tag, err := tx.Exec(ctx, query, id, at)
	if err != nil {
		return false, fmt.Errorf("failed to archive quote %d: %w", id, err)
	}
	if tag.RowsAffected() > 0 {
		return true, nil
	}

	exists, err := r.exists(ctx, tx, id)
	if err != nil {
		return false, err
	}
	if !exists {
		return false, apperr.NotFound("quote %d does not exist", id)
	}
	return false, nil
}

func (r *repository) scan(row pgx.Row) (*models.Quote, error) {
	var (
		quote    models.Quote
		state    string
		currency string
		docs     documents
	)

	if err := row.Scan(&quote.ID, &quote.CustomerID, &state, &quote.Version, &quote.Revision, &currency,
		&docs.lines, &docs.components, &docs.schedule, &docs.malleable, &quote.SchemaVersion,
		&quote.SentAt, &quote.AcceptedAt, &quote.RejectedAt, &quote.ArchivedAt,
		&quote.CreatedAt, &quote.UpdatedAt); err != nil {
		return nil, err
	}

	quote.State = enum.QuoteState(state)
	quote.Currency = stripe.Currency(currency)

	if err := json.Unmarshal(docs.lines, &quote.Lines); err != nil {
		return nil, fmt.Errorf("failed to decode lines of quote %d: %w", quote.ID, err)
	}
	if err := json.Unmarshal(docs.components, &quote.Components); err != nil {
		return nil, fmt.Errorf("failed to decode components of quote %d: %w", quote.ID, err)
	}
	if err := json.Unmarshal(docs.schedule, &quote.PaymentSchedule); err != nil {
		return nil, fmt.Errorf("failed to decode payment schedule of quote %d: %w", quote.ID, err)
	}
	if err := json.Unmarshal(docs.malleable, &quote.MalleableData); err != nil {
		return nil, fmt.Errorf("failed to decode malleable data of quote %d: %w", quote.ID, err)
	}

	return &quote, nil
}
