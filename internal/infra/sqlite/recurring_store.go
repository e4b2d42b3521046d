package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/boddenberg/moodledger-go/internal/domain"
	"github.com/boddenberg/moodledger-go/internal/recurring"

	"github.com/shopspring/decimal"
	"go.opentelemetry.io/otel/attribute"
	"go.uber.org/zap"
)

const templateColumns = `id, title, amount, currency, category, merchant, mood, note, tags, frequency, start_date, last_materialized`

func scanTemplate(row rowScanner) (*domain.RecurringTemplate, error) {
	var (
		tpl       domain.RecurringTemplate
		amount    string
		mood      int
		tags      string
		frequency string
		startDate int64
		lastMat   sql.NullInt64
	)
	if err := row.Scan(&tpl.ID, &tpl.Title, &amount, &tpl.Currency, &tpl.Category, &tpl.Merchant,
		&mood, &tpl.Note, &tags, &frequency, &startDate, &lastMat); err != nil {
		return nil, err
	}

	amt, err := decimal.NewFromString(amount)
	if err != nil {
		return nil, fmt.Errorf("decode amount of template %s: %w", tpl.ID, err)
	}
	tpl.Amount = amt
	tpl.Mood = domain.Mood(mood)
	tpl.Frequency = domain.Frequency(frequency)
	tpl.StartDate = fromMillis(startDate)
	tpl.LastMaterialized = fromNullMillis(lastMat)
	if tpl.Tags, err = decodeTags(tags); err != nil {
		return nil, err
	}
	return &tpl, nil
}

func (s *Store) ListRecurringTemplates(ctx context.Context) ([]domain.RecurringTemplate, error) {
	ctx, span := tracer.Start(ctx, "SQLite.ListRecurringTemplates")
	defer span.End()

	rows, err := s.db.QueryContext(ctx, `SELECT `+templateColumns+` FROM recurring_templates ORDER BY start_date ASC, id ASC`)
	if err != nil {
		return nil, fmt.Errorf("query recurring templates: %w", err)
	}
	defer rows.Close()

	var out []domain.RecurringTemplate
	for rows.Next() {
		tpl, err := scanTemplate(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, *tpl)
	}
	span.SetAttributes(attribute.Int("templates.count", len(out)))
	return out, rows.Err()
}

func (s *Store) GetRecurringTemplate(ctx context.Context, id string) (*domain.RecurringTemplate, error) {
	ctx, span := tracer.Start(ctx, "SQLite.GetRecurringTemplate")
	defer span.End()

	row := s.db.QueryRowContext(ctx, `SELECT `+templateColumns+` FROM recurring_templates WHERE id = ?`, id)
	tpl, err := scanTemplate(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, &domain.ErrNotFound{Resource: "recurring template", ID: id}
	}
	if err != nil {
		return nil, fmt.Errorf("get recurring template: %w", err)
	}
	return tpl, nil
}

func (s *Store) CreateRecurringTemplate(ctx context.Context, tpl *domain.RecurringTemplate) error {
	ctx, span := tracer.Start(ctx, "SQLite.CreateRecurringTemplate")
	defer span.End()

	tags, err := encodeTags(tpl.Tags)
	if err != nil {
		return err
	}
	err = s.withRetry(ctx, func() error {
		_, err := s.db.ExecContext(ctx,
			`INSERT INTO recurring_templates (`+templateColumns+`) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
			tpl.ID, tpl.Title, tpl.Amount.String(), tpl.Currency, tpl.Category, tpl.Merchant,
			int(tpl.Mood), tpl.Note, tags, string(tpl.Frequency), toMillis(tpl.StartDate), nullMillis(tpl.LastMaterialized),
		)
		return err
	})
	if isUniqueViolation(err) {
		return &domain.ErrConflict{Message: fmt.Sprintf("recurring template %s already exists", tpl.ID)}
	}
	if err != nil {
		return fmt.Errorf("insert recurring template: %w", err)
	}
	return nil
}

// UpdateRecurringTemplate saves the user-editable fields. last_materialized is
// owned by the engine and left untouched.
func (s *Store) UpdateRecurringTemplate(ctx context.Context, tpl *domain.RecurringTemplate) error {
	ctx, span := tracer.Start(ctx, "SQLite.UpdateRecurringTemplate")
	defer span.End()

	tags, err := encodeTags(tpl.Tags)
	if err != nil {
		return err
	}

	var affected int64
	err = s.withRetry(ctx, func() error {
		res, err := s.db.ExecContext(ctx,
			`UPDATE recurring_templates
			 SET title = ?, amount = ?, category = ?, merchant = ?, mood = ?, note = ?, tags = ?, frequency = ?, start_date = ?
			 WHERE id = ?`,
			tpl.Title, tpl.Amount.String(), tpl.Category, tpl.Merchant, int(tpl.Mood), tpl.Note, tags,
			string(tpl.Frequency), toMillis(tpl.StartDate), tpl.ID,
		)
		if err != nil {
			return err
		}
		affected, err = res.RowsAffected()
		return err
	})
	if err != nil {
		return fmt.Errorf("update recurring template: %w", err)
	}
	if affected == 0 {
		return &domain.ErrNotFound{Resource: "recurring template", ID: tpl.ID}
	}
	return nil
}

// DeleteRecurringTemplate removes the template. Transactions it already
// produced stay in the log.
func (s *Store) DeleteRecurringTemplate(ctx context.Context, id string) error {
	ctx, span := tracer.Start(ctx, "SQLite.DeleteRecurringTemplate")
	defer span.End()

	var affected int64
	err := s.withRetry(ctx, func() error {
		res, err := s.db.ExecContext(ctx, `DELETE FROM recurring_templates WHERE id = ?`, id)
		if err != nil {
			return err
		}
		affected, err = res.RowsAffected()
		return err
	})
	if err != nil {
		return fmt.Errorf("delete recurring template: %w", err)
	}
	if affected == 0 {
		return &domain.ErrNotFound{Resource: "recurring template", ID: id}
	}
	return nil
}

// UpdateRecurringTemplates overwrites last_materialized for every given
// template unconditionally. Unknown IDs are skipped. It does no
// compare-and-swap, so it is unsafe with more than one writer; catch-up goes
// through SaveMaterialization instead.
func (s *Store) UpdateRecurringTemplates(ctx context.Context, templates []domain.RecurringTemplate) error {
	ctx, span := tracer.Start(ctx, "SQLite.UpdateRecurringTemplates")
	defer span.End()
	span.SetAttributes(attribute.Int("templates.count", len(templates)))

	if len(templates) == 0 {
		return nil
	}
	return s.inTx(ctx, func(sqlTx *sql.Tx) error {
		for _, tpl := range templates {
			if _, err := sqlTx.ExecContext(ctx,
				`UPDATE recurring_templates SET last_materialized = ? WHERE id = ?`,
				nullMillis(tpl.LastMaterialized), tpl.ID,
			); err != nil {
				return fmt.Errorf("update template %s: %w", tpl.ID, err)
			}
		}
		return nil
	})
}

// SaveMaterialization appends the generated transactions and moves each
// template's cursor in one SQL transaction. A cursor that changed since it was
// read aborts the whole unit with ErrConflict.
func (s *Store) SaveMaterialization(ctx context.Context, txs []domain.Transaction, advances []recurring.Advance) error {
	ctx, span := tracer.Start(ctx, "SQLite.SaveMaterialization")
	defer span.End()
	span.SetAttributes(
		attribute.Int("transactions.count", len(txs)),
		attribute.Int("advances.count", len(advances)),
	)

	if len(txs) == 0 && len(advances) == 0 {
		return nil
	}

	err := s.inTx(ctx, func(sqlTx *sql.Tx) error {
		if err := appendTransactions(ctx, sqlTx, txs); err != nil {
			return err
		}
		for _, a := range advances {
			res, err := sqlTx.ExecContext(ctx,
				`UPDATE recurring_templates SET last_materialized = ? WHERE id = ? AND last_materialized IS ?`,
				toMillis(a.LastMaterialized), a.TemplateID, nullMillis(a.Previous),
			)
			if err != nil {
				return fmt.Errorf("advance template %s: %w", a.TemplateID, err)
			}
			n, err := res.RowsAffected()
			if err != nil {
				return err
			}
			if n == 0 {
				return &domain.ErrConflict{Message: fmt.Sprintf("recurring template %s changed during catch-up", a.TemplateID)}
			}
		}
		return nil
	})
	if err != nil {
		return err
	}

	s.logger.Debug("materialization saved",
		zap.Int("transactions", len(txs)),
		zap.Int("advances", len(advances)),
	)
	return nil
}
