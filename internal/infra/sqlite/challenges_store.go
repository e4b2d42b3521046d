package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/boddenberg/moodledger-go/internal/domain"

	"github.com/shopspring/decimal"
	"go.opentelemetry.io/otel/attribute"
	"go.uber.org/zap"
)

// ============================================================
// Challenge catalog and attempts
// ============================================================

// SeedCatalog upserts the built-in challenge definitions.
func (s *Store) SeedCatalog(ctx context.Context, catalog []domain.Challenge) error {
	ctx, span := tracer.Start(ctx, "SQLite.SeedCatalog")
	defer span.End()
	span.SetAttributes(attribute.Int("challenges.count", len(catalog)))

	err := s.inTx(ctx, func(sqlTx *sql.Tx) error {
		for _, c := range catalog {
			if _, err := sqlTx.ExecContext(ctx,
				`INSERT INTO challenges (id, title, description, type, duration_days, target, categories, badge_id)
				 VALUES (?, ?, ?, ?, ?, ?, ?, ?)
				 ON CONFLICT (id) DO UPDATE SET
				   title = excluded.title, description = excluded.description, type = excluded.type,
				   duration_days = excluded.duration_days, target = excluded.target,
				   categories = excluded.categories, badge_id = excluded.badge_id`,
				c.ID, c.Title, c.Description, string(c.Type), c.DurationDays, c.Target.String(), c.Categories, c.BadgeID,
			); err != nil {
				return fmt.Errorf("seed challenge %s: %w", c.ID, err)
			}
		}
		return nil
	})
	if err != nil {
		return err
	}
	s.logger.Debug("challenge catalog seeded", zap.Int("count", len(catalog)))
	return nil
}

func (s *Store) ListChallengeCatalog(ctx context.Context) ([]domain.Challenge, error) {
	ctx, span := tracer.Start(ctx, "SQLite.ListChallengeCatalog")
	defer span.End()

	rows, err := s.db.QueryContext(ctx,
		`SELECT id, title, description, type, duration_days, target, categories, badge_id FROM challenges ORDER BY id ASC`)
	if err != nil {
		return nil, fmt.Errorf("query challenge catalog: %w", err)
	}
	defer rows.Close()

	var out []domain.Challenge
	for rows.Next() {
		var (
			c      domain.Challenge
			typ    string
			target string
		)
		if err := rows.Scan(&c.ID, &c.Title, &c.Description, &typ, &c.DurationDays, &target, &c.Categories, &c.BadgeID); err != nil {
			return nil, err
		}
		c.Type = domain.ChallengeType(typ)
		if c.Target, err = decimal.NewFromString(target); err != nil {
			return nil, fmt.Errorf("decode target of challenge %s: %w", c.ID, err)
		}
		out = append(out, c)
	}
	return out, rows.Err()
}

const userChallengeColumns = `id, challenge_id, start_date, status, progress, end_date`

func scanUserChallenge(row rowScanner) (*domain.UserChallenge, error) {
	var (
		uc        domain.UserChallenge
		startDate int64
		status    string
		progress  string
		endDate   sql.NullInt64
	)
	if err := row.Scan(&uc.ID, &uc.ChallengeID, &startDate, &status, &progress, &endDate); err != nil {
		return nil, err
	}
	p, err := decimal.NewFromString(progress)
	if err != nil {
		return nil, fmt.Errorf("decode progress of attempt %s: %w", uc.ID, err)
	}
	uc.Progress = p
	uc.StartDate = fromMillis(startDate)
	uc.Status = domain.ChallengeStatus(status)
	uc.EndDate = fromNullMillis(endDate)
	return &uc, nil
}

// ListUserChallenges returns every attempt, newest first.
func (s *Store) ListUserChallenges(ctx context.Context) ([]domain.UserChallenge, error) {
	ctx, span := tracer.Start(ctx, "SQLite.ListUserChallenges")
	defer span.End()

	rows, err := s.db.QueryContext(ctx,
		`SELECT `+userChallengeColumns+` FROM user_challenges ORDER BY start_date DESC, id ASC`)
	if err != nil {
		return nil, fmt.Errorf("query user challenges: %w", err)
	}
	defer rows.Close()

	var out []domain.UserChallenge
	for rows.Next() {
		uc, err := scanUserChallenge(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, *uc)
	}
	return out, rows.Err()
}

// CreateUserChallenge stores a new attempt. The definition must exist and no
// other active attempt of it may be open.
func (s *Store) CreateUserChallenge(ctx context.Context, uc *domain.UserChallenge) error {
	ctx, span := tracer.Start(ctx, "SQLite.CreateUserChallenge")
	defer span.End()
	span.SetAttributes(attribute.String("challenge.id", uc.ChallengeID))

	err := s.inTx(ctx, func(sqlTx *sql.Tx) error {
		var exists int
		err := sqlTx.QueryRowContext(ctx, `SELECT 1 FROM challenges WHERE id = ?`, uc.ChallengeID).Scan(&exists)
		if errors.Is(err, sql.ErrNoRows) {
			return &domain.ErrNotFound{Resource: "challenge", ID: uc.ChallengeID}
		}
		if err != nil {
			return err
		}

		var active int
		if err := sqlTx.QueryRowContext(ctx,
			`SELECT COUNT(*) FROM user_challenges WHERE challenge_id = ? AND status = 'active'`, uc.ChallengeID,
		).Scan(&active); err != nil {
			return err
		}
		if active > 0 {
			return &domain.ErrConflict{Message: fmt.Sprintf("challenge %s already has an active attempt", uc.ChallengeID)}
		}

		_, err = sqlTx.ExecContext(ctx,
			`INSERT INTO user_challenges (`+userChallengeColumns+`) VALUES (?, ?, ?, ?, ?, ?)`,
			uc.ID, uc.ChallengeID, toMillis(uc.StartDate), string(uc.Status), uc.Progress.String(), nullMillis(uc.EndDate),
		)
		return err
	})
	if isUniqueViolation(err) {
		return &domain.ErrConflict{Message: fmt.Sprintf("challenge %s already has an active attempt", uc.ChallengeID)}
	}
	return err
}

// ReplaceUserChallenges writes the evaluated state of attempts that are still
// active in storage and returns the ones written. An attempt that ended since
// it was read is left alone and skipped, so the rest of the batch still lands.
func (s *Store) ReplaceUserChallenges(ctx context.Context, changed []domain.UserChallenge) ([]domain.UserChallenge, error) {
	ctx, span := tracer.Start(ctx, "SQLite.ReplaceUserChallenges")
	defer span.End()
	span.SetAttributes(attribute.Int("attempts.count", len(changed)))

	if len(changed) == 0 {
		return nil, nil
	}

	var saved []domain.UserChallenge
	err := s.inTx(ctx, func(sqlTx *sql.Tx) error {
		saved = saved[:0]
		for _, uc := range changed {
			res, err := sqlTx.ExecContext(ctx,
				`UPDATE user_challenges SET status = ?, progress = ?, end_date = ?
				 WHERE id = ? AND status = 'active'`,
				string(uc.Status), uc.Progress.String(), nullMillis(uc.EndDate), uc.ID,
			)
			if err != nil {
				return fmt.Errorf("update attempt %s: %w", uc.ID, err)
			}
			n, err := res.RowsAffected()
			if err != nil {
				return err
			}
			if n == 0 {
				s.logger.Warn("skipping attempt that is no longer active",
					zap.String("user_challenge_id", uc.ID),
					zap.String("challenge_id", uc.ChallengeID),
				)
				continue
			}
			saved = append(saved, uc)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.logger.Debug("challenge attempts saved",
		zap.Int("saved", len(saved)),
		zap.Int("skipped", len(changed)-len(saved)),
	)
	return saved, nil
}
