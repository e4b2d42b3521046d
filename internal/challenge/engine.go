// Package challenge re-evaluates user challenge attempts against the ledger.
//
// Evaluate is a pure function: the caller supplies the transaction log and
// the current instant, and persists Result.Changed.
package challenge

import (
	"time"

	"github.com/boddenberg/moodledger-go/internal/domain"

	"github.com/shopspring/decimal"
)

// Result is the output of one Evaluate pass.
type Result struct {
	// Changed holds only the attempts whose status or progress moved.
	Changed   []domain.UserChallenge
	Anomalies []error
}

// Evaluate recomputes every active attempt. Terminal attempts are never touched.
//
// Within one attempt a breach (limit exceeded, or a purchase in a no-spend
// category) wins over an elapsed window: an attempt that is both over its
// target and past its end is failed, not completed.
func Evaluate(attempts []domain.UserChallenge, catalog []domain.Challenge, transactions []domain.Transaction, now time.Time) Result {
	defs := make(map[string]*domain.Challenge, len(catalog))
	for i := range catalog {
		defs[catalog[i].ID] = &catalog[i]
	}

	var res Result
	for _, uc := range attempts {
		if uc.Status != domain.ChallengeActive {
			continue
		}
		def, ok := defs[uc.ChallengeID]
		if !ok {
			res.Anomalies = append(res.Anomalies, &domain.ErrDataIntegrity{
				Entity: "user_challenge",
				ID:     uc.ID,
				Reason: "challenge definition " + uc.ChallengeID + " not found",
			})
			continue
		}

		next, err := evaluateOne(uc, def, transactions, now)
		if err != nil {
			res.Anomalies = append(res.Anomalies, err)
			continue
		}
		if next.Status != uc.Status || !next.Progress.Equal(uc.Progress) {
			res.Changed = append(res.Changed, next)
		}
	}
	return res
}

func evaluateOne(uc domain.UserChallenge, def *domain.Challenge, transactions []domain.Transaction, now time.Time) (domain.UserChallenge, error) {
	from, to := def.Window(uc.StartDate)
	watched := def.CategorySet()

	spent := decimal.Zero
	violated := false
	for _, tx := range transactions {
		if tx.Timestamp.Before(from) || tx.Timestamp.After(to) {
			continue
		}
		if _, ok := watched[tx.Category]; !ok {
			continue
		}
		spent = spent.Add(tx.Amount)
		violated = true
	}
	elapsed := now.After(to)

	next := uc
	switch def.Type {
	case domain.ChallengeSpendLimit:
		next.Progress = spent
		switch {
		case spent.GreaterThan(def.Target):
			finish(&next, domain.ChallengeFailed, now)
		case elapsed:
			finish(&next, domain.ChallengeCompleted, now)
		}
	case domain.ChallengeNoSpend:
		next.Progress = decimal.Zero
		switch {
		case violated:
			finish(&next, domain.ChallengeFailed, now)
		case elapsed:
			finish(&next, domain.ChallengeCompleted, now)
		}
	default:
		return uc, &domain.ErrDataIntegrity{
			Entity: "challenge",
			ID:     def.ID,
			Reason: "unknown challenge type " + string(def.Type),
		}
	}
	return next, nil
}

func finish(uc *domain.UserChallenge, status domain.ChallengeStatus, now time.Time) {
	end := now
	uc.Status = status
	uc.EndDate = &end
}
