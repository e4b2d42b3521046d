package sqlite_test

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"
	"testing"
	"time"

	"github.com/boddenberg/moodledger-go/internal/challenge"
	"github.com/boddenberg/moodledger-go/internal/domain"
	"github.com/boddenberg/moodledger-go/internal/infra/resilience"
	"github.com/boddenberg/moodledger-go/internal/infra/sqlite"
	"github.com/boddenberg/moodledger-go/internal/recurring"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"
	"go.uber.org/zap/zaptest/observer"
)

func openStore(t *testing.T) *sqlite.Store {
	t.Helper()
	path := filepath.Join(t.TempDir(), "ledger.db")
	s, err := sqlite.Open(context.Background(), path,
		resilience.Config{MaxRetries: 2, InitialBackoff: time.Millisecond}, zap.NewNop())
	if err != nil {
		t.Fatalf("open store: %v", err)
	}
	t.Cleanup(func() { s.Close() })
	return s
}

func day(y int, m time.Month, d int) time.Time {
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

func sampleTx(id string, at time.Time, amount string, category string) domain.Transaction {
	return domain.Transaction{
		ID:        id,
		Timestamp: at,
		Amount:    decimal.RequireFromString(amount),
		Currency:  "EUR",
		Category:  category,
		Merchant:  "Corner Shop",
		Mood:      3,
		Tags:      []string{"groceries", "weekly"},
	}
}

func sampleTemplate(id string) *domain.RecurringTemplate {
	return &domain.RecurringTemplate{
		ID:        id,
		Title:     "Rent",
		Amount:    decimal.RequireFromString("950.00"),
		Currency:  "EUR",
		Category:  "Housing",
		Mood:      2,
		Frequency: domain.FrequencyMonthly,
		StartDate: day(2024, 1, 31),
	}
}

func TestStore_TransactionRoundTrip(t *testing.T) {
	s := openStore(t)
	ctx := context.Background()

	tx := sampleTx("t1", day(2024, 3, 5), "12.34", "Food")
	if err := s.CreateTransaction(ctx, &tx); err != nil {
		t.Fatalf("create: %v", err)
	}

	got, err := s.GetTransaction(ctx, "t1")
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if !got.Amount.Equal(tx.Amount) {
		t.Errorf("expected amount %s, got %s", tx.Amount, got.Amount)
	}
	if !got.Timestamp.Equal(tx.Timestamp) {
		t.Errorf("expected timestamp %s, got %s", tx.Timestamp, got.Timestamp)
	}
	if len(got.Tags) != 2 || got.Tags[0] != "groceries" {
		t.Errorf("unexpected tags %v", got.Tags)
	}
	if got.RecurringID != "" {
		t.Errorf("expected no recurring id, got %q", got.RecurringID)
	}
}

func TestStore_CreateDuplicateTransactionConflicts(t *testing.T) {
	s := openStore(t)
	ctx := context.Background()

	tx := sampleTx("t1", day(2024, 3, 5), "1", "Food")
	if err := s.CreateTransaction(ctx, &tx); err != nil {
		t.Fatalf("create: %v", err)
	}
	var conflict *domain.ErrConflict
	if err := s.CreateTransaction(ctx, &tx); !errors.As(err, &conflict) {
		t.Fatalf("expected ErrConflict, got %v", err)
	}
}

func TestStore_ListTransactionsIsChronological(t *testing.T) {
	s := openStore(t)
	ctx := context.Background()

	err := s.AppendTransactions(ctx, []domain.Transaction{
		sampleTx("late", day(2024, 3, 9), "1", "Food"),
		sampleTx("early", day(2024, 3, 1), "1", "Food"),
		sampleTx("mid", day(2024, 3, 5), "1", "Food"),
	})
	if err != nil {
		t.Fatalf("append: %v", err)
	}

	txs, err := s.ListTransactions(ctx)
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	want := []string{"early", "mid", "late"}
	for i, id := range want {
		if txs[i].ID != id {
			t.Errorf("position %d: expected %s, got %s", i, id, txs[i].ID)
		}
	}

	between, err := s.ListTransactionsBetween(ctx, day(2024, 3, 2), day(2024, 3, 9))
	if err != nil {
		t.Fatalf("list between: %v", err)
	}
	if len(between) != 2 {
		t.Errorf("expected 2 transactions in window, got %d", len(between))
	}
}

func TestStore_AppendSkipsExistingIDs(t *testing.T) {
	s := openStore(t)
	ctx := context.Background()

	first := sampleTx("t1", day(2024, 3, 5), "10", "Food")
	if err := s.AppendTransactions(ctx, []domain.Transaction{first}); err != nil {
		t.Fatalf("append: %v", err)
	}
	again := sampleTx("t1", day(2024, 3, 5), "99", "Food")
	if err := s.AppendTransactions(ctx, []domain.Transaction{again}); err != nil {
		t.Fatalf("second append: %v", err)
	}

	got, _ := s.GetTransaction(ctx, "t1")
	if !got.Amount.Equal(decimal.NewFromInt(10)) {
		t.Errorf("expected original amount to survive, got %s", got.Amount)
	}
}

func TestStore_UpdateAndDeleteTransactions(t *testing.T) {
	s := openStore(t)
	ctx := context.Background()

	txs := []domain.Transaction{
		sampleTx("a", day(2024, 3, 1), "1", "Food"),
		sampleTx("b", day(2024, 3, 2), "2", "Food"),
		sampleTx("c", day(2024, 3, 3), "3", "Food"),
	}
	if err := s.AppendTransactions(ctx, txs); err != nil {
		t.Fatalf("append: %v", err)
	}

	edited := txs[0]
	edited.Category = "Coffee"
	edited.Mood = 5
	if err := s.UpdateTransaction(ctx, &edited); err != nil {
		t.Fatalf("update: %v", err)
	}
	got, _ := s.GetTransaction(ctx, "a")
	if got.Category != "Coffee" || got.Mood != 5 {
		t.Errorf("update not persisted: %+v", got)
	}

	missing := sampleTx("zzz", day(2024, 3, 1), "1", "Food")
	var nf *domain.ErrNotFound
	if err := s.UpdateTransaction(ctx, &missing); !errors.As(err, &nf) {
		t.Errorf("expected ErrNotFound, got %v", err)
	}

	n, err := s.DeleteTransactions(ctx, "a", "c", "nope")
	if err != nil {
		t.Fatalf("delete: %v", err)
	}
	if n != 2 {
		t.Errorf("expected 2 deleted, got %d", n)
	}
	left, _ := s.ListTransactions(ctx)
	if len(left) != 1 || left[0].ID != "b" {
		t.Errorf("unexpected remaining transactions %+v", left)
	}
}

func TestStore_BulkDeleteBeyondVariableLimit(t *testing.T) {
	s := openStore(t)
	ctx := context.Background()

	const n = 1200
	txs := make([]domain.Transaction, n)
	ids := make([]string, 0, n+2)
	for i := range txs {
		id := fmt.Sprintf("bulk-%04d", i)
		txs[i] = sampleTx(id, day(2024, 1, 1).Add(time.Duration(i)*time.Minute), "1", "Food")
		ids = append(ids, id)
	}
	if err := s.AppendTransactions(ctx, txs); err != nil {
		t.Fatalf("append: %v", err)
	}
	keep := sampleTx("keep", day(2024, 6, 1), "5", "Food")
	if err := s.CreateTransaction(ctx, &keep); err != nil {
		t.Fatalf("create: %v", err)
	}
	ids = append(ids, "missing-1", "missing-2")

	deleted, err := s.DeleteTransactions(ctx, ids...)
	if err != nil {
		t.Fatalf("bulk delete: %v", err)
	}
	if deleted != n {
		t.Errorf("expected %d deleted, got %d", n, deleted)
	}
	left, _ := s.ListTransactions(ctx)
	if len(left) != 1 || left[0].ID != "keep" {
		t.Errorf("expected only 'keep' to remain, got %d rows", len(left))
	}
}

func TestStore_TemplateEditKeepsCursor(t *testing.T) {
	s := openStore(t)
	ctx := context.Background()

	tpl := sampleTemplate("rent")
	if err := s.CreateRecurringTemplate(ctx, tpl); err != nil {
		t.Fatalf("create: %v", err)
	}
	last := day(2024, 3, 31)
	tpl.LastMaterialized = &last
	if err := s.UpdateRecurringTemplates(ctx, []domain.RecurringTemplate{*tpl}); err != nil {
		t.Fatalf("update cursor: %v", err)
	}

	tpl.Title = "Flat rent"
	tpl.LastMaterialized = nil
	if err := s.UpdateRecurringTemplate(ctx, tpl); err != nil {
		t.Fatalf("edit: %v", err)
	}

	got, err := s.GetRecurringTemplate(ctx, "rent")
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if got.Title != "Flat rent" {
		t.Errorf("expected title to change, got %q", got.Title)
	}
	if got.LastMaterialized == nil || !got.LastMaterialized.Equal(last) {
		t.Errorf("expected cursor %s to survive the edit, got %v", last, got.LastMaterialized)
	}
}

func TestStore_SaveMaterialization(t *testing.T) {
	s := openStore(t)
	ctx := context.Background()

	tpl := sampleTemplate("rent")
	if err := s.CreateRecurringTemplate(ctx, tpl); err != nil {
		t.Fatalf("create: %v", err)
	}

	templates, _ := s.ListRecurringTemplates(ctx)
	res := recurring.NewEngine(time.UTC, 0).MaterializeDue(templates, nil, day(2024, 4, 1))
	if len(res.New) != 3 {
		t.Fatalf("expected 3 occurrences, got %d", len(res.New))
	}
	if err := s.SaveMaterialization(ctx, res.New, res.Advances); err != nil {
		t.Fatalf("save: %v", err)
	}

	txs, _ := s.ListTransactions(ctx)
	if len(txs) != 3 {
		t.Fatalf("expected 3 stored transactions, got %d", len(txs))
	}
	if txs[0].RecurringID != "rent" {
		t.Errorf("expected recurring id rent, got %q", txs[0].RecurringID)
	}
	got, _ := s.GetRecurringTemplate(ctx, "rent")
	if got.LastMaterialized == nil || !got.LastMaterialized.Equal(day(2024, 3, 31)) {
		t.Errorf("expected cursor at 2024-03-31, got %v", got.LastMaterialized)
	}

	// Replaying the same advance must lose the compare-and-swap.
	var conflict *domain.ErrConflict
	if err := s.SaveMaterialization(ctx, res.New, res.Advances); !errors.As(err, &conflict) {
		t.Fatalf("expected ErrConflict on stale cursor, got %v", err)
	}
	txs, _ = s.ListTransactions(ctx)
	if len(txs) != 3 {
		t.Errorf("expected no duplicates after conflict, got %d", len(txs))
	}
}

func TestStore_DeleteTemplateKeepsHistory(t *testing.T) {
	s := openStore(t)
	ctx := context.Background()

	tpl := sampleTemplate("rent")
	s.CreateRecurringTemplate(ctx, tpl)
	templates, _ := s.ListRecurringTemplates(ctx)
	res := recurring.NewEngine(time.UTC, 0).MaterializeDue(templates, nil, day(2024, 2, 1))
	if err := s.SaveMaterialization(ctx, res.New, res.Advances); err != nil {
		t.Fatalf("save: %v", err)
	}

	if err := s.DeleteRecurringTemplate(ctx, "rent"); err != nil {
		t.Fatalf("delete: %v", err)
	}
	var nf *domain.ErrNotFound
	if err := s.DeleteRecurringTemplate(ctx, "rent"); !errors.As(err, &nf) {
		t.Errorf("expected ErrNotFound on second delete, got %v", err)
	}
	txs, _ := s.ListTransactions(ctx)
	if len(txs) != 1 {
		t.Errorf("expected materialized history to stay, got %d", len(txs))
	}
}

func TestStore_ChallengeAttempts(t *testing.T) {
	s := openStore(t)
	ctx := context.Background()

	if err := s.SeedCatalog(ctx, challenge.DefaultCatalog()); err != nil {
		t.Fatalf("seed: %v", err)
	}
	// Seeding twice is an upsert.
	if err := s.SeedCatalog(ctx, challenge.DefaultCatalog()); err != nil {
		t.Fatalf("reseed: %v", err)
	}
	catalog, err := s.ListChallengeCatalog(ctx)
	if err != nil {
		t.Fatalf("list catalog: %v", err)
	}
	if len(catalog) != len(challenge.DefaultCatalog()) {
		t.Fatalf("expected %d definitions, got %d", len(challenge.DefaultCatalog()), len(catalog))
	}

	uc := &domain.UserChallenge{
		ID:          "uc1",
		ChallengeID: "food-budget-week",
		StartDate:   day(2024, 3, 1),
		Status:      domain.ChallengeActive,
		Progress:    decimal.Zero,
	}
	if err := s.CreateUserChallenge(ctx, uc); err != nil {
		t.Fatalf("start: %v", err)
	}

	dup := *uc
	dup.ID = "uc2"
	var conflict *domain.ErrConflict
	if err := s.CreateUserChallenge(ctx, &dup); !errors.As(err, &conflict) {
		t.Errorf("expected ErrConflict for second active attempt, got %v", err)
	}

	unknown := *uc
	unknown.ID = "uc3"
	unknown.ChallengeID = "does-not-exist"
	var nf *domain.ErrNotFound
	if err := s.CreateUserChallenge(ctx, &unknown); !errors.As(err, &nf) {
		t.Errorf("expected ErrNotFound for unknown challenge, got %v", err)
	}

	end := day(2024, 3, 4)
	failed := *uc
	failed.Status = domain.ChallengeFailed
	failed.Progress = decimal.RequireFromString("1200")
	failed.EndDate = &end
	saved, err := s.ReplaceUserChallenges(ctx, []domain.UserChallenge{failed})
	if err != nil {
		t.Fatalf("replace: %v", err)
	}
	if len(saved) != 1 {
		t.Fatalf("expected 1 saved attempt, got %d", len(saved))
	}

	// A new attempt may start once the previous one ended.
	if err := s.CreateUserChallenge(ctx, &dup); err != nil {
		t.Fatalf("restart: %v", err)
	}

	// A batch holding a terminal attempt skips it and still saves the rest.
	rewritten := failed
	rewritten.Status = domain.ChallengeCompleted
	progressed := dup
	progressed.Progress = decimal.NewFromInt(50)
	saved, err = s.ReplaceUserChallenges(ctx, []domain.UserChallenge{rewritten, progressed})
	if err != nil {
		t.Fatalf("replace batch: %v", err)
	}
	if len(saved) != 1 || saved[0].ID != "uc2" {
		t.Fatalf("expected only uc2 saved, got %+v", saved)
	}

	attempts, _ := s.ListUserChallenges(ctx)
	if len(attempts) != 2 {
		t.Fatalf("expected 2 attempts, got %d", len(attempts))
	}
	for _, a := range attempts {
		switch a.ID {
		case "uc1":
			if a.Status != domain.ChallengeFailed || a.EndDate == nil || !a.Progress.Equal(decimal.NewFromInt(1200)) {
				t.Errorf("terminal attempt changed: %+v", a)
			}
		case "uc2":
			if a.Status != domain.ChallengeActive || !a.Progress.Equal(decimal.NewFromInt(50)) {
				t.Errorf("expected uc2 active with progress 50, got %+v", a)
			}
		}
	}
}

func TestStore_TransactionWritesAreLogged(t *testing.T) {
	core, logs := observer.New(zap.DebugLevel)
	s, err := sqlite.Open(context.Background(), filepath.Join(t.TempDir(), "ledger.db"),
		resilience.Config{MaxRetries: 1, InitialBackoff: time.Millisecond}, zap.New(core))
	if err != nil {
		t.Fatalf("open store: %v", err)
	}
	defer s.Close()
	ctx := context.Background()

	tx := sampleTx("t1", day(2024, 3, 1), "12.50", "Food")
	if err := s.CreateTransaction(ctx, &tx); err != nil {
		t.Fatalf("create: %v", err)
	}
	tx.Note = "edited"
	if err := s.UpdateTransaction(ctx, &tx); err != nil {
		t.Fatalf("update: %v", err)
	}
	if _, err := s.DeleteTransactions(ctx, "t1"); err != nil {
		t.Fatalf("delete: %v", err)
	}

	for _, msg := range []string{"transaction created", "transaction updated", "transactions deleted"} {
		if logs.FilterMessage(msg).Len() != 1 {
			t.Errorf("expected one %q entry, got %d", msg, logs.FilterMessage(msg).Len())
		}
	}
	deleted := logs.FilterMessage("transactions deleted").All()
	if len(deleted) == 1 && deleted[0].ContextMap()["deleted"] != int64(1) {
		t.Errorf("expected deleted=1, got %v", deleted[0].ContextMap()["deleted"])
	}
}
