// Package recurring turns recurring templates into concrete transactions.
//
// MaterializeDue is a pure function of its inputs: it performs no I/O and
// never reads the clock. Persisting its result is the caller's job.
package recurring

import (
	"time"

	"github.com/boddenberg/moodledger-go/internal/domain"
)

// DefaultMaxOccurrences caps the catch-up of a single template (a century of
// daily occurrences). Anything beyond it is treated as corrupted data.
const DefaultMaxOccurrences = 36600

// Engine materializes due occurrences of recurring templates.
type Engine struct {
	loc            *time.Location
	maxOccurrences int
}

// NewEngine creates an engine doing calendar arithmetic in loc.
func NewEngine(loc *time.Location, maxOccurrences int) *Engine {
	if loc == nil {
		loc = time.UTC
	}
	if maxOccurrences <= 0 {
		maxOccurrences = DefaultMaxOccurrences
	}
	return &Engine{loc: loc, maxOccurrences: maxOccurrences}
}

// Advance records a template whose last-materialized date moved forward.
// Previous is the value the template had when it was read, for compare-and-swap.
type Advance struct {
	TemplateID       string
	Previous         *time.Time
	LastMaterialized time.Time
}

// Result is the output of one MaterializeDue call.
type Result struct {
	New       []domain.Transaction
	Advances  []Advance
	Anomalies []error
}

// Apply returns copies of templates with the advances of r applied.
func (r *Result) Apply(templates []domain.RecurringTemplate) []domain.RecurringTemplate {
	moved := make(map[string]time.Time, len(r.Advances))
	for _, a := range r.Advances {
		moved[a.TemplateID] = a.LastMaterialized
	}
	out := make([]domain.RecurringTemplate, len(templates))
	for i, t := range templates {
		if at, ok := moved[t.ID]; ok {
			at := at
			t.LastMaterialized = &at
		}
		out[i] = t
	}
	return out
}

// MaterializeDue emits a transaction for every occurrence in (last-materialized, now]
// (or [start, now] for a fresh template) whose deterministic ID is not in existing.
// Templates are independent: a bad one is reported in Anomalies and skipped.
func (e *Engine) MaterializeDue(templates []domain.RecurringTemplate, existing map[string]struct{}, now time.Time) Result {
	var res Result
	emitted := make(map[string]struct{})

	for i := range templates {
		tpl := &templates[i]
		txs, last, err := e.materializeTemplate(tpl, existing, emitted, now)
		if err != nil {
			res.Anomalies = append(res.Anomalies, err)
			continue
		}
		for _, tx := range txs {
			emitted[tx.ID] = struct{}{}
		}
		res.New = append(res.New, txs...)

		if last != nil && (tpl.LastMaterialized == nil || last.After(*tpl.LastMaterialized)) {
			res.Advances = append(res.Advances, Advance{
				TemplateID:       tpl.ID,
				Previous:         tpl.LastMaterialized,
				LastMaterialized: *last,
			})
		}
	}
	return res
}

func (e *Engine) materializeTemplate(tpl *domain.RecurringTemplate, existing, emitted map[string]struct{}, now time.Time) ([]domain.Transaction, *time.Time, error) {
	if !tpl.Frequency.Valid() {
		return nil, nil, &domain.ErrDataIntegrity{
			Entity: "recurring_template",
			ID:     tpl.ID,
			Reason: "unrecognized frequency " + string(tpl.Frequency),
		}
	}

	// A fresh template (or one whose start moved past the cursor) begins at
	// start inclusive; otherwise the search resumes strictly after the cursor.
	from, resumed := tpl.StartDate, false
	if lm := tpl.LastMaterialized; lm != nil && !lm.Before(tpl.StartDate) {
		from, resumed = *lm, true
	}
	rule, err := cadence(tpl.Frequency, tpl.StartDate, from, e.loc)
	if err != nil {
		return nil, nil, &domain.ErrDataIntegrity{Entity: "recurring_template", ID: tpl.ID, Reason: err.Error()}
	}

	var (
		txs   []domain.Transaction
		last  *time.Time
		prev  time.Time
		count int
	)
	next := rule.Iterator()
	for {
		occ, ok := next()
		if !ok || occ.After(now) {
			break
		}
		if resumed && !occ.After(from) {
			continue
		}
		if count >= e.maxOccurrences || (count > 0 && !occ.After(prev)) {
			return nil, nil, &domain.ErrRunawayGuard{TemplateID: tpl.ID, Iterations: count}
		}
		prev = occ
		count++

		id := OccurrenceID(tpl.ID, occ)
		_, seen := existing[id]
		_, dup := emitted[id]
		if !seen && !dup {
			txs = append(txs, newTransaction(tpl, id, occ))
		}
		at := occ
		last = &at
	}
	return txs, last, nil
}

func newTransaction(tpl *domain.RecurringTemplate, id string, at time.Time) domain.Transaction {
	var tags []string
	if len(tpl.Tags) > 0 {
		tags = append([]string(nil), tpl.Tags...)
	}
	return domain.Transaction{
		ID:          id,
		Timestamp:   at,
		Amount:      tpl.Amount,
		Currency:    tpl.Currency,
		Category:    tpl.Category,
		Merchant:    tpl.Merchant,
		Mood:        tpl.Mood,
		Note:        tpl.Note,
		Tags:        tags,
		RecurringID: tpl.ID,
	}
}
