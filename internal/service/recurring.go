package service

import (
	"context"
	"fmt"

	"github.com/boddenberg/moodledger-go/internal/domain"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel/attribute"
	"go.uber.org/zap"
)

// ============================================================
// Recurring templates: /v1/recurring
// ============================================================

func (s *LedgerService) ListTemplates(ctx context.Context) ([]domain.RecurringTemplate, error) {
	ctx, span := tracer.Start(ctx, "LedgerService.ListTemplates")
	defer span.End()

	templates, err := s.store.ListRecurringTemplates(ctx)
	if err != nil {
		return nil, fmt.Errorf("list templates: %w", err)
	}
	if templates == nil {
		templates = []domain.RecurringTemplate{}
	}
	return templates, nil
}

// CreateTemplate stores a new template with no last-materialized date; the
// next catch-up emits every occurrence from its start date.
func (s *LedgerService) CreateTemplate(ctx context.Context, req *domain.RecurringTemplateRequest) (*domain.RecurringTemplate, error) {
	ctx, span := tracer.Start(ctx, "LedgerService.CreateTemplate")
	defer span.End()

	if err := req.Validate(); err != nil {
		return nil, err
	}

	tpl := &domain.RecurringTemplate{
		ID:        uuid.New().String(),
		Title:     req.Title,
		Amount:    req.Amount,
		Currency:  s.currency,
		Category:  req.Category,
		Merchant:  req.Merchant,
		Mood:      req.Mood,
		Note:      req.Note,
		Tags:      req.Tags,
		Frequency: req.Frequency,
		StartDate: req.StartDate,
	}
	if err := s.store.CreateRecurringTemplate(ctx, tpl); err != nil {
		return nil, fmt.Errorf("create template: %w", err)
	}
	span.SetAttributes(attribute.String("template.id", tpl.ID))

	s.logger.Info("recurring template created",
		zap.String("template_id", tpl.ID),
		zap.String("frequency", string(tpl.Frequency)),
		zap.Time("start_date", tpl.StartDate),
	)
	return tpl, nil
}

// EditTemplate applies a user edit. The last-materialized date is kept, so
// already emitted occurrences are never produced again.
func (s *LedgerService) EditTemplate(ctx context.Context, id string, req *domain.RecurringTemplateRequest) (*domain.RecurringTemplate, error) {
	ctx, span := tracer.Start(ctx, "LedgerService.EditTemplate")
	defer span.End()
	span.SetAttributes(attribute.String("template.id", id))

	if err := req.Validate(); err != nil {
		return nil, err
	}

	tpl, err := s.store.GetRecurringTemplate(ctx, id)
	if err != nil {
		return nil, err
	}
	tpl.Title = req.Title
	tpl.Amount = req.Amount
	tpl.Category = req.Category
	tpl.Merchant = req.Merchant
	tpl.Mood = req.Mood
	tpl.Note = req.Note
	tpl.Tags = req.Tags
	tpl.Frequency = req.Frequency
	tpl.StartDate = req.StartDate

	if err := s.store.UpdateRecurringTemplate(ctx, tpl); err != nil {
		return nil, fmt.Errorf("update template: %w", err)
	}

	s.logger.Info("recurring template edited", zap.String("template_id", id))
	return tpl, nil
}

// DeleteTemplate stops future occurrences; history stays in the log.
func (s *LedgerService) DeleteTemplate(ctx context.Context, id string) error {
	ctx, span := tracer.Start(ctx, "LedgerService.DeleteTemplate")
	defer span.End()
	span.SetAttributes(attribute.String("template.id", id))

	if err := s.store.DeleteRecurringTemplate(ctx, id); err != nil {
		return err
	}
	s.logger.Info("recurring template deleted", zap.String("template_id", id))
	return nil
}
