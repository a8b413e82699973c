// Package worker copies ledgers from a source store into a local store and
// announces each import so running servers drop their cached summaries.
package worker

import (
	"context"
	"errors"
	"fmt"
	"time"

	"finanzas/internal/amqp"
	"finanzas/internal/core"
	"finanzas/internal/log"
	"finanzas/internal/ports"
)

// Source is where movements and budgets are read from, usually Google Sheets.
type Source interface {
	ports.MovementLister
	ports.BudgetReader
}

// Sink is the local store movements are copied into.
type Sink interface {
	ports.MovementLister
	ports.MovementWriter
	UpsertCategory(ctx context.Context, userID string, b core.CategoryBudget) error
}

// Publisher announces finished imports.
type Publisher interface {
	PublishLedgerChanged(ctx context.Context, msg *amqp.LedgerChangedMessage) error
}

// Result summarizes one user's import.
type Result struct {
	User     string
	Imported int
	Skipped  int // already present in the sink
	Rejected int // malformed in the source
	Budgets  int
}

// ImportWorker copies ledgers from a Source into a Sink.
type ImportWorker struct {
	source    Source
	sink      Sink
	publisher Publisher
	logger    *log.Logger
}

// NewImportWorker creates a worker. publisher may be nil.
func NewImportWorker(source Source, sink Sink, publisher Publisher, logger *log.Logger) *ImportWorker {
	if logger == nil {
		logger = log.New(log.DefaultConfig())
	}
	return &ImportWorker{
		source:    source,
		sink:      sink,
		publisher: publisher,
		logger:    logger.WithComponent(log.ComponentImport),
	}
}

// ImportUser copies the user's movements and budgets. Movements whose ID is
// already in the sink are skipped, so repeated imports are idempotent.
// Malformed source records are counted and left behind.
func (w *ImportWorker) ImportUser(ctx context.Context, userID string) (Result, error) {
	res := Result{User: userID}
	start := time.Now()

	existing, err := w.sink.ListMovements(ctx, userID)
	if err != nil {
		return res, fmt.Errorf("list local movements: %w", err)
	}
	seen := make(map[string]struct{}, len(existing))
	for _, m := range existing {
		seen[m.ID] = struct{}{}
	}

	raws, err := w.source.ListMovements(ctx, userID)
	if err != nil {
		return res, fmt.Errorf("list source movements: %w", err)
	}
	for i, raw := range raws {
		m, err := core.ParseMovement(raw)
		if err != nil {
			res.Rejected++
			w.logger.WarnContext(ctx, "Skipping malformed source movement",
				log.FieldUserID, userID,
				log.FieldMovementID, raw.ID,
				"index", i,
				log.FieldError, err.Error())
			continue
		}
		if m.ID != "" {
			if _, ok := seen[m.ID]; ok {
				res.Skipped++
				continue
			}
		}
		id, err := w.sink.AppendMovement(ctx, userID, m)
		if err != nil {
			return res, fmt.Errorf("append movement %s: %w", raw.ID, err)
		}
		seen[id] = struct{}{}
		res.Imported++
	}

	user, global, err := w.source.ListBudgets(ctx, userID)
	if err != nil {
		return res, fmt.Errorf("list source budgets: %w", err)
	}
	for _, b := range user {
		if err := w.sink.UpsertCategory(ctx, userID, b); err != nil {
			return res, fmt.Errorf("upsert budget %s: %w", b.Category, err)
		}
		res.Budgets++
	}
	for _, b := range global {
		if err := w.sink.UpsertCategory(ctx, "", b); err != nil {
			return res, fmt.Errorf("upsert global budget %s: %w", b.Category, err)
		}
		res.Budgets++
	}

	w.logger.InfoContext(ctx, "Ledger imported",
		log.FieldUserID, userID,
		log.FieldOperation, log.OpImport,
		log.FieldCount, res.Imported,
		"skipped", res.Skipped,
		log.FieldRejected, res.Rejected,
		"budgets", res.Budgets,
		log.FieldDuration, time.Since(start).Milliseconds())

	if (res.Imported > 0 || res.Budgets > 0) && w.publisher != nil {
		if err := w.publisher.PublishLedgerChanged(ctx, amqp.NewLedgerImported(userID, res.Imported)); err != nil {
			w.logger.ErrorContext(ctx, "Failed to publish import notification",
				log.FieldUserID, userID,
				log.FieldError, err.Error())
		}
	}
	return res, nil
}

// ImportAll imports every user in turn. A failing user does not stop the
// others; the errors are joined.
func (w *ImportWorker) ImportAll(ctx context.Context, users []string) ([]Result, error) {
	var (
		results []Result
		errs    []error
	)
	for _, u := range users {
		if err := ctx.Err(); err != nil {
			errs = append(errs, err)
			break
		}
		res, err := w.ImportUser(ctx, u)
		if err != nil {
			errs = append(errs, fmt.Errorf("user %s: %w", u, err))
			continue
		}
		results = append(results, res)
	}
	return results, errors.Join(errs...)
}

// Run imports immediately and then every interval until ctx is done.
func (w *ImportWorker) Run(ctx context.Context, users []string, interval time.Duration) error {
	if _, err := w.ImportAll(ctx, users); err != nil {
		w.logger.ErrorContext(ctx, "Import pass failed", log.FieldError, err.Error())
	}

	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
			if _, err := w.ImportAll(ctx, users); err != nil {
				w.logger.ErrorContext(ctx, "Periodic import failed", log.FieldError, err.Error())
			}
		}
	}
}
