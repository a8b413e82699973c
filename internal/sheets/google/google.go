// Package google stores a ledger in a Google Sheets spreadsheet.
package google

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"slices"
	"strings"

	"finanzas/internal/core"
	"finanzas/internal/log"
	"finanzas/internal/ports"

	"github.com/google/uuid"
	goption "google.golang.org/api/option"
	gsheet "google.golang.org/api/sheets/v4"
)

// Config selects the spreadsheet and its tabs.
type Config struct {
	SpreadsheetID      string
	MovementsSheet     string
	BudgetsSheet       string
	ServiceAccountFile string
}

type Client struct {
	svc            *gsheet.Service
	spreadsheetID  string
	movementsSheet string
	budgetsSheet   string
	logger         *slog.Logger
}

var _ ports.LedgerStore = (*Client)(nil)

// New creates a Sheets client authenticated with a service account key file.
func New(ctx context.Context, cfg Config, logger *slog.Logger) (*Client, error) {
	if strings.TrimSpace(cfg.SpreadsheetID) == "" {
		return nil, errors.New("missing spreadsheet ID")
	}
	if cfg.ServiceAccountFile == "" {
		return nil, errors.New("missing service account file")
	}
	credentialsJSON, err := os.ReadFile(cfg.ServiceAccountFile)
	if err != nil {
		return nil, fmt.Errorf("read service account file: %w", err)
	}
	svc, err := gsheet.NewService(ctx,
		goption.WithCredentialsJSON(credentialsJSON),
		goption.WithScopes(gsheet.SpreadsheetsScope))
	if err != nil {
		return nil, fmt.Errorf("create sheets service: %w", err)
	}
	return NewWithService(svc, cfg, logger), nil
}

// NewWithService wraps an existing service. Empty sheet names default to
// "Movements" and "Budgets".
func NewWithService(svc *gsheet.Service, cfg Config, logger *slog.Logger) *Client {
	if logger == nil {
		logger = slog.Default()
	}
	movements := strings.TrimSpace(cfg.MovementsSheet)
	if movements == "" {
		movements = "Movements"
	}
	budgets := strings.TrimSpace(cfg.BudgetsSheet)
	if budgets == "" {
		budgets = "Budgets"
	}
	return &Client{
		svc:            svc,
		spreadsheetID:  cfg.SpreadsheetID,
		movementsSheet: movements,
		budgetsSheet:   budgets,
		logger:         logger.With(log.FieldComponent, log.ComponentSheets),
	}
}

func (c *Client) read(ctx context.Context, rng string) ([][]interface{}, error) {
	if c.svc == nil {
		return nil, errors.New("sheets service not initialized")
	}
	resp, err := c.svc.Spreadsheets.Values.Get(c.spreadsheetID, rng).Context(ctx).Do()
	if err != nil {
		return nil, fmt.Errorf("read %s: %w", rng, err)
	}
	return resp.Values, nil
}

// ListMovements reads every movement row belonging to userID.
func (c *Client) ListMovements(ctx context.Context, userID string) ([]core.RawMovement, error) {
	values, err := c.read(ctx, c.movementsSheet+"!A:Z")
	if err != nil {
		return nil, err
	}
	raws, err := parseMovements(values, c.movementsSheet, userID)
	if err != nil {
		return nil, fmt.Errorf("parse %s: %w", c.movementsSheet, err)
	}
	return raws, nil
}

// ListBudgets reads the budgets tab. A spreadsheet without that tab has no
// budgets.
func (c *Client) ListBudgets(ctx context.Context, userID string) ([]core.CategoryBudget, []core.CategoryBudget, error) {
	values, err := c.read(ctx, c.budgetsSheet+"!A:Z")
	if err != nil {
		if isMissingRange(err) {
			return nil, nil, nil
		}
		return nil, nil, err
	}
	user, global, skipped, err := parseBudgets(values, userID)
	if err != nil {
		return nil, nil, fmt.Errorf("parse %s: %w", c.budgetsSheet, err)
	}
	if skipped > 0 {
		c.logger.WarnContext(ctx, "Skipped malformed budget rows", "sheet", c.budgetsSheet, log.FieldCount, skipped)
	}
	return user, global, nil
}

// ListCategories lists the budgeted categories, falling back to those
// seen in the user's movements.
func (c *Client) ListCategories(ctx context.Context, userID string) ([]string, error) {
	user, global, err := c.ListBudgets(ctx, userID)
	if err != nil {
		return nil, err
	}
	var names []string
	for _, b := range append(user, global...) {
		if !slices.Contains(names, string(b.Category)) {
			names = append(names, string(b.Category))
		}
	}
	if len(names) > 0 {
		return names, nil
	}
	raws, err := c.ListMovements(ctx, userID)
	if err != nil {
		return nil, err
	}
	for _, r := range raws {
		name := strings.TrimSpace(r.Category)
		if name != "" && !slices.Contains(names, name) {
			names = append(names, name)
		}
	}
	return names, nil
}

// AppendMovement appends m as a new row, following the column order of the
// sheet header.
func (c *Client) AppendMovement(ctx context.Context, userID string, m core.Movement) (string, error) {
	if err := m.Validate(); err != nil {
		return "", fmt.Errorf("validation failed: %w", err)
	}
	values, err := c.read(ctx, c.movementsSheet+"!1:1")
	if err != nil {
		return "", err
	}
	if len(values) == 0 {
		return "", fmt.Errorf("sheet %s has no header row", c.movementsSheet)
	}
	h := parseHeader(values[0])
	if err := h.require(colDate, colAmount, colCategory); err != nil {
		return "", fmt.Errorf("sheet %s: %w", c.movementsSheet, err)
	}
	if m.ID == "" {
		m.ID = uuid.NewString()
	}

	vr := &gsheet.ValueRange{Values: [][]interface{}{movementRow(h, userID, m)}}
	resp, err := c.svc.Spreadsheets.Values.Append(c.spreadsheetID, c.movementsSheet+"!A:Z", vr).
		ValueInputOption("RAW").InsertDataOption("INSERT_ROWS").Context(ctx).Do()
	if err != nil {
		return "", fmt.Errorf("append to %s: %w", c.movementsSheet, err)
	}
	ref := ""
	if resp.Updates != nil {
		ref = resp.Updates.UpdatedRange
	}
	c.logger.InfoContext(ctx, "Movement appended", log.FieldUserID, userID, log.FieldMovementID, m.ID, "range", ref)
	if _, ok := h[colID]; !ok && ref != "" {
		return ref, nil
	}
	return m.ID, nil
}

func isMissingRange(err error) bool {
	return strings.Contains(err.Error(), "Unable to parse range")
}
