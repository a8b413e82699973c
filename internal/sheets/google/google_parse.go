package google

import (
	"fmt"
	"strconv"
	"strings"

	"finanzas/internal/core"
)

// Header names recognised in the movements and budgets sheets. Matching is
// case-insensitive.
const (
	colID          = "id"
	colUser        = "user"
	colDate        = "date"
	colAmount      = "amount"
	colCategory    = "category"
	colDescription = "description"
	colBudget      = "budget"
)

type header map[string]int

func parseHeader(row []interface{}) header {
	h := header{}
	for i, v := range toStrings(row) {
		key := strings.ToLower(v)
		if _, dup := h[key]; !dup && key != "" {
			h[key] = i
		}
	}
	return h
}

func (h header) require(names ...string) error {
	var missing []string
	for _, n := range names {
		if _, ok := h[n]; !ok {
			missing = append(missing, n)
		}
	}
	if len(missing) > 0 {
		return fmt.Errorf("unexpected header: missing %s", strings.Join(missing, ","))
	}
	return nil
}

func (h header) get(row []string, name string) string {
	i, ok := h[name]
	if !ok {
		return ""
	}
	return safeGet(row, i)
}

// parseMovements converts a values matrix with a header row into raw
// movements for userID. Rows carrying a different user are skipped; sheets
// without a User column belong to every user. Cells are passed through
// unparsed so malformed rows surface as rejections downstream. Rows without
// an ID get their sheet reference as ID.
func parseMovements(values [][]interface{}, sheet, userID string) ([]core.RawMovement, error) {
	if len(values) == 0 {
		return nil, nil
	}
	h := parseHeader(values[0])
	if err := h.require(colDate, colAmount, colCategory); err != nil {
		return nil, err
	}
	_, hasUser := h[colUser]

	out := make([]core.RawMovement, 0, len(values)-1)
	for i := 1; i < len(values); i++ {
		row := toStrings(values[i])
		if isBlank(row) {
			continue
		}
		if hasUser && !strings.EqualFold(h.get(row, colUser), userID) {
			continue
		}
		id := h.get(row, colID)
		if id == "" {
			id = fmt.Sprintf("%s!A%d", sheet, i+1)
		}
		out = append(out, core.RawMovement{
			ID:          id,
			Date:        h.get(row, colDate),
			Amount:      h.get(row, colAmount),
			Category:    h.get(row, colCategory),
			Description: h.get(row, colDescription),
		})
	}
	return out, nil
}

// parseBudgets splits budget rows into the user's own entries and the global
// ones (blank User). Rows with an unusable category or target are skipped and
// reported through skipped.
func parseBudgets(values [][]interface{}, userID string) (user, global []core.CategoryBudget, skipped int, err error) {
	if len(values) == 0 {
		return nil, nil, 0, nil
	}
	h := parseHeader(values[0])
	if err := h.require(colCategory); err != nil {
		return nil, nil, 0, err
	}
	for i := 1; i < len(values); i++ {
		row := toStrings(values[i])
		if isBlank(row) {
			continue
		}
		cat, cerr := core.NewCategory(h.get(row, colCategory))
		if cerr != nil {
			skipped++
			continue
		}
		b := core.CategoryBudget{Category: cat}
		if raw := h.get(row, colBudget); raw != "" {
			target, perr := core.ParseAmount(raw)
			if perr != nil {
				skipped++
				continue
			}
			b.Target = target
		}
		switch owner := h.get(row, colUser); {
		case owner == "":
			global = append(global, b)
		case strings.EqualFold(owner, userID):
			b.UserID = userID
			user = append(user, b)
		}
	}
	return user, global, skipped, nil
}

// movementRow lays out m in the column order of h.
func movementRow(h header, userID string, m core.Movement) []interface{} {
	width := 0
	for _, i := range h {
		if i+1 > width {
			width = i + 1
		}
	}
	row := make([]interface{}, width)
	for i := range row {
		row[i] = ""
	}
	set := func(name string, v interface{}) {
		if i, ok := h[name]; ok {
			row[i] = v
		}
	}
	set(colID, m.ID)
	set(colUser, userID)
	set(colDate, m.Date.String())
	set(colAmount, m.Amount.String())
	set(colCategory, m.Category.String())
	set(colDescription, m.Description)
	return row
}

func toStrings(in []interface{}) []string {
	out := make([]string, len(in))
	for i, v := range in {
		switch x := v.(type) {
		case float64:
			out[i] = strconv.FormatFloat(x, 'f', -1, 64)
		default:
			out[i] = strings.TrimSpace(fmt.Sprint(v))
		}
	}
	return out
}

func safeGet(arr []string, idx int) string {
	if idx >= 0 && idx < len(arr) {
		return arr[idx]
	}
	return ""
}

func isBlank(row []string) bool {
	for _, c := range row {
		if c != "" {
			return false
		}
	}
	return true
}
