package fields

import (
	"context"
	"sort"

	"github.com/openfield-labs/fieldforge/internal/cfgerr"
)

// DeriveTabs builds a tab list from the distinct tab names present in
// field data, ordered by the minimum tab index observed. Used when a
// module has no stored tab configuration yet.
func DeriveTabs(fieldList []FieldConfiguration) []TabConfig {
	minIndex := map[string]int{}
	var names []string
	for _, fc := range fieldList {
		if cur, ok := minIndex[fc.TabName]; !ok {
			minIndex[fc.TabName] = fc.TabIndex
			names = append(names, fc.TabName)
		} else if fc.TabIndex < cur {
			minIndex[fc.TabName] = fc.TabIndex
		}
	}

	sort.SliceStable(names, func(i, j int) bool { return minIndex[names[i]] < minIndex[names[j]] })

	tabs := make([]TabConfig, len(names))
	for i, name := range names {
		tabs[i] = TabConfig{
			Index:   minIndex[name],
			Name:    name,
			Enabled: true,
			Order:   i,
		}
		if len(fieldList) > 0 {
			tabs[i].ModuleName = fieldList[0].ModuleName
		}
	}
	return tabs
}

// ListTabs returns the stored tab configuration of a module, deriving one
// from field data when none is stored. The derived list is not persisted;
// EnsureTabs does that.
func (s *Store) ListTabs(ctx context.Context, module string) ([]TabConfig, error) {
	tabs, err := s.storedTabs(ctx, module)
	if err != nil {
		return nil, err
	}
	if len(tabs) > 0 {
		return tabs, nil
	}

	fieldList, err := s.ListFields(ctx, module)
	if err != nil {
		return nil, err
	}
	return DeriveTabs(fieldList), nil
}

// EnsureTabs persists the derived tab list if the module has no stored
// tabs yet. Idempotent; returns the stored list either way.
func (s *Store) EnsureTabs(ctx context.Context, module string) ([]TabConfig, error) {
	tabs, err := s.storedTabs(ctx, module)
	if err != nil || len(tabs) > 0 {
		return tabs, err
	}

	fieldList, err := s.ListFields(ctx, module)
	if err != nil {
		return nil, err
	}
	tabs = DeriveTabs(fieldList)

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, err
	}
	defer tx.Rollback()
	for _, tab := range tabs {
		_, err := tx.ExecContext(ctx,
			`INSERT INTO tab_configs (module_name, tab_index, name, enabled, display_order) VALUES (?, ?, ?, ?, ?)`,
			module, tab.Index, tab.Name, boolToInt(tab.Enabled), tab.Order)
		if err != nil {
			return nil, err
		}
	}
	return tabs, tx.Commit()
}

// MoveTab swaps the tab at the given display position with its neighbor
// and renumbers all of the module's tabs to a contiguous 0..n-1 sequence.
// direction is -1 (up) or +1 (down). Nothing is mutated when the move
// would leave the list bounds.
func (s *Store) MoveTab(ctx context.Context, module string, index, direction int) ([]TabConfig, error) {
	if direction != -1 && direction != 1 {
		return nil, cfgerr.OutOfRangef(module, "direction must be -1 or 1, got %d", direction)
	}

	tabs, err := s.EnsureTabs(ctx, module)
	if err != nil {
		return nil, err
	}
	target := index + direction
	if index < 0 || index >= len(tabs) || target < 0 || target >= len(tabs) {
		return nil, cfgerr.OutOfRangef(module, "cannot move tab %d of %d by %d", index, len(tabs), direction)
	}

	tabs[index], tabs[target] = tabs[target], tabs[index]

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, err
	}
	defer tx.Rollback()
	for i := range tabs {
		tabs[i].Order = i
		_, err := tx.ExecContext(ctx,
			`UPDATE tab_configs SET display_order = ? WHERE module_name = ? AND name = ?`,
			i, module, tabs[i].Name)
		if err != nil {
			return nil, err
		}
	}
	if err := tx.Commit(); err != nil {
		return nil, err
	}

	if s.events != nil {
		s.events.Log(ctx, module, "tab", tabs[target].Name, "reorder", true, "")
	}
	return tabs, nil
}

// ToggleTab flips a tab's enabled flag. Individual fields on the tab keep
// their own enabled state: hiding a tab never rewrites field visibility.
func (s *Store) ToggleTab(ctx context.Context, module, name string) (*TabConfig, error) {
	if _, err := s.EnsureTabs(ctx, module); err != nil {
		return nil, err
	}

	res, err := s.db.ExecContext(ctx,
		`UPDATE tab_configs SET enabled = 1 - enabled WHERE module_name = ? AND name = ?`, module, name)
	if err != nil {
		return nil, err
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return nil, cfgerr.NotFoundf(module, "", "no tab %q in module %s", name, module)
	}

	tabs, err := s.storedTabs(ctx, module)
	if err != nil {
		return nil, err
	}
	for i := range tabs {
		if tabs[i].Name == name {
			if s.events != nil {
				s.events.Log(ctx, module, "tab", name, "toggle", true, "")
			}
			return &tabs[i], nil
		}
	}
	return nil, cfgerr.NotFoundf(module, "", "no tab %q in module %s", name, module)
}

func (s *Store) storedTabs(ctx context.Context, module string) ([]TabConfig, error) {
	return QueryModuleTabs(ctx, s.db, module)
}

// QueryModuleTabs reads a module's stored tabs in display order, usable
// inside a coordinator transaction.
func QueryModuleTabs(ctx context.Context, q Querier, module string) ([]TabConfig, error) {
	rows, err := q.QueryContext(ctx,
		`SELECT module_name, tab_index, name, enabled, display_order FROM tab_configs
		 WHERE module_name = ? ORDER BY display_order`, module)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []TabConfig
	for rows.Next() {
		var tab TabConfig
		var enabled int
		if err := rows.Scan(&tab.ModuleName, &tab.Index, &tab.Name, &enabled, &tab.Order); err != nil {
			return nil, err
		}
		tab.Enabled = enabled == 1
		out = append(out, tab)
	}
	return out, rows.Err()
}
