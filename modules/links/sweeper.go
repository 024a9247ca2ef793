package links

import (
	"context"
	"database/sql"
	"log/slog"
)

// danglingLink is a link whose cascade target no longer exists: the field
// named by depends_on_field was removed from the module after the link was
// created. Field deletion does not cascade into link cleanup (see the
// field store), so a background sweep deactivates these links instead of
// letting the form renderer chase a missing sibling.
type danglingLink struct {
	ID        string
	Module    string
	DependsOn string
}

func (d *danglingLink) String() string {
	return d.Module + "/" + d.ID + " -> " + d.DependsOn
}

type sweeper struct {
	db     *sql.DB
	events auditLogger
}

func (s *sweeper) GetItem(ctx context.Context) (*danglingLink, error) {
	d := &danglingLink{}
	err := s.db.QueryRowContext(ctx, `
		SELECT l.id, f.module_name, l.depends_on_field
		FROM master_data_links l
		JOIN field_configurations f ON f.id = l.field_configuration_id
		WHERE l.active = 1 AND l.depends_on_field != ''
		  AND NOT EXISTS (
			SELECT 1 FROM field_configurations sib
			WHERE sib.module_name = f.module_name AND sib.field_name = l.depends_on_field)
		LIMIT 1`).Scan(&d.ID, &d.Module, &d.DependsOn)
	if err == sql.ErrNoRows {
		return nil, err
	}
	return d, err
}

func (s *sweeper) ProcessItem(ctx context.Context, d *danglingLink) error {
	_, err := s.db.ExecContext(ctx, `UPDATE master_data_links SET active = 0 WHERE id = ?`, d.ID)
	if err != nil {
		return err
	}
	slog.Info("deactivated link with dangling cascade target", "module", d.Module, "link", d.ID, "dependsOn", d.DependsOn)
	if s.events != nil {
		s.events.Log(ctx, d.Module, "link", d.ID, "deactivate_dangling", true, d.DependsOn)
	}
	return nil
}

func (s *sweeper) UpdateItem(ctx context.Context, d *danglingLink, success bool) error {
	// Deactivation removes the row from the sweep query; nothing to mark.
	return nil
}
