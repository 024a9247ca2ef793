package bulk

import (
	"context"
	"database/sql"
	"testing"

	"github.com/openfield-labs/fieldforge/engine"
	"github.com/openfield-labs/fieldforge/internal/cfgerr"
	"github.com/openfield-labs/fieldforge/modules/fields"
	"github.com/openfield-labs/fieldforge/modules/linked"
	"github.com/openfield-labs/fieldforge/modules/links"
	"github.com/openfield-labs/fieldforge/modules/modregistry"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// newTestCoordinator assembles every schema on one database and seeds the
// registry plus the Leads field defaults.
func newTestCoordinator(t *testing.T) (*sql.DB, *Coordinator, *fields.Store) {
	ctx := context.Background()
	db := engine.OpenTestDB(t)

	fieldsModule := fields.New(db, nil)
	linkedModule := linked.New(db)
	linksModule := links.New(db, links.DefaultCatalog(), nil)
	registry := modregistry.New(db, fieldsModule.Store(), linkedModule.Store(), linksModule.Store(), nil)

	_, err := registry.Store().InitializeDefaults(ctx)
	require.NoError(t, err)
	_, err = fieldsModule.Store().InitializeDefaults(ctx, "Leads")
	require.NoError(t, err)
	_, err = fieldsModule.Store().EnsureTabs(ctx, "Leads")
	require.NoError(t, err)

	return db, NewCoordinator(db, links.DefaultCatalog(), nil), fieldsModule.Store()
}

func generalFields(ctx context.Context, t *testing.T, fs *fields.Store) []fields.FieldConfiguration {
	t.Helper()
	fcs, err := fs.ListTabFields(ctx, "Leads", "General")
	require.NoError(t, err)
	return fcs
}

func fieldNames(fcs []fields.FieldConfiguration) []string {
	names := make([]string, len(fcs))
	for i, fc := range fcs {
		names[i] = fc.FieldName
	}
	return names
}

func TestReorderField(t *testing.T) {
	ctx := context.Background()
	_, c, fs := newTestCoordinator(t)

	before := generalFields(ctx, t, fs)
	require.Equal(t, []string{"Name", "Company", "Email", "Phone", "Source", "Rating", "Status", "LostReason"},
		fieldNames(before))

	// Drag Email up one position.
	email := before[2]
	after, err := c.ReorderField(ctx, "Leads", "General", email.ID, 1)
	require.NoError(t, err)
	assert.Equal(t, []string{"Name", "Email", "Company", "Phone", "Source", "Rating", "Status", "LostReason"},
		fieldNames(after))
	for i, fc := range after {
		assert.Equal(t, i, fc.DisplayOrder)
	}

	// The stored order matches what was returned.
	stored := generalFields(ctx, t, fs)
	assert.Equal(t, fieldNames(after), fieldNames(stored))
}

func TestReorderFieldRejections(t *testing.T) {
	ctx := context.Background()
	_, c, fs := newTestCoordinator(t)
	before := generalFields(ctx, t, fs)

	// Name's position is pinned.
	list, err := c.ReorderField(ctx, "Leads", "General", before[0].ID, 3)
	assert.Equal(t, cfgerr.PolicyViolation, cfgerr.KindOf(err))
	assert.Equal(t, fieldNames(before), fieldNames(list))

	_, err = c.ReorderField(ctx, "Leads", "General", before[1].ID, 99)
	assert.Equal(t, cfgerr.OutOfRange, cfgerr.KindOf(err))
	_, err = c.ReorderField(ctx, "Leads", "General", before[1].ID, -1)
	assert.Equal(t, cfgerr.OutOfRange, cfgerr.KindOf(err))

	// The field exists but on another tab.
	detail, err := fs.ListTabFields(ctx, "Leads", "Details")
	require.NoError(t, err)
	_, err = c.ReorderField(ctx, "Leads", "General", detail[0].ID, 0)
	assert.Equal(t, cfgerr.NotFound, cfgerr.KindOf(err))

	// Nothing moved.
	assert.Equal(t, fieldNames(before), fieldNames(generalFields(ctx, t, fs)))
}

// snapshotOf captures the current stored configuration as a save request.
func snapshotOf(ctx context.Context, t *testing.T, db *sql.DB, fs *fields.Store, module string) Snapshot {
	t.Helper()
	fcs, err := fs.ListFields(ctx, module)
	require.NoError(t, err)
	tabs, err := fs.EnsureTabs(ctx, module)
	require.NoError(t, err)

	var version int64
	require.NoError(t, db.QueryRowContext(ctx,
		`SELECT config_version FROM module_ui_configs WHERE module_name = ?`, module).Scan(&version))

	return Snapshot{Version: version, Tabs: tabs, Fields: fcs}
}

func TestSaveModuleConfigRoundTrip(t *testing.T) {
	ctx := context.Background()
	db, c, fs := newTestCoordinator(t)

	snap := snapshotOf(ctx, t, db, fs, "Leads")
	for i := range snap.Fields {
		if snap.Fields[i].FieldName == "Company" {
			snap.Fields[i].FieldLabel = "Employer"
			snap.Fields[i].Enabled = false
		}
	}
	snap.LinkedEntities = []linked.Entity{{EntityName: "Activities", Enabled: true}}
	snap.Links = map[string][]links.Link{
		"State": {{
			SourceType:            links.SourceLookupCategory,
			SourceName:            "states",
			DisplayField:          "name",
			ValueField:            "code",
			DependsOnField:        "Country",
			DependsOnSourceColumn: "country_code",
			Active:                true,
		}},
	}

	result, err := c.SaveModuleConfig(ctx, "Leads", snap)
	require.NoError(t, err)
	assert.Equal(t, int64(1), result.Version)

	stored, err := fs.ListFields(ctx, "Leads")
	require.NoError(t, err)
	for _, fc := range stored {
		if fc.FieldName == "Company" {
			assert.Equal(t, "Employer", fc.FieldLabel)
			assert.False(t, fc.Enabled)
		}
	}

	entities, err := linked.NewStore(db).ListForModule(ctx, "Leads")
	require.NoError(t, err)
	require.Len(t, entities, 1)
	assert.Equal(t, "Activities", entities[0].EntityName)

	linkStore := links.NewStore(db, links.DefaultCatalog(), nil)
	byField, err := linkStore.ListForModule(ctx, "Leads")
	require.NoError(t, err)
	require.Len(t, byField, 1)
	for _, ls := range byField {
		require.Len(t, ls, 1)
		assert.Equal(t, "Country", ls[0].DependsOnField)
		assert.NotEmpty(t, ls[0].ID)
	}

	// Saving again with the stale version is rejected.
	_, err = c.SaveModuleConfig(ctx, "Leads", snap)
	assert.Equal(t, cfgerr.StaleConfiguration, cfgerr.KindOf(err))
}

func TestSaveUnchangedDefaultsRoundTrips(t *testing.T) {
	ctx := context.Background()
	db, c, fs := newTestCoordinator(t)

	// Every built-in schema must survive an untouched save.
	for _, module := range []string{"Customers", "Contacts", "Opportunities"} {
		_, err := fs.InitializeDefaults(ctx, module)
		require.NoError(t, err)
		_, err = fs.EnsureTabs(ctx, module)
		require.NoError(t, err)

		snap := snapshotOf(ctx, t, db, fs, module)
		result, err := c.SaveModuleConfig(ctx, module, snap)
		require.NoError(t, err, "module %s", module)
		assert.Equal(t, int64(1), result.Version)
	}
}

func TestSaveRollsBackOnMidTransactionFault(t *testing.T) {
	ctx := context.Background()
	db, c, fs := newTestCoordinator(t)

	// Establish a saved state with one link.
	snap := snapshotOf(ctx, t, db, fs, "Leads")
	snap.Links = map[string][]links.Link{
		"State": {{
			SourceType:   links.SourceLookupCategory,
			SourceName:   "states",
			DisplayField: "name",
			ValueField:   "code",
			Active:       true,
		}},
	}
	_, err := c.SaveModuleConfig(ctx, "Leads", snap)
	require.NoError(t, err)

	beforeFields, err := fs.ListFields(ctx, "Leads")
	require.NoError(t, err)
	linkStore := links.NewStore(db, links.DefaultCatalog(), nil)
	beforeLinks, err := linkStore.ListForModule(ctx, "Leads")
	require.NoError(t, err)
	require.Len(t, beforeLinks, 1)

	// A snapshot that passes validation but blows up on the second link
	// insert, after the fields, tabs and entities were already rewritten.
	bad := snapshotOf(ctx, t, db, fs, "Leads")
	for i := range bad.Fields {
		if bad.Fields[i].FieldName == "Company" {
			bad.Fields[i].FieldLabel = "Employer"
		}
	}
	bad.LinkedEntities = []linked.Entity{{EntityName: "Activities", Enabled: true}}
	bad.Links = map[string][]links.Link{
		"State": {
			{ID: "dup-link", SourceType: links.SourceLookupCategory, SourceName: "states",
				DisplayField: "name", ValueField: "code", Active: true},
			{ID: "dup-link", SourceType: links.SourceLookupCategory, SourceName: "states",
				DisplayField: "name", ValueField: "code", Active: true, SortOrder: 1},
		},
	}
	_, err = c.SaveModuleConfig(ctx, "Leads", bad)
	require.Error(t, err)

	// Everything written before the fault was rolled back.
	afterFields, err := fs.ListFields(ctx, "Leads")
	require.NoError(t, err)
	assert.Equal(t, beforeFields, afterFields)

	afterLinks, err := linkStore.ListForModule(ctx, "Leads")
	require.NoError(t, err)
	assert.Equal(t, beforeLinks, afterLinks)

	entities, err := linked.NewStore(db).ListForModule(ctx, "Leads")
	require.NoError(t, err)
	assert.Empty(t, entities)

	var version int64
	require.NoError(t, db.QueryRowContext(ctx,
		`SELECT config_version FROM module_ui_configs WHERE module_name = 'Leads'`).Scan(&version))
	assert.Equal(t, int64(1), version)
}

func TestSaveAddsAndRemovesFields(t *testing.T) {
	ctx := context.Background()
	db, c, fs := newTestCoordinator(t)

	snap := snapshotOf(ctx, t, db, fs, "Leads")

	// Drop AnnualRevenue (last on the Details tab) and add a new field at
	// the end of General.
	kept := snap.Fields[:0]
	var generalCount int
	for _, fc := range snap.Fields {
		if fc.FieldName == "AnnualRevenue" {
			continue
		}
		if fc.TabName == "General" {
			generalCount++
		}
		kept = append(kept, fc)
	}
	snap.Fields = append(kept, fields.FieldConfiguration{
		FieldName:            "Nickname",
		FieldLabel:           "Nickname",
		FieldType:            fields.TypeText,
		TabName:              "General",
		DisplayOrder:         generalCount,
		Enabled:              true,
		GridSize:             6,
		Reorderable:          true,
		RequiredConfigurable: true,
		Hideable:             true,
	})

	result, err := c.SaveModuleConfig(ctx, "Leads", snap)
	require.NoError(t, err)

	names := fieldNames(result.Fields)
	assert.Contains(t, names, "Nickname")
	assert.NotContains(t, names, "AnnualRevenue")
	for _, fc := range result.Fields {
		assert.NotZero(t, fc.ID)
	}

	stored, err := fs.ListFields(ctx, "Leads")
	require.NoError(t, err)
	assert.ElementsMatch(t, names, fieldNames(stored))
}

func TestSaveValidationRejections(t *testing.T) {
	ctx := context.Background()
	db, c, fs := newTestCoordinator(t)

	mutate := func(fn func(*Snapshot)) error {
		snap := snapshotOf(ctx, t, db, fs, "Leads")
		fn(&snap)
		_, err := c.SaveModuleConfig(ctx, "Leads", snap)
		return err
	}
	setField := func(snap *Snapshot, name string, fn func(*fields.FieldConfiguration)) {
		for i := range snap.Fields {
			if snap.Fields[i].FieldName == name {
				fn(&snap.Fields[i])
			}
		}
	}

	err := mutate(func(snap *Snapshot) { snap.Version = 42 })
	assert.Equal(t, cfgerr.StaleConfiguration, cfgerr.KindOf(err))

	// Hiding a pinned field is rejected even if the snapshot lies about
	// the policy flags: the stored flags are authoritative.
	err = mutate(func(snap *Snapshot) {
		setField(snap, "Name", func(fc *fields.FieldConfiguration) {
			fc.Enabled = false
			fc.Hideable = true
		})
	})
	assert.Equal(t, cfgerr.PolicyViolation, cfgerr.KindOf(err))

	err = mutate(func(snap *Snapshot) {
		setField(snap, "Status", func(fc *fields.FieldConfiguration) { fc.Required = false })
	})
	assert.Equal(t, cfgerr.PolicyViolation, cfgerr.KindOf(err))

	err = mutate(func(snap *Snapshot) {
		setField(snap, "Company", func(fc *fields.FieldConfiguration) { fc.DisplayOrder = 40 })
	})
	assert.Equal(t, cfgerr.OutOfRange, cfgerr.KindOf(err))

	err = mutate(func(snap *Snapshot) { snap.Tabs[1].Order = 5 })
	assert.Equal(t, cfgerr.OutOfRange, cfgerr.KindOf(err))

	err = mutate(func(snap *Snapshot) {
		setField(snap, "Company", func(fc *fields.FieldConfiguration) { fc.TabName = "Ghost" })
	})
	assert.Equal(t, cfgerr.InvalidDependency, cfgerr.KindOf(err))

	err = mutate(func(snap *Snapshot) {
		snap.Links = map[string][]links.Link{
			"State": {{SourceType: links.SourceLookupCategory, SourceName: "states", DependsOnField: "City", Active: true}},
			"City":  {{SourceType: links.SourceLookupCategory, SourceName: "cities", DependsOnField: "State", Active: true}},
		}
	})
	assert.Equal(t, cfgerr.CyclicDependency, cfgerr.KindOf(err))

	// None of the rejected saves touched the store.
	var version int64
	require.NoError(t, db.QueryRowContext(ctx,
		`SELECT config_version FROM module_ui_configs WHERE module_name = 'Leads'`).Scan(&version))
	assert.Equal(t, int64(0), version)

	stored, err := fs.ListFields(ctx, "Leads")
	require.NoError(t, err)
	for _, fc := range stored {
		if fc.FieldName == "Name" {
			assert.True(t, fc.Enabled)
		}
	}
}

func TestResetToDefaults(t *testing.T) {
	ctx := context.Background()
	db, c, fs := newTestCoordinator(t)

	// Drift from the defaults, including a link.
	snap := snapshotOf(ctx, t, db, fs, "Leads")
	for i := range snap.Fields {
		snap.Fields[i].FieldLabel = "Changed"
	}
	snap.Links = map[string][]links.Link{
		"State": {{SourceType: links.SourceLookupCategory, SourceName: "states", DisplayField: "name", Active: true}},
	}
	_, err := c.SaveModuleConfig(ctx, "Leads", snap)
	require.NoError(t, err)

	defs, err := c.ResetToDefaults(ctx, "Leads")
	require.NoError(t, err)
	require.NotEmpty(t, defs)
	assert.Equal(t, "Lead Name", defs[0].FieldLabel)

	stored, err := fs.ListFields(ctx, "Leads")
	require.NoError(t, err)
	assert.Equal(t, len(defs), len(stored))
	for _, fc := range stored {
		assert.NotEqual(t, "Changed", fc.FieldLabel)
	}

	var linkCount int
	require.NoError(t, db.QueryRowContext(ctx,
		`SELECT count(*) FROM master_data_links`).Scan(&linkCount))
	assert.Zero(t, linkCount)

	// Reset also invalidates concurrent editors via the version bump.
	var version int64
	require.NoError(t, db.QueryRowContext(ctx,
		`SELECT config_version FROM module_ui_configs WHERE module_name = 'Leads'`).Scan(&version))
	assert.Equal(t, int64(2), version)

	_, err = c.ResetToDefaults(ctx, "NoSuchModule")
	assert.Equal(t, cfgerr.NotFound, cfgerr.KindOf(err))
}
