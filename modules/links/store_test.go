package links

import (
	"context"
	"database/sql"
	"testing"

	"github.com/openfield-labs/fieldforge/engine"
	"github.com/openfield-labs/fieldforge/internal/cfgerr"
	"github.com/openfield-labs/fieldforge/modules/fields"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// newTestStore migrates both the fields and links schemas and seeds the
// Customers module, whose Address tab carries the Country/State/City
// lookups used below.
func newTestStore(t *testing.T) (*sql.DB, *Store, map[string]int64) {
	ctx := context.Background()
	db := fields.NewTestDB(t)
	engine.MustMigrate(db, migration)

	fcs, err := fields.NewStore(db, nil).InitializeDefaults(ctx, "Customers")
	require.NoError(t, err)

	ids := map[string]int64{}
	for _, fc := range fcs {
		ids[fc.FieldName] = fc.ID
	}
	return db, NewStore(db, DefaultCatalog(), nil), ids
}

func countryStateCity(ctx context.Context, t *testing.T, s *Store, ids map[string]int64) {
	t.Helper()
	_, err := s.Create(ctx, Link{
		FieldConfigurationID:  ids["State"],
		SourceType:            SourceLookupCategory,
		SourceName:            "states",
		DisplayField:          "name",
		ValueField:            "code",
		DependsOnField:        "Country",
		DependsOnSourceColumn: "country_code",
		Active:                true,
	}, nil)
	require.NoError(t, err)

	_, err = s.Create(ctx, Link{
		FieldConfigurationID:  ids["City"],
		SourceType:            SourceLookupCategory,
		SourceName:            "cities",
		DisplayField:          "name",
		ValueField:            "id",
		DependsOnField:        "State",
		DependsOnSourceColumn: "state_code",
		Active:                true,
	}, nil)
	require.NoError(t, err)
}

func TestCreateAndList(t *testing.T) {
	ctx := context.Background()
	_, s, ids := newTestStore(t)

	created, err := s.Create(ctx, Link{
		FieldConfigurationID: ids["Country"],
		SourceType:           SourceLookupCategory,
		SourceName:           "countries",
		DisplayField:         "name",
		ValueField:           "code",
		Active:               true,
	}, nil)
	require.NoError(t, err)
	assert.NotEmpty(t, created.ID)
	assert.Equal(t, 0, created.SortOrder)

	second, err := s.Create(ctx, Link{
		FieldConfigurationID: ids["Country"],
		SourceType:           SourceTable,
		SourceName:           "users",
		DisplayField:         "name",
		ValueField:           "id",
		AllowFreeText:        true,
		Active:               true,
	}, nil)
	require.NoError(t, err)
	assert.Equal(t, 1, second.SortOrder)

	ls, err := s.ListForField(ctx, ids["Country"])
	require.NoError(t, err)
	require.Len(t, ls, 2)
	assert.Equal(t, created.ID, ls[0].ID)

	byField, err := s.ListForModule(ctx, "Customers")
	require.NoError(t, err)
	assert.Len(t, byField[ids["Country"]], 2)
}

func TestExplicitSortOrderZero(t *testing.T) {
	ctx := context.Background()
	_, s, ids := newTestStore(t)

	first, err := s.Create(ctx, Link{
		FieldConfigurationID: ids["Country"],
		SourceType:           SourceLookupCategory,
		SourceName:           "countries",
		DisplayField:         "name",
		ValueField:           "code",
		Active:               true,
	}, nil)
	require.NoError(t, err)
	require.Equal(t, 0, first.SortOrder)

	// An explicit zero puts the new link in front even though position
	// zero is taken.
	zero := 0
	front, err := s.Create(ctx, Link{
		FieldConfigurationID: ids["Country"],
		SourceType:           SourceTable,
		SourceName:           "users",
		DisplayField:         "name",
		ValueField:           "id",
		Active:               true,
	}, &zero)
	require.NoError(t, err)
	assert.Equal(t, 0, front.SortOrder)

	// An update with an explicit zero moves the link; without one it stays.
	moved, err := s.Update(ctx, first.ID, *first, &zero)
	require.NoError(t, err)
	assert.Equal(t, 0, moved.SortOrder)

	two := 2
	moved, err = s.Update(ctx, first.ID, *first, &two)
	require.NoError(t, err)
	require.Equal(t, 2, moved.SortOrder)
	kept, err := s.Update(ctx, first.ID, *moved, nil)
	require.NoError(t, err)
	assert.Equal(t, 2, kept.SortOrder)
}

func TestCorruptFilterExpressionSurfaces(t *testing.T) {
	ctx := context.Background()
	db, s, ids := newTestStore(t)
	countryStateCity(ctx, t, s, ids)

	ls, err := s.ListForField(ctx, ids["State"])
	require.NoError(t, err)
	require.Len(t, ls, 1)

	_, err = db.ExecContext(ctx, `UPDATE master_data_links SET filter_expression = '{broken' WHERE id = ?`, ls[0].ID)
	require.NoError(t, err)

	_, err = s.Get(ctx, ls[0].ID)
	require.ErrorContains(t, err, "filter expression")
}

func TestCreateValidation(t *testing.T) {
	ctx := context.Background()
	_, s, ids := newTestStore(t)

	base := Link{
		FieldConfigurationID: ids["Country"],
		SourceType:           SourceLookupCategory,
		SourceName:           "countries",
		DisplayField:         "name",
		ValueField:           "code",
	}

	l := base
	l.SourceType = "spreadsheet"
	_, err := s.Create(ctx, l, nil)
	assert.Equal(t, cfgerr.InvalidDependency, cfgerr.KindOf(err))

	l = base
	l.SourceName = "planets"
	_, err = s.Create(ctx, l, nil)
	assert.Equal(t, cfgerr.InvalidDependency, cfgerr.KindOf(err))

	l = base
	l.DisplayField = "population"
	_, err = s.Create(ctx, l, nil)
	assert.Equal(t, cfgerr.InvalidDependency, cfgerr.KindOf(err))

	l = base
	l.ValidationType = "quantum"
	_, err = s.Create(ctx, l, nil)
	assert.Equal(t, cfgerr.InvalidDependency, cfgerr.KindOf(err))

	l = base
	l.ValidationType = ValidationRegex
	l.ValidationPattern = `([`
	_, err = s.Create(ctx, l, nil)
	assert.Equal(t, cfgerr.InvalidDependency, cfgerr.KindOf(err))

	l = base
	l.DependsOnField = "NoSuchField"
	_, err = s.Create(ctx, l, nil)
	assert.Equal(t, cfgerr.InvalidDependency, cfgerr.KindOf(err))

	l = base
	l.DependsOnField = "Country"
	_, err = s.Create(ctx, l, nil)
	assert.Equal(t, cfgerr.CyclicDependency, cfgerr.KindOf(err))

	_, err = s.Create(ctx, Link{FieldConfigurationID: 99999, SourceType: SourceTable, SourceName: "users"}, nil)
	assert.Equal(t, cfgerr.NotFound, cfgerr.KindOf(err))

	// Nothing was stored by any of the rejected mutations.
	ls, err := s.ListForField(ctx, ids["Country"])
	require.NoError(t, err)
	assert.Empty(t, ls)
}

func TestCycleRejection(t *testing.T) {
	ctx := context.Background()
	_, s, ids := newTestStore(t)
	countryStateCity(ctx, t, s, ids)

	// Country -> City would close City -> State -> Country into a loop.
	_, err := s.Create(ctx, Link{
		FieldConfigurationID: ids["Country"],
		SourceType:           SourceLookupCategory,
		SourceName:           "countries",
		DisplayField:         "name",
		ValueField:           "code",
		DependsOnField:       "City",
		Active:               true,
	}, nil)
	require.Equal(t, cfgerr.CyclicDependency, cfgerr.KindOf(err))

	var cerr *cfgerr.Error
	require.ErrorAs(t, err, &cerr)
	assert.Contains(t, cerr.Cycle, "Country")
	assert.Contains(t, cerr.Cycle, "State")
	assert.Contains(t, cerr.Cycle, "City")
}

func TestUpdateExcludesOwnEdge(t *testing.T) {
	ctx := context.Background()
	_, s, ids := newTestStore(t)
	countryStateCity(ctx, t, s, ids)

	ls, err := s.ListForField(ctx, ids["City"])
	require.NoError(t, err)
	require.Len(t, ls, 1)

	// Re-submitting the same cascade must not collide with itself.
	updated, err := s.Update(ctx, ls[0].ID, ls[0], nil)
	require.NoError(t, err)
	assert.Equal(t, "State", updated.DependsOnField)

	// But redirecting it at a downstream field is still a cycle.
	bad := ls[0]
	bad.DependsOnField = "City"
	_, err = s.Update(ctx, ls[0].ID, bad, nil)
	assert.Equal(t, cfgerr.CyclicDependency, cfgerr.KindOf(err))
}

func TestDelete(t *testing.T) {
	ctx := context.Background()
	_, s, ids := newTestStore(t)
	countryStateCity(ctx, t, s, ids)

	ls, err := s.ListForField(ctx, ids["State"])
	require.NoError(t, err)
	require.Len(t, ls, 1)

	require.NoError(t, s.Delete(ctx, ls[0].ID))
	assert.Equal(t, cfgerr.NotFound, cfgerr.KindOf(s.Delete(ctx, ls[0].ID)))
}

func TestAnnotate(t *testing.T) {
	a := Annotate([]Link{
		{SourceType: SourceTable, AllowFreeText: true, Active: true},
	})
	assert.True(t, a.EntityLinked)
	assert.False(t, a.Restricted)
	assert.False(t, a.MasterDataValidated)

	a = Annotate([]Link{
		{SourceType: SourceLookupCategory, Active: true},
		{SourceType: SourceTable, ValidationType: ValidationRequired, AllowFreeText: true},
	})
	assert.True(t, a.Restricted)
	assert.True(t, a.EntityLinked)
	assert.True(t, a.MasterDataValidated)
}

func TestSweeperDeactivatesDanglingLinks(t *testing.T) {
	ctx := context.Background()
	db, s, ids := newTestStore(t)
	countryStateCity(ctx, t, s, ids)

	sw := &sweeper{db: db}

	// Nothing dangles yet.
	_, err := sw.GetItem(ctx)
	assert.ErrorIs(t, err, sql.ErrNoRows)

	// Remove the State field out from under the City link.
	_, err = db.ExecContext(ctx, `DELETE FROM field_configurations WHERE id = ?`, ids["State"])
	require.NoError(t, err)
	_, err = db.ExecContext(ctx, `DELETE FROM master_data_links WHERE field_configuration_id = ?`, ids["State"])
	require.NoError(t, err)

	item, err := sw.GetItem(ctx)
	require.NoError(t, err)
	assert.Equal(t, "State", item.DependsOn)
	assert.Equal(t, "Customers", item.Module)

	require.NoError(t, sw.ProcessItem(ctx, item))

	l, err := s.Get(ctx, item.ID)
	require.NoError(t, err)
	assert.False(t, l.Active)

	// Deactivation drained the queue.
	_, err = sw.GetItem(ctx)
	assert.ErrorIs(t, err, sql.ErrNoRows)
}
