package linked

import (
	"context"
	"testing"

	"github.com/openfield-labs/fieldforge/internal/cfgerr"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestUpsertAndList(t *testing.T) {
	ctx := context.Background()
	db := NewTestDB(t)
	s := NewStore(db)

	require.NoError(t, s.Upsert(ctx, Entity{
		ModuleName:      "Customers",
		EntityName:      "Contacts",
		Enabled:         true,
		TabName:         "Related",
		ForeignKeyField: "customer_id",
	}))
	require.NoError(t, s.Upsert(ctx, Entity{
		ModuleName:       "Customers",
		EntityName:       "Opportunities",
		RelationshipType: "many-to-many",
		Enabled:          true,
		DisplayOrder:     1,
	}))

	entities, err := s.ListForModule(ctx, "Customers")
	require.NoError(t, err)
	require.Len(t, entities, 2)
	assert.Equal(t, "Contacts", entities[0].EntityName)
	assert.Equal(t, "one-to-many", entities[0].RelationshipType) // defaulted
	assert.Equal(t, "many-to-many", entities[1].RelationshipType)

	// Upserting the same pair replaces rather than duplicates.
	require.NoError(t, s.Upsert(ctx, Entity{
		ModuleName: "Customers",
		EntityName: "Contacts",
		Enabled:    false,
		TabName:    "People",
	}))
	entities, err = s.ListForModule(ctx, "Customers")
	require.NoError(t, err)
	require.Len(t, entities, 2)
	assert.False(t, entities[0].Enabled)
	assert.Equal(t, "People", entities[0].TabName)
}

func TestToggleAndDelete(t *testing.T) {
	ctx := context.Background()
	db := NewTestDB(t)
	s := NewStore(db)

	require.NoError(t, s.Upsert(ctx, Entity{ModuleName: "Leads", EntityName: "Activities", Enabled: true}))

	require.NoError(t, s.Toggle(ctx, "Leads", "Activities"))
	entities, err := s.ListForModule(ctx, "Leads")
	require.NoError(t, err)
	assert.False(t, entities[0].Enabled)

	assert.Equal(t, cfgerr.NotFound, cfgerr.KindOf(s.Toggle(ctx, "Leads", "NoSuchEntity")))

	require.NoError(t, s.Delete(ctx, "Leads", "Activities"))
	assert.Equal(t, cfgerr.NotFound, cfgerr.KindOf(s.Delete(ctx, "Leads", "Activities")))
}
