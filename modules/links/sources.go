package links

import (
	"context"
	"slices"
)

// AvailableSource describes one data source a link may bind to: a lookup
// category or a linkable table, with its queryable field names.
type AvailableSource struct {
	SourceType      SourceType `json:"sourceType"`
	SourceName      string     `json:"sourceName"`
	DisplayName     string     `json:"displayName"`
	AvailableFields []string   `json:"availableFields"`
}

// SourceCatalog enumerates the sources links can bind to. The catalog is an
// external collaborator: this package validates against it but never owns
// or mutates the underlying master data.
type SourceCatalog interface {
	ListSources(ctx context.Context) ([]AvailableSource, error)
}

// StaticCatalog is a fixed in-process catalog.
type StaticCatalog struct {
	Sources []AvailableSource
}

func (c *StaticCatalog) ListSources(ctx context.Context) ([]AvailableSource, error) {
	return c.Sources, nil
}

// Resolve finds the source with the given type and name.
func Resolve(ctx context.Context, catalog SourceCatalog, st SourceType, name string) (*AvailableSource, error) {
	sources, err := catalog.ListSources(ctx)
	if err != nil {
		return nil, err
	}
	for i := range sources {
		if sources[i].SourceType == st && sources[i].SourceName == name {
			return &sources[i], nil
		}
	}
	return nil, nil
}

// HasField reports whether the source exposes the named column. Sources
// with an empty field list accept any column.
func (s *AvailableSource) HasField(name string) bool {
	return len(s.AvailableFields) == 0 || slices.Contains(s.AvailableFields, name)
}

// DefaultCatalog returns the built-in set of lookup categories and
// linkable tables.
func DefaultCatalog() *StaticCatalog {
	return &StaticCatalog{Sources: []AvailableSource{
		{SourceType: SourceLookupCategory, SourceName: "countries", DisplayName: "Countries",
			AvailableFields: []string{"code", "name"}},
		{SourceType: SourceLookupCategory, SourceName: "states", DisplayName: "States / Provinces",
			AvailableFields: []string{"code", "name", "country_code"}},
		{SourceType: SourceLookupCategory, SourceName: "cities", DisplayName: "Cities",
			AvailableFields: []string{"id", "name", "state_code"}},
		{SourceType: SourceLookupCategory, SourceName: "industries", DisplayName: "Industries",
			AvailableFields: []string{"code", "name"}},
		{SourceType: SourceLookupCategory, SourceName: "lead_sources", DisplayName: "Lead Sources",
			AvailableFields: []string{"code", "name"}},
		{SourceType: SourceLookupCategory, SourceName: "currencies", DisplayName: "Currencies",
			AvailableFields: []string{"code", "name", "symbol"}},
		{SourceType: SourceTable, SourceName: "customers", DisplayName: "Customers",
			AvailableFields: []string{"id", "name", "email"}},
		{SourceType: SourceTable, SourceName: "contacts", DisplayName: "Contacts",
			AvailableFields: []string{"id", "first_name", "last_name", "email"}},
		{SourceType: SourceTable, SourceName: "products", DisplayName: "Products",
			AvailableFields: []string{"id", "name", "sku"}},
		{SourceType: SourceTable, SourceName: "users", DisplayName: "Users",
			AvailableFields: []string{"id", "name", "email"}},
	}}
}
