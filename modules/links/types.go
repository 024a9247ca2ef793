// Package links binds individual fields to external master-data sources:
// lookup tables or other entities, with optional cascading on a sibling
// field's value and optional validation policy.
package links

type SourceType string

const (
	SourceTable          SourceType = "table"
	SourceLookupCategory SourceType = "lookup_category"
)

func (t SourceType) Valid() bool { return t == SourceTable || t == SourceLookupCategory }

type ValidationType string

const (
	ValidationNone     ValidationType = "none"
	ValidationRegex    ValidationType = "regex"
	ValidationRequired ValidationType = "required"
	ValidationRange    ValidationType = "range"
	ValidationLength   ValidationType = "length"
)

func (t ValidationType) Valid() bool {
	switch t {
	case "", ValidationNone, ValidationRegex, ValidationRequired, ValidationRange, ValidationLength:
		return true
	}
	return false
}

// Link binds one field configuration to a data source. A field may carry
// several links, e.g. one entity link plus one validation-only lookup link.
type Link struct {
	ID                   string     `json:"id"`
	FieldConfigurationID int64      `json:"fieldConfigurationId"`
	SourceType           SourceType `json:"sourceType"`
	SourceName           string     `json:"sourceName"`
	DisplayField         string     `json:"displayField"`
	ValueField           string     `json:"valueField"`

	// Static filter applied to the source unconditionally.
	Filter map[string]string `json:"filterExpression,omitempty"`

	// Cascading: the current value of DependsOnField (a sibling field in
	// the same module) filters this link's source by DependsOnSourceColumn.
	DependsOnField        string `json:"dependsOnField,omitempty"`
	DependsOnSourceColumn string `json:"dependsOnSourceColumn,omitempty"`

	AllowFreeText bool `json:"allowFreeText"`

	ValidationType    ValidationType `json:"validationType,omitempty"`
	ValidationPattern string         `json:"validationPattern,omitempty"`
	ValidationMessage string         `json:"validationMessage,omitempty"`

	// Bounds for range/length validation.
	MinValue  *float64 `json:"minValue,omitempty"`
	MaxValue  *float64 `json:"maxValue,omitempty"`
	MinLength *int     `json:"minLength,omitempty"`
	MaxLength *int     `json:"maxLength,omitempty"`

	SortOrder int  `json:"sortOrder"`
	Active    bool `json:"isActive"`
}

// Annotation summarizes a field's links for list views so the UI can show
// indicators without one round trip per field.
type Annotation struct {
	Restricted          bool `json:"restricted"`          // any active link forbids free text
	EntityLinked        bool `json:"entityLinked"`        // any link points at a table
	MasterDataValidated bool `json:"masterDataValidated"` // any lookup link or validation rule
}

// Annotate computes the indicator flags for one field's links.
func Annotate(links []Link) Annotation {
	var a Annotation
	for _, l := range links {
		if l.Active && !l.AllowFreeText {
			a.Restricted = true
		}
		if l.SourceType == SourceTable {
			a.EntityLinked = true
		}
		if l.SourceType == SourceLookupCategory || (l.ValidationType != "" && l.ValidationType != ValidationNone) {
			a.MasterDataValidated = true
		}
	}
	return a
}
