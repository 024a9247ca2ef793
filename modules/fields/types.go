package fields

// FieldType enumerates every input kind the form renderer understands.
// The set is closed: stores reject anything else at write time.
type FieldType string

const (
	TypeText         FieldType = "text"
	TypeTextarea     FieldType = "textarea"
	TypeNumber       FieldType = "number"
	TypeCurrency     FieldType = "currency"
	TypeDate         FieldType = "date"
	TypeDatetime     FieldType = "datetime"
	TypeEmail        FieldType = "email"
	TypePhone        FieldType = "phone"
	TypeURL          FieldType = "url"
	TypeSelect       FieldType = "select"
	TypeMultiselect  FieldType = "multiselect"
	TypeCheckbox     FieldType = "checkbox"
	TypeRadio        FieldType = "radio"
	TypeLookup       FieldType = "lookup"
	TypeAutocomplete FieldType = "autocomplete"
	TypeRating       FieldType = "rating"
	TypeFile         FieldType = "file"
	TypeImage        FieldType = "image"
	TypeColor        FieldType = "color"
	TypeRichtext     FieldType = "richtext"
	TypeJSON         FieldType = "json"
	TypeReadonly     FieldType = "readonly"
)

var fieldTypes = map[FieldType]bool{
	TypeText: true, TypeTextarea: true, TypeNumber: true, TypeCurrency: true,
	TypeDate: true, TypeDatetime: true, TypeEmail: true, TypePhone: true,
	TypeURL: true, TypeSelect: true, TypeMultiselect: true, TypeCheckbox: true,
	TypeRadio: true, TypeLookup: true, TypeAutocomplete: true, TypeRating: true,
	TypeFile: true, TypeImage: true, TypeColor: true, TypeRichtext: true,
	TypeJSON: true, TypeReadonly: true,
}

func (t FieldType) Valid() bool { return fieldTypes[t] }

// HasOptions reports whether the type carries a static option list.
func (t FieldType) HasOptions() bool {
	return t == TypeSelect || t == TypeMultiselect || t == TypeRadio
}

// SelectOption is one entry of a select/multiselect/radio option list.
type SelectOption struct {
	Value string `json:"value"`
	Label string `json:"label"`
}

// GridSizeValid reports whether size is one of the supported layout widths
// (twelfths of the form row).
func GridSizeValid(size int) bool {
	switch size {
	case 1, 2, 3, 4, 6, 12:
		return true
	}
	return false
}

// FieldConfiguration describes how one field of a business module is
// rendered: its tab, position, layout width, visibility and requirement
// policy. The three policy flags are fixed at creation time and constrain
// which later edits are permitted.
type FieldConfiguration struct {
	ID         int64     `json:"id"`
	ModuleName string    `json:"moduleName"`
	FieldName  string    `json:"fieldName"` // immutable, maps to the underlying schema
	FieldLabel string    `json:"fieldLabel"`
	FieldType  FieldType `json:"fieldType"`

	TabName      string `json:"tabName"`
	TabIndex     int    `json:"tabIndex"`
	DisplayOrder int    `json:"displayOrder"`

	Enabled  bool `json:"isEnabled"`
	Required bool `json:"isRequired"`
	GridSize int  `json:"gridSize"`

	Placeholder string         `json:"placeholder"`
	HelpText    string         `json:"helpText"`
	Options     []SelectOption `json:"options,omitempty"`

	// Conditional visibility: the field is shown only while the named
	// sibling field holds ParentFieldValue.
	ParentField      string `json:"parentField,omitempty"`
	ParentFieldValue string `json:"parentFieldValue,omitempty"`

	// Policy flags, never user-editable.
	Reorderable          bool `json:"isReorderable"`
	RequiredConfigurable bool `json:"isRequiredConfigurable"`
	Hideable             bool `json:"isHideable"`
}

// TabConfig is a named, ordered, independently toggleable group of fields.
// Order values within a module are always a contiguous permutation 0..n-1.
type TabConfig struct {
	ModuleName string `json:"moduleName"`
	Index      int    `json:"index"`
	Name       string `json:"name"`
	Enabled    bool   `json:"enabled"`
	Order      int    `json:"order"`
}
