package fields

import "github.com/openfield-labs/fieldforge/internal/cfgerr"

// defaultField is the compact form used to declare the built-in schema.
type defaultField struct {
	name     string
	label    string
	ftype    FieldType
	tab      string
	tabIndex int
	required bool
	grid     int
	options  []SelectOption

	// policy flags; zero value means the permissive default (true)
	fixedPosition  bool // not reorderable
	fixedRequired  bool // required flag not configurable
	alwaysVisible  bool // not hideable
	parent         string
	parentValue    string
	placeholder    string
	helpText       string
}

// Defaults returns the built-in field set for a module, in display order,
// or nil for unknown modules. The returned slice carries contiguous
// display orders per tab and creation-time policy flags.
func Defaults(module string) []FieldConfiguration {
	defs, ok := defaultSchemas[module]
	if !ok {
		return nil
	}

	orderPerTab := map[string]int{}
	out := make([]FieldConfiguration, 0, len(defs))
	for _, d := range defs {
		grid := d.grid
		if grid == 0 {
			grid = 6
		}
		fc := FieldConfiguration{
			ModuleName:           module,
			FieldName:            d.name,
			FieldLabel:           d.label,
			FieldType:            d.ftype,
			TabName:              d.tab,
			TabIndex:             d.tabIndex,
			DisplayOrder:         orderPerTab[d.tab],
			Enabled:              true,
			Required:             d.required,
			GridSize:             grid,
			Placeholder:          d.placeholder,
			HelpText:             d.helpText,
			Options:              d.options,
			ParentField:          d.parent,
			ParentFieldValue:     d.parentValue,
			Reorderable:          !d.fixedPosition,
			RequiredConfigurable: !d.fixedRequired,
			Hideable:             !d.alwaysVisible,
		}
		orderPerTab[d.tab]++
		out = append(out, fc)
	}
	return out
}

// ValidateDefaults checks a built-in field set against the same write-time
// invariants enforced on edits. The schemas above are hand-written, so a
// typo in a grid size or a dangling parent reference should surface on the
// first initialization rather than on the first save.
func ValidateDefaults(defs []FieldConfiguration) error {
	names := make(map[string]bool, len(defs))
	for i := range defs {
		names[defs[i].FieldName] = true
	}
	for i := range defs {
		fc := &defs[i]
		if !fc.FieldType.Valid() {
			return cfgerr.Policyf(fc.ModuleName, fc.FieldName, "fieldType", "unknown field type %q", fc.FieldType)
		}
		if !GridSizeValid(fc.GridSize) {
			return cfgerr.Policyf(fc.ModuleName, fc.FieldName, "gridSize", "grid size must be one of 1,2,3,4,6,12")
		}
		if fc.FieldType.HasOptions() && len(fc.Options) == 0 {
			return cfgerr.Policyf(fc.ModuleName, fc.FieldName, "options", "%s fields need at least one option", fc.FieldType)
		}
		if fc.ParentField == "" {
			continue
		}
		if fc.ParentField == fc.FieldName {
			return cfgerr.InvalidDependencyf(fc.ModuleName, fc.FieldName, "field cannot be its own visibility parent")
		}
		if !names[fc.ParentField] {
			return cfgerr.InvalidDependencyf(fc.ModuleName, fc.FieldName,
				"parentField %q does not exist in module %s", fc.ParentField, fc.ModuleName)
		}
	}
	return nil
}

// KnownModules returns the module names with a built-in schema.
func KnownModules() []string {
	return []string{"Customers", "Leads", "Contacts", "Opportunities", "Activities", "Products"}
}

var ratingOptions = []SelectOption{
	{Value: "hot", Label: "Hot"},
	{Value: "warm", Label: "Warm"},
	{Value: "cold", Label: "Cold"},
}

var defaultSchemas = map[string][]defaultField{
	"Customers": {
		{name: "Name", label: "Customer Name", ftype: TypeText, tab: "General", required: true,
			fixedPosition: true, fixedRequired: true, alwaysVisible: true, grid: 6},
		{name: "AccountNumber", label: "Account Number", ftype: TypeReadonly, tab: "General",
			fixedRequired: true, grid: 6},
		{name: "Email", label: "Email", ftype: TypeEmail, tab: "General", required: true, grid: 6},
		{name: "Phone", label: "Phone", ftype: TypePhone, tab: "General", grid: 6},
		{name: "Website", label: "Website", ftype: TypeURL, tab: "General", grid: 6},
		{name: "Industry", label: "Industry", ftype: TypeLookup, tab: "General", grid: 6},
		{name: "Country", label: "Country", ftype: TypeLookup, tab: "Address", tabIndex: 1, grid: 4},
		{name: "State", label: "State / Province", ftype: TypeLookup, tab: "Address", tabIndex: 1, grid: 4},
		{name: "City", label: "City", ftype: TypeLookup, tab: "Address", tabIndex: 1, grid: 4},
		{name: "Street", label: "Street", ftype: TypeText, tab: "Address", tabIndex: 1, grid: 6},
		{name: "PostalCode", label: "Postal Code", ftype: TypeText, tab: "Address", tabIndex: 1, grid: 6},
		{name: "CreditLimit", label: "Credit Limit", ftype: TypeCurrency, tab: "Billing", tabIndex: 2, grid: 6},
		{name: "TaxID", label: "Tax ID", ftype: TypeText, tab: "Billing", tabIndex: 2, grid: 6},
		{name: "Notes", label: "Notes", ftype: TypeRichtext, tab: "Billing", tabIndex: 2, grid: 12},
	},
	"Leads": {
		{name: "Name", label: "Lead Name", ftype: TypeText, tab: "General", required: true,
			fixedPosition: true, fixedRequired: true, alwaysVisible: true, grid: 6},
		{name: "Company", label: "Company", ftype: TypeText, tab: "General", grid: 6},
		{name: "Email", label: "Email", ftype: TypeEmail, tab: "General", required: true, grid: 6},
		{name: "Phone", label: "Phone", ftype: TypePhone, tab: "General", grid: 6},
		{name: "Source", label: "Lead Source", ftype: TypeLookup, tab: "General", grid: 6},
		{name: "Rating", label: "Rating", ftype: TypeRadio, tab: "General", grid: 6, options: ratingOptions},
		{name: "Status", label: "Status", ftype: TypeSelect, tab: "General", required: true, fixedRequired: true, grid: 6,
			options: []SelectOption{
				{Value: "new", Label: "New"},
				{Value: "contacted", Label: "Contacted"},
				{Value: "qualified", Label: "Qualified"},
				{Value: "lost", Label: "Lost"},
			}},
		{name: "LostReason", label: "Lost Reason", ftype: TypeTextarea, tab: "General", grid: 12,
			parent: "Status", parentValue: "lost"},
		{name: "Country", label: "Country", ftype: TypeLookup, tab: "Details", tabIndex: 1, grid: 4},
		{name: "State", label: "State / Province", ftype: TypeLookup, tab: "Details", tabIndex: 1, grid: 4},
		{name: "City", label: "City", ftype: TypeLookup, tab: "Details", tabIndex: 1, grid: 4},
		{name: "AnnualRevenue", label: "Annual Revenue", ftype: TypeCurrency, tab: "Details", tabIndex: 1, grid: 6},
	},
	"Contacts": {
		{name: "FirstName", label: "First Name", ftype: TypeText, tab: "General", required: true,
			fixedPosition: true, fixedRequired: true, alwaysVisible: true, grid: 6},
		{name: "LastName", label: "Last Name", ftype: TypeText, tab: "General", required: true,
			fixedRequired: true, alwaysVisible: true, grid: 6},
		{name: "Email", label: "Email", ftype: TypeEmail, tab: "General", grid: 6},
		{name: "Phone", label: "Phone", ftype: TypePhone, tab: "General", grid: 6},
		{name: "Birthday", label: "Birthday", ftype: TypeDate, tab: "General", grid: 6},
		{name: "Photo", label: "Photo", ftype: TypeImage, tab: "General", grid: 6},
		{name: "Account", label: "Account", ftype: TypeAutocomplete, tab: "General", grid: 12},
	},
	"Opportunities": {
		{name: "Name", label: "Opportunity Name", ftype: TypeText, tab: "General", required: true,
			fixedPosition: true, fixedRequired: true, alwaysVisible: true, grid: 6},
		{name: "Amount", label: "Amount", ftype: TypeCurrency, tab: "General", required: true, grid: 6},
		{name: "CloseDate", label: "Close Date", ftype: TypeDate, tab: "General", grid: 6},
		{name: "Stage", label: "Stage", ftype: TypeSelect, tab: "General", required: true, fixedRequired: true, grid: 6,
			options: []SelectOption{
				{Value: "prospecting", Label: "Prospecting"},
				{Value: "proposal", Label: "Proposal"},
				{Value: "negotiation", Label: "Negotiation"},
				{Value: "closed_won", Label: "Closed Won"},
				{Value: "closed_lost", Label: "Closed Lost"},
			}},
		{name: "Probability", label: "Probability (%)", ftype: TypeNumber, tab: "General", grid: 6},
		{name: "Description", label: "Description", ftype: TypeTextarea, tab: "General", grid: 12},
	},
	"Activities": {
		{name: "Subject", label: "Subject", ftype: TypeText, tab: "General", required: true,
			fixedPosition: true, fixedRequired: true, alwaysVisible: true, grid: 12},
		{name: "DueAt", label: "Due", ftype: TypeDatetime, tab: "General", grid: 6},
		{name: "Completed", label: "Completed", ftype: TypeCheckbox, tab: "General", grid: 6},
		{name: "Priority", label: "Priority", ftype: TypeRating, tab: "General", grid: 6},
		{name: "Attachment", label: "Attachment", ftype: TypeFile, tab: "General", grid: 6},
	},
	"Products": {
		{name: "Name", label: "Product Name", ftype: TypeText, tab: "General", required: true,
			fixedPosition: true, fixedRequired: true, alwaysVisible: true, grid: 6},
		{name: "SKU", label: "SKU", ftype: TypeText, tab: "General", required: true, fixedRequired: true, grid: 6},
		{name: "Price", label: "Price", ftype: TypeCurrency, tab: "General", required: true, grid: 6},
		{name: "Currency", label: "Currency", ftype: TypeLookup, tab: "General", grid: 6},
		{name: "Color", label: "Color", ftype: TypeColor, tab: "General", grid: 6},
		{name: "Spec", label: "Specification", ftype: TypeJSON, tab: "Details", tabIndex: 1, grid: 12},
	},
}
