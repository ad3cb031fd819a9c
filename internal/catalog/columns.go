package catalog

import (
	"fmt"
	"strconv"
	"strings"
)

// RegistryVersion identifies the revision of the column registry.
// It is bumped whenever a column is added, removed, or changes kind or traits.
const RegistryVersion = 3

// Column identifies one FlatRow attribute by its JSON key.
type Column string

// Registered columns.
const (
	ColumnRowID                Column = "rowId"
	ColumnParentID             Column = "parentId"
	ColumnIsGroupHead          Column = "isGroupHead"
	ColumnDeviceInfoGroupSize  Column = "deviceInfoGroupSize"
	ColumnDeviceInfoGroupIndex Column = "deviceInfoGroupIndex"

	ColumnDeviceSource   Column = "deviceSource"
	ColumnDeviceModel    Column = "deviceModel"
	ColumnDeviceType     Column = "deviceType"
	ColumnDeviceBrand    Column = "deviceBrand"
	ColumnDeviceCategory Column = "deviceCategory"

	ColumnEwelinkSupported    Column = "ewelinkSupported"
	ColumnEwelinkCapabilities Column = "ewelinkCapabilities"

	ColumnMatterSupported           Column = "matterSupported"
	ColumnMatterDeviceType          Column = "matterDeviceType"
	ColumnMatterSupportedClusters   Column = "matterSupportedClusters"
	ColumnMatterUnsupportedClusters Column = "matterUnsupportedClusters"
	ColumnMatterProtocolVersion     Column = "matterProtocolVersion"

	ColumnAppleSupported       Column = "appleSupported"
	ColumnAppleNotes           Column = "appleNotes"
	ColumnGoogleSupported      Column = "googleSupported"
	ColumnGoogleNotes          Column = "googleNotes"
	ColumnAlexaSupported       Column = "alexaSupported"
	ColumnAlexaNotes           Column = "alexaNotes"
	ColumnSmartThingsSupported Column = "smartThingsSupported"
	ColumnSmartThingsNotes     Column = "smartThingsNotes"

	ColumnHomeAssistantSupported Column = "homeAssistantSupported"
	ColumnHomeAssistantEntities  Column = "homeAssistantEntities"
)

// Kind is the value kind of a column.
type Kind int

// Column value kinds.
const (
	KindScalar         Kind = iota // always-present string
	KindOptionalScalar             // string that may be absent
	KindArray                      // ordered string list
	KindBool                       // boolean flag
	KindNumber                     // integer metadata
)

// String returns the kind name used in the column description.
func (k Kind) String() string {
	switch k {
	case KindScalar:
		return "scalar"
	case KindOptionalScalar:
		return "optional_scalar"
	case KindArray:
		return "array"
	case KindBool:
		return "bool"
	case KindNumber:
		return "number"
	default:
		return "unknown"
	}
}

// Trait is a bit set of the operations a column participates in.
type Trait uint8

// Column traits.
const (
	TraitSearch Trait = 1 << iota
	TraitFilter
	TraitFacet
	TraitSort
	TraitExport
	TraitMerge
)

var traitNames = []struct {
	trait Trait
	name  string
}{
	{TraitSearch, "search"},
	{TraitFilter, "filter"},
	{TraitFacet, "facet"},
	{TraitSort, "sort"},
	{TraitExport, "export"},
	{TraitMerge, "merge"},
}

// Names lists the traits in the set.
func (t Trait) Names() []string {
	names := []string{}
	for _, tn := range traitNames {
		if t&tn.trait != 0 {
			names = append(names, tn.name)
		}
	}
	return names
}

// Group is the header group a column is exported and displayed under.
type Group string

// Column groups.
const (
	GroupMeta          Group = ""
	GroupDevice        Group = "device"
	GroupEwelink       Group = "ewelink"
	GroupMatter        Group = "matter"
	GroupHomeAssistant Group = "homeAssistant"
)

// Title returns the header title of the group.
func (g Group) Title() string {
	switch g {
	case GroupDevice:
		return "Device"
	case GroupEwelink:
		return "eWeLink Cloud"
	case GroupMatter:
		return "Matter"
	case GroupHomeAssistant:
		return "Home Assistant"
	default:
		return ""
	}
}

// Groups lists the display groups in header order.
func Groups() []Group {
	return []Group{GroupDevice, GroupEwelink, GroupMatter, GroupHomeAssistant}
}

// Value is the typed value of one column for one row.
type Value struct {
	Kind  Kind
	Str   string
	Valid bool // false for an absent optional scalar
	Bool  bool
	Num   int
	List  []string
}

// String renders the value as text: lists are joined with ",", booleans
// are "true"/"false" and an absent optional scalar is "".
func (v Value) String() string {
	switch v.Kind {
	case KindArray:
		return strings.Join(v.List, ",")
	case KindBool:
		return strconv.FormatBool(v.Bool)
	case KindNumber:
		return strconv.Itoa(v.Num)
	case KindOptionalScalar:
		if !v.Valid {
			return ""
		}
		return v.Str
	default:
		return v.Str
	}
}

// IsNull reports whether the value is absent.
func (v Value) IsNull() bool {
	return v.Kind == KindOptionalScalar && !v.Valid
}

// ColumnDef declares one registry column.
type ColumnDef struct {
	ID     Column
	Kind   Kind
	Traits Trait
	Group  Group
	Title  string
	Value  func(*FlatRow) Value
}

// Has reports whether the column carries every trait in t.
func (d ColumnDef) Has(t Trait) bool {
	return d.Traits&t == t
}

func scalar(get func(*FlatRow) string) func(*FlatRow) Value {
	return func(r *FlatRow) Value {
		return Value{Kind: KindScalar, Str: get(r), Valid: true}
	}
}

func optional(get func(*FlatRow) *string) func(*FlatRow) Value {
	return func(r *FlatRow) Value {
		s := get(r)
		if s == nil {
			return Value{Kind: KindOptionalScalar}
		}
		return Value{Kind: KindOptionalScalar, Str: *s, Valid: true}
	}
}

func array(get func(*FlatRow) []string) func(*FlatRow) Value {
	return func(r *FlatRow) Value {
		return Value{Kind: KindArray, List: get(r), Valid: true}
	}
}

func boolean(get func(*FlatRow) bool) func(*FlatRow) Value {
	return func(r *FlatRow) Value {
		return Value{Kind: KindBool, Bool: get(r), Valid: true}
	}
}

func number(get func(*FlatRow) int) func(*FlatRow) Value {
	return func(r *FlatRow) Value {
		return Value{Kind: KindNumber, Num: get(r), Valid: true}
	}
}

const (
	traitsEnum    = TraitSearch | TraitFilter | TraitFacet | TraitSort | TraitExport
	traitsMerge   = traitsEnum | TraitMerge
	traitsDetails = TraitSearch | TraitSort
)

// registry is ordered the way columns appear in the table and in exports.
var registry = []ColumnDef{
	{ColumnRowID, KindScalar, TraitSearch | TraitSort, GroupMeta, "Row ID", scalar(func(r *FlatRow) string { return r.RowID })},
	{ColumnParentID, KindScalar, TraitSearch | TraitSort, GroupMeta, "Parent ID", scalar(func(r *FlatRow) string { return r.ParentID })},
	{ColumnIsGroupHead, KindBool, TraitSort, GroupMeta, "Group Head", boolean(func(r *FlatRow) bool { return r.IsGroupHead })},
	{ColumnDeviceInfoGroupSize, KindNumber, TraitSort, GroupMeta, "Group Size", number(func(r *FlatRow) int { return r.DeviceInfoGroupSize })},
	{ColumnDeviceInfoGroupIndex, KindNumber, TraitSort, GroupMeta, "Group Index", number(func(r *FlatRow) int { return r.DeviceInfoGroupIndex })},

	{ColumnDeviceSource, KindScalar, traitsMerge, GroupDevice, "Source", scalar(func(r *FlatRow) string { return r.DeviceSource })},
	{ColumnDeviceModel, KindScalar, traitsMerge, GroupDevice, "Model", scalar(func(r *FlatRow) string { return r.DeviceModel })},
	{ColumnDeviceType, KindScalar, traitsEnum, GroupDevice, "Type", scalar(func(r *FlatRow) string { return r.DeviceType })},
	{ColumnDeviceBrand, KindScalar, traitsMerge, GroupDevice, "Brand", scalar(func(r *FlatRow) string { return r.DeviceBrand })},
	{ColumnDeviceCategory, KindScalar, traitsMerge, GroupDevice, "Category", scalar(func(r *FlatRow) string { return r.DeviceCategory })},

	{ColumnEwelinkSupported, KindBool, traitsMerge, GroupEwelink, "eWeLink Cloud Supported", boolean(func(r *FlatRow) bool { return r.EwelinkSupported })},
	{ColumnEwelinkCapabilities, KindArray, traitsMerge, GroupEwelink, "eWeLink Capabilities", array(func(r *FlatRow) []string { return r.EwelinkCapabilities })},

	{ColumnMatterSupported, KindBool, traitsEnum, GroupMatter, "Matter Bridge Supported", boolean(func(r *FlatRow) bool { return r.MatterSupported })},
	{ColumnMatterDeviceType, KindOptionalScalar, traitsEnum, GroupMatter, "Matter Device Type", optional(func(r *FlatRow) *string { return r.MatterDeviceType })},
	{ColumnMatterSupportedClusters, KindArray, traitsEnum, GroupMatter, "Cluster", array(func(r *FlatRow) []string { return r.MatterSupportedClusters })},
	{ColumnMatterUnsupportedClusters, KindArray, traitsDetails, GroupMatter, "Unsupported Cluster", array(func(r *FlatRow) []string { return r.MatterUnsupportedClusters })},
	{ColumnMatterProtocolVersion, KindOptionalScalar, traitsEnum, GroupMatter, "Matter Protocol Version", optional(func(r *FlatRow) *string { return r.MatterProtocolVersion })},
	{ColumnAppleSupported, KindArray, traitsEnum, GroupMatter, "Apple Home", array(func(r *FlatRow) []string { return r.AppleSupported })},
	{ColumnAppleNotes, KindArray, traitsDetails, GroupMatter, "Apple Home Notes", array(func(r *FlatRow) []string { return r.AppleNotes })},
	{ColumnGoogleSupported, KindArray, traitsEnum, GroupMatter, "Google Home", array(func(r *FlatRow) []string { return r.GoogleSupported })},
	{ColumnGoogleNotes, KindArray, traitsDetails, GroupMatter, "Google Home Notes", array(func(r *FlatRow) []string { return r.GoogleNotes })},
	{ColumnAlexaSupported, KindArray, traitsEnum, GroupMatter, "Alexa", array(func(r *FlatRow) []string { return r.AlexaSupported })},
	{ColumnAlexaNotes, KindArray, traitsDetails, GroupMatter, "Alexa Notes", array(func(r *FlatRow) []string { return r.AlexaNotes })},
	{ColumnSmartThingsSupported, KindArray, traitsEnum, GroupMatter, "SmartThings", array(func(r *FlatRow) []string { return r.SmartThingsSupported })},
	{ColumnSmartThingsNotes, KindArray, traitsDetails, GroupMatter, "SmartThings Notes", array(func(r *FlatRow) []string { return r.SmartThingsNotes })},

	{ColumnHomeAssistantSupported, KindBool, traitsEnum, GroupHomeAssistant, "Synced to Home Assistant", boolean(func(r *FlatRow) bool { return r.HomeAssistantSupported })},
	{ColumnHomeAssistantEntities, KindArray, traitsEnum, GroupHomeAssistant, "Entities", array(func(r *FlatRow) []string { return r.HomeAssistantEntities })},
}

var registryIndex = func() map[Column]int {
	idx := make(map[Column]int, len(registry))
	for i, def := range registry {
		idx[def.ID] = i
	}
	return idx
}()

// Columns returns every registered column in display order.
func Columns() []ColumnDef {
	out := make([]ColumnDef, len(registry))
	copy(out, registry)
	return out
}

// ColumnsWith returns the registered columns carrying trait t, in display order.
func ColumnsWith(t Trait) []ColumnDef {
	var out []ColumnDef
	for _, def := range registry {
		if def.Has(t) {
			out = append(out, def)
		}
	}
	return out
}

// IDsWith returns the identifiers of the columns carrying trait t.
func IDsWith(t Trait) []Column {
	defs := ColumnsWith(t)
	ids := make([]Column, len(defs))
	for i, def := range defs {
		ids[i] = def.ID
	}
	return ids
}

// Lookup returns the registry entry for id.
func Lookup(id Column) (ColumnDef, bool) {
	i, ok := registryIndex[id]
	if !ok {
		return ColumnDef{}, false
	}
	return registry[i], true
}

// Require returns the registry entry for id, or an error wrapping
// ErrUnknownColumn when it is missing or lacks trait t.
func Require(id Column, t Trait) (ColumnDef, error) {
	def, ok := Lookup(id)
	if !ok {
		return ColumnDef{}, fmt.Errorf("%w: %q", ErrUnknownColumn, id)
	}
	if !def.Has(t) {
		return ColumnDef{}, fmt.Errorf("%w: %q does not support %s", ErrUnknownColumn, id, strings.Join(t.Names(), ","))
	}
	return def, nil
}

// DefaultSearchFields returns the text fields searched when none are configured.
func DefaultSearchFields() []Column {
	return []Column{
		ColumnDeviceModel,
		ColumnDeviceSource,
		ColumnDeviceType,
		ColumnDeviceBrand,
		ColumnDeviceCategory,
		ColumnEwelinkCapabilities,
		ColumnMatterDeviceType,
		ColumnMatterSupportedClusters,
		ColumnHomeAssistantEntities,
	}
}

// DefaultMergeColumns returns the device-identity columns used for row spans.
func DefaultMergeColumns() []Column {
	return IDsWith(TraitMerge)
}
