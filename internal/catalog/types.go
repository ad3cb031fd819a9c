package catalog

// RawDevice is one nested device record from the catalogue source.
type RawDevice struct {
	DeviceInfo    DeviceInfo     `json:"deviceInfo"`
	EwelinkCloud  *EwelinkCloud  `json:"ewelinkCloud,omitempty"`
	MatterBridge  *MatterBridge  `json:"matterBridge,omitempty"`
	HomeAssistant *HomeAssistant `json:"homeAssistant,omitempty"`
}

// DeviceInfo identifies the physical device.
//
// Older catalogue revisions carry the origin in Type, newer ones in Source.
// Both are accepted.
type DeviceInfo struct {
	Model    string `json:"model"`
	Type     string `json:"type,omitempty"`
	Source   string `json:"source,omitempty"`
	Brand    string `json:"brand"`
	Category string `json:"category"`
}

// EwelinkCloud describes support through the eWeLink cloud.
type EwelinkCloud struct {
	IsSupported  bool     `json:"isSupported"`
	Capabilities []string `json:"capabilities,omitempty"`
}

// MatterBridge describes support through the Matter bridge.
type MatterBridge struct {
	IsSupported bool           `json:"isSupported"`
	Devices     []MatterDevice `json:"devices,omitempty"`
}

// MatterDevice is one bridged Matter endpoint exposed for a physical device.
type MatterDevice struct {
	DeviceType           string                 `json:"deviceType"`
	ProtocolVersion      *string                `json:"protocolVersion,omitempty"`
	SupportedClusters    []string               `json:"supportedClusters,omitempty"`
	UnsupportedClusters  []string               `json:"unsupportedClusters,omitempty"`
	ThirdPartyAppSupport []ThirdPartyAppSupport `json:"thirdPartyAppSupport,omitempty"`
}

// ThirdPartyAppSupport lists what one ecosystem app supports for a Matter endpoint.
type ThirdPartyAppSupport struct {
	AppName           string   `json:"appName"`
	SupportedClusters []string `json:"supportedClusters,omitempty"`
	Notes             []string `json:"notes,omitempty"`
}

// HomeAssistant describes support through Home Assistant.
type HomeAssistant struct {
	IsSupported bool     `json:"isSupported"`
	Entities    []string `json:"entities,omitempty"`
}

// Payload is a decoded catalogue document.
type Payload struct {
	UpdateTime     int64       `json:"updateTime"`
	SupportDevices []RawDevice `json:"supportDevices"`
}

// Ecosystem identifies a third-party ecosystem reached through the Matter bridge.
type Ecosystem string

// Ecosystems reached through the Matter bridge.
const (
	EcosystemApple       Ecosystem = "apple"
	EcosystemGoogle      Ecosystem = "google"
	EcosystemSmartThings Ecosystem = "smartThings"
	EcosystemAlexa       Ecosystem = "alexa"
)

// ecosystemApps maps each ecosystem to the canonical appName used in
// thirdPartyAppSupport entries. Matching is exact.
var ecosystemApps = []struct {
	Ecosystem Ecosystem
	AppName   string
}{
	{EcosystemApple, "Apple Home App"},
	{EcosystemGoogle, "Google Home App"},
	{EcosystemSmartThings, "SmartThings App"},
	{EcosystemAlexa, "Amazon Alexa"},
}

// AppName returns the canonical thirdPartyAppSupport appName for the ecosystem.
func (e Ecosystem) AppName() string {
	for _, app := range ecosystemApps {
		if app.Ecosystem == e {
			return app.AppName
		}
	}
	return ""
}

// FlatRow is one row of the compatibility table: a device paired with one of
// its Matter sub-devices, or a single synthetic row when there are none.
//
// List fields are never nil once produced by Flatten. Rows are treated as
// immutable after flattening; callers that need to modify one use DeepCopy.
type FlatRow struct {
	// Identity
	RowID                string `json:"rowId"`
	ParentID             string `json:"parentId"`
	IsGroupHead          bool   `json:"isGroupHead"`
	DeviceInfoGroupID    string `json:"deviceInfoGroupId"`
	DeviceInfoGroupSize  int    `json:"deviceInfoGroupSize"`
	DeviceInfoGroupIndex int    `json:"deviceInfoGroupIndex"`

	// Device attributes
	DeviceModel    string `json:"deviceModel"`
	DeviceType     string `json:"deviceType"`
	DeviceSource   string `json:"deviceSource"`
	DeviceBrand    string `json:"deviceBrand"`
	DeviceCategory string `json:"deviceCategory"`

	// eWeLink cloud
	EwelinkSupported    bool     `json:"ewelinkSupported"`
	EwelinkCapabilities []string `json:"ewelinkCapabilities"`

	// Matter bridge
	MatterSupported           bool     `json:"matterSupported"`
	MatterDeviceType          *string  `json:"matterDeviceType,omitempty"`
	MatterProtocolVersion     *string  `json:"matterProtocolVersion,omitempty"`
	MatterSupportedClusters   []string `json:"matterSupportedClusters"`
	MatterUnsupportedClusters []string `json:"matterUnsupportedClusters"`

	// Ecosystems reached through the bridge
	AppleSupported       []string `json:"appleSupported"`
	AppleNotes           []string `json:"appleNotes"`
	GoogleSupported      []string `json:"googleSupported"`
	GoogleNotes          []string `json:"googleNotes"`
	SmartThingsSupported []string `json:"smartThingsSupported"`
	SmartThingsNotes     []string `json:"smartThingsNotes"`
	AlexaSupported       []string `json:"alexaSupported"`
	AlexaNotes           []string `json:"alexaNotes"`

	// EvaluatedEcosystems lists, in canonical order, the ecosystems that had a
	// thirdPartyAppSupport entry for this sub-device.
	EvaluatedEcosystems []Ecosystem `json:"evaluatedEcosystems"`

	// Home Assistant
	HomeAssistantSupported bool     `json:"homeAssistantSupported"`
	HomeAssistantEntities  []string `json:"homeAssistantEntities"`
}

// DeepCopy creates a complete independent copy of the row.
// Slices and optional strings are cloned so the copy shares no memory with
// the original.
func (r *FlatRow) DeepCopy() FlatRow {
	cpy := *r

	cpy.MatterDeviceType = copyStringPtr(r.MatterDeviceType)
	cpy.MatterProtocolVersion = copyStringPtr(r.MatterProtocolVersion)

	cpy.EwelinkCapabilities = copyList(r.EwelinkCapabilities)
	cpy.MatterSupportedClusters = copyList(r.MatterSupportedClusters)
	cpy.MatterUnsupportedClusters = copyList(r.MatterUnsupportedClusters)
	cpy.AppleSupported = copyList(r.AppleSupported)
	cpy.AppleNotes = copyList(r.AppleNotes)
	cpy.GoogleSupported = copyList(r.GoogleSupported)
	cpy.GoogleNotes = copyList(r.GoogleNotes)
	cpy.SmartThingsSupported = copyList(r.SmartThingsSupported)
	cpy.SmartThingsNotes = copyList(r.SmartThingsNotes)
	cpy.AlexaSupported = copyList(r.AlexaSupported)
	cpy.AlexaNotes = copyList(r.AlexaNotes)
	cpy.HomeAssistantEntities = copyList(r.HomeAssistantEntities)

	cpy.EvaluatedEcosystems = make([]Ecosystem, len(r.EvaluatedEcosystems))
	copy(cpy.EvaluatedEcosystems, r.EvaluatedEcosystems)

	return cpy
}

// CopyRows deep-copies a slice of rows.
func CopyRows(rows []FlatRow) []FlatRow {
	out := make([]FlatRow, len(rows))
	for i := range rows {
		out[i] = rows[i].DeepCopy()
	}
	return out
}

// copyList returns a non-nil copy of list.
func copyList(list []string) []string {
	out := make([]string, len(list))
	copy(out, list)
	return out
}

func copyStringPtr(s *string) *string {
	if s == nil {
		return nil
	}
	v := *s
	return &v
}
