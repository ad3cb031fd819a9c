package catalog

import "strconv"

// Flatten expands one device record into table rows.
//
// One row is produced per Matter sub-device, in source order. When the
// Matter bridge is unsupported or lists no sub-devices a single row is
// produced with empty Matter and ecosystem fields; MatterSupported still
// mirrors the source flag.
//
// Parameters:
//   - dev: The nested device record
//   - deviceIndex: 0-based position of dev in the catalogue, used for IDs
//
// Returns:
//   - []FlatRow: At least one row; all list fields non-nil
func Flatten(dev RawDevice, deviceIndex int) []FlatRow {
	info := dev.DeviceInfo
	parentID := info.Model + "-" + strconv.Itoa(deviceIndex)

	source := info.Source
	if source == "" {
		source = info.Type
	}

	ewelinkSupported := dev.EwelinkCloud != nil && dev.EwelinkCloud.IsSupported
	matterSupported := dev.MatterBridge != nil && dev.MatterBridge.IsSupported
	haSupported := dev.HomeAssistant != nil && dev.HomeAssistant.IsSupported

	var capabilities, entities []string
	if dev.EwelinkCloud != nil {
		capabilities = dev.EwelinkCloud.Capabilities
	}
	if dev.HomeAssistant != nil {
		entities = dev.HomeAssistant.Entities
	}

	// A nil entry stands for the synthetic row of a device without bridged endpoints.
	subDevices := []*MatterDevice{nil}
	if matterSupported && len(dev.MatterBridge.Devices) > 0 {
		subDevices = make([]*MatterDevice, len(dev.MatterBridge.Devices))
		for i := range dev.MatterBridge.Devices {
			subDevices[i] = &dev.MatterBridge.Devices[i]
		}
	}

	rows := make([]FlatRow, 0, len(subDevices))
	for idx, sub := range subDevices {
		row := FlatRow{
			RowID:                parentID + "-" + strconv.Itoa(idx),
			ParentID:             parentID,
			IsGroupHead:          idx == 0,
			DeviceInfoGroupID:    parentID,
			DeviceInfoGroupSize:  len(subDevices),
			DeviceInfoGroupIndex: idx,

			DeviceModel:    info.Model,
			DeviceType:     info.Type,
			DeviceSource:   source,
			DeviceBrand:    info.Brand,
			DeviceCategory: info.Category,

			EwelinkSupported:    ewelinkSupported,
			EwelinkCapabilities: copyList(capabilities),

			MatterSupported: matterSupported,

			HomeAssistantSupported: haSupported,
			HomeAssistantEntities:  copyList(entities),
		}
		applyMatterDevice(&row, sub)
		rows = append(rows, row)
	}

	return rows
}

// FlattenAll flattens every device of a catalogue in order.
func FlattenAll(devices []RawDevice) []FlatRow {
	rows := make([]FlatRow, 0, len(devices))
	for i, dev := range devices {
		rows = append(rows, Flatten(dev, i)...)
	}
	return rows
}

// applyMatterDevice fills the Matter and ecosystem fields of row from sub.
// A nil sub leaves every list empty.
func applyMatterDevice(row *FlatRow, sub *MatterDevice) {
	var apps []ThirdPartyAppSupport
	if sub != nil {
		if sub.DeviceType != "" {
			deviceType := sub.DeviceType
			row.MatterDeviceType = &deviceType
		}
		row.MatterProtocolVersion = copyStringPtr(sub.ProtocolVersion)
		row.MatterSupportedClusters = copyList(sub.SupportedClusters)
		row.MatterUnsupportedClusters = copyList(sub.UnsupportedClusters)
		apps = sub.ThirdPartyAppSupport
	} else {
		row.MatterSupportedClusters = []string{}
		row.MatterUnsupportedClusters = []string{}
	}

	row.EvaluatedEcosystems = []Ecosystem{}
	for _, eco := range ecosystemApps {
		supported, notes, found := findApp(apps, eco.AppName)
		if found {
			row.EvaluatedEcosystems = append(row.EvaluatedEcosystems, eco.Ecosystem)
		}
		switch eco.Ecosystem {
		case EcosystemApple:
			row.AppleSupported, row.AppleNotes = supported, notes
		case EcosystemGoogle:
			row.GoogleSupported, row.GoogleNotes = supported, notes
		case EcosystemSmartThings:
			row.SmartThingsSupported, row.SmartThingsNotes = supported, notes
		case EcosystemAlexa:
			row.AlexaSupported, row.AlexaNotes = supported, notes
		}
	}
}

// findApp returns copies of the first entry matching appName.
func findApp(apps []ThirdPartyAppSupport, appName string) (supported, notes []string, found bool) {
	for _, app := range apps {
		if app.AppName == appName {
			return copyList(app.SupportedClusters), copyList(app.Notes), true
		}
	}
	return []string{}, []string{}, false
}
