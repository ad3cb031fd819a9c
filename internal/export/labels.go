package export

import (
	"strings"

	"github.com/nerrad567/gray-logic-compat/internal/catalog"
)

// Cell labels.
const (
	LabelYes              = "√"
	LabelNo               = "×"
	LabelNotApplicable    = "N/A"
	LabelNoCapabilities   = "No Supported Capabilities"
	LabelBridgeNotAdapted = "Bridge has not adapted this device"
	LabelNoDeviceType     = "No corresponding Matter device type"
)

// cellText renders one row value for the sheet.
func cellText(row *catalog.FlatRow, def catalog.ColumnDef) string {
	switch def.ID {
	case catalog.ColumnDeviceBrand:
		if row.DeviceBrand == "" {
			return LabelNotApplicable
		}
		return row.DeviceBrand

	case catalog.ColumnEwelinkCapabilities:
		switch {
		case len(row.EwelinkCapabilities) > 0:
			return lines(row.EwelinkCapabilities)
		case row.EwelinkSupported:
			return LabelNoCapabilities
		default:
			return LabelNotApplicable
		}

	case catalog.ColumnMatterDeviceType:
		return orNoDeviceType(row.MatterDeviceType)

	case catalog.ColumnMatterProtocolVersion:
		return orNoDeviceType(row.MatterProtocolVersion)

	case catalog.ColumnMatterSupportedClusters:
		return clusterLabel(row.MatterSupportedClusters, row.MatterUnsupportedClusters)

	case catalog.ColumnAppleSupported:
		return ecosystemLabel(row, row.AppleSupported)
	case catalog.ColumnGoogleSupported:
		return ecosystemLabel(row, row.GoogleSupported)
	case catalog.ColumnSmartThingsSupported:
		return ecosystemLabel(row, row.SmartThingsSupported)
	case catalog.ColumnAlexaSupported:
		return ecosystemLabel(row, row.AlexaSupported)

	case catalog.ColumnHomeAssistantEntities:
		if len(row.HomeAssistantEntities) == 0 {
			return LabelNotApplicable
		}
		return lines(row.HomeAssistantEntities)
	}

	v := def.Value(row)
	switch v.Kind {
	case catalog.KindBool:
		if v.Bool {
			return LabelYes
		}
		return LabelNo
	case catalog.KindArray:
		return lines(v.List)
	default:
		return v.String()
	}
}

func lines(list []string) string {
	return strings.Join(list, "\n")
}

func orNoDeviceType(s *string) string {
	if s == nil || *s == "" {
		return LabelNoDeviceType
	}
	return *s
}

// clusterLabel lists supported clusters prefixed with √ followed by
// unsupported ones prefixed with ×.
func clusterLabel(supported, unsupported []string) string {
	if len(supported) == 0 && len(unsupported) == 0 {
		return LabelBridgeNotAdapted
	}
	out := make([]string, 0, len(supported)+len(unsupported))
	for _, c := range supported {
		out = append(out, LabelYes+c)
	}
	for _, c := range unsupported {
		out = append(out, LabelNo+c)
	}
	return lines(out)
}

// ecosystemLabel distinguishes an ecosystem that lacks support for a mapped
// Matter device type from a row that has no Matter device type at all.
func ecosystemLabel(row *catalog.FlatRow, supported []string) string {
	if len(supported) > 0 {
		return lines(supported)
	}
	if row.MatterDeviceType != nil && *row.MatterDeviceType != "" {
		return LabelBridgeNotAdapted
	}
	return LabelNoDeviceType
}
