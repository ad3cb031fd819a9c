package engine

import (
	"context"
	"errors"
	"testing"

	"github.com/nerrad567/gray-logic-compat/internal/catalog"
)

func strPtr(s string) *string { return &s }

// threeDevices is the reference catalogue: A without Matter, B with two
// bridged endpoints (Apple support on the second), C supported but empty.
func threeDevices() []catalog.RawDevice {
	return []catalog.RawDevice{
		{
			DeviceInfo:    catalog.DeviceInfo{Model: "A", Source: "sonoff", Brand: "SONOFF", Category: "switch"},
			EwelinkCloud:  &catalog.EwelinkCloud{IsSupported: true, Capabilities: []string{"power"}},
			MatterBridge:  &catalog.MatterBridge{IsSupported: false},
			HomeAssistant: &catalog.HomeAssistant{IsSupported: true, Entities: []string{"switch"}},
		},
		{
			DeviceInfo:   catalog.DeviceInfo{Model: "B", Source: "sonoff", Brand: "SONOFF", Category: "plug"},
			EwelinkCloud: &catalog.EwelinkCloud{IsSupported: true, Capabilities: []string{"power", "energy"}},
			MatterBridge: &catalog.MatterBridge{
				IsSupported: true,
				Devices: []catalog.MatterDevice{
					{DeviceType: "On/Off Plug-in Unit", ProtocolVersion: strPtr("1.2"), SupportedClusters: []string{"OnOff"}},
					{
						DeviceType:        "Electrical Sensor",
						SupportedClusters: []string{"OnOff", "ElectricalPowerMeasurement"},
						ThirdPartyAppSupport: []catalog.ThirdPartyAppSupport{
							{AppName: "Apple Home App", SupportedClusters: []string{"OnOff"}},
						},
					},
				},
			},
		},
		{
			DeviceInfo:   catalog.DeviceInfo{Model: "C", Source: "zigbee", Brand: "Aqara", Category: "sensor"},
			MatterBridge: &catalog.MatterBridge{IsSupported: true},
		},
	}
}

// staticFetcher serves fixed documents by location.
type staticFetcher map[string][]byte

func (f staticFetcher) Fetch(_ context.Context, location string) ([]byte, error) {
	data, ok := f[location]
	if !ok {
		return nil, errors.New("not found: " + location)
	}
	return data, nil
}

func newLoadedEngine(t *testing.T, devices []catalog.RawDevice) *Engine {
	t.Helper()
	eng := New(nil)
	if _, err := eng.LoadPayload(catalog.Payload{UpdateTime: 1700, SupportDevices: devices}, "test", nil); err != nil {
		t.Fatalf("LoadPayload() error = %v", err)
	}
	return eng
}

func rowIDs(rows []catalog.FlatRow) []string {
	ids := make([]string, len(rows))
	for i, r := range rows {
		ids[i] = r.RowID
	}
	return ids
}

// manyDevices builds a larger catalogue with repeated attribute values.
func manyDevices(n int) []catalog.RawDevice {
	brands := []string{"SONOFF", "Aqara", "eWeLink"}
	categories := []string{"plug", "switch", "sensor", "light"}
	devices := make([]catalog.RawDevice, n)
	for i := range devices {
		dev := catalog.RawDevice{
			DeviceInfo: catalog.DeviceInfo{
				Model:    "M" + string(rune('A'+i%26)),
				Source:   []string{"sonoff", "zigbee"}[i%2],
				Brand:    brands[i%len(brands)],
				Category: categories[i%len(categories)],
			},
			EwelinkCloud: &catalog.EwelinkCloud{IsSupported: i%3 != 0, Capabilities: []string{"power"}[:i%2]},
		}
		if i%4 != 0 {
			var subs []catalog.MatterDevice
			for j := 0; j < i%3; j++ {
				sub := catalog.MatterDevice{
					DeviceType:        []string{"Light", "Plug", "Sensor"}[j],
					SupportedClusters: []string{"OnOff", "LevelControl"}[:1+j%2],
				}
				if j == 1 {
					sub.ThirdPartyAppSupport = []catalog.ThirdPartyAppSupport{
						{AppName: "Google Home App", SupportedClusters: []string{"OnOff"}},
					}
				}
				subs = append(subs, sub)
			}
			dev.MatterBridge = &catalog.MatterBridge{IsSupported: true, Devices: subs}
		}
		devices[i] = dev
	}
	return devices
}
