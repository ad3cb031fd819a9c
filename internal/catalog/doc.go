// Package catalog defines the device-compatibility catalogue model for
// Gray Logic Compat.
//
// A catalogue is a list of nested device records (RawDevice), each describing
// how one physical device is supported across eWeLink cloud, the Matter
// bridge, the third-party ecosystems reached through the bridge (Apple Home,
// Google Home, SmartThings, Alexa) and Home Assistant. The query engine works
// on a flat view of that data: one FlatRow per (device, Matter sub-device).
//
// # Key Types
//
//   - RawDevice: the nested source record as published in the catalogue JSON
//   - FlatRow: one renderable table row, produced by Flatten
//   - Column / ColumnDef: the versioned column registry that declares, for
//     every row attribute, its value kind, accessor and traits
//     (search, filter, facet, sort, export, merge)
//   - Payload: the decoded catalogue document ({updateTime, supportDevices})
//
// # Usage
//
//	payload, err := catalog.DecodePayload(data)
//	if err != nil {
//	    return err
//	}
//	rows := catalog.FlattenAll(payload.SupportDevices)
//
//	def, ok := catalog.Lookup(catalog.ColumnAppleSupported)
//	if ok && def.Has(catalog.TraitFacet) {
//	    v := def.Value(&rows[0])
//	    _ = v.List
//	}
//
// # Empty Ecosystem Lists
//
// An ecosystem that has no thirdPartyAppSupport entry and one whose entry
// lists zero clusters both flatten to an empty supported list. The row keeps
// the difference in EvaluatedEcosystems so the presentation layer can decide
// how to label each case.
package catalog
