// Package export renders catalogue rows as an xlsx workbook.
//
// The sheet starts with a title row merged across every column, followed by
// one header row per level of the column tree. Group titles span their
// leaves and leaves span down to the last header row, which also carries the
// autofilter. Data rows use presentation labels rather than raw values:
//
//	true / false            √ / ×
//	empty brand             N/A
//	lists                   one entry per line
//	clusters                √OnOff, ×LevelControl, one per line
//	no Matter device type   "No corresponding Matter device type"
//
// Consecutive rows that describe the same physical device are merged
// vertically in the device-identity columns, using the same run detection
// as the table view's row spans.
package export
