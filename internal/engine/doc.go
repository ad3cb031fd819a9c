// Package engine implements the in-memory query engine over the flattened
// device-compatibility catalogue.
//
// # Architecture
//
//	┌────────────────────────────────────────────────────────────────────┐
//	│                              Engine                                │
//	│                                                                    │
//	│   Load ──▶ Flatten ──▶ snapshot{rows, index, updateTime} (atomic)  │
//	│                                   │                                │
//	│   Query:    search ─▶ filter ─▶ sort ─▶ paginate ─▶ spans          │
//	│   Distinct: search ─▶ facet counts (each column skips its filter)  │
//	│   Select:   search ─▶ filter ─▶ sort (unpaginated, for export)     │
//	└────────────────────────────────────────────────────────────────────┘
//
// A snapshot is built completely before it is published with a single
// atomic pointer swap. Every request reads the pointer once, so a request
// running concurrently with a reload sees either the old or the new data,
// never a mix. Rows returned to callers are deep copies.
//
// # Search
//
// Queries up to MaxExtendedQueryLength runes use the extended syntax
// evaluated per field (tokens AND'ed, " | " between alternatives, with the
// =, ', ^, $ and ! operators). Longer queries fall back to a plain
// case-insensitive substring test. Matching folds case and applies NFKC
// normalization.
//
// # Usage
//
//	eng := engine.New(source.NewFetcher(source.Config{}))
//	eng.SetLogger(log)
//
//	if _, err := eng.Load(ctx, "https://example.com/devices.json", nil); err != nil {
//	    return err
//	}
//
//	res, err := eng.Query(engine.QueryInput{
//	    Q:     "plug",
//	    Enums: engine.Filters{catalog.ColumnMatterSupported: {true}},
//	    Page:  1,
//	})
package engine
