// Package catalogdb stores catalogues and load history in SQLite.
//
// A catalogue database is one of the sources the engine can load from
// (sqlite://path). Devices are stored one per row, in source order, with
// the raw device record as JSON so the engine flattens exactly what was
// imported. The load_history table records every load attempt made by the
// service, successful or not.
//
// The schema lives in the top-level migrations package.
package catalogdb
