package influxdb

import (
	"time"

	"github.com/influxdata/influxdb-client-go/v2/api/write"
)

// Measurement names.
const (
	MeasurementQuery = "compat_query"
	MeasurementLoad  = "compat_load"
)

// QueryMetric describes one served catalogue request.
type QueryMetric struct {
	// Op is the request kind: query, distinct, export, load or search_fields.
	Op       string
	Duration time.Duration
	Total    int
	HasQuery bool
	Filters  int
	Failed   bool
	At       time.Time
}

// LoadMetric describes one catalogue load.
type LoadMetric struct {
	// SourceKind is http, file or sqlite.
	SourceKind string
	Rows       int
	Devices    int
	Duration   time.Duration
	OK         bool
	At         time.Time
}

func durationMillis(d time.Duration) float64 {
	return float64(d) / float64(time.Millisecond)
}

func pointTime(at time.Time) time.Time {
	if at.IsZero() {
		return time.Now()
	}
	return at
}

func queryPoint(m QueryMetric) *write.Point {
	return write.NewPoint(
		MeasurementQuery,
		map[string]string{
			"op": m.Op,
		},
		map[string]interface{}{
			"duration_ms": durationMillis(m.Duration),
			"total":       int64(m.Total),
			"has_query":   m.HasQuery,
			"filters":     int64(m.Filters),
			"failed":      m.Failed,
		},
		pointTime(m.At),
	)
}

func loadPoint(m LoadMetric) *write.Point {
	kind := m.SourceKind
	if kind == "" {
		kind = "unknown"
	}
	return write.NewPoint(
		MeasurementLoad,
		map[string]string{
			"source_kind": kind,
		},
		map[string]interface{}{
			"rows":        int64(m.Rows),
			"devices":     int64(m.Devices),
			"duration_ms": durationMillis(m.Duration),
			"ok":          m.OK,
		},
		pointTime(m.At),
	)
}

// WriteQuery records a served request. The write is non-blocking.
func (c *Client) WriteQuery(m QueryMetric) {
	c.writePoint(queryPoint(m))
}

// WriteLoad records a catalogue load. The write is non-blocking.
func (c *Client) WriteLoad(m LoadMetric) {
	c.writePoint(loadPoint(m))
}

func (c *Client) writePoint(p *write.Point) {
	if !c.IsConnected() {
		return
	}
	c.writer.WritePoint(p)
}
