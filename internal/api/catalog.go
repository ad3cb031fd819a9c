package api

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"time"

	"github.com/nerrad567/gray-logic-compat/internal/auth"
	"github.com/nerrad567/gray-logic-compat/internal/catalog"
	"github.com/nerrad567/gray-logic-compat/internal/catalogdb"
	"github.com/nerrad567/gray-logic-compat/internal/engine"
	"github.com/nerrad567/gray-logic-compat/internal/export"
)

// LoadRequest is the body of POST /catalog/load. Both fields are optional:
// an empty source reloads the configured one, empty fields keep the
// current search fields.
type LoadRequest struct {
	Source       string           `json:"source,omitempty"`
	SearchFields []catalog.Column `json:"searchFields,omitempty"`
}

// LoadResponse reports the snapshot a load produced.
type LoadResponse struct {
	engine.LoadResult
	DurationMS int64 `json:"durationMs"`
}

// SearchFieldsRequest is the body of PUT /catalog/search-fields.
type SearchFieldsRequest struct {
	Fields []catalog.Column `json:"fields"`
}

// ColumnInfo describes one registry column to clients.
type ColumnInfo struct {
	ID     catalog.Column `json:"id"`
	Kind   string         `json:"kind"`
	Traits []string       `json:"traits"`
	Group  catalog.Group  `json:"group,omitempty"`
	Title  string         `json:"title,omitempty"`
}

// ColumnsResponse is the body of GET /catalog/columns.
type ColumnsResponse struct {
	RegistryVersion int              `json:"registryVersion"`
	Columns         []ColumnInfo     `json:"columns"`
	SearchDefaults  []catalog.Column `json:"searchDefaults"`
	ExportColumns   []export.Column  `json:"exportColumns"`
}

// decodeBody decodes a JSON request body into v. An empty body leaves v
// at its zero value.
func decodeBody(r *http.Request, v any) error {
	err := json.NewDecoder(r.Body).Decode(v)
	if errors.Is(err, io.EOF) {
		return nil
	}
	return err
}

// handleStats returns what is currently loaded.
func (s *Server) handleStats(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, s.catalog.Stats())
}

// handleColumns describes the column registry and the default export tree.
func (s *Server) handleColumns(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, describeColumns())
}

func describeColumns() ColumnsResponse {
	defs := catalog.Columns()
	cols := make([]ColumnInfo, 0, len(defs))
	for _, d := range defs {
		cols = append(cols, ColumnInfo{
			ID:     d.ID,
			Kind:   d.Kind.String(),
			Traits: d.Traits.Names(),
			Group:  d.Group,
			Title:  d.Title,
		})
	}
	return ColumnsResponse{
		RegistryVersion: catalog.RegistryVersion,
		Columns:         cols,
		SearchDefaults:  catalog.DefaultSearchFields(),
		ExportColumns:   export.DefaultColumns(),
	}
}

// handleLoad fetches and indexes a catalogue.
//
// Body: LoadRequest (optional). A failed load leaves the previous
// snapshot serving and returns 502 load_failed.
func (s *Server) handleLoad(w http.ResponseWriter, r *http.Request) {
	var req LoadRequest
	if err := decodeBody(r, &req); err != nil {
		writeBadRequest(w, "invalid JSON body: "+err.Error())
		return
	}

	start := time.Now()
	res, err := s.catalog.Load(r.Context(), req.Source, req.SearchFields)
	if err != nil {
		s.writeCatalogError(w, r, err)
		return
	}

	s.logger.Info("catalogue loaded via API",
		"source", res.Source,
		"rows", res.Count,
		"subject", subjectFrom(r),
		"request_id", requestIDFrom(r.Context()),
	)
	writeJSON(w, http.StatusOK, LoadResponse{
		LoadResult: res,
		DurationMS: time.Since(start).Milliseconds(),
	})
}

// handleSetSearchFields rebuilds the search index over new fields.
func (s *Server) handleSetSearchFields(w http.ResponseWriter, r *http.Request) {
	var req SearchFieldsRequest
	if err := decodeBody(r, &req); err != nil {
		writeBadRequest(w, "invalid JSON body: "+err.Error())
		return
	}
	if len(req.Fields) == 0 {
		writeBadRequest(w, "fields is required")
		return
	}

	if err := s.catalog.SetSearchFields(r.Context(), req.Fields); err != nil {
		s.writeCatalogError(w, r, err)
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"searchFields": s.catalog.Stats().SearchFields,
	})
}

// handleQuery returns one page of rows.
//
// Body: engine.QueryInput. Pagination is normalised, never rejected.
func (s *Server) handleQuery(w http.ResponseWriter, r *http.Request) {
	var in engine.QueryInput
	if err := decodeBody(r, &in); err != nil {
		writeBadRequest(w, "invalid JSON body: "+err.Error())
		return
	}

	res, err := s.catalog.Query(r.Context(), in)
	if err != nil {
		s.writeCatalogError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, res)
}

// handleDistinct returns the facet options for every facet column.
//
// Body: engine.DistinctInput. A zero limit falls back to
// catalog.facet_limit.
func (s *Server) handleDistinct(w http.ResponseWriter, r *http.Request) {
	var in engine.DistinctInput
	if err := decodeBody(r, &in); err != nil {
		writeBadRequest(w, "invalid JSON body: "+err.Error())
		return
	}
	if in.Limit == 0 {
		in.Limit = s.catCfg.FacetLimit
	}

	opts, err := s.catalog.Distinct(r.Context(), in)
	if err != nil {
		s.writeCatalogError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, opts)
}

// handleExport streams an xlsx workbook of the selected rows.
//
// Body: export.Spec (optional). Columns default to the full grouped set.
func (s *Server) handleExport(w http.ResponseWriter, r *http.Request) {
	var spec export.Spec
	if err := decodeBody(r, &spec); err != nil {
		writeBadRequest(w, "invalid JSON body: "+err.Error())
		return
	}

	data, err := s.catalog.BuildExport(r.Context(), spec)
	if err != nil {
		s.writeCatalogError(w, r, err)
		return
	}

	w.Header().Set("Content-Type", export.ContentType)
	w.Header().Set("Content-Disposition", fmt.Sprintf(`attachment; filename="%s"`, exportFilename(time.Now())))
	w.Header().Set("Content-Length", strconv.Itoa(len(data)))
	w.WriteHeader(http.StatusOK)
	//nolint:errcheck // Best-effort write to response; connection may be closed
	w.Write(data)
}

func exportFilename(now time.Time) string {
	return "device-compatibility-" + now.UTC().Format("20060102-150405") + ".xlsx"
}

// handleListLoads returns paginated load history.
//
// Query parameters:
//   - source: exact source location
//   - failed: "true" for failed loads only
//   - limit: max results (default 50, max 200)
//   - offset: pagination offset
func (s *Server) handleListLoads(w http.ResponseWriter, r *http.Request) {
	if s.history == nil {
		writeNotFound(w, "load history requires the catalogue database")
		return
	}

	q := r.URL.Query()
	filter := catalogdb.LoadFilter{
		Source:     q.Get("source"),
		FailedOnly: q.Get("failed") == "true",
	}
	if v := q.Get("limit"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			filter.Limit = n
		}
	}
	if v := q.Get("offset"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			filter.Offset = n
		}
	}

	result, err := s.history.ListLoads(r.Context(), filter)
	if err != nil {
		s.logger.Error("failed to list load history", "error", err)
		writeInternalError(w, "failed to list load history")
		return
	}

	writeJSON(w, http.StatusOK, result)
}

// subjectFrom returns the token subject for authenticated requests.
func subjectFrom(r *http.Request) string {
	claims, ok := r.Context().Value(ctxKeyClaims).(*auth.Claims)
	if !ok {
		return ""
	}
	return claims.Subject
}
