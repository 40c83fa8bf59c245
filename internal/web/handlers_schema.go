package web

import (
	"encoding/csv"
	"fmt"
	"net/http"

	"github.com/JonMunkholm/fleetimport/internal/core"
	"github.com/go-chi/chi/v5"
)

type columnResponse struct {
	Name        string   `json:"name"`
	Type        string   `json:"type"`
	Required    bool     `json:"required"`
	Values      []string `json:"values,omitempty"`
	Reference   string   `json:"reference,omitempty"`
	NonNegative bool     `json:"nonNegative,omitempty"`
	Default     string   `json:"default,omitempty"`
}

type schemaResponse struct {
	Kind       string           `json:"kind"`
	Label      string           `json:"label"`
	HeaderMode string           `json:"headerMode"`
	Columns    []columnResponse `json:"columns"`
	Ordering   []string         `json:"ordering,omitempty"`
	Template   string           `json:"templateUrl"`
}

func newSchemaResponse(schema core.ImportSchema) schemaResponse {
	resp := schemaResponse{
		Kind:       schema.Kind,
		Label:      schema.Label,
		HeaderMode: schema.HeaderMode.String(),
		Columns:    make([]columnResponse, 0, len(schema.FieldSpecs)),
		Template:   "/api/schemas/" + schema.Kind + "/template",
	}
	for _, f := range schema.FieldSpecs {
		resp.Columns = append(resp.Columns, columnResponse{
			Name:        f.Name,
			Type:        f.Type.String(),
			Required:    f.Required,
			Values:      f.EnumValues,
			Reference:   f.RefSet,
			NonNegative: f.NonNegative,
			Default:     f.Default,
		})
	}
	for _, o := range schema.Ordering {
		resp.Ordering = append(resp.Ordering, o.Before+" < "+o.After)
	}
	return resp
}

// handleListSchemas returns every registered import kind and its columns.
func (s *Server) handleListSchemas(w http.ResponseWriter, r *http.Request) {
	schemas := s.service.Schemas()
	out := make([]schemaResponse, 0, len(schemas))
	for _, schema := range schemas {
		out = append(out, newSchemaResponse(schema))
	}
	writeJSON(w, r, http.StatusOK, out)
}

// handleDownloadTemplate returns a CSV containing only the header row.
func (s *Server) handleDownloadTemplate(w http.ResponseWriter, r *http.Request) {
	kind := chi.URLParam(r, "kind")
	schema, ok := core.Get(kind)
	if !ok {
		respondError(w, r, fmt.Errorf("%w: %s", core.ErrUnknownKind, kind))
		return
	}

	w.Header().Set("Content-Type", "text/csv")
	w.Header().Set("Content-Disposition", fmt.Sprintf(`attachment; filename="%s_template.csv"`, schema.Kind))

	cw := csv.NewWriter(w)
	if schema.Delimiter != 0 {
		cw.Comma = schema.Delimiter
	}
	_ = cw.Write(schema.Columns())
	cw.Flush()
}
