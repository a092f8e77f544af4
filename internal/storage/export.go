package storage

import (
	"encoding/json"
	"io"
)

type ExportData struct {
	Run         *RunMetadata `json:"run"`
	Diagnostics []Diagnostic `json:"diagnostics,omitempty"`
	Frame       *Frame       `json:"frame,omitempty"`
}

// ExportJSON writes a run's metadata, diagnostics and last snapshot as one
// JSON document. Missing diagnostics or snapshots are omitted.
func (s *Store) ExportJSON(w io.Writer, runID string) error {
	meta, err := s.Load(runID)
	if err != nil {
		return err
	}
	data := ExportData{Run: meta}
	if diags, err := s.LoadDiagnostics(runID); err == nil {
		data.Diagnostics = diags
	}
	if frame, err := s.LoadFrame(runID, -1); err == nil {
		data.Frame = frame
	}

	encoder := json.NewEncoder(w)
	encoder.SetIndent("", "  ")
	return encoder.Encode(data)
}
