package report

import (
	"encoding/json"
	"os"
	"time"

	"github.com/rotisserie/eris"
)

// ResultsFile is the batch output document: a header plus one record per
// processed source.
type ResultsFile struct {
	GeneratedAt time.Time `json:"generated_at"`
	Count       int       `json:"count"`
	Records     []Record  `json:"records"`
}

// WriteJSON writes all records to path as an indented JSON results file.
func WriteJSON(path string, records []Record) error {
	out := ResultsFile{
		GeneratedAt: time.Now().UTC(),
		Count:       len(records),
		Records:     records,
	}

	data, err := json.MarshalIndent(out, "", "  ")
	if err != nil {
		return eris.Wrap(err, "report: marshal results")
	}

	if err := os.WriteFile(path, data, 0o644); err != nil {
		return eris.Wrap(err, "report: write results file")
	}

	return nil
}

// ReadJSON loads a results file written by WriteJSON.
func ReadJSON(path string) (*ResultsFile, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, eris.Wrap(err, "report: read results file")
	}

	var out ResultsFile
	if err := json.Unmarshal(data, &out); err != nil {
		return nil, eris.Wrap(err, "report: parse results file")
	}

	return &out, nil
}
