package export

import (
	"encoding/json"
	"io"

	"github.com/rotisserie/eris"
)

// JSONEncoder writes a bundle as indented JSON.
type JSONEncoder struct {
	Bundle *Bundle
}

// Encode implements cache.Encoder.
func (e JSONEncoder) Encode(w io.Writer) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	if err := enc.Encode(e.Bundle); err != nil {
		return eris.Wrap(err, "export: encode json")
	}
	return nil
}

// Ext implements cache.Encoder.
func (JSONEncoder) Ext() string { return "json" }

// ReadJSON decodes a bundle written by JSONEncoder.
func ReadJSON(r io.Reader) (*Bundle, error) {
	var b Bundle
	if err := json.NewDecoder(r).Decode(&b); err != nil {
		return nil, eris.Wrap(err, "export: decode json")
	}
	return &b, nil
}
