// Package patch implements the RFC 7644 §3.5.2 PATCH operation set
// (add/replace/remove) over the SCIM path sub-language with value
// selectors, per spec component "PATCH Applier".
package patch

import (
	"encoding/json"
	"strings"

	"github.com/imulab/scim-proxy/internal/filter"
	"github.com/imulab/scim-proxy/internal/scimerr"
)

// Operation is one entry of a PATCH request body's Operations array.
type Operation struct {
	Op    string          `json:"op"`
	Path  string          `json:"path,omitempty"`
	Value json.RawMessage `json:"value,omitempty"`
}

// immutable lists the top-level attributes the applier refuses to touch,
// regardless of operation (§4.6).
var immutable = map[string]bool{"schemas": true, "id": true, "meta": true}

// Apply executes ops against resource in order. A failure on any operation
// is fatal for the whole PATCH (§4.6) — resource may be left partially
// modified, matching the read-modify-write contract where the caller
// discards the in-memory copy on error.
func Apply(resource map[string]interface{}, ops []Operation, maxComplexity int) error {
	for _, op := range ops {
		var path *filter.AttrPath
		if strings.TrimSpace(op.Path) != "" {
			p, err := filter.ParsePath(op.Path, maxComplexity)
			if err != nil {
				return err
			}
			path = &p
		}

		switch strings.ToLower(op.Op) {
		case "add":
			if err := applyAdd(resource, path, op.Value); err != nil {
				return err
			}
		case "replace":
			if err := applyReplace(resource, path, op.Value); err != nil {
				return err
			}
		case "remove":
			if err := applyRemove(resource, path); err != nil {
				return err
			}
		default:
			return scimerr.Wrap(scimerr.ErrInvalidSyntax, "unsupported patch op %q", op.Op)
		}
	}
	return nil
}

func isImmutable(name string) bool {
	return immutable[strings.ToLower(name)]
}
