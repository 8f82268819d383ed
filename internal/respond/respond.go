// Package respond writes SCIM-shaped HTTP responses: resource bodies, list
// envelopes, and the SCIM error document, grounded on the response-writing
// conventions of pkg/v2/handlerutil/response.go.
package respond

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"

	"github.com/imulab/scim-proxy/internal/scimerr"
)

// ContentType is the SCIM media type set on every response this package
// writes.
const ContentType = "application/scim+json"

// ListResponse is the SCIM ListResponse envelope (§3 Pagination Window).
type ListResponse struct {
	Schemas      []string          `json:"schemas"`
	TotalResults int               `json:"totalResults"`
	StartIndex   int               `json:"startIndex"`
	ItemsPerPage int               `json:"itemsPerPage"`
	Resources    []json.RawMessage `json:"Resources"`
}

// Resource writes a single JSON resource body with status.
func Resource(w http.ResponseWriter, status int, body []byte) {
	w.Header().Set("Content-Type", ContentType)
	w.WriteHeader(status)
	w.Write(body)
}

// List writes resources as a SCIM ListResponse.
func List(w http.ResponseWriter, totalResults, startIndex, itemsPerPage int, resources []map[string]interface{}) error {
	render := ListResponse{
		Schemas:      []string{"urn:ietf:params:scim:api:messages:2.0:ListResponse"},
		TotalResults: totalResults,
		StartIndex:   startIndex,
		ItemsPerPage: itemsPerPage,
		Resources:    make([]json.RawMessage, 0, len(resources)),
	}
	for _, r := range resources {
		raw, err := json.Marshal(r)
		if err != nil {
			return err
		}
		render.Resources = append(render.Resources, raw)
	}

	w.Header().Set("Content-Type", ContentType)
	return json.NewEncoder(w).Encode(render)
}

// errorBody is the SCIM Error document shape (§6).
type errorBody struct {
	Schemas  []string `json:"schemas"`
	Status   string   `json:"status"`
	ScimType string   `json:"scimType,omitempty"`
	Detail   string   `json:"detail"`
}

// Error writes err as a SCIM error document. If err wraps a *scimerr.Error
// (via errors.As), that prototype's status and scimType are used; a
// *scimerr.Passthrough writes the upstream's original status and body
// unchanged so upstream SCIM error envelopes pass through transparently
// (§7). Anything else maps to Internal.
func Error(w http.ResponseWriter, err error) error {
	var pass *scimerr.Passthrough
	if errors.As(err, &pass) {
		w.Header().Set("Content-Type", pass.ContentType)
		w.WriteHeader(pass.Status)
		_, writeErr := w.Write(pass.Body)
		return writeErr
	}

	var scimErr *scimerr.Error
	status, scimType := scimerr.ErrInternal.Status, scimerr.ErrInternal.Type
	if errors.As(err, &scimErr) {
		status, scimType = scimErr.Status, scimErr.Type
	}

	body := errorBody{
		Schemas:  []string{"urn:ietf:params:scim:api:messages:2.0:Error"},
		Status:   strconv.Itoa(status),
		ScimType: scimType,
		Detail:   err.Error(),
	}

	w.Header().Set("Content-Type", ContentType)
	w.WriteHeader(status)
	return json.NewEncoder(w).Encode(body)
}
