package main

import (
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"io"
	"net/http"

	"github.com/google/uuid"
	"github.com/julienschmidt/httprouter"
	"github.com/rs/zerolog"

	"github.com/imulab/scim-proxy/internal/coordinator"
	"github.com/imulab/scim-proxy/internal/patch"
	"github.com/imulab/scim-proxy/internal/respond"
	"github.com/imulab/scim-proxy/internal/scimerr"
)

// authHash derives a stable cache-key component from the caller's
// Authorization header so cached responses never leak across identities
// (§3 Cache Entry: "relevant auth hash").
func authHash(r *http.Request) string {
	sum := sha256.Sum256([]byte(r.Header.Get("Authorization")))
	return hex.EncodeToString(sum[:8])
}

// withRequestID stamps every request with a correlation id (carried in the
// response's X-Request-Id header, the forwarded upstream request headers,
// and every log line written through the request's context logger) so a
// single upstream call can be traced back to the client request that caused it.
func withRequestID(log *zerolog.Logger, next httprouter.Handle) httprouter.Handle {
	return func(w http.ResponseWriter, r *http.Request, params httprouter.Params) {
		reqID := r.Header.Get("X-Request-Id")
		if reqID == "" {
			reqID = uuid.NewString()
			r.Header.Set("X-Request-Id", reqID)
		}
		w.Header().Set("X-Request-Id", reqID)

		l := log.With().Str("request_id", reqID).Str("method", r.Method).Str("path", r.URL.Path).Logger()
		r = r.WithContext(l.WithContext(r.Context()))
		next(w, r, params)
	}
}

func listHandler(app *applicationContext, resourceType string) httprouter.Handle {
	return func(w http.ResponseWriter, r *http.Request, _ httprouter.Params) {
		log := zerolog.Ctx(r.Context())
		params := coordinator.ParseListParams(r.URL.Query())

		result, err := app.coord.List(r.Context(), resourceType, params, r.Header, authHash(r))
		if err != nil {
			log.Err(err).Msg("error listing resources")
			_ = respond.Error(w, err)
			return
		}
		if err := respond.List(w, result.TotalResults, result.StartIndex, result.ItemsPerPage, result.Resources); err != nil {
			log.Err(err).Msg("error writing list response")
		}
	}
}

func getHandler(app *applicationContext, resourceType string) httprouter.Handle {
	return func(w http.ResponseWriter, r *http.Request, params httprouter.Params) {
		log := zerolog.Ctx(r.Context())
		id := params.ByName("id")

		entry, err := app.coord.Get(r.Context(), resourceType, id, r.Header, authHash(r))
		if err != nil {
			log.Err(err).Msg("error getting resource")
			_ = respond.Error(w, err)
			return
		}
		respond.Resource(w, entry.Status, entry.Body)
	}
}

func createHandler(app *applicationContext, resourceType string) httprouter.Handle {
	return func(w http.ResponseWriter, r *http.Request, _ httprouter.Params) {
		log := zerolog.Ctx(r.Context())
		body, err := io.ReadAll(r.Body)
		if err != nil {
			_ = respond.Error(w, scimerr.Wrap(scimerr.ErrInvalidSyntax, "reading request body: %v", err))
			return
		}

		resp, err := app.coord.Create(r.Context(), resourceType, r.Header, body)
		if err != nil {
			log.Err(err).Msg("error creating resource")
			_ = respond.Error(w, err)
			return
		}
		respond.Resource(w, resp.StatusCode, resp.Body)
	}
}

func replaceHandler(app *applicationContext, resourceType string) httprouter.Handle {
	return func(w http.ResponseWriter, r *http.Request, params httprouter.Params) {
		log := zerolog.Ctx(r.Context())
		id := params.ByName("id")
		body, err := io.ReadAll(r.Body)
		if err != nil {
			_ = respond.Error(w, scimerr.Wrap(scimerr.ErrInvalidSyntax, "reading request body: %v", err))
			return
		}

		resp, err := app.coord.Replace(r.Context(), resourceType, id, r.Header, body)
		if err != nil {
			log.Err(err).Msg("error replacing resource")
			_ = respond.Error(w, err)
			return
		}
		respond.Resource(w, resp.StatusCode, resp.Body)
	}
}

func patchHandler(app *applicationContext, resourceType string) httprouter.Handle {
	return func(w http.ResponseWriter, r *http.Request, params httprouter.Params) {
		log := zerolog.Ctx(r.Context())
		id := params.ByName("id")

		var body struct {
			Operations []patch.Operation `json:"Operations"`
		}
		if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
			_ = respond.Error(w, scimerr.Wrap(scimerr.ErrInvalidSyntax, "decoding patch body: %v", err))
			return
		}

		resp, err := app.coord.Patch(r.Context(), resourceType, id, r.Header, body.Operations)
		if err != nil {
			log.Err(err).Msg("error patching resource")
			_ = respond.Error(w, err)
			return
		}
		respond.Resource(w, resp.StatusCode, resp.Body)
	}
}

func deleteHandler(app *applicationContext, resourceType string) httprouter.Handle {
	return func(w http.ResponseWriter, r *http.Request, params httprouter.Params) {
		log := zerolog.Ctx(r.Context())
		id := params.ByName("id")

		if err := app.coord.Delete(r.Context(), resourceType, id, r.Header); err != nil {
			log.Err(err).Msg("error deleting resource")
			_ = respond.Error(w, err)
			return
		}
		w.WriteHeader(http.StatusNoContent)
	}
}

func healthHandler() httprouter.Handle {
	return func(w http.ResponseWriter, r *http.Request, _ httprouter.Params) {
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(map[string]string{"status": "ok"})
	}
}

// staticDocHandler serves a pre-marshaled JSON document, following
// teacher's ServiceProviderConfigHandler pattern of marshaling once at
// route-registration time rather than per request.
func staticDocHandler(raw []byte) httprouter.Handle {
	return func(w http.ResponseWriter, r *http.Request, _ httprouter.Params) {
		w.Header().Set("Content-Type", respond.ContentType)
		_, _ = w.Write(raw)
	}
}

func staticDocOrNotFound(docs map[string][]byte) httprouter.Handle {
	return func(w http.ResponseWriter, r *http.Request, params httprouter.Params) {
		raw, ok := docs[params.ByName("id")]
		if !ok {
			_ = respond.Error(w, scimerr.Wrap(scimerr.ErrNotFound, "resource type %q is not defined", params.ByName("id")))
			return
		}
		w.Header().Set("Content-Type", respond.ContentType)
		_, _ = w.Write(raw)
	}
}
