package main

import (
	"encoding/json"
	"net/http"

	"github.com/julienschmidt/httprouter"
	"github.com/urfave/cli/v2"
)

// Command returns the cli.Command that starts the proxy's HTTP listener,
// following teacher's cmd/api/cmd.go structure: parse flags, build the
// application context, register routes, serve.
func Command() *cli.Command {
	args := &arguments{}
	return &cli.Command{
		Name:        "serve",
		Description: "Run the SCIM protocol-upgrading proxy",
		Flags:       args.Flags(),
		Action: func(_ *cli.Context) error {
			app := newApplicationContext(*args)

			router := httprouter.New()
			registerRoutes(router, app)

			app.logger.Info().Str("addr", args.proxy.Addr()).Msg("scim-proxy listening")
			return http.ListenAndServe(args.proxy.Addr(), router)
		},
	}
}

// registerRoutes wires every route from §6/§4.10, at both the bare and
// /v2-prefixed paths (SCIM clients commonly address either).
func registerRoutes(router *httprouter.Router, app *applicationContext) {
	for _, prefix := range []string{"", "/v2"} {
		for _, resourceType := range []string{"Users", "Groups"} {
			router.GET(prefix+"/"+resourceType, withRequestID(app.logger, listHandler(app, resourceType)))
			router.POST(prefix+"/"+resourceType, withRequestID(app.logger, createHandler(app, resourceType)))
			router.GET(prefix+"/"+resourceType+"/:id", withRequestID(app.logger, getHandler(app, resourceType)))
			router.PUT(prefix+"/"+resourceType+"/:id", withRequestID(app.logger, replaceHandler(app, resourceType)))
			router.PATCH(prefix+"/"+resourceType+"/:id", withRequestID(app.logger, patchHandler(app, resourceType)))
			router.DELETE(prefix+"/"+resourceType+"/:id", withRequestID(app.logger, deleteHandler(app, resourceType)))
		}

		router.GET(prefix+"/ServiceProviderConfig", staticDocHandler(serviceProviderConfigDoc()))
		router.GET(prefix+"/ResourceTypes", staticDocHandler(resourceTypesDoc()))
		router.GET(prefix+"/ResourceTypes/:id", staticDocOrNotFound(resourceTypeDocsByID()))
	}

	router.GET("/health", healthHandler())
}

// serviceProviderConfigDoc advertises filter, patch, and pagination
// support (§4.10), matching teacher's ServiceProviderConfigHandler of
// marshaling the static document once at registration time.
func serviceProviderConfigDoc() []byte {
	doc := map[string]interface{}{
		"schemas": []string{"urn:ietf:params:scim:schemas:core:2.0:ServiceProviderConfig"},
		"patch":   map[string]bool{"supported": true},
		"bulk":    map[string]interface{}{"supported": false, "maxOperations": 0, "maxPayloadSize": 0},
		"filter":  map[string]interface{}{"supported": true, "maxResults": 2000},
		"pagination": map[string]bool{"cursor": false, "index": true},
		"changePassword": map[string]bool{"supported": false},
		"sort":            map[string]bool{"supported": true},
		"etag":            map[string]bool{"supported": false},
		"authenticationSchemes": []interface{}{
			map[string]string{"type": "oauthbearertoken", "name": "OAuth Bearer Token", "description": "Authentication is forwarded to the upstream unchanged"},
		},
	}
	raw, _ := json.Marshal(doc)
	return raw
}

func resourceTypeDoc(name, endpoint, schema string) map[string]interface{} {
	return map[string]interface{}{
		"schemas":  []string{"urn:ietf:params:scim:schemas:core:2.0:ResourceType"},
		"id":       name,
		"name":     name,
		"endpoint": endpoint,
		"schema":   schema,
	}
}

func resourceTypesDoc() []byte {
	docs := []map[string]interface{}{
		resourceTypeDoc("User", "/Users", "urn:ietf:params:scim:schemas:core:2.0:User"),
		resourceTypeDoc("Group", "/Groups", "urn:ietf:params:scim:schemas:core:2.0:Group"),
	}
	render := map[string]interface{}{
		"schemas":      []string{"urn:ietf:params:scim:api:messages:2.0:ListResponse"},
		"totalResults": len(docs),
		"startIndex":   1,
		"itemsPerPage": len(docs),
		"Resources":    docs,
	}
	raw, _ := json.Marshal(render)
	return raw
}

func resourceTypeDocsByID() map[string][]byte {
	byID := map[string]map[string]interface{}{
		"User":  resourceTypeDoc("User", "/Users", "urn:ietf:params:scim:schemas:core:2.0:User"),
		"Group": resourceTypeDoc("Group", "/Groups", "urn:ietf:params:scim:schemas:core:2.0:Group"),
	}
	out := make(map[string][]byte, len(byID))
	for id, doc := range byID {
		raw, _ := json.Marshal(doc)
		out[id] = raw
	}
	return out
}
