// Package coordinator implements the Request Coordinator (§4.10): it
// dispatches each inbound SCIM operation to the cache, the upstream
// client, the pagination adapter, or the PATCH applier, and owns the
// cache-invalidation rules that keep responses fresh after a write.
package coordinator

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"strings"

	"github.com/imulab/scim-proxy/internal/cache"
	"github.com/imulab/scim-proxy/internal/filter"
	"github.com/imulab/scim-proxy/internal/paginate"
	"github.com/imulab/scim-proxy/internal/patch"
	"github.com/imulab/scim-proxy/internal/scimerr"
	"github.com/imulab/scim-proxy/internal/upstream"
)

// Config bounds the coordinator's pagination and filter behavior; it is
// populated from CLI flags/environment at startup (§6).
type Config struct {
	MaxFilterComplexity int
	UpstreamPageSize     int
	FetchMultiplier      int
	MaxFetchSize         int
	UpstreamNativePatch  bool
}

// Coordinator wires the cache and upstream client together per §4.10.
type Coordinator struct {
	Client *upstream.Client
	Cache  *cache.Cache
	Config Config
}

// New returns a Coordinator over client and cache, applying cfg.
func New(client *upstream.Client, respCache *cache.Cache, cfg Config) *Coordinator {
	return &Coordinator{Client: client, Cache: respCache, Config: cfg}
}

// ListParams is the parsed query string of a list request.
type ListParams struct {
	Filter             string
	SortBy             string
	SortDescending     bool
	StartIndex         int
	Count              int
	Attributes         []string
	ExcludedAttributes []string
}

// ParseListParams extracts SCIM list query parameters from raw query
// values, defaulting startIndex to 1 (§3 Pagination Window).
func ParseListParams(q url.Values) ListParams {
	p := ListParams{
		Filter:     q.Get("filter"),
		SortBy:     q.Get("sortBy"),
		StartIndex: 1,
	}
	if v, err := strconv.Atoi(q.Get("startIndex")); err == nil && v > 0 {
		p.StartIndex = v
	}
	if v, err := strconv.Atoi(q.Get("count")); err == nil && v >= 0 {
		p.Count = v
	}
	if strings.EqualFold(q.Get("sortOrder"), "descending") {
		p.SortDescending = true
	}
	if attrs := q.Get("attributes"); attrs != "" {
		p.Attributes = strings.Split(attrs, ",")
	}
	if excl := q.Get("excludedAttributes"); excl != "" {
		p.ExcludedAttributes = strings.Split(excl, ",")
	}
	return p
}

// pageFetcher adapts cached, per-page upstream GETs to paginate.PageFetcher.
type pageFetcher struct {
	ctx          context.Context
	co           *Coordinator
	resourceType string
	header       http.Header
	authHash     string
}

func (f *pageFetcher) FetchPage(ctx context.Context, startIndex, count int) (paginate.Page, error) {
	q := url.Values{
		"startIndex": {strconv.Itoa(startIndex)},
		"count":      {strconv.Itoa(count)},
	}
	path := "/" + f.resourceType + "?" + q.Encode()
	key := cache.Key(http.MethodGet, "/"+f.resourceType, q, f.authHash)

	entry, err := f.co.Cache.GetOrFetch(ctx, key, func(ctx context.Context) (cache.Entry, error) {
		resp, err := f.co.Client.Do(ctx, http.MethodGet, path, f.header, nil)
		if err != nil {
			return cache.Entry{}, scimerr.Wrap(scimerr.ErrUpstreamUnavailable, "%v", err)
		}
		if err := checkStatus(resp); err != nil {
			return cache.Entry{}, err
		}
		return cache.Entry{Status: resp.StatusCode, Body: resp.Body, Header: resp.Header}, nil
	})
	if err != nil {
		return paginate.Page{}, err
	}

	var listResp struct {
		TotalResults int                      `json:"totalResults"`
		Resources    []map[string]interface{} `json:"Resources"`
	}
	if err := json.Unmarshal(entry.Body, &listResp); err != nil {
		return paginate.Page{}, scimerr.Wrap(scimerr.ErrInternal, "decoding upstream list response: %v", err)
	}
	return paginate.Page{Resources: listResp.Resources, TotalResults: listResp.TotalResults}, nil
}

// List serves GET /{ResourceType} (§4.10, via the Pagination Adapter).
func (co *Coordinator) List(ctx context.Context, resourceType string, params ListParams, header http.Header, authHash string) (paginate.Result, error) {
	var node filter.Node
	if params.Filter != "" {
		n, err := filter.Parse(params.Filter, co.Config.MaxFilterComplexity)
		if err != nil {
			return paginate.Result{}, err
		}
		node = n
	}

	req := paginate.Request{
		Filter:             node,
		SortBy:             params.SortBy,
		SortDescending:     params.SortDescending,
		StartIndex:         params.StartIndex,
		Count:              params.Count,
		Attributes:         params.Attributes,
		ExcludedAttributes: params.ExcludedAttributes,
		UpstreamPageSize:   co.Config.UpstreamPageSize,
		FetchMultiplier:    co.Config.FetchMultiplier,
		MaxFetchSize:       co.Config.MaxFetchSize,
	}

	return paginate.Adapt(ctx, &pageFetcher{ctx: ctx, co: co, resourceType: resourceType, header: header, authHash: authHash}, req)
}

// Get serves GET /{ResourceType}/{id} as a cached upstream GET.
func (co *Coordinator) Get(ctx context.Context, resourceType, id string, header http.Header, authHash string) (cache.Entry, error) {
	path := fmt.Sprintf("/%s/%s", resourceType, id)
	key := cache.Key(http.MethodGet, path, nil, authHash)
	return co.Cache.GetOrFetch(ctx, key, func(ctx context.Context) (cache.Entry, error) {
		resp, err := co.Client.Do(ctx, http.MethodGet, path, header, nil)
		if err != nil {
			return cache.Entry{}, scimerr.Wrap(scimerr.ErrUpstreamUnavailable, "%v", err)
		}
		if err := checkStatus(resp); err != nil {
			return cache.Entry{}, err
		}
		return cache.Entry{Status: resp.StatusCode, Body: resp.Body, Header: resp.Header}, nil
	})
}

// Create serves POST /{ResourceType}.
func (co *Coordinator) Create(ctx context.Context, resourceType string, header http.Header, body []byte) (upstream.Response, error) {
	resp, err := co.Client.Do(ctx, http.MethodPost, "/"+resourceType, header, body)
	if err != nil {
		return upstream.Response{}, scimerr.Wrap(scimerr.ErrUpstreamUnavailable, "%v", err)
	}
	if err := checkStatus(resp); err != nil {
		return upstream.Response{}, err
	}
	co.invalidateResourceType(resourceType)
	return resp, nil
}

// Replace serves PUT /{ResourceType}/{id}.
func (co *Coordinator) Replace(ctx context.Context, resourceType, id string, header http.Header, body []byte) (upstream.Response, error) {
	path := fmt.Sprintf("/%s/%s", resourceType, id)
	resp, err := co.Client.Do(ctx, http.MethodPut, path, header, body)
	if err != nil {
		return upstream.Response{}, scimerr.Wrap(scimerr.ErrUpstreamUnavailable, "%v", err)
	}
	if err := checkStatus(resp); err != nil {
		return upstream.Response{}, err
	}
	co.invalidateResourceType(resourceType)
	return resp, nil
}

// Delete serves DELETE /{ResourceType}/{id}.
func (co *Coordinator) Delete(ctx context.Context, resourceType, id string, header http.Header) error {
	path := fmt.Sprintf("/%s/%s", resourceType, id)
	resp, err := co.Client.Do(ctx, http.MethodDelete, path, header, nil)
	if err != nil {
		return scimerr.Wrap(scimerr.ErrUpstreamUnavailable, "%v", err)
	}
	if err := checkStatus(resp); err != nil {
		return err
	}
	co.invalidateResourceType(resourceType)
	return nil
}

// Patch serves PATCH /{ResourceType}/{id} as read-modify-write (§4.10,
// §9 "Read-modify-write PATCH"): fetch the current resource bypassing the
// cache, apply the operations in memory, then write the result back with
// either a native upstream PATCH (if configured and accepted) or a PUT.
func (co *Coordinator) Patch(ctx context.Context, resourceType, id string, header http.Header, ops []patch.Operation) (upstream.Response, error) {
	path := fmt.Sprintf("/%s/%s", resourceType, id)

	getResp, err := co.Client.Do(ctx, http.MethodGet, path, header, nil)
	if err != nil {
		return upstream.Response{}, scimerr.Wrap(scimerr.ErrUpstreamUnavailable, "%v", err)
	}
	if err := checkStatus(getResp); err != nil {
		return upstream.Response{}, err
	}

	var resource map[string]interface{}
	if err := json.Unmarshal(getResp.Body, &resource); err != nil {
		return upstream.Response{}, scimerr.Wrap(scimerr.ErrInternal, "decoding upstream resource: %v", err)
	}

	if err := patch.Apply(resource, ops, co.Config.MaxFilterComplexity); err != nil {
		return upstream.Response{}, err
	}

	body, err := json.Marshal(resource)
	if err != nil {
		return upstream.Response{}, scimerr.Wrap(scimerr.ErrInternal, "encoding patched resource: %v", err)
	}

	if co.Config.UpstreamNativePatch {
		patchBody, err := json.Marshal(struct {
			Schemas    []string          `json:"schemas"`
			Operations []patch.Operation `json:"Operations"`
		}{
			Schemas:    []string{"urn:ietf:params:scim:api:messages:2.0:PatchOp"},
			Operations: ops,
		})
		if err == nil {
			resp, err := co.Client.Do(ctx, http.MethodPatch, path, header, patchBody)
			if err == nil && resp.StatusCode != http.StatusNotImplemented && resp.StatusCode != http.StatusMethodNotAllowed {
				if statusErr := checkStatus(resp); statusErr != nil {
					return upstream.Response{}, statusErr
				}
				co.invalidateResourceType(resourceType)
				return resp, nil
			}
			// Falls through to PUT on 405/501/transport error (§9 open question:
			// native PATCH is attempted first, with fallback to read-modify-write).
		}
	}

	resp, err := co.Client.Do(ctx, http.MethodPut, path, header, body)
	if err != nil {
		return upstream.Response{}, scimerr.Wrap(scimerr.ErrUpstreamUnavailable, "%v", err)
	}
	if err := checkStatus(resp); err != nil {
		return upstream.Response{}, err
	}
	co.invalidateResourceType(resourceType)
	return resp, nil
}

func (co *Coordinator) invalidateResourceType(resourceType string) {
	co.Cache.InvalidatePrefix(http.MethodGet + " /" + resourceType)
}

// checkStatus turns a non-2xx upstream response into a *scimerr.Passthrough
// so the original status and body reach the client unchanged (§7).
func checkStatus(resp upstream.Response) error {
	if resp.StatusCode >= 200 && resp.StatusCode < 300 {
		return nil
	}
	contentType := resp.Header.Get("Content-Type")
	if contentType == "" {
		contentType = "application/scim+json"
	}
	return &scimerr.Passthrough{Status: resp.StatusCode, Body: resp.Body, ContentType: contentType}
}
