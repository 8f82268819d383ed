// Package paginate implements the fetch-enough pagination adapter (§4.7):
// it issues sequential upstream page fetches to assemble a correct filtered
// window when the upstream itself cannot filter server-side.
package paginate

import (
	"context"
	"sort"
	"strings"

	"github.com/imulab/scim-proxy/internal/filter"
)

// Defaults for the bounded-work ceiling on the filtered fetch path.
const (
	DefaultFetchMultiplier = 20
	DefaultMaxFetchSize    = 2000
)

// Page is one upstream page fetch result.
type Page struct {
	Resources    []map[string]interface{}
	TotalResults int
}

// PageFetcher retrieves one upstream page starting at the 1-based
// startIndex, requesting at most count records.
type PageFetcher interface {
	FetchPage(ctx context.Context, startIndex, count int) (Page, error)
}

// Request describes a single list request's parameters.
type Request struct {
	Filter              filter.Node
	SortBy              string
	SortDescending      bool
	StartIndex          int
	Count               int
	Attributes          []string
	ExcludedAttributes  []string
	UpstreamPageSize    int
	FetchMultiplier     int
	MaxFetchSize        int
}

// Result is the adapter's output, ready to be rendered as a SCIM
// ListResponse.
type Result struct {
	Resources    []map[string]interface{}
	TotalResults int
	StartIndex   int
	ItemsPerPage int
	Exhausted    bool
}

// Adapt executes req against fetcher and returns a correct filtered window.
func Adapt(ctx context.Context, fetcher PageFetcher, req Request) (Result, error) {
	if req.StartIndex < 1 {
		req.StartIndex = 1
	}
	if req.Count < 0 {
		req.Count = 0
	}

	if req.Filter == nil {
		page, err := fetcher.FetchPage(ctx, req.StartIndex, req.Count)
		if err != nil {
			return Result{}, err
		}
		resources := project(page.Resources, req.Attributes, req.ExcludedAttributes)
		return Result{
			Resources:    resources,
			TotalResults: page.TotalResults,
			StartIndex:   req.StartIndex,
			ItemsPerPage: len(resources),
			Exhausted:    true,
		}, nil
	}

	multiplier := req.FetchMultiplier
	if multiplier <= 0 {
		multiplier = DefaultFetchMultiplier
	}
	maxFetch := req.MaxFetchSize
	if maxFetch <= 0 {
		maxFetch = DefaultMaxFetchSize
	}
	pageSize := req.UpstreamPageSize
	if pageSize <= 0 {
		pageSize = 100
	}

	needed := req.StartIndex + req.Count - 1
	fetchCeiling := req.Count * multiplier
	if fetchCeiling <= 0 {
		fetchCeiling = pageSize
	}
	if fetchCeiling > maxFetch {
		fetchCeiling = maxFetch
	}

	var matches []map[string]interface{}
	seen := make(map[string]bool)
	exhausted := false
	fetched := 0
	upstreamStart := 1

	for {
		if err := ctx.Err(); err != nil {
			return Result{}, err
		}

		page, err := fetcher.FetchPage(ctx, upstreamStart, pageSize)
		if err != nil {
			return Result{}, err
		}
		fetched += len(page.Resources)

		for _, r := range page.Resources {
			if filter.Evaluate(req.Filter, r) {
				id, _ := r["id"].(string)
				if id != "" && seen[id] {
					continue
				}
				if id != "" {
					seen[id] = true
				}
				matches = append(matches, r)
			}
		}

		upstreamStart += len(page.Resources)
		if upstreamStart-1 >= page.TotalResults || len(page.Resources) == 0 {
			exhausted = true
			break
		}
		if len(matches) >= needed {
			break
		}
		if fetched >= fetchCeiling {
			break
		}
	}

	if req.SortBy != "" {
		sortResources(matches, req.SortBy, req.SortDescending)
	}

	lo := req.StartIndex - 1
	if lo > len(matches) {
		lo = len(matches)
	}
	hi := lo + req.Count
	if hi > len(matches) {
		hi = len(matches)
	}
	window := matches[lo:hi]

	resources := project(window, req.Attributes, req.ExcludedAttributes)

	return Result{
		Resources:    resources,
		TotalResults: len(matches),
		StartIndex:   req.StartIndex,
		ItemsPerPage: len(resources),
		Exhausted:    exhausted,
	}, nil
}

// sortResources stably sorts by the dotted path sortBy, using the same
// coercion rules as filter comparisons; resources missing the attribute
// always sort last regardless of direction (§4.7).
func sortResources(resources []map[string]interface{}, sortBy string, descending bool) {
	path, err := filter.ParsePath(sortBy, filter.DefaultMaxComplexity)
	if err != nil {
		return
	}
	valueOf := func(r map[string]interface{}) (interface{}, bool) {
		refs := filter.Resolve(r, path)
		for _, ref := range refs {
			if v, ok := ref.Value(); ok {
				return v, true
			}
		}
		return nil, false
	}

	sort.SliceStable(resources, func(i, j int) bool {
		vi, oki := valueOf(resources[i])
		vj, okj := valueOf(resources[j])
		if !oki && !okj {
			return false
		}
		if !oki {
			return false // missing sorts last
		}
		if !okj {
			return true
		}
		cmp := filter.CompareValues(vi, vj)
		if descending {
			return cmp > 0
		}
		return cmp < 0
	})
}

// alwaysReturned are the attributes projection never drops (§4.7).
var alwaysReturned = map[string]bool{"id": true, "schemas": true, "meta": true}

// project applies attribute projection: attributes is an allow-list
// (plus always-returned attributes); excludedAttributes is a deny-list
// that never removes an always-returned attribute. attributes takes
// precedence when both are given.
func project(resources []map[string]interface{}, attributes, excludedAttributes []string) []map[string]interface{} {
	if len(attributes) == 0 && len(excludedAttributes) == 0 {
		return resources
	}

	out := make([]map[string]interface{}, len(resources))
	for i, r := range resources {
		out[i] = projectOne(r, attributes, excludedAttributes)
	}
	return out
}

func projectOne(r map[string]interface{}, attributes, excludedAttributes []string) map[string]interface{} {
	if len(attributes) > 0 {
		allow := make(map[string]bool, len(attributes))
		for _, a := range attributes {
			allow[topLevel(a)] = true
		}
		result := map[string]interface{}{}
		for k, v := range r {
			lk := strings.ToLower(k)
			if alwaysReturned[lk] || allow[lk] {
				result[k] = v
			}
		}
		return result
	}

	deny := make(map[string]bool, len(excludedAttributes))
	for _, a := range excludedAttributes {
		deny[topLevel(a)] = true
	}
	result := map[string]interface{}{}
	for k, v := range r {
		lk := strings.ToLower(k)
		if deny[lk] && !alwaysReturned[lk] {
			continue
		}
		result[k] = v
	}
	return result
}

func topLevel(attr string) string {
	if idx := strings.IndexByte(attr, '.'); idx >= 0 {
		return strings.ToLower(attr[:idx])
	}
	return strings.ToLower(attr)
}
