package coordinator

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"net/url"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/imulab/scim-proxy/internal/cache"
	"github.com/imulab/scim-proxy/internal/patch"
	"github.com/imulab/scim-proxy/internal/upstream"
)

func newTestCoordinator(t *testing.T, handler http.Handler) (*Coordinator, *httptest.Server) {
	t.Helper()
	srv := httptest.NewServer(handler)
	client := upstream.New(srv.URL, 2*time.Second)
	c := cache.New(time.Minute, 100)
	return New(client, c, Config{
		MaxFilterComplexity: 50,
		UpstreamPageSize:    100,
		FetchMultiplier:     10,
		MaxFetchSize:        10000,
	}), srv
}

func TestCoordinator_List_UnfilteredForwardsUpstream(t *testing.T) {
	co, srv := newTestCoordinator(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/Users", r.URL.Path)
		json.NewEncoder(w).Encode(map[string]interface{}{
			"totalResults": 2,
			"Resources": []map[string]interface{}{
				{"id": "1", "userName": "alice"},
				{"id": "2", "userName": "bob"},
			},
		})
	}))
	defer srv.Close()

	result, err := co.List(context.Background(), "Users", ListParams{StartIndex: 1, Count: 10}, nil, "auth")
	require.NoError(t, err)
	assert.Equal(t, 2, result.TotalResults)
	assert.Len(t, result.Resources, 2)
}

func TestCoordinator_List_FilteredFetchesMultiplePages(t *testing.T) {
	var calls int
	co, srv := newTestCoordinator(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls++
		q := r.URL.Query()
		startIndex := q.Get("startIndex")
		var resources []map[string]interface{}
		if startIndex == "1" {
			resources = []map[string]interface{}{
				{"id": "1", "active": true},
				{"id": "2", "active": false},
			}
		} else {
			resources = []map[string]interface{}{
				{"id": "3", "active": true},
			}
		}
		json.NewEncoder(w).Encode(map[string]interface{}{"totalResults": 3, "Resources": resources})
	}))
	defer srv.Close()

	result, err := co.List(context.Background(), "Users", ListParams{Filter: "active eq true", StartIndex: 1, Count: 2}, nil, "auth")
	require.NoError(t, err)
	assert.True(t, result.Exhausted)
	assert.Equal(t, 2, result.TotalResults)
	assert.GreaterOrEqual(t, calls, 1)
}

func TestCoordinator_Get_CachesUpstreamResponse(t *testing.T) {
	var calls int
	co, srv := newTestCoordinator(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls++
		json.NewEncoder(w).Encode(map[string]interface{}{"id": "1", "userName": "alice"})
	}))
	defer srv.Close()

	_, err := co.Get(context.Background(), "Users", "1", nil, "auth")
	require.NoError(t, err)
	_, err = co.Get(context.Background(), "Users", "1", nil, "auth")
	require.NoError(t, err)

	assert.Equal(t, 1, calls)
}

func TestCoordinator_Create_InvalidatesListCache(t *testing.T) {
	var getCalls, postCalls int
	co, srv := newTestCoordinator(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.Method {
		case http.MethodGet:
			getCalls++
			json.NewEncoder(w).Encode(map[string]interface{}{"id": "1"})
		case http.MethodPost:
			postCalls++
			w.WriteHeader(http.StatusCreated)
			json.NewEncoder(w).Encode(map[string]interface{}{"id": "2"})
		}
	}))
	defer srv.Close()

	_, err := co.Get(context.Background(), "Users", "1", nil, "auth")
	require.NoError(t, err)
	assert.Equal(t, 1, getCalls)

	_, err = co.Create(context.Background(), "Users", nil, []byte(`{}`))
	require.NoError(t, err)

	_, err = co.Get(context.Background(), "Users", "1", nil, "auth")
	require.NoError(t, err)
	assert.Equal(t, 2, getCalls) // cache invalidated by the write
}

func TestCoordinator_Delete_PropagatesUpstreamError(t *testing.T) {
	co, srv := newTestCoordinator(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNotFound)
		json.NewEncoder(w).Encode(map[string]interface{}{"scimType": "notFound"})
	}))
	defer srv.Close()

	err := co.Delete(context.Background(), "Users", "missing", nil)
	require.Error(t, err)
}

// S4 at the coordinator level: read-modify-write PATCH replaces "active".
func TestCoordinator_Patch_ReadModifyWrite(t *testing.T) {
	resource := map[string]interface{}{"id": "x", "active": true}
	var putBody map[string]interface{}

	co, srv := newTestCoordinator(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.Method {
		case http.MethodGet:
			json.NewEncoder(w).Encode(resource)
		case http.MethodPut:
			require.NoError(t, json.NewDecoder(r.Body).Decode(&putBody))
			json.NewEncoder(w).Encode(putBody)
		}
	}))
	defer srv.Close()

	ops := []patch.Operation{{Op: "replace", Path: "active", Value: json.RawMessage(`false`)}}
	resp, err := co.Patch(context.Background(), "Users", "x", nil, ops)
	require.NoError(t, err)
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, false, putBody["active"])
}

func TestCoordinator_Patch_NativePatchFallsBackOn501(t *testing.T) {
	var putCalled bool
	co, srv := newTestCoordinator(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.Method {
		case http.MethodGet:
			json.NewEncoder(w).Encode(map[string]interface{}{"id": "x", "active": true})
		case http.MethodPatch:
			w.WriteHeader(http.StatusNotImplemented)
		case http.MethodPut:
			putCalled = true
			w.WriteHeader(http.StatusOK)
			json.NewEncoder(w).Encode(map[string]interface{}{"id": "x", "active": false})
		}
	}))
	defer srv.Close()
	co.Config.UpstreamNativePatch = true

	ops := []patch.Operation{{Op: "replace", Path: "active", Value: json.RawMessage(`false`)}}
	_, err := co.Patch(context.Background(), "Users", "x", nil, ops)
	require.NoError(t, err)
	assert.True(t, putCalled)
}

func TestParseListParams_Defaults(t *testing.T) {
	p := ParseListParams(url.Values{})
	assert.Equal(t, 1, p.StartIndex)
	assert.Equal(t, 0, p.Count)
}

func TestParseListParams_ParsesAllFields(t *testing.T) {
	q := url.Values{
		"filter":             {`active eq true`},
		"sortBy":             {"userName"},
		"sortOrder":          {"descending"},
		"startIndex":         {"11"},
		"count":              {"5"},
		"attributes":         {"id,userName"},
		"excludedAttributes": {"password"},
	}
	p := ParseListParams(q)
	assert.Equal(t, `active eq true`, p.Filter)
	assert.Equal(t, "userName", p.SortBy)
	assert.True(t, p.SortDescending)
	assert.Equal(t, 11, p.StartIndex)
	assert.Equal(t, 5, p.Count)
	assert.Equal(t, []string{"id", "userName"}, p.Attributes)
	assert.Equal(t, []string{"password"}, p.ExcludedAttributes)
}
