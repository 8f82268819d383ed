package filter

import "strings"

// Ref is a structural handle into a resource: the map that directly holds
// an attribute together with its (case-preserved) key, plus whether the key
// currently exists. It is returned by Resolve so that both the evaluator
// (read-only) and the PATCH applier (mutation) can share one attribute-path
// walk (§4.3: "returns a structural handle sufficient for mutation").
type Ref struct {
	Container map[string]interface{}
	Key       string
	Exists    bool
}

// Value returns the current value at the Ref, or (nil, false) if absent.
func (r Ref) Value() (interface{}, bool) {
	if !r.Exists {
		return nil, false
	}
	return r.Container[r.Key], true
}

// FindKey performs a case-insensitive lookup of name in m, returning the
// actual stored key so callers can preserve serialized case.
func FindKey(m map[string]interface{}, name string) (string, bool) {
	for k := range m {
		if strings.EqualFold(k, name) {
			return k, true
		}
	}
	return "", false
}

// Resolve walks resource according to path and returns the list of
// structural handles it denotes. Descending through an array fans out
// element-wise; descending through a missing attribute yields no refs.
// A schema-URI qualifier is stripped and matched against the root (§4.3).
func Resolve(resource map[string]interface{}, path AttrPath) []Ref {
	key, ok := FindKey(resource, path.Attr)
	if !ok {
		if path.Selector == nil && len(path.Sub) == 0 {
			return []Ref{{Container: resource, Key: path.Attr, Exists: false}}
		}
		return nil
	}

	if path.Selector == nil && len(path.Sub) == 0 {
		return []Ref{{Container: resource, Key: key, Exists: true}}
	}

	val := resource[key]

	var containers []map[string]interface{}
	if path.Selector != nil {
		arr, ok := val.([]interface{})
		if !ok {
			return nil
		}
		for _, elem := range arr {
			if m, ok := elem.(map[string]interface{}); ok && Evaluate(path.Selector, m) {
				containers = append(containers, m)
			}
		}
		if len(path.Sub) == 0 {
			return nil
		}
	} else {
		switch v := val.(type) {
		case map[string]interface{}:
			containers = []map[string]interface{}{v}
		case []interface{}:
			for _, elem := range v {
				if m, ok := elem.(map[string]interface{}); ok {
					containers = append(containers, m)
				}
			}
		default:
			return nil
		}
	}

	return resolveSegments(containers, path.Sub)
}

// resolveSegments walks the dotted segment chain through containers,
// fanning out through any intermediate multi-valued attribute, and returns
// a Ref for each container where the final segment was found (or, if an
// intermediate segment was missing, nothing for that branch).
func resolveSegments(containers []map[string]interface{}, segments []string) []Ref {
	var refs []Ref
	cur := containers
	for i, seg := range segments {
		last := i == len(segments)-1
		var next []map[string]interface{}
		for _, c := range cur {
			key, ok := FindKey(c, seg)
			if !ok {
				continue
			}
			if last {
				refs = append(refs, Ref{Container: c, Key: key, Exists: true})
				continue
			}
			switch v := c[key].(type) {
			case map[string]interface{}:
				next = append(next, v)
			case []interface{}:
				for _, elem := range v {
					if m, ok := elem.(map[string]interface{}); ok {
						next = append(next, m)
					}
				}
			}
		}
		cur = next
	}
	return refs
}

// MatchElements returns the elements of resource's multi-valued attr that
// satisfy predicate, as the same map instances stored in the array (so
// in-place mutation of a returned element is visible through resource).
func MatchElements(resource map[string]interface{}, attr string, predicate Node) []map[string]interface{} {
	key, ok := FindKey(resource, attr)
	if !ok {
		return nil
	}
	arr, ok := resource[key].([]interface{})
	if !ok {
		return nil
	}
	var out []map[string]interface{}
	for _, elem := range arr {
		if m, ok := elem.(map[string]interface{}); ok && Evaluate(predicate, m) {
			out = append(out, m)
		}
	}
	return out
}
