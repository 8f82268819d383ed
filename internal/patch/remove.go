package patch

import (
	"fmt"

	"github.com/imulab/scim-proxy/internal/filter"
	"github.com/imulab/scim-proxy/internal/scimerr"
)

func applyRemove(resource map[string]interface{}, path *filter.AttrPath) error {
	if path == nil {
		return scimerr.Wrap(scimerr.ErrNoTarget, "remove requires a path")
	}
	if isImmutable(path.Attr) {
		return scimerr.Wrap(scimerr.ErrMutability, "attribute %q is immutable", path.Attr)
	}

	if path.Selector != nil {
		parent, arrKey, arr, ok := lookupArray(resource, path.Attr)
		if !ok {
			return nil // no target array, nothing to remove
		}
		matched := filter.MatchElements(resource, path.Attr, path.Selector)
		if len(matched) == 0 {
			return nil
		}
		if len(path.Sub) > 0 {
			matchSet := make(map[interface{}]bool, len(matched))
			for _, m := range matched {
				matchSet[identityOf(m)] = true
			}
			for _, el := range arr {
				if m, ok := el.(map[string]interface{}); ok && matchSet[identityOf(m)] {
					clearSub(m, path.Sub)
				}
			}
			return nil
		}

		matchSet := make(map[interface{}]bool, len(matched))
		for _, m := range matched {
			matchSet[identityOf(m)] = true
		}
		kept := make([]interface{}, 0, len(arr))
		for _, el := range arr {
			if m, ok := el.(map[string]interface{}); ok && matchSet[identityOf(m)] {
				continue
			}
			kept = append(kept, el)
		}
		if len(kept) == 0 {
			delete(parent, arrKey)
		} else {
			parent[arrKey] = kept
		}
		return nil
	}

	if len(path.Sub) == 0 {
		key, ok := filter.FindKey(resource, path.Attr)
		if !ok {
			return nil
		}
		delete(resource, key)
		return nil
	}

	container, key := existingContainerFor(resource, append([]string{path.Attr}, path.Sub...))
	if container == nil {
		return nil
	}
	delete(container, key)
	return nil
}

// lookupArray resolves attr on resource to its parent container, the
// (case-preserved) key holding it, and the array itself.
func lookupArray(resource map[string]interface{}, attr string) (parent map[string]interface{}, key string, arr []interface{}, ok bool) {
	k, found := filter.FindKey(resource, attr)
	if !found {
		return nil, "", nil, false
	}
	a, isArr := resource[k].([]interface{})
	if !isArr {
		return nil, "", nil, false
	}
	return resource, k, a, true
}

// clearSub removes the dotted sub-path segments from el, leaving the
// element itself (and any untouched sibling attributes) in place.
func clearSub(el map[string]interface{}, sub []string) {
	container, key := existingContainerFor(el, sub)
	if container == nil {
		return
	}
	delete(container, key)
}

// identityOf gives a stable comparison key for a map value based on its
// address, so matched elements can be identified across slice rebuilds
// without relying on deep equality.
func identityOf(m map[string]interface{}) interface{} {
	return fmt.Sprintf("%p", m)
}
