package patch

import (
	"encoding/json"

	"github.com/imulab/scim-proxy/internal/filter"
	"github.com/imulab/scim-proxy/internal/scimerr"
)

func applyReplace(resource map[string]interface{}, path *filter.AttrPath, raw json.RawMessage) error {
	if path == nil {
		obj, err := decodeObject(raw)
		if err != nil {
			return scimerr.Wrap(scimerr.ErrInvalidValue, "replace without path requires an object value: %v", err)
		}
		for k, v := range obj {
			if isImmutable(k) {
				return scimerr.Wrap(scimerr.ErrMutability, "attribute %q is immutable", k)
			}
			key, ok := filter.FindKey(resource, k)
			if !ok {
				key = k
			}
			resource[key] = v
		}
		return nil
	}

	if isImmutable(path.Attr) {
		return scimerr.Wrap(scimerr.ErrMutability, "attribute %q is immutable", path.Attr)
	}

	if path.Selector != nil {
		// Zero matches is a no-op, not an error (§4.6).
		elements := filter.MatchElements(resource, path.Attr, path.Selector)
		if len(elements) == 0 {
			return nil
		}
		for _, el := range elements {
			if len(path.Sub) == 0 {
				obj, err := decodeObject(raw)
				if err != nil {
					return scimerr.Wrap(scimerr.ErrInvalidValue, "replace with selector requires an object value: %v", err)
				}
				for k := range el {
					delete(el, k)
				}
				for k, v := range obj {
					el[k] = v
				}
				continue
			}
			container, key := containerFor(el, path.Sub)
			val, err := decodeAny(raw)
			if err != nil {
				return scimerr.Wrap(scimerr.ErrInvalidValue, "%v", err)
			}
			container[key] = val
		}
		return nil
	}

	container, key := containerFor(resource, append([]string{path.Attr}, path.Sub...))
	val, err := decodeAny(raw)
	if err != nil {
		return scimerr.Wrap(scimerr.ErrInvalidValue, "%v", err)
	}
	container[key] = val
	return nil
}
