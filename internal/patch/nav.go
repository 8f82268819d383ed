package patch

import "github.com/imulab/scim-proxy/internal/filter"

// containerFor walks allSegments[:-1] through resource, creating empty
// object containers for any missing intermediate segment, and returns the
// container that should hold the final segment together with its
// (case-preserved, if already present) key name.
func containerFor(resource map[string]interface{}, allSegments []string) (map[string]interface{}, string) {
	cur := resource
	for _, seg := range allSegments[:len(allSegments)-1] {
		key, ok := filter.FindKey(cur, seg)
		if !ok {
			next := map[string]interface{}{}
			cur[seg] = next
			cur = next
			continue
		}
		next, ok := cur[key].(map[string]interface{})
		if !ok {
			next = map[string]interface{}{}
			cur[key] = next
		}
		cur = next
	}
	leaf := allSegments[len(allSegments)-1]
	if key, ok := filter.FindKey(cur, leaf); ok {
		leaf = key
	}
	return cur, leaf
}

// existingContainerFor is containerFor's non-creating counterpart, used by
// remove: it returns (nil, "") as soon as an intermediate segment is
// missing instead of materializing it.
func existingContainerFor(resource map[string]interface{}, allSegments []string) (map[string]interface{}, string) {
	cur := resource
	for _, seg := range allSegments[:len(allSegments)-1] {
		key, ok := filter.FindKey(cur, seg)
		if !ok {
			return nil, ""
		}
		next, ok := cur[key].(map[string]interface{})
		if !ok {
			return nil, ""
		}
		cur = next
	}
	leaf := allSegments[len(allSegments)-1]
	key, ok := filter.FindKey(cur, leaf)
	if !ok {
		return cur, leaf
	}
	return cur, key
}
