// Package router - tags.go filters deployment candidates by tag overlap.
//
// DESIGN: Matching is union/OR - a deployment is eligible when its tag set
// intersects the request's tag set at all. The reserved tag "default" marks
// deployments for untagged traffic and plays no special role once a request
// carries tags of its own.
package router

// filterByTags narrows a deployment group to the request's tag set.
//
// Empty request tags prefer the "default"-tagged subset; when no deployment
// carries "default" the whole group stays eligible, so untagged traffic is
// never bricked by tag configuration. Non-empty request tags keep every
// deployment with at least one tag in common and return the matched tags for
// observability.
func filterByTags(group []*Deployment, requestTags []string) (candidates []*Deployment, matched []string) {
	if len(requestTags) == 0 {
		for _, d := range group {
			if d.HasTag(DefaultTag) {
				candidates = append(candidates, d)
			}
		}
		if len(candidates) == 0 {
			return group, nil
		}
		return candidates, []string{DefaultTag}
	}

	matchedSet := make(map[string]bool)
	for _, d := range group {
		hit := false
		for _, tag := range requestTags {
			if d.HasTag(tag) {
				hit = true
				if !matchedSet[tag] {
					matchedSet[tag] = true
					matched = append(matched, tag)
				}
			}
		}
		if hit {
			candidates = append(candidates, d)
		}
	}
	return candidates, matched
}
