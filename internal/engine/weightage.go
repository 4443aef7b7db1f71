package engine

// resolveWeights converts a weight map keyed by label or content into one
// keyed by content, using the same label resolution as selections.
// Unresolved keys pass through unchanged.
func resolveWeights(weights map[string]float64, options map[string]string) map[string]float64 {
	if len(weights) == 0 {
		return nil
	}
	out := make(map[string]float64, len(weights))
	for _, k := range sortedKeys(weights) {
		out[resolveOption(k, options)] = weights[k]
	}
	return out
}

// weightFor looks up the weight for an option's content. An exact match
// wins; otherwise the resolved map is scanned case-insensitively before
// defaulting to 0.
func weightFor(weights map[string]float64, content string) float64 {
	if w, ok := weights[content]; ok {
		return w
	}
	want := compareForm(content)
	for _, k := range sortedKeys(weights) {
		if compareForm(k) == want {
			return weights[k]
		}
	}
	return 0
}
