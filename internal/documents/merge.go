package documents

// MergeShallow combines two maps at depth 1: keys from incoming override
// keys from existing, keys present only in existing survive. Values are not
// recursed into; the patch contract applies this once to the data payload
// and once to the record's top level, so second-level extraction fields are
// preserved across partial updates.
func MergeShallow(existing, incoming map[string]any) map[string]any {
	merged := make(map[string]any, len(existing)+len(incoming))
	for k, v := range existing {
		merged[k] = v
	}
	for k, v := range incoming {
		merged[k] = v
	}
	return merged
}
