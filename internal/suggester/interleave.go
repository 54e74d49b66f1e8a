package suggester

// resultStream is one task type's ordered hit list during the merge.
type resultStream struct {
	taskTypeID string
	hits       []SearchHit
}

// interleave merges the per-task-type result streams round-robin, keyed by
// task type, stopping once limit hits have been collected or every stream
// is exhausted. This is the fairness guarantee of the pipeline: when a
// global limit truncates the merged stream, no single task type can starve
// the others, regardless of how many hits each query returned.
//
// The returned slice pairs each hit with the task type it came from.
func interleave(streams []resultStream, limit int) []typedHit {
	if limit <= 0 {
		return nil
	}

	merged := make([]typedHit, 0, limit)
	cursors := make([]int, len(streams))

	for len(merged) < limit {
		progressed := false
		for i := range streams {
			if cursors[i] >= len(streams[i].hits) {
				continue
			}
			merged = append(merged, typedHit{
				taskTypeID: streams[i].taskTypeID,
				hit:        streams[i].hits[cursors[i]],
			})
			cursors[i]++
			progressed = true
			if len(merged) == limit {
				break
			}
		}
		if !progressed {
			break
		}
	}

	return merged
}

// typedHit is a search hit annotated with the task type that produced it.
type typedHit struct {
	taskTypeID string
	hit        SearchHit
}
