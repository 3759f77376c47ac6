package models

// TargetResult is the per-member (or per-channel) result of a mitigation call.
type TargetResult struct {
	ID      string
	Skipped bool
	Err     error
}

// Outcome aggregates a mitigation run. A run with failures is degraded, not failed.
type Outcome struct {
	Action    string
	Succeeded int
	Failed    int
	Skipped   int
	Results   []TargetResult
}

func (o *Outcome) Add(r TargetResult) {
	switch {
	case r.Skipped:
		o.Skipped++
	case r.Err != nil:
		o.Failed++
	default:
		o.Succeeded++
	}
	o.Results = append(o.Results, r)
}

func (o *Outcome) Degraded() bool {
	return o.Failed > 0
}

// FailedIDs lists the targets whose call failed.
func (o *Outcome) FailedIDs() []string {
	var ids []string
	for _, r := range o.Results {
		if r.Err != nil && !r.Skipped {
			ids = append(ids, r.ID)
		}
	}
	return ids
}
