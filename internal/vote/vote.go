// Package vote holds the toggle rule shared by every place that records a
// helpful/unhelpful vote on a solution.
package vote

// Action is what happens to the stored vote row.
type Action int

const (
	Insert  Action = iota // no prior vote: store it
	Retract               // same polarity again: delete it
	Flip                  // opposite polarity: update it
)

func (a Action) String() string {
	switch a {
	case Insert:
		return "insert"
	case Retract:
		return "retract"
	case Flip:
		return "flip"
	default:
		return "unknown"
	}
}

// Outcome is the row action plus the counter deltas to apply to the
// solution's upvotes and downvotes.
type Outcome struct {
	Action    Action
	UpDelta   int
	DownDelta int
}

// Decide applies the toggle rule. existing is the polarity of the current
// vote by the same contributor on the same item, or nil when there is none.
func Decide(existing *bool, helpful bool) Outcome {
	switch {
	case existing == nil:
		if helpful {
			return Outcome{Action: Insert, UpDelta: 1}
		}
		return Outcome{Action: Insert, DownDelta: 1}
	case *existing == helpful:
		if helpful {
			return Outcome{Action: Retract, UpDelta: -1}
		}
		return Outcome{Action: Retract, DownDelta: -1}
	default:
		if helpful {
			return Outcome{Action: Flip, UpDelta: 1, DownDelta: -1}
		}
		return Outcome{Action: Flip, UpDelta: -1, DownDelta: 1}
	}
}

// Applied reports whether the outcome leaves a live vote with polarity
// helpful in place.
func (o Outcome) Applied() bool {
	return o.Action != Retract
}
