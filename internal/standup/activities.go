package standup

import "context"

// ActivitySource fetches the raw facts a draft is grounded on: merged work,
// planned items, reported blockers. Implementations talk to issue trackers
// or source forges; the conversation only needs the normalized result.
type ActivitySource interface {
	Fetch(ctx context.Context, user UserInfo) (Activities, error)
}

// StaticSource returns a fixed set of activities. Used in tests and as the
// default when no tracker integration is configured; the user then supplies
// everything conversationally.
type StaticSource struct {
	Activities Activities
}

// Fetch implements ActivitySource.
func (s StaticSource) Fetch(_ context.Context, _ UserInfo) (Activities, error) {
	return s.Activities, nil
}

// normalizeActivities guarantees non-nil slices so downstream JSON always
// has the three keys present.
func normalizeActivities(a Activities) Activities {
	if a.Accomplishments == nil {
		a.Accomplishments = []string{}
	}
	if a.Plans == nil {
		a.Plans = []string{}
	}
	if a.Blockers == nil {
		a.Blockers = []string{}
	}
	return a
}
