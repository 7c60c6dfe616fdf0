package scoreboard

import "time"

// MutationStatus tracks a delta's remote write
type MutationStatus string

const (
	MutationPending   MutationStatus = "pending"
	MutationCommitted MutationStatus = "committed"
	MutationFailed    MutationStatus = "failed"
)

// Mutation records one applied delta and whether the remote store accepted it.
// Local state is never rolled back when the remote write fails.
type Mutation struct {
	ID        string         `json:"id"`
	HourKey   string         `json:"hourKey"`
	Delta     Delta          `json:"delta"`
	Status    MutationStatus `json:"status"`
	Error     string         `json:"error,omitempty"`
	CreatedAt time.Time      `json:"createdAt"`
}

// maxMutations bounds the per-tracker mutation history
const maxMutations = 50

type mutationLog struct {
	entries []Mutation
}

func (l *mutationLog) add(m Mutation) {
	l.entries = append(l.entries, m)
	if over := len(l.entries) - maxMutations; over > 0 {
		l.entries = append([]Mutation(nil), l.entries[over:]...)
	}
}

func (l *mutationLog) resolve(id string, status MutationStatus, errMsg string) bool {
	for i := range l.entries {
		if l.entries[i].ID == id {
			l.entries[i].Status = status
			l.entries[i].Error = errMsg
			return true
		}
	}
	return false
}

func (l *mutationLog) snapshot() []Mutation {
	return append([]Mutation(nil), l.entries...)
}

func (l *mutationLog) count(status MutationStatus) int {
	n := 0
	for _, m := range l.entries {
		if m.Status == status {
			n++
		}
	}
	return n
}
