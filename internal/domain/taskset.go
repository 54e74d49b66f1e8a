package domain

import (
	"errors"
	"math/rand"
)

// ErrTaskSetCountExceedsTotal is returned when a TaskSet is built with more
// tasks than its reported total match count.
var ErrTaskSetCountExceedsTotal = errors.New("task set contains more tasks than its total count")

// TaskSetFilters records the filters that produced a TaskSet. The cache
// layer compares them against incoming requests to decide whether a cached
// set can be reused.
type TaskSetFilters struct {
	TaskTypes []string `json:"taskTypes"`
	Topics    []string `json:"topics"`
}

// Equal reports whether two filter sets are exactly the same, including
// order. Order matters: the stored set was produced for that exact request
// shape and a reordered filter is treated as a different request.
func (f TaskSetFilters) Equal(other TaskSetFilters) bool {
	if len(f.TaskTypes) != len(other.TaskTypes) || len(f.Topics) != len(other.Topics) {
		return false
	}
	for i, tt := range f.TaskTypes {
		if other.TaskTypes[i] != tt {
			return false
		}
	}
	for i, t := range f.Topics {
		if other.Topics[i] != t {
			return false
		}
	}
	return true
}

// TaskSet is a bounded, ordered collection of candidate tasks plus the
// total number of matches the backends reported. Reordering and truncation
// mutate only the in-memory sequence; TotalCount is never touched, so
// len(Tasks) <= TotalCount always holds.
type TaskSet struct {
	Tasks      []*Task        `json:"tasks"`
	TotalCount int            `json:"totalCount"`
	Offset     int            `json:"offset"`
	Filters    TaskSetFilters `json:"filters"`

	// QualityGateConfig carries per-task-type gate state computed at
	// suggestion time (e.g. daily submission counts). Not persisted
	// independently of the set.
	QualityGateConfig map[string]QualityGate `json:"qualityGateConfig,omitempty"`
}

// QualityGate is the state of one per-task-type limit at suggestion time.
type QualityGate struct {
	DailyCount     int  `json:"dailyCount"`
	MaxTasksPerDay int  `json:"maxTasksPerDay"`
	Exceeded       bool `json:"exceeded"`
}

// NewTaskSet creates a TaskSet. Returns ErrTaskSetCountExceedsTotal when
// more tasks are supplied than totalCount claims exist.
func NewTaskSet(tasks []*Task, totalCount, offset int, filters TaskSetFilters) (*TaskSet, error) {
	if len(tasks) > totalCount {
		return nil, ErrTaskSetCountExceedsTotal
	}

	return &TaskSet{
		Tasks:      tasks,
		TotalCount: totalCount,
		Offset:     offset,
		Filters:    filters,
	}, nil
}

// Count returns the number of tasks currently in the set.
func (s *TaskSet) Count() int {
	return len(s.Tasks)
}

// Shuffle randomly reorders the tasks in place using the given source.
func (s *TaskSet) Shuffle(rng *rand.Rand) {
	rng.Shuffle(len(s.Tasks), func(i, j int) {
		s.Tasks[i], s.Tasks[j] = s.Tasks[j], s.Tasks[i]
	})
}

// Truncate shortens the set to at most n tasks. TotalCount is unchanged.
func (s *TaskSet) Truncate(n int) {
	if n < 0 {
		n = 0
	}
	if n < len(s.Tasks) {
		s.Tasks = s.Tasks[:n]
	}
}
