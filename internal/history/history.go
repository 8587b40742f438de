// Package history keeps the append-only log of completed sessions and
// derives the progress analytics shown on the dashboard.
package history

import (
	"math"
	"sync"

	"github.com/mrab/sscprep/internal/model"
)

// masteredThreshold is the accuracy at which a session counts as a
// mastered topic. Sessions are counted, not distinct chapters, so a
// chapter practiced twice above threshold counts twice.
const masteredThreshold = 80

// TrendPoint is one point of the recent-performance trend.
type TrendPoint struct {
	Label    string `json:"label"`
	Accuracy int    `json:"accuracy"`
}

// GoalProgress compares derived stats against the student's goals.
type GoalProgress struct {
	Accuracy       int `json:"accuracy"`
	TargetAccuracy int `json:"targetAccuracy"`
	TopicsMastered int `json:"topicsMastered"`
	TopicsGoal     int `json:"topicsGoal"`
	StudyHours     int `json:"studyHours"`
	StudyHoursGoal int `json:"studyHoursGoal"`
}

// Store is the ordered, append-only session log. Entries are persisted
// write-through on every append.
type Store struct {
	mu      sync.Mutex
	entries []model.SessionHistory
	persist func([]model.SessionHistory) error
}

// New creates a store seeded with previously persisted entries.
// persist is called with the full log after every append; it may be
// nil for a purely in-memory store.
func New(entries []model.SessionHistory, persist func([]model.SessionHistory) error) *Store {
	return &Store{entries: entries, persist: persist}
}

// Append adds a completed session record to the end of the log and
// persists the whole log. Insertion order is chronological order.
func (s *Store) Append(e model.SessionHistory) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.entries = append(s.entries, e)
	if s.persist != nil {
		return s.persist(s.entries)
	}
	return nil
}

// Len returns the number of recorded sessions.
func (s *Store) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.entries)
}

// Entries returns a copy of the log in chronological order.
func (s *Store) Entries() []model.SessionHistory {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]model.SessionHistory, len(s.entries))
	copy(out, s.entries)
	return out
}

// MeanAccuracy is the rounded arithmetic mean of per-session accuracy,
// 0 when the log is empty.
func (s *Store) MeanAccuracy() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	if len(s.entries) == 0 {
		return 0
	}
	var sum int
	for _, e := range s.entries {
		sum += e.Accuracy
	}
	return int(math.Round(float64(sum) / float64(len(s.entries))))
}

// MasteredTopicCount counts sessions at or above the mastery threshold.
func (s *Store) MasteredTopicCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	count := 0
	for _, e := range s.entries {
		if e.Accuracy >= masteredThreshold {
			count++
		}
	}
	return count
}

// CumulativeStudyHours is total session duration rounded to hours.
func (s *Store) CumulativeStudyHours() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	var minutes int
	for _, e := range s.entries {
		minutes += e.DurationMinutes
	}
	return int(math.Round(float64(minutes) / 60))
}

// RecentTrend returns the last n entries in chronological order as
// trend points. An empty log yields a single zero placeholder so the
// chart always has something to draw.
func (s *Store) RecentTrend(n int) []TrendPoint {
	s.mu.Lock()
	defer s.mu.Unlock()
	if len(s.entries) == 0 {
		return []TrendPoint{{Label: "N/A", Accuracy: 0}}
	}
	start := len(s.entries) - n
	if start < 0 {
		start = 0
	}
	points := make([]TrendPoint, 0, len(s.entries)-start)
	for _, e := range s.entries[start:] {
		points = append(points, TrendPoint{
			Label:    e.Timestamp.Format("Mon"),
			Accuracy: e.Accuracy,
		})
	}
	return points
}

// Recent returns up to n entries, newest first.
func (s *Store) Recent(n int) []model.SessionHistory {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]model.SessionHistory, 0, n)
	for i := len(s.entries) - 1; i >= 0 && len(out) < n; i-- {
		out = append(out, s.entries[i])
	}
	return out
}

// GoalProgress compares current stats against the given goals. Pure
// read; no mutation.
func (s *Store) GoalProgress(goals model.UserGoals) GoalProgress {
	return GoalProgress{
		Accuracy:       s.MeanAccuracy(),
		TargetAccuracy: goals.TargetAccuracy,
		TopicsMastered: s.MasteredTopicCount(),
		TopicsGoal:     goals.TopicsMastered,
		StudyHours:     s.CumulativeStudyHours(),
		StudyHoursGoal: goals.StudyHours,
	}
}
