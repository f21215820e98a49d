// Package tutor implements the Socratic tutoring conversation: the per-user
// session model, its state machine, persistence, and the handlers that turn
// user input into replies.
package tutor

import (
	"time"

	"github.com/grovetools/socratic/pkg/completion"
)

const (
	DifficultyEasy   = "easy"
	DifficultyMedium = "medium"
	DifficultyHard   = "hard"

	// DefaultHistoryLimit bounds Stats.History.
	DefaultHistoryLimit = 20

	previewRunes = 30
)

// Session is the tutoring state of a single user.
type Session struct {
	UserID        int64             `json:"user_id"`
	State         State             `json:"state"`
	CurrentTask   string            `json:"current_task,omitempty"`
	Conversation  []completion.Turn `json:"conversation,omitempty"`
	Stats         Stats             `json:"stats"`
	Difficulty    string            `json:"difficulty"`
	ExamMode      bool              `json:"exam_mode"`
	MemesEnabled  bool              `json:"memes_enabled"`
	TaskStartedAt *time.Time        `json:"task_started_at,omitempty"`
	// PendingTask holds a photo transcription awaiting confirmation.
	PendingTask *string   `json:"pending_task,omitempty"`
	UpdatedAt   time.Time `json:"updated_at"`
}

// Stats are the lifetime counters of a user.
type Stats struct {
	TotalTasks     int            `json:"total_tasks"`
	CompletedTasks int            `json:"completed_tasks"`
	AverageScore   float64        `json:"average_score"`
	TotalHints     int            `json:"total_hints"`
	TotalMemes     int            `json:"total_memes"`
	History        []HistoryEntry `json:"history,omitempty"`
}

// HistoryEntry summarises one completed task.
type HistoryEntry struct {
	Date    string `json:"date"`
	Score   int    `json:"score"`
	Minutes int    `json:"minutes"`
	Preview string `json:"preview"`
}

// NewSession returns the initial session of a user.
func NewSession(userID int64) *Session {
	return &Session{
		UserID:       userID,
		State:        StateWaitingTask,
		Difficulty:   DifficultyMedium,
		MemesEnabled: true,
	}
}

// Clone returns a deep copy.
func (s *Session) Clone() *Session {
	c := *s
	if s.Conversation != nil {
		c.Conversation = append([]completion.Turn(nil), s.Conversation...)
	}
	if s.Stats.History != nil {
		c.Stats.History = append([]HistoryEntry(nil), s.Stats.History...)
	}
	if s.TaskStartedAt != nil {
		t := *s.TaskStartedAt
		c.TaskStartedAt = &t
	}
	if s.PendingTask != nil {
		p := *s.PendingTask
		c.PendingTask = &p
	}
	return &c
}

// BeginTask starts a new task and seeds the framing turn.
func (s *Session) BeginTask(task string, now time.Time) {
	s.CurrentTask = task
	s.Conversation = []completion.Turn{{Role: completion.RoleUser, Content: taskFramingTurn(task)}}
	s.TaskStartedAt = &now
	s.Stats.TotalTasks++
}

// ClearTask forgets the current task, its conversation and start time.
func (s *Session) ClearTask() {
	s.CurrentTask = ""
	s.Conversation = nil
	s.TaskStartedAt = nil
}

// AddTurn appends a turn to the conversation.
func (s *Session) AddTurn(role completion.Role, content string) {
	s.Conversation = append(s.Conversation, completion.Turn{Role: role, Content: content})
}

// TakePendingTask returns and clears the pending photo task.
func (s *Session) TakePendingTask() (string, bool) {
	if s.PendingTask == nil {
		return "", false
	}
	task := *s.PendingTask
	s.PendingTask = nil
	return task, true
}

// ElapsedMinutes returns whole minutes since the task started.
func (s *Session) ElapsedMinutes(now time.Time) int {
	if s.TaskStartedAt == nil {
		return 0
	}
	d := now.Sub(*s.TaskStartedAt)
	if d < 0 {
		return 0
	}
	return int(d / time.Minute)
}

// RecordResult folds a graded attempt into the statistics and returns the
// history entry it appended. History keeps at most limit entries.
func (s *Session) RecordResult(score, minutes int, now time.Time, limit int) HistoryEntry {
	if limit <= 0 {
		limit = DefaultHistoryLimit
	}

	s.Stats.CompletedTasks++
	s.Stats.AverageScore = RunningAverage(s.Stats.AverageScore, s.Stats.CompletedTasks, score)

	entry := HistoryEntry{
		Date:    now.Format("02.01"),
		Score:   score,
		Minutes: minutes,
		Preview: Preview(s.CurrentTask),
	}
	s.Stats.History = append(s.Stats.History, entry)
	if over := len(s.Stats.History) - limit; over > 0 {
		s.Stats.History = append([]HistoryEntry(nil), s.Stats.History[over:]...)
	}
	return entry
}

// RunningAverage folds score into old, where n is the count including score.
func RunningAverage(old float64, n, score int) float64 {
	if n <= 1 {
		return float64(score)
	}
	return (old*float64(n-1) + float64(score)) / float64(n)
}

// Preview shortens a task to its first 30 runes followed by "...".
func Preview(task string) string {
	r := []rune(task)
	if len(r) <= previewRunes {
		return task
	}
	return string(r[:previewRunes]) + "..."
}
