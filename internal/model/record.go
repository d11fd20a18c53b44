package model

import "time"

// RecordKind はレコードの種別を表す。
type RecordKind string

const (
	KindTask  RecordKind = "task"
	KindHabit RecordKind = "habit"
	KindNote  RecordKind = "note"
	KindEvent RecordKind = "event"
)

// Priority はタスクの優先度を表す。
type Priority string

const (
	PriorityLow    Priority = "Low"
	PriorityMedium Priority = "Medium"
	PriorityHigh   Priority = "High"
)

// Valid は定義済みの優先度かを返す。
func (p Priority) Valid() bool {
	switch p {
	case PriorityLow, PriorityMedium, PriorityHigh:
		return true
	}
	return false
}

// Frequency は習慣の実行頻度を表す。
type Frequency string

const (
	FrequencyDaily   Frequency = "Daily"
	FrequencyWeekly  Frequency = "Weekly"
	FrequencyMonthly Frequency = "Monthly"
)

// Valid は定義済みの頻度かを返す。
func (f Frequency) Valid() bool {
	switch f {
	case FrequencyDaily, FrequencyWeekly, FrequencyMonthly:
		return true
	}
	return false
}

// Task はToDoタスクを表す。
// OwnerIDは作成時に確定し、以後変更されない。
// GroupIDsは共有先グループ（所有者以外への可視範囲）を表す。
type Task struct {
	ID        string
	OwnerID   string
	Title     string
	Completed bool
	DueDate   *time.Time
	Priority  Priority
	Recurring bool
	Tags      string
	Notes     string
	GroupIDs  []string
	CreatedAt time.Time
	UpdatedAt time.Time
}

// Habit は継続的に実行する習慣を表す。
type Habit struct {
	ID        string
	OwnerID   string
	Name      string
	Frequency Frequency
	LastDone  *time.Time
	Streak    int
	Notes     string
	GroupIDs  []string
	CreatedAt time.Time
	UpdatedAt time.Time
}

// Note はメモを表す。
type Note struct {
	ID        string
	OwnerID   string
	Title     string
	Content   string
	Tags      string
	GroupIDs  []string
	CreatedAt time.Time
	UpdatedAt time.Time
}

// Event は予定を表す。Reminderはリマインダー送信予定時刻。
type Event struct {
	ID          string
	OwnerID     string
	Title       string
	EventDate   time.Time
	Location    string
	Description string
	Reminder    *time.Time
	Tags        string
	GroupIDs    []string
	CreatedAt   time.Time
	UpdatedAt   time.Time
}
