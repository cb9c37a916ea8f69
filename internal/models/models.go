package models

import (
	"encoding/json"
	"fmt"
)

// DiaryKind tells what a diary entry was written in response to.
type DiaryKind string

const (
	DiaryPlan       DiaryKind = "plan"
	DiaryReflection DiaryKind = "reflection"
)

// ChatRecord is everything the bot remembers about one chat.
type ChatRecord struct {
	Diary []DiaryEntry `json:"diary"`
	Mode  Mode         `json:"mode"`
	Tasks []Task       `json:"tasks"`
}

// DiaryEntry is one plan or reflection the user sent. The diary is append-only.
type DiaryEntry struct {
	Kind DiaryKind `json:"type"`
	Text string    `json:"text"`
}

// Task is one line of a submitted day schedule.
type Task struct {
	At          Clock
	Description string
}

// NewChatRecord returns the record a chat gets on first contact.
func NewChatRecord() *ChatRecord {
	return &ChatRecord{
		Diary: []DiaryEntry{},
		Mode:  ModeNone,
		Tasks: []Task{},
	}
}

// AppendDiary adds an entry to the end of the diary.
func (r *ChatRecord) AppendDiary(kind DiaryKind, text string) {
	r.Diary = append(r.Diary, DiaryEntry{Kind: kind, Text: text})
}

// Apply moves the record to the mode the event leads to.
func (r *ChatRecord) Apply(ev Event) error {
	next, err := Transition(r.Mode, ev)
	if err != nil {
		return err
	}
	r.Mode = next
	return nil
}

// MarshalJSON stores a task as a ["HH:MM", "description"] pair.
func (t Task) MarshalJSON() ([]byte, error) {
	return json.Marshal([2]string{t.At.String(), t.Description})
}

func (t *Task) UnmarshalJSON(b []byte) error {
	var pair []string
	if err := json.Unmarshal(b, &pair); err != nil {
		return fmt.Errorf("task: %w", err)
	}
	if len(pair) != 2 {
		return fmt.Errorf("task: want [time, description], got %d elements", len(pair))
	}
	at, err := ParseClock(pair[0])
	if err != nil {
		return fmt.Errorf("task: %w", err)
	}
	t.At = at
	t.Description = pair[1]
	return nil
}
