package models

import (
	"encoding/json"
	"errors"
	"fmt"
)

// Mode decides how the next text from a chat is read.
type Mode string

const (
	ModeNone     Mode = ""
	ModePlan     Mode = "plan"
	ModeSchedule Mode = "schedule"
	ModeReflect  Mode = "reflect"
)

// Event is something that moves a chat from one mode to another.
type Event int

const (
	EventMorningPrompt Event = iota
	EventEveningPrompt
	EventPlanSubmitted
	EventScheduleAccepted
	EventScheduleRejected
	EventReflectionSubmitted
	EventFreeText
)

var ErrInvalidTransition = errors.New("invalid mode transition")

var eventNames = map[Event]string{
	EventMorningPrompt:       "morning_prompt",
	EventEveningPrompt:       "evening_prompt",
	EventPlanSubmitted:       "plan_submitted",
	EventScheduleAccepted:    "schedule_accepted",
	EventScheduleRejected:    "schedule_rejected",
	EventReflectionSubmitted: "reflection_submitted",
	EventFreeText:            "free_text",
}

func (e Event) String() string {
	if name, ok := eventNames[e]; ok {
		return name
	}
	return fmt.Sprintf("event(%d)", int(e))
}

// Transition returns the mode a chat in mode m ends up in after ev.
// The daily prompts apply from any mode; everything else only from the
// mode that expects it.
func Transition(m Mode, ev Event) (Mode, error) {
	switch ev {
	case EventMorningPrompt:
		return ModePlan, nil
	case EventEveningPrompt:
		return ModeReflect, nil
	case EventPlanSubmitted:
		if m == ModePlan {
			return ModeSchedule, nil
		}
	case EventScheduleAccepted:
		if m == ModeSchedule {
			return ModeNone, nil
		}
	case EventScheduleRejected:
		if m == ModeSchedule {
			return ModeSchedule, nil
		}
	case EventReflectionSubmitted:
		if m == ModeReflect {
			return ModeNone, nil
		}
	case EventFreeText:
		if m == ModeNone {
			return ModeNone, nil
		}
	}
	return m, fmt.Errorf("%w: %s in mode %s", ErrInvalidTransition, ev, m)
}

func ParseMode(s string) (Mode, error) {
	switch m := Mode(s); m {
	case ModeNone, ModePlan, ModeSchedule, ModeReflect:
		return m, nil
	}
	return ModeNone, fmt.Errorf("unknown mode %q", s)
}

func (m Mode) String() string {
	if m == ModeNone {
		return "none"
	}
	return string(m)
}

// MarshalJSON writes null for ModeNone.
func (m Mode) MarshalJSON() ([]byte, error) {
	if m == ModeNone {
		return []byte("null"), nil
	}
	return json.Marshal(string(m))
}

func (m *Mode) UnmarshalJSON(b []byte) error {
	if string(b) == "null" {
		*m = ModeNone
		return nil
	}
	var s string
	if err := json.Unmarshal(b, &s); err != nil {
		return fmt.Errorf("mode: %w", err)
	}
	parsed, err := ParseMode(s)
	if err != nil {
		return err
	}
	*m = parsed
	return nil
}
