package models

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"
)

var timeRx = regexp.MustCompile(`^(\d{1,2}):(\d{1,2})$`)

// Clock is a time of day with minute precision.
type Clock struct {
	Hour   int
	Minute int
}

// ParseClock accepts 24-hour "H:M" through "HH:MM", so "9:5" is 09:05.
func ParseClock(s string) (Clock, error) {
	m := timeRx.FindStringSubmatch(s)
	if m == nil {
		return Clock{}, fmt.Errorf("invalid time %q: want HH:MM", s)
	}
	h, _ := strconv.Atoi(m[1])
	min, _ := strconv.Atoi(m[2])
	if h > 23 || min > 59 {
		return Clock{}, fmt.Errorf("invalid time %q: out of range", s)
	}
	return Clock{Hour: h, Minute: min}, nil
}

// MustParseClock is ParseClock for literal times; it panics on a bad one.
func MustParseClock(s string) Clock {
	c, err := ParseClock(s)
	if err != nil {
		panic(err)
	}
	return c
}

func (c Clock) String() string {
	return fmt.Sprintf("%02d:%02d", c.Hour, c.Minute)
}

// Minutes is the number of minutes since midnight.
func (c Clock) Minutes() int {
	return c.Hour*60 + c.Minute
}

// ClockFromMinutes wraps around midnight in both directions.
func ClockFromMinutes(n int) Clock {
	n %= 24 * 60
	if n < 0 {
		n += 24 * 60
	}
	return Clock{Hour: n / 60, Minute: n % 60}
}

// ScheduleLineError reports the first line of a schedule that could not be read.
type ScheduleLineError struct {
	Number int // 1-based
	Line   string
	Err    error
}

func (e *ScheduleLineError) Error() string {
	return fmt.Sprintf("schedule line %d %q: %v", e.Number, e.Line, e.Err)
}

func (e *ScheduleLineError) Unwrap() error { return e.Err }

// ParseSchedule reads one "HH:MM description" task per line. It stops at the
// first bad line and returns no tasks in that case.
func ParseSchedule(text string) ([]Task, error) {
	lines := strings.Split(strings.TrimSpace(text), "\n")
	tasks := make([]Task, 0, len(lines))
	for i, line := range lines {
		line = strings.TrimRight(line, "\r")
		timePart, desc, ok := strings.Cut(line, " ")
		if !ok {
			return nil, &ScheduleLineError{Number: i + 1, Line: line, Err: fmt.Errorf("missing task after time")}
		}
		at, err := ParseClock(timePart)
		if err != nil {
			return nil, &ScheduleLineError{Number: i + 1, Line: line, Err: err}
		}
		tasks = append(tasks, Task{At: at, Description: desc})
	}
	return tasks, nil
}
