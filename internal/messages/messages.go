package messages

import (
	"fmt"
	"os"
	"strings"

	"gopkg.in/yaml.v3"
)

// placeholder in templates that gets the generated or user text
const placeholder = "{text}"

// Texts holds every user-facing string and every prompt sent to the model.
type Texts struct {
	Greeting          string `yaml:"greeting"`
	PlanAccepted      string `yaml:"plan_accepted"`
	ScheduleAccepted  string `yaml:"schedule_accepted"`
	ScheduleLineError string `yaml:"schedule_line_error"`
	ReflectionReply   string `yaml:"reflection_reply"`
	Morning           string `yaml:"morning"`
	Evening           string `yaml:"evening"`
	Reminder          string `yaml:"reminder"`
	Fallback          string `yaml:"fallback"`

	Prompts Prompts `yaml:"prompts"`
}

type Prompts struct {
	Plan       string `yaml:"plan"`
	Reflection string `yaml:"reflection"`
	Chat       string `yaml:"chat"`
	Morning    string `yaml:"morning"`
}

func Default() Texts {
	return Texts{
		Greeting: "Привет! Я ИИ-дневник 🤖. Утром я спрошу твой план, помогу его улучшить, " +
			"запишу шаги и буду напоминать о них. Также можешь просто пообщаться со мной.",
		PlanAccepted: "✅ План записан и дополнен ИИ:\n\n{text}\n\n" +
			"Теперь напиши каждое задание с указанием времени. Например:\n\n8:00 Математика\n9:30 Прогулка\n...",
		ScheduleAccepted:  "✅ Задания с временем записаны. Буду напоминать за 10 минут до начала!",
		ScheduleLineError: "⚠️ Неверный формат строки: '{text}'. Используй формат 'HH:MM Задание'",
		ReflectionReply:   "💬 {text}",
		Morning:           "☀️ Доброе утро!\n\n{text}\n\nЧто ты хочешь сделать сегодня?",
		Evening:           "🌙 Как прошёл твой день?",
		Reminder:          "⏰ Через 10 минут: {text}",
		Fallback:          "Сейчас не могу ответить.",
		Prompts: Prompts{
			Plan:       "Вот план школьника: {text}\nДай советы и добавь недостающие пункты.",
			Reflection: "Вот дневниковая запись школьника: '{text}'. Ответь поддержкой или советом.",
			Chat:       "Пользователь пишет: {text}",
			Morning:    "Напиши короткое утреннее вдохновляющее сообщение для школьника.",
		},
	}
}

// Load reads overrides from a YAML file. An empty path yields the defaults;
// fields missing from the file keep their default value.
func Load(path string) (Texts, error) {
	t := Default()
	if path == "" {
		return t, nil
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return Texts{}, fmt.Errorf("read texts %s: %w", path, err)
	}
	var override Texts
	if err := yaml.Unmarshal(data, &override); err != nil {
		return Texts{}, fmt.Errorf("parse texts %s: %w", path, err)
	}
	t.merge(override)
	return t, nil
}

func (t *Texts) merge(o Texts) {
	set := func(dst *string, v string) {
		if v != "" {
			*dst = v
		}
	}
	set(&t.Greeting, o.Greeting)
	set(&t.PlanAccepted, o.PlanAccepted)
	set(&t.ScheduleAccepted, o.ScheduleAccepted)
	set(&t.ScheduleLineError, o.ScheduleLineError)
	set(&t.ReflectionReply, o.ReflectionReply)
	set(&t.Morning, o.Morning)
	set(&t.Evening, o.Evening)
	set(&t.Reminder, o.Reminder)
	set(&t.Fallback, o.Fallback)
	set(&t.Prompts.Plan, o.Prompts.Plan)
	set(&t.Prompts.Reflection, o.Prompts.Reflection)
	set(&t.Prompts.Chat, o.Prompts.Chat)
	set(&t.Prompts.Morning, o.Prompts.Morning)
}

// Render puts text into the template's {text} slot.
func Render(tpl, text string) string {
	return strings.ReplaceAll(tpl, placeholder, text)
}
