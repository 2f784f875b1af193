package locale

import (
	_ "embed"
	"fmt"
	"sort"

	"gopkg.in/yaml.v3"

	"github.com/zhouzirui/dietbot/internal/model/intake"
)

//go:embed locales.yaml
var localesYAML []byte

// DefaultID is the locale used when none is configured.
const DefaultID = "ru"

// Locale holds every user-facing string of the intake flow in one language.
type Locale struct {
	ID         string    `yaml:"-" json:"id"`
	Name       string    `yaml:"name" json:"name"`
	Welcome    string    `yaml:"welcome" json:"welcome"`
	Help       string    `yaml:"help" json:"help"`
	Buttons    Buttons   `yaml:"buttons" json:"buttons"`
	Questions  Questions `yaml:"questions" json:"questions"`
	Result     string    `yaml:"result" json:"result"`
	Disclaimer string    `yaml:"disclaimer" json:"disclaimer"`
	Failure    string    `yaml:"failure" json:"failure"`
	Prompt     Prompt    `yaml:"prompt" json:"prompt"`
}

// Buttons are the labels of the welcome menu.
type Buttons struct {
	Begin string `yaml:"begin" json:"begin"`
	Help  string `yaml:"help" json:"help"`
}

// Questions asked when the user enters each stage.
type Questions struct {
	Aim         string `yaml:"aim" json:"aim"`
	Details     string `yaml:"details" json:"details"`
	Activity    string `yaml:"activity" json:"activity"`
	Budget      string `yaml:"budget" json:"budget"`
	Preferences string `yaml:"preferences" json:"preferences"`
}

// Prompt carries the localized pieces of the compiled generation prompt.
type Prompt struct {
	Intro       string `yaml:"intro" json:"intro"`
	Goal        string `yaml:"goal" json:"goal"`
	Params      string `yaml:"params" json:"params"`
	Activity    string `yaml:"activity" json:"activity"`
	Preferences string `yaml:"preferences" json:"preferences"`
	Budget      string `yaml:"budget" json:"budget"`
	Currency    string `yaml:"currency" json:"currency"`
	Closing     string `yaml:"closing" json:"closing"`
}

// Question returns the text asked when the user enters stage.
func (l Locale) Question(stage intake.Stage) string {
	switch stage {
	case intake.StageAim:
		return l.Questions.Aim
	case intake.StageDetails:
		return l.Questions.Details
	case intake.StageActivity:
		return l.Questions.Activity
	case intake.StageBudget:
		return l.Questions.Budget
	case intake.StagePreferences:
		return l.Questions.Preferences
	default:
		return ""
	}
}

// Menu returns the begin/help buttons, one per row.
func (l Locale) Menu() []intake.Button {
	return []intake.Button{
		{Label: l.Buttons.Begin, Data: intake.SelectionBegin},
		{Label: l.Buttons.Help, Data: intake.SelectionHelp},
	}
}

// Reply wraps a generated menu with the result header and the disclaimer.
func (l Locale) Reply(menu string) string {
	return l.Result + "\n" + menu + "\n\n" + l.Disclaimer
}

// Validate reports the first missing string, if any.
func (l Locale) Validate() error {
	required := map[string]string{
		"welcome":               l.Welcome,
		"help":                  l.Help,
		"buttons.begin":         l.Buttons.Begin,
		"buttons.help":          l.Buttons.Help,
		"questions.aim":         l.Questions.Aim,
		"questions.details":     l.Questions.Details,
		"questions.activity":    l.Questions.Activity,
		"questions.budget":      l.Questions.Budget,
		"questions.preferences": l.Questions.Preferences,
		"result":                l.Result,
		"disclaimer":            l.Disclaimer,
		"failure":               l.Failure,
		"prompt.intro":          l.Prompt.Intro,
		"prompt.goal":           l.Prompt.Goal,
		"prompt.params":         l.Prompt.Params,
		"prompt.activity":       l.Prompt.Activity,
		"prompt.preferences":    l.Prompt.Preferences,
		"prompt.budget":         l.Prompt.Budget,
		"prompt.closing":        l.Prompt.Closing,
	}
	keys := make([]string, 0, len(required))
	for key := range required {
		keys = append(keys, key)
	}
	sort.Strings(keys)
	for _, key := range keys {
		if required[key] == "" {
			return fmt.Errorf("locale %q: %s is empty", l.ID, key)
		}
	}
	return nil
}

// Parse decodes a locales document keyed by locale id.
func Parse(data []byte) ([]Locale, error) {
	var raw map[string]Locale
	if err := yaml.Unmarshal(data, &raw); err != nil {
		return nil, fmt.Errorf("decode locales: %w", err)
	}

	items := make([]Locale, 0, len(raw))
	for id, item := range raw {
		item.ID = id
		if err := item.Validate(); err != nil {
			return nil, err
		}
		items = append(items, item)
	}
	sort.Slice(items, func(i, j int) bool { return items[i].ID < items[j].ID })
	return items, nil
}

// Seed returns the locales bundled with the binary.
func Seed() []Locale {
	items, err := Parse(localesYAML)
	if err != nil {
		panic(fmt.Sprintf("embedded locales are invalid: %v", err))
	}
	return items
}
