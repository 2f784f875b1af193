// Package prompt turns a completed questionnaire into the generation request.
package prompt

import (
	"errors"
	"fmt"
	"strings"

	"github.com/lithammer/dedent"

	"github.com/zhouzirui/dietbot/internal/model/intake"
	"github.com/zhouzirui/dietbot/internal/model/locale"
)

// SystemPrompt establishes the assistant persona for every request.
const SystemPrompt = "You are a helpful diet assistant."

// ErrIncomplete is returned when an answer needed by the prompt is missing.
var ErrIncomplete = errors.New("questionnaire is incomplete")

// layout fixes the field order: goal, body metrics, activity, preferences,
// budget, then the closing instruction.
var layout = dedent.Dedent(`
	%s
	%s: %s.
	%s: %s.
	%s: %s.
	%s: %s.
	%s: %s.

	%s`)

// Compile renders the prompt for a completed set of answers. The result
// depends only on its inputs.
func Compile(tmpl locale.Prompt, answers intake.Answers) (string, error) {
	for _, stage := range intake.AnswerStages() {
		if _, ok := answers[stage.Field()]; !ok {
			return "", fmt.Errorf("%w: missing %s", ErrIncomplete, stage.Field())
		}
	}

	budget := answers[intake.FieldBudget]
	if tmpl.Currency != "" {
		budget += " " + tmpl.Currency
	}

	out := fmt.Sprintf(strings.TrimPrefix(layout, "\n"),
		tmpl.Intro,
		tmpl.Goal, answers[intake.FieldAim],
		tmpl.Params, answers[intake.FieldParams],
		tmpl.Activity, answers[intake.FieldActivity],
		tmpl.Preferences, answers[intake.FieldPreferences],
		tmpl.Budget, budget,
		tmpl.Closing,
	)
	return out, nil
}

// CompileSession is Compile for a stored session.
func CompileSession(tmpl locale.Prompt, s intake.Session) (string, error) {
	return Compile(tmpl, s.Answers)
}
