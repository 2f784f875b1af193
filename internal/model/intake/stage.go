package intake

import (
	"encoding/json"
	"fmt"
)

// Stage is a step of the questionnaire. The zero value is StageIdle.
type Stage int

const (
	StageIdle Stage = iota
	StageAim
	StageDetails
	StageActivity
	StageBudget
	StagePreferences
	StageComplete
)

// Answer field names, in the order they are collected.
const (
	FieldAim         = "aim"
	FieldParams      = "params"
	FieldActivity    = "activity"
	FieldBudget      = "budget"
	FieldPreferences = "preferences"
)

// answerStages lists the stages that collect an answer, in order.
var answerStages = []Stage{StageAim, StageDetails, StageActivity, StageBudget, StagePreferences}

// transitions is the forward-only table of the questionnaire. Stages that are
// absent (idle, complete) do not advance on text input.
var transitions = map[Stage]Stage{
	StageAim:         StageDetails,
	StageDetails:     StageActivity,
	StageActivity:    StageBudget,
	StageBudget:      StagePreferences,
	StagePreferences: StageComplete,
}

var stageFields = map[Stage]string{
	StageAim:         FieldAim,
	StageDetails:     FieldParams,
	StageActivity:    FieldActivity,
	StageBudget:      FieldBudget,
	StagePreferences: FieldPreferences,
}

var stageNames = map[Stage]string{
	StageIdle:        "idle",
	StageAim:         "aim",
	StageDetails:     "details",
	StageActivity:    "activity",
	StageBudget:      "budget",
	StagePreferences: "preferences",
	StageComplete:    "complete",
}

// Next returns the stage that follows s, or s itself when s does not advance.
func (s Stage) Next() Stage {
	if next, ok := transitions[s]; ok {
		return next
	}
	return s
}

// Field names the answer collected while the user is at s. Empty for stages
// that accept no text.
func (s Stage) Field() string {
	return stageFields[s]
}

// AcceptsText reports whether free text advances the conversation at s.
func (s Stage) AcceptsText() bool {
	_, ok := transitions[s]
	return ok
}

func (s Stage) String() string {
	if name, ok := stageNames[s]; ok {
		return name
	}
	return fmt.Sprintf("stage(%d)", int(s))
}

// ParseStage converts a stage name back to its value.
func ParseStage(name string) (Stage, error) {
	for stage, n := range stageNames {
		if n == name {
			return stage, nil
		}
	}
	return StageIdle, fmt.Errorf("unknown stage %q", name)
}

// AnswerStages returns the answer-collecting stages in questionnaire order.
func AnswerStages() []Stage {
	return append([]Stage(nil), answerStages...)
}

func (s Stage) MarshalJSON() ([]byte, error) {
	return json.Marshal(s.String())
}

func (s *Stage) UnmarshalJSON(data []byte) error {
	var name string
	if err := json.Unmarshal(data, &name); err != nil {
		return err
	}
	parsed, err := ParseStage(name)
	if err != nil {
		return err
	}
	*s = parsed
	return nil
}
