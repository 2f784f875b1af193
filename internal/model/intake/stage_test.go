package intake_test

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/zhouzirui/dietbot/internal/model/intake"
)

func TestStageNextFollowsQuestionnaireOrder(t *testing.T) {
	stage := intake.StageAim
	var visited []intake.Stage
	for stage.AcceptsText() {
		visited = append(visited, stage)
		stage = stage.Next()
	}

	assert.Equal(t, intake.AnswerStages(), visited)
	assert.Equal(t, intake.StageComplete, stage)
}

func TestStageNextDoesNotAdvanceOutsideQuestionnaire(t *testing.T) {
	assert.Equal(t, intake.StageIdle, intake.StageIdle.Next())
	assert.Equal(t, intake.StageComplete, intake.StageComplete.Next())
	assert.Empty(t, intake.StageIdle.Field())
	assert.Empty(t, intake.StageComplete.Field())
}

func TestStageFields(t *testing.T) {
	fields := make([]string, 0, 5)
	for _, stage := range intake.AnswerStages() {
		fields = append(fields, stage.Field())
	}

	assert.Equal(t, []string{
		intake.FieldAim,
		intake.FieldParams,
		intake.FieldActivity,
		intake.FieldBudget,
		intake.FieldPreferences,
	}, fields)
}

func TestStageJSONRoundTrip(t *testing.T) {
	raw, err := json.Marshal(intake.StageBudget)
	require.NoError(t, err)
	assert.JSONEq(t, `"budget"`, string(raw))

	var parsed intake.Stage
	require.NoError(t, json.Unmarshal(raw, &parsed))
	assert.Equal(t, intake.StageBudget, parsed)

	assert.Error(t, json.Unmarshal([]byte(`"breakfast"`), &parsed))
}

func TestSessionRecordAccumulatesAnswers(t *testing.T) {
	session := intake.NewSession("42", time.Unix(0, 0))
	assert.False(t, session.Record("ignored"), "idle stage must not collect text")
	assert.Empty(t, session.Answers)

	session.Stage = intake.StageAim
	require.True(t, session.Record("lose weight"))
	require.True(t, session.Record("30 175 80"))

	assert.Equal(t, intake.StageActivity, session.Stage)
	assert.Equal(t, intake.Answers{"aim": "lose weight", "params": "30 175 80"}, session.Answers)
	assert.False(t, session.Completed())
}

func TestSessionCloneIsIndependent(t *testing.T) {
	session := intake.NewSession("42", time.Unix(0, 0))
	session.Stage = intake.StageAim
	session.Record("gain muscle")

	clone := session.Clone()
	clone.Answers["aim"] = "changed"

	assert.Equal(t, "gain muscle", session.Answers["aim"])
}
