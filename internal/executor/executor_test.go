package executor_test

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"testing"
	"time"

	einomodel "github.com/cloudwego/eino/components/model"
	"github.com/cloudwego/eino/schema"
	"github.com/sergi/go-diff/diffmatchpatch"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/myselfgus/vibe/internal/executor"
	"github.com/myselfgus/vibe/internal/llm/client"
	"github.com/myselfgus/vibe/internal/llm/gateway"
	"github.com/myselfgus/vibe/internal/models"
	"github.com/myselfgus/vibe/internal/tests/mocks"
)

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

// stubGateway returns a gateway whose model always answers with content and
// records the model keys it was asked for.
func stubGateway(content string, calledKeys *[]string) *gateway.Gateway {
	resolver := &mocks.ModelResolverMock{
		GetModelFunc: func(modelKey string) (*models.LLMModel, error) {
			if calledKeys != nil {
				*calledKeys = append(*calledKeys, modelKey)
			}
			return &models.LLMModel{Key: modelKey, APIName: modelKey, ProviderID: "anthropic"}, nil
		},
	}
	gw := gateway.New(&mocks.CredentialResolverMock{}, resolver, gateway.RetryPolicy{
		MaxAttempts: 1,
		BaseDelay:   time.Millisecond,
		MaxDelay:    time.Millisecond,
	}, 0)
	gw.SetModelFactory(func(ctx context.Context, providerID, apiKey string, opts client.Options) (einomodel.BaseChatModel, error) {
		return &mocks.ChatModelMock{
			GenerateFunc: func(ctx context.Context, input []*schema.Message, opts ...einomodel.Option) (*schema.Message, error) {
				return schema.AssistantMessage(content, nil), nil
			},
		}, nil
	})
	return gw
}

func twoPhaseState() *models.SessionState {
	return &models.SessionState{
		ID:    "s1",
		Query: "build a landing page",
		Phases: []models.Phase{
			{ID: "phase-1", Name: "Scaffold", Status: models.PhaseCompleted, ProducedFiles: []string{"index.html"}},
			{ID: "phase-2", Name: "Styling", Status: models.PhasePending, DependsOn: []string{"phase-1"}, ProducedFiles: []string{"style.css"}},
		},
		Files: map[string]models.FileEntry{
			"index.html": {Content: "<html></html>", Revision: 1},
		},
	}
}

func TestExecutePhaseProducesFiles(t *testing.T) {
	output := "```css file=style.css\nbody { margin: 0; }\n```\n"
	var keys []string
	exec := executor.New(stubGateway(output, &keys), "big-model", "small-model")

	res, err := exec.ExecutePhase(context.Background(), discardLogger(), twoPhaseState(), 1)
	require.NoError(t, err)
	require.Contains(t, res.Updated, "style.css")
	assert.Equal(t, "body { margin: 0; }", res.Updated["style.css"].Content)
	assert.Equal(t, 1, res.Updated["style.css"].Revision)
	assert.NotEmpty(t, res.Prompt)
	assert.Equal(t, output, res.Response)
	// Later phases use the regular phase model.
	require.NotEmpty(t, keys)
	assert.Equal(t, "small-model", keys[0])
}

func TestExecuteFirstPhaseUsesFirstPhaseModel(t *testing.T) {
	output := "```html file=index.html\n<html>new</html>\n```\n"
	var keys []string
	exec := executor.New(stubGateway(output, &keys), "big-model", "small-model")

	state := twoPhaseState()
	state.Phases[0].Status = models.PhasePending

	res, err := exec.ExecutePhase(context.Background(), discardLogger(), state, 0)
	require.NoError(t, err)
	require.NotEmpty(t, keys)
	assert.Equal(t, "big-model", keys[0])
	// index.html already existed at revision 1; replacement bumps it.
	assert.Equal(t, 2, res.Updated["index.html"].Revision)
}

func TestExecutePhaseDependencyNotMet(t *testing.T) {
	exec := executor.New(stubGateway("irrelevant", nil), "big", "small")
	state := twoPhaseState()
	state.Phases[0].Status = models.PhasePending

	_, err := exec.ExecutePhase(context.Background(), discardLogger(), state, 1)
	require.Error(t, err)
	var phaseErr *executor.PhaseGenerationError
	require.ErrorAs(t, err, &phaseErr)
	assert.Equal(t, "phase-2", phaseErr.PhaseID)
	assert.False(t, phaseErr.Recoverable)
}

func TestExecutePhaseIndexOutOfRange(t *testing.T) {
	exec := executor.New(stubGateway("irrelevant", nil), "big", "small")
	_, err := exec.ExecutePhase(context.Background(), discardLogger(), twoPhaseState(), 7)
	require.Error(t, err)
}

func TestExecutePhaseNoFileBlocksFails(t *testing.T) {
	exec := executor.New(stubGateway("Sorry, here is some prose with no files.", nil), "big", "small")
	_, err := exec.ExecutePhase(context.Background(), discardLogger(), twoPhaseState(), 1)
	require.Error(t, err)
	var phaseErr *executor.PhaseGenerationError
	require.ErrorAs(t, err, &phaseErr)
	assert.Contains(t, phaseErr.Error(), "no file blocks")
}

func TestExecutePhaseAppliesPatchBlocks(t *testing.T) {
	original := "<html></html>"
	modified := "<html><body></body></html>"
	dmp := diffmatchpatch.New()
	patchText := dmp.PatchToText(dmp.PatchMake(original, modified))

	output := "```patch file=index.html\n" + patchText + "```\n"
	exec := executor.New(stubGateway(output, nil), "big", "small")

	state := twoPhaseState()
	state.Phases[0].Status = models.PhasePending

	res, err := exec.ExecutePhase(context.Background(), discardLogger(), state, 0)
	require.NoError(t, err)
	assert.Equal(t, modified, res.Updated["index.html"].Content)
	assert.Equal(t, 2, res.Updated["index.html"].Revision)
}

func TestExecutePhasePatchOnUnknownFileFails(t *testing.T) {
	output := "```patch file=missing.txt\n@@ -1 +1 @@\n```\n"
	exec := executor.New(stubGateway(output, nil), "big", "small")

	state := twoPhaseState()
	state.Phases[0].Status = models.PhasePending
	state.Phases[0].ProducedFiles = []string{"missing.txt"}

	_, err := exec.ExecutePhase(context.Background(), discardLogger(), state, 0)
	require.Error(t, err)
	assert.ErrorContains(t, err, "unknown file")
}

func TestExecutePhasePropagatesCancellation(t *testing.T) {
	gw := gateway.New(&mocks.CredentialResolverMock{}, &mocks.ModelResolverMock{}, gateway.RetryPolicy{
		MaxAttempts: 3,
		BaseDelay:   time.Millisecond,
		MaxDelay:    time.Millisecond,
	}, 0)
	gw.SetModelFactory(func(ctx context.Context, providerID, apiKey string, opts client.Options) (einomodel.BaseChatModel, error) {
		return &mocks.ChatModelMock{
			GenerateFunc: func(ctx context.Context, input []*schema.Message, opts ...einomodel.Option) (*schema.Message, error) {
				return nil, context.Canceled
			},
		}, nil
	})
	exec := executor.New(gw, "big", "small")

	_, err := exec.ExecutePhase(context.Background(), discardLogger(), twoPhaseState(), 1)
	require.Error(t, err)
	assert.True(t, gateway.IsCancellation(err), "cancellation must not be wrapped as a phase error")
	var phaseErr *executor.PhaseGenerationError
	assert.False(t, errors.As(err, &phaseErr))
}
