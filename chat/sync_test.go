package chat

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/richinex/chatline/model"
)

func TestSync(t *testing.T) {
	f := newExchangeFixture(t)
	ctx := context.Background()

	// Local state: "prefix" is behind the backend, "diverged" is not.
	require.NoError(t, f.registry.Append(ctx, "prefix", model.UserMessage("q1")))
	require.NoError(t, f.registry.Append(ctx, "diverged", model.UserMessage("local only")))

	f.backend.sessions = []model.SessionInfo{
		{ID: "prefix", Name: "p"},
		{ID: "diverged", Name: "d"},
		{ID: "fresh", Name: "f"},
		{ID: "broken", Name: "b"},
	}
	f.backend.histories = map[string][]model.Message{
		"prefix":   {model.UserMessage("q1"), model.AssistantMessage("a1", "")},
		"diverged": {model.UserMessage("remote"), model.AssistantMessage("r", "")},
		"fresh":    {model.UserMessage("hi"), model.AssistantMessage("hello", "h.wav")},
	}
	f.backend.histErr = map[string]error{"broken": errors.New("HTTP 500")}

	report, err := f.ex.WithSyncWorkers(2).Sync(ctx)
	require.NoError(t, err)

	assert.Equal(t, []string{"fresh"}, report.Imported)
	assert.Equal(t, []string{"prefix"}, report.Extended)
	assert.Equal(t, []string{"diverged"}, report.Skipped)
	assert.Contains(t, report.Failed, "broken")

	assert.Len(t, f.registry.Get("prefix"), 2)
	assert.Equal(t, "local only", f.registry.Get("diverged")[0].Content)
	assert.Equal(t, "h.wav", f.registry.Get("fresh")[1].AudioPath)
	assert.False(t, f.registry.Exists("broken"))
}

func TestIsStrictPrefix(t *testing.T) {
	a := model.UserMessage("a")
	b := model.AssistantMessage("b", "")

	assert.True(t, isStrictPrefix(nil, []model.Message{a}))
	assert.True(t, isStrictPrefix([]model.Message{a}, []model.Message{a, b}))
	assert.False(t, isStrictPrefix([]model.Message{a, b}, []model.Message{a, b}))
	assert.False(t, isStrictPrefix([]model.Message{b}, []model.Message{a, b}))
}
