package main

import (
	"bytes"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/reagent-go/reagent/internal/agentcontext"
	"github.com/reagent-go/reagent/pkg/models"
)

func TestReplayContextPrintsMessagesInOrder(t *testing.T) {
	path := filepath.Join(t.TempDir(), "context.jsonl")
	ctx, err := agentcontext.New(path)
	require.NoError(t, err)
	require.NoError(t, ctx.AppendSystem("you are the lead agent"))
	require.NoError(t, ctx.Append(models.NewMessage(models.RoleUser, models.TextPart("find the license check"))))
	require.NoError(t, ctx.Append(models.NewMessage(models.RoleAssistant, models.TextPart("looking now"))))

	var buf bytes.Buffer
	require.NoError(t, replayContext(&buf, path))

	out := buf.String()
	assert.Contains(t, out, "you are the lead agent")
	assert.Contains(t, out, "find the license check")
	assert.Contains(t, out, "looking now")
}

func TestReplayContextMissingFileIsEmptyNotError(t *testing.T) {
	var buf bytes.Buffer
	err := replayContext(&buf, filepath.Join(t.TempDir(), "missing.jsonl"))
	require.NoError(t, err)
	assert.Contains(t, buf.String(), "empty context log")
}
