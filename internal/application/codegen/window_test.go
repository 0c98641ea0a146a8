package codegen

import (
	"testing"

	"github.com/cloudwego/eino/schema"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestWindowMessagesOrder(t *testing.T) {
	w := NewWindow(20, "system prompt")
	w.Commit("第一轮需求", "第一轮回复")

	msgs := w.Messages("第二轮需求")
	require.Len(t, msgs, 4)
	assert.Equal(t, schema.System, msgs[0].Role)
	assert.Equal(t, "system prompt", msgs[0].Content)
	assert.Equal(t, schema.User, msgs[1].Role)
	assert.Equal(t, "第一轮需求", msgs[1].Content)
	assert.Equal(t, schema.Assistant, msgs[2].Role)
	assert.Equal(t, schema.User, msgs[3].Role)
	assert.Equal(t, "第二轮需求", msgs[3].Content)
}

func TestWindowTrimsOldest(t *testing.T) {
	w := NewWindow(4, "sys")
	for i := 0; i < 4; i++ {
		w.Commit("u", "a")
	}

	assert.Equal(t, 4, w.Len())
	msgs := w.Messages("next")
	// 系统消息 + 窗口 4 条 + 本轮用户消息
	require.Len(t, msgs, 6)
	assert.Equal(t, schema.System, msgs[0].Role)
}

func TestWindowWithoutSystemPrompt(t *testing.T) {
	w := NewWindow(20, "")
	msgs := w.Messages("hello")
	require.Len(t, msgs, 1)
	assert.Equal(t, schema.User, msgs[0].Role)
}
