package codegen

import (
	"context"
	"errors"
	"testing"

	"github.com/cloudwego/eino/schema"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"ai-codegen-api/internal/domain/entity"
)

func seedHistory(t *testing.T, repo *fakeHistoryRepo, appID int64, turns ...*entity.ChatHistory) {
	t.Helper()
	for _, turn := range turns {
		turn.AppID = appID
		require.NoError(t, repo.Create(context.Background(), turn))
	}
}

func TestRehydrateWindowSkipsNewestAndRestoresOrder(t *testing.T) {
	repo := &fakeHistoryRepo{}
	seedHistory(t, repo, 1,
		entity.NewChatHistory(1, 1, entity.MessageTypeUser, "做个落地页"),
		entity.NewChatHistory(1, 1, entity.MessageTypeAI, "<html>v1</html>"),
		entity.NewChatHistory(1, 1, entity.MessageTypeUser, "换成深色主题"),
	)

	w := NewWindow(20, "sys")
	RehydrateWindow(context.Background(), repo, 1, 20, w)

	// 最新一条（本轮刚落库的用户消息）被跳过
	assert.Equal(t, 2, w.Len())
	msgs := w.Messages("换成深色主题")
	require.Len(t, msgs, 4)
	assert.Equal(t, "做个落地页", msgs[1].Content)
	assert.Equal(t, schema.User, msgs[1].Role)
	assert.Equal(t, "<html>v1</html>", msgs[2].Content)
	assert.Equal(t, schema.Assistant, msgs[2].Role)
}

func TestRehydrateWindowSkipsErrorTurns(t *testing.T) {
	repo := &fakeHistoryRepo{}
	seedHistory(t, repo, 1,
		entity.NewChatHistory(1, 1, entity.MessageTypeUser, "做个页面"),
		entity.NewChatHistory(1, 1, entity.MessageTypeError, "生成中断: llm timeout"),
		entity.NewChatHistory(1, 1, entity.MessageTypeUser, "再试一次"),
	)

	w := NewWindow(20, "sys")
	RehydrateWindow(context.Background(), repo, 1, 20, w)

	assert.Equal(t, 1, w.Len())
	msgs := w.Messages("再试一次")
	assert.Equal(t, "做个页面", msgs[1].Content)
}

func TestRehydrateWindowLoadFailureLeavesWindowEmpty(t *testing.T) {
	repo := &fakeHistoryRepo{listErr: errors.New("db down")}

	w := NewWindow(20, "sys")
	RehydrateWindow(context.Background(), repo, 1, 20, w)

	assert.Equal(t, 0, w.Len())
}
