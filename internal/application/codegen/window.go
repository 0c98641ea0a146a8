package codegen

import (
	"sync"

	"github.com/cloudwego/eino/schema"
)

// Window 滑动对话窗口。系统消息固定在首位不参与淘汰，
// 其余消息超过上限时按 FIFO 丢弃最旧的。
type Window struct {
	mu     sync.Mutex
	max    int
	system *schema.Message
	msgs   []*schema.Message
}

// NewWindow 创建对话窗口，max 为系统消息之外的消息数上限
func NewWindow(max int, systemPrompt string) *Window {
	if max <= 0 {
		max = 20
	}
	var system *schema.Message
	if systemPrompt != "" {
		system = schema.SystemMessage(systemPrompt)
	}
	return &Window{
		max:    max,
		system: system,
	}
}

// Append 追加一条消息，超过上限时丢弃最旧的消息
func (w *Window) Append(msg *schema.Message) {
	if msg == nil {
		return
	}
	w.mu.Lock()
	defer w.mu.Unlock()

	w.msgs = append(w.msgs, msg)
	if len(w.msgs) > w.max {
		w.msgs = w.msgs[len(w.msgs)-w.max:]
	}
}

// Messages 返回系统消息 + 当前窗口内容 + 本轮用户消息的完整序列
func (w *Window) Messages(userPrompt string) []*schema.Message {
	w.mu.Lock()
	defer w.mu.Unlock()

	out := make([]*schema.Message, 0, len(w.msgs)+2)
	if w.system != nil {
		out = append(out, w.system)
	}
	out = append(out, w.msgs...)
	out = append(out, schema.UserMessage(userPrompt))
	return out
}

// Commit 在一轮生成成功后将用户消息和助手回复写入窗口
func (w *Window) Commit(userPrompt, assistantReply string) {
	w.Append(schema.UserMessage(userPrompt))
	w.Append(schema.AssistantMessage(assistantReply, nil))
}

// Len 返回窗口内消息数（不含系统消息）
func (w *Window) Len() int {
	w.mu.Lock()
	defer w.mu.Unlock()
	return len(w.msgs)
}
