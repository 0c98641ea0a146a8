// Package entity 定义领域实体
package entity

import (
	"time"
)

// MessageType 对话消息类型
type MessageType string

const (
	MessageTypeUser MessageType = "user"
	MessageTypeAI   MessageType = "ai"
	// MessageTypeError 生成失败时写入的错误标记消息
	MessageTypeError MessageType = "error"
)

// ChatHistory 对话历史记录
type ChatHistory struct {
	ID          int64       `json:"id" gorm:"primaryKey;autoIncrement"`
	AppID       int64       `json:"app_id" gorm:"index:idx_chat_app_created;not null"`
	MessageType MessageType `json:"message_type" gorm:"type:varchar(16);not null"`
	Message     string      `json:"message" gorm:"type:text;not null"`
	UserID      int64       `json:"user_id" gorm:"index"`
	CreatedAt   time.Time   `json:"created_at" gorm:"index:idx_chat_app_created;autoCreateTime"`
}

func (ChatHistory) TableName() string {
	return "chat_histories"
}

// NewChatHistory 创建一条对话历史
func NewChatHistory(appID, userID int64, msgType MessageType, message string) *ChatHistory {
	return &ChatHistory{
		AppID:       appID,
		UserID:      userID,
		MessageType: msgType,
		Message:     message,
		CreatedAt:   time.Now(),
	}
}
