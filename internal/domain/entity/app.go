// Package entity 定义领域实体
package entity

import (
	"time"
)

// App 用户创建的生成应用
type App struct {
	ID          int64       `json:"id" gorm:"primaryKey;autoIncrement"`
	Name        string      `json:"name" gorm:"type:varchar(128);not null"`
	InitPrompt  string      `json:"init_prompt" gorm:"type:text"`
	GenType     CodeGenType `json:"gen_type" gorm:"type:varchar(32);index"`
	CoverURL    string      `json:"cover_url" gorm:"type:varchar(512)"`
	DeployKey   string      `json:"deploy_key" gorm:"type:varchar(64);uniqueIndex"`
	DeployedAt  *time.Time  `json:"deployed_at,omitempty"`
	UserID      int64       `json:"user_id" gorm:"index;not null"`
	CreatedAt   time.Time   `json:"created_at" gorm:"autoCreateTime"`
	UpdatedAt   time.Time   `json:"updated_at" gorm:"autoUpdateTime"`
}

func (App) TableName() string {
	return "apps"
}
