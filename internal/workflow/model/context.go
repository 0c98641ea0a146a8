// Package model 定义工作流的上下文和中间产物类型
package model

import (
	"time"

	"ai-codegen-api/internal/domain/entity"
)

// 节点名称，也是检查点和事件里对外可见的标识
const (
	NodeRoute         = "route"
	NodePlanImages    = "plan_images"
	NodeGenerate      = "generate"
	NodeQualityCheck  = "quality_check"
	NodeCollectImages = "collect_images"
	NodeEnd           = "end"
)

// ImageKind 图片素材类别
type ImageKind string

const (
	ImageKindContent      ImageKind = "content"
	ImageKindIllustration ImageKind = "illustration"
	ImageKindLogo         ImageKind = "logo"
	ImageKindDiagram      ImageKind = "diagram"
)

// ImageResource 收集到的一张图片素材
type ImageResource struct {
	Kind        ImageKind `json:"kind"`
	URL         string    `json:"url"`
	Description string    `json:"description,omitempty"`
}

// ImagePlan 配图规划，由规划节点产出、收集节点消费
type ImagePlan struct {
	ContentQueries      []string `json:"content_queries"`
	IllustrationQueries []string `json:"illustration_queries"`
	NeedLogo            bool     `json:"need_logo"`
	Diagrams            []string `json:"diagrams"`
}

// Empty 规划是否为空（页面不需要配图）
func (p ImagePlan) Empty() bool {
	return len(p.ContentQueries) == 0 && len(p.IllustrationQueries) == 0 &&
		!p.NeedLogo && len(p.Diagrams) == 0
}

// QualityResult 质检结论。Issues 描述问题，Suggestions 给出修复建议，
// 两者都会被逐条带进修复轮的生成提示。
type QualityResult struct {
	Valid       bool     `json:"valid"`
	Issues      []string `json:"issues,omitempty"`
	Suggestions []string `json:"suggestions,omitempty"`
}

// GenerateResult 生成节点的产物
type GenerateResult struct {
	GenType entity.CodeGenType `json:"gen_type"`
	Dir     string             `json:"dir"`
	Files   []string           `json:"files"`
	// Code 拼接后的产物全文，质检节点消费，也随检查点保存
	Code string `json:"code,omitempty"`
}

// Context 工作流上下文。每个节点执行完把增量写回这里，
// 随后整体序列化保存为检查点。
type Context struct {
	RunID  string `json:"run_id"`
	AppID  int64  `json:"app_id"`
	UserID int64  `json:"user_id"`

	OriginPrompt string             `json:"origin_prompt"`
	GenType      entity.CodeGenType `json:"gen_type,omitempty"`

	ImagePlan *ImagePlan      `json:"image_plan,omitempty"`
	Images    []ImageResource `json:"images,omitempty"`

	Generated *GenerateResult `json:"generated,omitempty"`
	Quality   *QualityResult  `json:"quality,omitempty"`
	FixRounds int             `json:"fix_rounds"`

	CurrentNode   string    `json:"current_node"`
	ExecutedNodes []string  `json:"executed_nodes"`
	StartedAt     time.Time `json:"started_at"`
	UpdatedAt     time.Time `json:"updated_at"`
}

// NewContext 创建工作流上下文
func NewContext(runID string, appID, userID int64, originPrompt string) *Context {
	now := time.Now()
	return &Context{
		RunID:        runID,
		AppID:        appID,
		UserID:       userID,
		OriginPrompt: originPrompt,
		StartedAt:    now,
		UpdatedAt:    now,
	}
}

// Enter 记录进入某个节点
func (c *Context) Enter(node string) {
	c.CurrentNode = node
	c.ExecutedNodes = append(c.ExecutedNodes, node)
	c.UpdatedAt = time.Now()
}

// Event 工作流执行过程中对外推送的事件
type Event struct {
	Node    string   `json:"node"`
	Status  string   `json:"status"` // running/completed/failed
	Error   string   `json:"error,omitempty"`
	Context *Context `json:"context,omitempty"`
}
