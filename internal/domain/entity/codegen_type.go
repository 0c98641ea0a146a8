// Package entity 定义领域实体
package entity

import "fmt"

// CodeGenType 代码生成类型，封闭枚举
type CodeGenType string

const (
	// CodeGenTypeHTML 单页 HTML 生成
	CodeGenTypeHTML CodeGenType = "html"
	// CodeGenTypeMultiFile 多文件（HTML + CSS + JS）生成
	CodeGenTypeMultiFile CodeGenType = "multi_file"
	// CodeGenTypeProject 完整前端项目生成
	CodeGenTypeProject CodeGenType = "project"
)

// ParseCodeGenType 解析代码生成类型字符串
func ParseCodeGenType(s string) (CodeGenType, error) {
	switch CodeGenType(s) {
	case CodeGenTypeHTML, CodeGenTypeMultiFile, CodeGenTypeProject:
		return CodeGenType(s), nil
	default:
		return "", fmt.Errorf("unknown code gen type: %q", s)
	}
}

// Valid 检查类型是否为已知枚举值
func (t CodeGenType) Valid() bool {
	switch t {
	case CodeGenTypeHTML, CodeGenTypeMultiFile, CodeGenTypeProject:
		return true
	default:
		return false
	}
}

// Text 返回类型的中文描述
func (t CodeGenType) Text() string {
	switch t {
	case CodeGenTypeHTML:
		return "单页 HTML"
	case CodeGenTypeMultiFile:
		return "多文件页面"
	case CodeGenTypeProject:
		return "前端项目"
	default:
		return string(t)
	}
}
