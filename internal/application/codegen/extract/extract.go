// Package extract 从 LLM 输出文本中提取代码
//
// 模型输出格式不可控：可能是规范的围栏代码块，可能是"html:"这类
// 标签式行文，也可能直接输出裸代码。提取按置信度从高到低逐层尝试。
package extract

import (
	"fmt"
	"regexp"
	"strings"
)

// File 项目模式下提取出的单个文件
type File struct {
	Path    string
	Content string
}

// MultiFileResult 多文件模式的提取结果，CSS/JS 可能为空
type MultiFileResult struct {
	HTML string
	CSS  string
	JS   string
}

var (
	anyFencedRe  = regexp.MustCompile("(?s)```[a-zA-Z]*\\s*\n(.*?)```")
	fileHeaderRe = regexp.MustCompile(`(?m)^###\s*FILE:\s*(\S+)\s*$`)

	// 裸代码嗅探：按语言特征截取片段。
	// HTML 取 <!DOCTYPE …>…</html> 区间，CSS 取选择器块序列，
	// JS 取 console.log 调用或函数定义。
	htmlSpanRe = regexp.MustCompile(`(?is)(?:<!doctype\s+html.*?</html\s*>|<html[\s>].*?</html\s*>)`)
	cssSniffRe = regexp.MustCompile(`(?s)(?:^|\n)\s*([.#@]?[a-zA-Z*\[][^{}();\n]*\{[^{}]*\}(?:\s*[.#@]?[a-zA-Z*\[][^{}();\n]*\{[^{}]*\})*)`)
	jsSniffRe  = regexp.MustCompile(`(?s)(?:function\s+[\w$]*\s*\([^)]*\)\s*\{.*\}|console\.log\s*\(.*?\)\s*;?)`)

	// 常用语言的围栏正则预编译，冷门语言走动态编译
	fencedPatterns = map[string]*regexp.Regexp{
		"html":       compileFenced("html"),
		"css":        compileFenced("css"),
		"js":         compileFenced("js"),
		"javascript": compileFenced("javascript"),
	}
)

func compileFenced(lang string) *regexp.Regexp {
	return regexp.MustCompile(fmt.Sprintf("(?is)```%s\\s*\n(.*?)```", regexp.QuoteMeta(lang)))
}

func fencedRe(lang string) *regexp.Regexp {
	if re, ok := fencedPatterns[lang]; ok {
		return re
	}
	return compileFenced(lang)
}

// Fenced 提取第一个指定语言的围栏代码块，未命中返回空串
func Fenced(text, lang string) string {
	langs := []string{lang}
	if lang == "js" {
		langs = append(langs, "javascript")
	}
	for _, l := range langs {
		if m := fencedRe(l).FindStringSubmatch(text); m != nil {
			return strings.TrimSpace(m[1])
		}
	}
	return ""
}

// labeled 提取 "html:" 这类标签行之后、下一个标签行/围栏/文本结尾之前的内容
func labeled(text, lang string) string {
	re := regexp.MustCompile(fmt.Sprintf("(?is)(?:^|\\n)\\s*%s\\s*[:：]\\s*\\n(.*?)(?:\\n\\s*[a-zA-Z]+\\s*[:：]\\s*\\n|\\n```|$)", regexp.QuoteMeta(lang)))
	if m := re.FindStringSubmatch(text); m != nil {
		return strings.TrimSpace(m[1])
	}
	return ""
}

// sniff 从裸文本中按语言特征截取代码片段，未命中返回空串
func sniff(text, lang string) string {
	switch lang {
	case "html":
		return strings.TrimSpace(htmlSpanRe.FindString(text))
	case "css":
		if m := cssSniffRe.FindStringSubmatch(text); m != nil {
			return strings.TrimSpace(m[1])
		}
	case "js", "javascript":
		return strings.TrimSpace(jsSniffRe.FindString(text))
	}
	return ""
}

// strictSingle 按置信度提取：围栏代码块 > 标签式行文 > 语言特征嗅探。
// 全部未命中返回空串。
func strictSingle(text, lang string) string {
	if code := Fenced(text, lang); code != "" {
		return code
	}
	if code := labeled(text, lang); code != "" {
		return code
	}
	return sniff(text, lang)
}

// SingleFile 提取单个代码文件。
// HTML 在全部策略未命中时回退为原文整体返回，避免丢弃模型产出；
// 其它语言返回空串。
func SingleFile(text, lang string) string {
	if code := strictSingle(text, lang); code != "" {
		return code
	}
	if lang == "html" {
		return strings.TrimSpace(text)
	}
	return ""
}

// MultiFile 提取 HTML/CSS/JS 三件套，只有 HTML 是必须的。
// 多文件模式没有原样兜底：整段原文当 HTML 会把 CSS/JS 一起塞进去。
func MultiFile(text string) MultiFileResult {
	return MultiFileResult{
		HTML: strictSingle(text, "html"),
		CSS:  strictSingle(text, "css"),
		JS:   strictSingle(text, "js"),
	}
}

// ProjectFiles 解析工程模式输出。约定格式为若干个
//
//	### FILE: relative/path.ext
//	```lang
//	...
//	```
//
// 片段。未出现任何文件头时回退为单个 index.html。
func ProjectFiles(text string) []File {
	headers := fileHeaderRe.FindAllStringSubmatchIndex(text, -1)
	if len(headers) == 0 {
		return []File{{Path: "index.html", Content: SingleFile(text, "html")}}
	}

	files := make([]File, 0, len(headers))
	for i, h := range headers {
		path := text[h[2]:h[3]]
		segEnd := len(text)
		if i+1 < len(headers) {
			segEnd = headers[i+1][0]
		}
		segment := text[h[1]:segEnd]

		content := ""
		if m := anyFencedRe.FindStringSubmatch(segment); m != nil {
			content = strings.TrimSpace(m[1])
		} else {
			content = strings.TrimSpace(segment)
		}
		if content == "" {
			continue
		}
		files = append(files, File{Path: cleanPath(path), Content: content})
	}

	if len(files) == 0 {
		return []File{{Path: "index.html", Content: SingleFile(text, "html")}}
	}
	return files
}

// cleanPath 规范化相对路径，拒绝目录穿越
func cleanPath(p string) string {
	p = strings.TrimPrefix(strings.TrimSpace(p), "/")
	parts := strings.Split(p, "/")
	out := make([]string, 0, len(parts))
	for _, part := range parts {
		if part == "" || part == "." || part == ".." {
			continue
		}
		out = append(out, part)
	}
	if len(out) == 0 {
		return "index.html"
	}
	return strings.Join(out, "/")
}
