package extract

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSingleFileFenced(t *testing.T) {
	text := "这是生成的页面：\n```html\n<!DOCTYPE html>\n<html><body>hi</body></html>\n```\n希望你喜欢。"
	code := SingleFile(text, "html")
	assert.Equal(t, "<!DOCTYPE html>\n<html><body>hi</body></html>", code)
}

func TestSingleFileFencedCaseInsensitive(t *testing.T) {
	text := "```HTML\n<p>hi</p>\n```"
	assert.Equal(t, "<p>hi</p>", SingleFile(text, "html"))
}

func TestSingleFileLabeled(t *testing.T) {
	text := "html:\n<div>labeled</div>\ncss:\ndiv { color: red; }\n"
	assert.Equal(t, "<div>labeled</div>", SingleFile(text, "html"))
	assert.Equal(t, "div { color: red; }", SingleFile(text, "css"))
}

func TestSingleFileSniff(t *testing.T) {
	text := "<!DOCTYPE html>\n<html><body>raw</body></html>"
	assert.Equal(t, text, SingleFile(text, "html"))
}

func TestSingleFileHTMLSpanSniff(t *testing.T) {
	// 裸文档混在行文里时只截取 <!DOCTYPE …>…</html> 区间
	doc := "<!DOCTYPE html>\n<html><body>ok</body></html>"
	text := "好的，页面如下：\n" + doc + "\n如需调整请告诉我"
	assert.Equal(t, doc, SingleFile(text, "html"))
}

func TestSingleFileCSSSniff(t *testing.T) {
	text := "下面是样式：\nbody { color: red; }\n希望有帮助"
	assert.Equal(t, "body { color: red; }", SingleFile(text, "css"))
}

func TestSingleFileJSSniff(t *testing.T) {
	assert.Equal(t, `console.log("ready");`, SingleFile("页面加载后输出：\nconsole.log(\"ready\");\n", "js"))

	fn := "function greet(name) {\n  return \"hi \" + name;\n}"
	assert.Equal(t, fn, SingleFile(fn, "js"))
}

func TestSingleFileLabeledStopsAtFence(t *testing.T) {
	// 标签段落到下一个围栏为止，不吞掉后面的代码块
	text := "html:\n<div>a</div>\n```css\np{}\n```"
	assert.Equal(t, "<div>a</div>", SingleFile(text, "html"))
	assert.Equal(t, "p{}", SingleFile(text, "css"))
}

func TestSingleFileHTMLVerbatimFallback(t *testing.T) {
	// 完全不像代码的输出也不能丢，HTML 模式原样兜底
	text := "抱歉，我直接给出页面内容 hello world"
	assert.Equal(t, text, SingleFile(text, "html"))
}

func TestSingleFileNonHTMLNoFallback(t *testing.T) {
	assert.Empty(t, SingleFile("没有任何代码块", "css"))
	assert.Empty(t, SingleFile("没有任何代码块", "js"))
}

func TestMultiFile(t *testing.T) {
	text := "```html\n<p>hi</p>\n```\n```css\np{color:red}\n```"
	result := MultiFile(text)
	assert.Equal(t, "<p>hi</p>", result.HTML)
	assert.Equal(t, "p{color:red}", result.CSS)
	assert.Empty(t, result.JS)
}

func TestMultiFileSniffsUnfencedLanguages(t *testing.T) {
	text := "<!DOCTYPE html>\n<html><body>hi</body></html>\n\nbody { color: red; }\n\nconsole.log(\"ready\");"
	result := MultiFile(text)
	assert.Equal(t, "<!DOCTYPE html>\n<html><body>hi</body></html>", result.HTML)
	assert.Equal(t, "body { color: red; }", result.CSS)
	assert.Equal(t, `console.log("ready");`, result.JS)
}

func TestMultiFileJavascriptAlias(t *testing.T) {
	text := "```html\n<p>hi</p>\n```\n```javascript\nconsole.log(1)\n```"
	result := MultiFile(text)
	assert.Equal(t, "console.log(1)", result.JS)
}

func TestProjectFiles(t *testing.T) {
	text := "### FILE: index.html\n```html\n<p>home</p>\n```\n\n### FILE: src/app.js\n```js\nexport default {}\n```\n"
	files := ProjectFiles(text)
	require.Len(t, files, 2)
	assert.Equal(t, "index.html", files[0].Path)
	assert.Equal(t, "<p>home</p>", files[0].Content)
	assert.Equal(t, "src/app.js", files[1].Path)
	assert.Equal(t, "export default {}", files[1].Content)
}

func TestProjectFilesFallbackSingleIndex(t *testing.T) {
	text := "```html\n<p>only</p>\n```"
	files := ProjectFiles(text)
	require.Len(t, files, 1)
	assert.Equal(t, "index.html", files[0].Path)
	assert.Equal(t, "<p>only</p>", files[0].Content)
}

func TestProjectFilesUnfencedSegment(t *testing.T) {
	text := "### FILE: README.md\nplain text body\n"
	files := ProjectFiles(text)
	require.Len(t, files, 1)
	assert.Equal(t, "README.md", files[0].Path)
	assert.Equal(t, "plain text body", files[0].Content)
}

func TestCleanPathRejectsTraversal(t *testing.T) {
	text := "### FILE: ../../etc/passwd\n```\nx\n```"
	files := ProjectFiles(text)
	require.Len(t, files, 1)
	assert.Equal(t, "etc/passwd", files[0].Path)
}
