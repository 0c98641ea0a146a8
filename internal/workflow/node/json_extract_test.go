package node

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestExtractJSONObject(t *testing.T) {
	assert.Equal(t, `{"valid": true}`, ExtractJSONObject(`{"valid": true}`))
	assert.Equal(t, `{"valid": true}`, ExtractJSONObject("质检结果如下：\n{\"valid\": true}\n以上。"))
	assert.Equal(t, `{"valid": false, "issues": ["a"]}`, ExtractJSONObject("```json\n{\"valid\": false, \"issues\": [\"a\"]}\n```"))
	assert.Equal(t, `[1, 2]`, ExtractJSONObject("结果：[1, 2]"))
}

func TestExtractJSONObjectInvalidFallsBackToOriginal(t *testing.T) {
	in := "这里没有 JSON"
	assert.Equal(t, in, ExtractJSONObject(in))
}
