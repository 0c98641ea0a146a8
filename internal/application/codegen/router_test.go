package codegen

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"ai-codegen-api/internal/domain/entity"
)

func TestParseRouteLabel(t *testing.T) {
	cases := []struct {
		in   string
		want entity.CodeGenType
	}{
		{"html", entity.CodeGenTypeHTML},
		{" multi_file \n", entity.CodeGenTypeMultiFile},
		{"`project`", entity.CodeGenTypeProject},
		{"PROJECT", entity.CodeGenTypeProject},
		{"建议使用 multi_file 模式来实现", entity.CodeGenTypeMultiFile},
	}
	for _, c := range cases {
		got, err := parseRouteLabel(c.in)
		require.NoError(t, err, "input: %q", c.in)
		assert.Equal(t, c.want, got, "input: %q", c.in)
	}
}

func TestParseRouteLabelUnroutable(t *testing.T) {
	_, err := parseRouteLabel("这个需求我无法分类")
	assert.Error(t, err)
}

func TestRouteClassifies(t *testing.T) {
	factory := &fakeModelFactory{model: &fakeChatModel{responses: []string{"project"}}}
	r := NewRouter(factory)

	got := r.Route(context.Background(), "做一个多页面的管理后台")
	assert.Equal(t, entity.CodeGenTypeProject, got)
}

func TestRouteFallsBackToHTMLOnModelError(t *testing.T) {
	factory := &fakeModelFactory{err: errors.New("provider down")}
	r := NewRouter(factory)

	got := r.Route(context.Background(), "做个页面")
	assert.Equal(t, entity.CodeGenTypeHTML, got)
}

func TestRouteFallsBackToHTMLOnGarbageOutput(t *testing.T) {
	factory := &fakeModelFactory{model: &fakeChatModel{responses: []string{"我不知道"}}}
	r := NewRouter(factory)

	got := r.Route(context.Background(), "做个页面")
	assert.Equal(t, entity.CodeGenTypeHTML, got)
}
