package prompt

import (
	"embed"
	"fmt"
	"strings"
	"sync"

	einoprompt "github.com/cloudwego/eino/components/prompt"
	"github.com/cloudwego/eino/schema"
)

//go:embed templates/*.txt
var templatesFS embed.FS

type PromptID string

const (
	PromptHTMLGenV1      PromptID = "html_gen_v1"
	PromptMultiFileGenV1 PromptID = "multi_file_gen_v1"
	PromptProjectGenV1   PromptID = "project_gen_v1"
	PromptRouterV1       PromptID = "router_v1"
	PromptQualityCheckV1 PromptID = "quality_check_v1"
	PromptImagePlanV1    PromptID = "image_plan_v1"
)

type Registry struct {
	mu      sync.RWMutex
	cache   map[PromptID]einoprompt.ChatTemplate
	systems map[PromptID]string
}

func NewRegistry() *Registry {
	return &Registry{
		cache:   make(map[PromptID]einoprompt.ChatTemplate),
		systems: make(map[PromptID]string),
	}
}

// System 返回指定提示词的 system 文本，供多轮对话客户端使用
func (r *Registry) System(id PromptID) (string, error) {
	if r == nil {
		return "", fmt.Errorf("prompt registry is nil")
	}

	r.mu.RLock()
	if s, ok := r.systems[id]; ok {
		r.mu.RUnlock()
		return s, nil
	}
	r.mu.RUnlock()

	r.mu.Lock()
	defer r.mu.Unlock()
	if s, ok := r.systems[id]; ok {
		return s, nil
	}

	systemPath, _, err := resolvePromptFiles(id)
	if err != nil {
		return "", err
	}
	system, err := readEmbeddedText(systemPath)
	if err != nil {
		return "", err
	}
	r.systems[id] = system
	return system, nil
}

// ChatTemplate 返回 system+user 成对的模板，供单轮结构化调用使用
func (r *Registry) ChatTemplate(id PromptID) (einoprompt.ChatTemplate, error) {
	if r == nil {
		return nil, fmt.Errorf("prompt registry is nil")
	}

	r.mu.RLock()
	if tpl, ok := r.cache[id]; ok {
		r.mu.RUnlock()
		return tpl, nil
	}
	r.mu.RUnlock()

	r.mu.Lock()
	defer r.mu.Unlock()
	if tpl, ok := r.cache[id]; ok {
		return tpl, nil
	}

	systemPath, userPath, err := resolvePromptFiles(id)
	if err != nil {
		return nil, err
	}
	system, err := readEmbeddedText(systemPath)
	if err != nil {
		return nil, err
	}
	user, err := readEmbeddedText(userPath)
	if err != nil {
		return nil, err
	}

	tpl := einoprompt.FromMessages(
		schema.FString,
		schema.SystemMessage(system),
		schema.UserMessage(user),
	)
	r.cache[id] = tpl
	return tpl, nil
}

func resolvePromptFiles(id PromptID) (systemFile string, userFile string, err error) {
	switch id {
	case PromptHTMLGenV1:
		return "templates/html_gen_v1.system.txt", "templates/html_gen_v1.user.txt", nil
	case PromptMultiFileGenV1:
		return "templates/multi_file_gen_v1.system.txt", "templates/multi_file_gen_v1.user.txt", nil
	case PromptProjectGenV1:
		return "templates/project_gen_v1.system.txt", "templates/project_gen_v1.user.txt", nil
	case PromptRouterV1:
		return "templates/router_v1.system.txt", "templates/router_v1.user.txt", nil
	case PromptQualityCheckV1:
		return "templates/quality_check_v1.system.txt", "templates/quality_check_v1.user.txt", nil
	case PromptImagePlanV1:
		return "templates/image_plan_v1.system.txt", "templates/image_plan_v1.user.txt", nil
	default:
		return "", "", fmt.Errorf("unknown prompt id: %s", id)
	}
}

func readEmbeddedText(path string) (string, error) {
	b, err := templatesFS.ReadFile(path)
	if err != nil {
		return "", err
	}
	return strings.TrimSpace(string(b)), nil
}
