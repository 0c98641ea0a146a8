package codegen

import (
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"ai-codegen-api/internal/application/codegen/extract"
	"ai-codegen-api/internal/config"
	"ai-codegen-api/internal/domain/entity"
	apperrors "ai-codegen-api/pkg/errors"
	"ai-codegen-api/pkg/logger"
)

// Saver 把提取出的代码落盘到工作目录。
// 目录命名为 <genType>_<appID>，每次生成覆盖写入。
type Saver struct {
	workspaceDir string
}

// NewSaver 创建落盘器
func NewSaver(cfg *config.CodeGenConfig) *Saver {
	return &Saver{workspaceDir: cfg.WorkspaceDir}
}

// Dir 返回某应用某生成类型的产物目录
func (s *Saver) Dir(appID int64, genType entity.CodeGenType) string {
	return filepath.Join(s.workspaceDir, fmt.Sprintf("%s_%d", genType, appID))
}

// Save 按生成类型提取代码并写入工作目录
func (s *Saver) Save(ctx context.Context, appID int64, genType entity.CodeGenType, output string) (*SaveResult, error) {
	var files []GeneratedFile

	switch genType {
	case entity.CodeGenTypeHTML:
		code := extract.SingleFile(output, "html")
		if code == "" {
			return nil, apperrors.New(apperrors.CodeGenerationFailed, "no html extracted from output")
		}
		files = []GeneratedFile{{Path: "index.html", Content: code}}

	case entity.CodeGenTypeMultiFile:
		result := extract.MultiFile(output)
		if result.HTML == "" {
			return nil, apperrors.New(apperrors.CodeGenerationFailed, "no html part extracted from output")
		}
		files = []GeneratedFile{{Path: "index.html", Content: result.HTML}}
		if result.CSS != "" {
			files = append(files, GeneratedFile{Path: "style.css", Content: result.CSS})
		}
		if result.JS != "" {
			files = append(files, GeneratedFile{Path: "script.js", Content: result.JS})
		}

	case entity.CodeGenTypeProject:
		for _, f := range extract.ProjectFiles(output) {
			files = append(files, GeneratedFile{Path: f.Path, Content: f.Content})
		}
		if len(files) == 0 {
			return nil, apperrors.New(apperrors.CodeGenerationFailed, "no project files extracted from output")
		}

	default:
		return nil, apperrors.ErrUnsupportedGenType
	}

	dir := s.Dir(appID, genType)
	if err := s.writeFiles(dir, files); err != nil {
		return nil, apperrors.Wrap(err, apperrors.CodeGenerationFailed, "failed to write generated files")
	}

	logger.FromContext(ctx).Info("generated code saved",
		"app_id", appID, "gen_type", genType, "dir", dir, "files", len(files))

	return &SaveResult{
		GenType: genType,
		Dir:     dir,
		Files:   files,
	}, nil
}

func (s *Saver) writeFiles(dir string, files []GeneratedFile) error {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return err
	}
	for _, f := range files {
		target := filepath.Join(dir, filepath.FromSlash(f.Path))
		if !strings.HasPrefix(target, filepath.Clean(dir)+string(os.PathSeparator)) && target != filepath.Clean(dir) {
			return fmt.Errorf("file path escapes workspace: %s", f.Path)
		}
		if err := os.MkdirAll(filepath.Dir(target), 0o755); err != nil {
			return err
		}
		if err := os.WriteFile(target, []byte(f.Content), 0o644); err != nil {
			return err
		}
	}
	return nil
}

// Deployer 把工作目录的产物复制到部署目录并返回访问地址
type Deployer struct {
	deployDir  string
	deployHost string
}

// NewDeployer 创建部署器
func NewDeployer(cfg *config.CodeGenConfig) *Deployer {
	return &Deployer{
		deployDir:  cfg.DeployDir,
		deployHost: cfg.DeployHost,
	}
}

// Deploy 复制产物目录到 <deployDir>/<deployKey>，返回访问 URL
func (d *Deployer) Deploy(ctx context.Context, sourceDir, deployKey string) (string, error) {
	target := filepath.Join(d.deployDir, deployKey)

	if _, err := os.Stat(sourceDir); err != nil {
		return "", apperrors.Wrap(err, apperrors.CodeArtifactMissing, "no generated artifact to deploy")
	}

	if err := os.RemoveAll(target); err != nil {
		return "", apperrors.Wrap(err, apperrors.CodeDeployFailed, "failed to clean deploy target")
	}
	if err := copyDir(sourceDir, target); err != nil {
		return "", apperrors.Wrap(err, apperrors.CodeDeployFailed, "failed to copy artifact")
	}

	url := fmt.Sprintf("%s/%s/", strings.TrimSuffix(d.deployHost, "/"), deployKey)
	logger.FromContext(ctx).Info("app deployed", "deploy_key", deployKey, "url", url)
	return url, nil
}

func copyDir(src, dst string) error {
	return filepath.Walk(src, func(path string, info os.FileInfo, err error) error {
		if err != nil {
			return err
		}
		rel, err := filepath.Rel(src, path)
		if err != nil {
			return err
		}
		target := filepath.Join(dst, rel)
		if info.IsDir() {
			return os.MkdirAll(target, 0o755)
		}
		return copyFile(path, target)
	})
}

func copyFile(src, dst string) error {
	in, err := os.Open(src)
	if err != nil {
		return err
	}
	defer in.Close()

	if err := os.MkdirAll(filepath.Dir(dst), 0o755); err != nil {
		return err
	}
	out, err := os.Create(dst)
	if err != nil {
		return err
	}
	defer out.Close()

	if _, err := io.Copy(out, in); err != nil {
		return err
	}
	return out.Sync()
}
