package maven

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"strings"
	"time"

	"github.com/craftforge/backend/internal/pkg/fileops"
	"k8s.io/klog/v2"
)

// BuildResult 一次构建的结果
// 构建失败不是 Go 错误：Success=false 且 Diagnostics 带有提炼后的错误信息
type BuildResult struct {
	Success      bool
	ArtifactPath string
	RawLog       string
	Diagnostics  string
}

// Runner 构建工具运行器接口，便于编排层在测试中替换
type Runner interface {
	Build(ctx context.Context, rootPath string, autoFix bool) (*BuildResult, error)
}

// MavenRunner 以子进程方式调用外部 Maven
type MavenRunner struct {
	MavenPath string
	Timeout   time.Duration
	GroupID   string
}

func NewMavenRunner(mavenPath string, timeout time.Duration, groupID string) *MavenRunner {
	if mavenPath == "" {
		mavenPath = "mvn"
	}
	if timeout <= 0 {
		timeout = 10 * time.Minute
	}
	if groupID == "" {
		groupID = "com.craftforge"
	}
	return &MavenRunner{MavenPath: mavenPath, Timeout: timeout, GroupID: groupID}
}

// Build 在项目根目录执行 mvn package
// autoFix 开启时先确保 pom.xml 存在且声明了资源目录（快速重编译路径会关闭它）
// 仅在无法启动子进程等环境性问题时返回 error，编译失败通过 BuildResult 表达
func (r *MavenRunner) Build(ctx context.Context, rootPath string, autoFix bool) (*BuildResult, error) {
	if autoFix {
		if err := r.EnsurePom(rootPath); err != nil {
			return nil, fmt.Errorf("failed to prepare build descriptor: %w", err)
		}
		if _, err := fileops.EnsureResourceDeclaration(filepath.Join(rootPath, "pom.xml")); err != nil {
			klog.Errorf("资源目录声明补丁失败: %v", err)
		}
	}

	buildCtx, cancel := context.WithTimeout(ctx, r.Timeout)
	defer cancel()

	cmd := exec.CommandContext(buildCtx, r.MavenPath, "-B", "clean", "package")
	cmd.Dir = rootPath
	cmd.Env = append(os.Environ(), "MAVEN_OPTS=-Djansi.passthrough=false")

	klog.V(6).Infof("执行构建: dir=%s, cmd=%s -B clean package", rootPath, r.MavenPath)
	output, err := cmd.CombinedOutput()
	rawLog := string(output)

	if buildCtx.Err() == context.DeadlineExceeded {
		return &BuildResult{
			Success:     false,
			RawLog:      rawLog,
			Diagnostics: fmt.Sprintf("build timed out after %v", r.Timeout),
		}, nil
	}

	if err != nil {
		var exitErr *exec.ExitError
		if !errors.As(err, &exitErr) {
			// 子进程无法启动（Maven 不存在等），属于环境错误
			return nil, fmt.Errorf("failed to invoke build tool: %w", err)
		}
		diagnostics := ExtractDiagnostics(rawLog)
		klog.V(6).Infof("构建失败: dir=%s, exit=%d", rootPath, exitErr.ExitCode())
		return &BuildResult{
			Success:     false,
			RawLog:      rawLog,
			Diagnostics: diagnostics,
		}, nil
	}

	artifact, findErr := LocateArtifact(rootPath)
	if findErr != nil {
		// 构建显示成功但找不到产物，按失败处理
		return &BuildResult{
			Success:     false,
			RawLog:      rawLog,
			Diagnostics: fmt.Sprintf("build succeeded but no artifact found: %v", findErr),
		}, nil
	}

	klog.V(6).Infof("构建成功: dir=%s, artifact=%s", rootPath, artifact)
	return &BuildResult{
		Success:      true,
		ArtifactPath: artifact,
		RawLog:       rawLog,
	}, nil
}

// LocateArtifact 在 target 目录定位主产物 jar
// 规则：排除 -sources/-javadoc/original- 等旁路产物，取修改时间最新的一个
func LocateArtifact(rootPath string) (string, error) {
	targetDir := filepath.Join(rootPath, "target")
	entries, err := os.ReadDir(targetDir)
	if err != nil {
		return "", fmt.Errorf("output directory not readable: %w", err)
	}

	var best string
	var bestMod time.Time
	for _, e := range entries {
		if e.IsDir() {
			continue
		}
		name := e.Name()
		if !strings.HasSuffix(name, ".jar") {
			continue
		}
		if strings.HasSuffix(name, "-sources.jar") ||
			strings.HasSuffix(name, "-javadoc.jar") ||
			strings.HasPrefix(name, "original-") {
			continue
		}
		info, infoErr := e.Info()
		if infoErr != nil {
			continue
		}
		if best == "" || info.ModTime().After(bestMod) {
			best = filepath.Join(targetDir, name)
			bestMod = info.ModTime()
		}
	}

	if best == "" {
		return "", fmt.Errorf("no primary jar in %s", targetDir)
	}
	return best, nil
}
