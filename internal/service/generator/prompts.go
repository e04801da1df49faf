package generator

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/craftforge/backend/internal/pkg/maven"
	"k8s.io/klog/v2"
)

// 提示词体积预算
const (
	maxSnapshotChars   = 60000
	maxDiagnosticChars = 3000
	maxManifestChars   = 2000
	maxCorrelatedFiles = 4
	maxFileEmbedChars  = 6000
)

const systemPrompt = `You are an expert Minecraft plugin developer. You write complete, compilable Java code for Spigot/Bukkit plugins built with Maven.
You MUST respond with exactly one JSON object and nothing else, using this schema:
{
  "createdFiles": [{"path": "relative/path", "content": "file content"}],
  "modifiedFiles": [{"path": "relative/path", "content": "full new file content"}],
  "deletedFiles": ["relative/path"]
}
All paths are relative to the project root. Java sources go under src/main/java, resources (plugin.yml, config.yml) under src/main/resources. The main class must extend JavaPlugin and be declared in plugin.yml.`

// buildGeneratePrompt 构造初次生成的用户提示词
func buildGeneratePrompt(req GenerateRequest) string {
	var b strings.Builder
	fmt.Fprintf(&b, "Create a Minecraft plugin named %q.\n\nRequirement:\n%s\n", req.Name, req.Prompt)

	if snapshot := readBounded(req.SnapshotPath, maxSnapshotChars); snapshot != "" {
		b.WriteString("\nCurrent project contents (flattened):\n")
		b.WriteString(snapshot)
	}

	b.WriteString("\nReturn the complete set of files for a buildable Maven project as the JSON object described in the system message.")
	return b.String()
}

// buildRepairPrompt 构造修复提示词
// 嵌入有限长度的诊断、当前 manifest，以及诊断中点名文件的现有内容
func buildRepairPrompt(req RepairRequest) string {
	var b strings.Builder
	fmt.Fprintf(&b, "The Maven build for plugin %q failed. Fix the errors below by returning patched files.\n\nBuild errors:\n%s\n", req.Name, truncate(req.Diagnostics, maxDiagnosticChars))

	// 按文件名尽力定位被点名的源文件并嵌入当前内容
	for i, name := range maven.MentionedFiles(req.Diagnostics) {
		if i >= maxCorrelatedFiles {
			break
		}
		fullPath, rel := findFileByName(req.ProjectRoot, name)
		if fullPath == "" {
			continue
		}
		content := readBounded(fullPath, maxFileEmbedChars)
		if content == "" {
			continue
		}
		fmt.Fprintf(&b, "\nCurrent content of %s:\n```\n%s\n```\n", rel, content)
	}

	// manifest 是最常见的出错点，始终附带
	if manifestPath, rel := findFileByName(req.ProjectRoot, "plugin.yml"); manifestPath != "" {
		if content := readBounded(manifestPath, maxManifestChars); content != "" {
			fmt.Fprintf(&b, "\nCurrent content of %s:\n```\n%s\n```\n", rel, content)
		}
	}

	if snapshot := readBounded(req.SnapshotPath, maxSnapshotChars/2); snapshot != "" {
		b.WriteString("\nProject contents (flattened):\n")
		b.WriteString(snapshot)
	}

	b.WriteString("\nReturn only the files that need to change, as the JSON object described in the system message. modifiedFiles must contain the FULL new content of each file.")
	return b.String()
}

// findFileByName 在项目树中按文件名查找，返回绝对路径与相对路径
// 同名多个时取第一个命中，跳过构建产物目录
func findFileByName(rootPath, name string) (string, string) {
	if rootPath == "" || name == "" {
		return "", ""
	}
	var foundAbs, foundRel string
	_ = filepath.Walk(rootPath, func(path string, info os.FileInfo, err error) error {
		if err != nil {
			return nil
		}
		if info.IsDir() {
			if info.Name() == "target" || info.Name() == ".git" {
				return filepath.SkipDir
			}
			return nil
		}
		if foundAbs == "" && info.Name() == name {
			foundAbs = path
			if rel, relErr := filepath.Rel(rootPath, path); relErr == nil {
				foundRel = filepath.ToSlash(rel)
			} else {
				foundRel = name
			}
		}
		return nil
	})
	return foundAbs, foundRel
}

func readBounded(path string, limit int) string {
	if path == "" {
		return ""
	}
	data, err := os.ReadFile(path)
	if err != nil {
		klog.V(6).Infof("读取提示词上下文失败: path=%s, err=%v", path, err)
		return ""
	}
	return truncate(string(data), limit)
}

func truncate(s string, limit int) string {
	if len(s) <= limit {
		return s
	}
	return s[:limit] + "\n... (truncated)"
}
