package generator

import (
	"encoding/json"
	"fmt"
	"path"
	"regexp"
	"strings"

	"github.com/craftforge/backend/internal/pkg/fileops"
	"github.com/craftforge/backend/internal/utils"
)

// LLM 输出契约：一个 JSON 对象，包含三个文件数组
type filePlan struct {
	CreatedFiles  []planFile        `json:"createdFiles"`
	ModifiedFiles []planFile        `json:"modifiedFiles"`
	DeletedFiles  []json.RawMessage `json:"deletedFiles"`
}

type planFile struct {
	Path    string `json:"path"`
	Content string `json:"content"`
}

// 入口类必须继承插件基类才可能被服务器加载
var entryPointPattern = regexp.MustCompile(`extends\s+JavaPlugin`)

// parseActions 从 LLM 原始输出解析文件变更批次
// 解析顺序：```json 代码块 -> 第一个顶层 {...} 片段 -> 失败
func parseActions(raw string) ([]fileops.FileAction, error) {
	if strings.TrimSpace(raw) == "" {
		return nil, fmt.Errorf("empty response")
	}

	jsonText := utils.ExtractFencedJSON(raw)
	if jsonText == "" {
		jsonText = utils.ExtractJSON(raw)
	}
	if !strings.HasPrefix(strings.TrimSpace(jsonText), "{") {
		return nil, fmt.Errorf("no JSON object in response")
	}

	var plan filePlan
	if err := json.Unmarshal([]byte(jsonText), &plan); err != nil {
		return nil, fmt.Errorf("failed to unmarshal file plan: %w", err)
	}

	var actions []fileops.FileAction
	for _, f := range plan.CreatedFiles {
		if f.Path == "" {
			continue
		}
		actions = append(actions, fileops.NewCreate(f.Path, f.Content))
	}
	for _, f := range plan.ModifiedFiles {
		if f.Path == "" {
			continue
		}
		actions = append(actions, fileops.NewModify(f.Path, f.Content))
	}
	for _, rawEntry := range plan.DeletedFiles {
		// deletedFiles 元素兼容两种写法：纯路径字符串或 {path} 对象
		var p string
		if err := json.Unmarshal(rawEntry, &p); err != nil {
			var obj planFile
			if err := json.Unmarshal(rawEntry, &obj); err != nil {
				continue
			}
			p = obj.Path
		}
		if p == "" {
			continue
		}
		actions = append(actions, fileops.NewDelete(p))
	}

	if len(actions) == 0 {
		return nil, fmt.Errorf("file plan contains no actions")
	}
	return actions, nil
}

// validateGeneration 初次生成的结果必须包含可加载的插件骨架：
// 至少一个继承插件基类的入口类，以及一个 manifest 资源（plugin.yml）
func validateGeneration(actions []fileops.FileAction) error {
	hasEntryPoint := false
	hasManifest := false
	for _, a := range actions {
		if a.Type != fileops.ActionCreate {
			continue
		}
		if strings.HasSuffix(a.Path, ".java") && entryPointPattern.MatchString(a.Content) {
			hasEntryPoint = true
		}
		if path.Base(strings.ReplaceAll(a.Path, "\\", "/")) == "plugin.yml" {
			hasManifest = true
		}
	}
	if !hasEntryPoint {
		return fmt.Errorf("no created file implements the plugin entry point")
	}
	if !hasManifest {
		return fmt.Errorf("no manifest resource (plugin.yml) created")
	}
	return nil
}
