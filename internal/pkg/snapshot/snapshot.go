package snapshot

import (
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"k8s.io/klog/v2"
)

// DefaultFileName 快照文件名，位于项目根目录
const DefaultFileName = "project_source.txt"

// 不进入快照的目录（构建产物、版本库元数据）
var skipDirs = map[string]bool{
	"target": true,
	".git":   true,
}

// Compile 将项目树压平成单个文本文件，作为 LLM 的上下文
// 输出格式：每个文件一段 "=== 相对路径 ===" 头加原始内容
// 遍历结果按路径排序保证确定性；快照文件自身不进入遍历
func Compile(rootPath string) (string, error) {
	type entry struct {
		rel  string
		data []byte
	}

	outPath := filepath.Join(rootPath, DefaultFileName)
	var entries []entry

	err := filepath.WalkDir(rootPath, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() {
			if skipDirs[d.Name()] && path != rootPath {
				return filepath.SkipDir
			}
			return nil
		}
		if filepath.Clean(path) == filepath.Clean(outPath) {
			return nil
		}
		rel, relErr := filepath.Rel(rootPath, path)
		if relErr != nil {
			return relErr
		}
		data, readErr := os.ReadFile(path)
		if readErr != nil {
			klog.Errorf("读取文件失败，跳过快照: %s, err=%v", path, readErr)
			return nil
		}
		entries = append(entries, entry{rel: filepath.ToSlash(rel), data: data})
		return nil
	})
	if err != nil {
		return "", fmt.Errorf("snapshot walk failed: %w", err)
	}

	sort.Slice(entries, func(i, j int) bool { return entries[i].rel < entries[j].rel })

	var b strings.Builder
	for _, e := range entries {
		b.WriteString("=== ")
		b.WriteString(e.rel)
		b.WriteString(" ===\n")
		b.Write(e.data)
		if len(e.data) > 0 && e.data[len(e.data)-1] != '\n' {
			b.WriteByte('\n')
		}
		b.WriteByte('\n')
	}

	if err := os.WriteFile(outPath, []byte(b.String()), 0644); err != nil {
		return "", fmt.Errorf("failed to write snapshot: %w", err)
	}

	klog.V(6).Infof("源码快照已生成: path=%s, files=%d, bytes=%d", outPath, len(entries), b.Len())
	return outPath, nil
}
