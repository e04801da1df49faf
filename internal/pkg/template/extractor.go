package template

import (
	"archive/zip"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"k8s.io/klog/v2"
)

// Extract 将脚手架压缩包解包到项目根目录
// 流程：复制压缩包到目标目录 -> 解包 -> 删除压缩包副本
// 返回解包出的文件相对路径列表；压缩包缺失或解包失败为致命错误
func Extract(archivePath, destRoot string) ([]string, error) {
	if _, err := os.Stat(archivePath); err != nil {
		return nil, fmt.Errorf("template archive not found: %s: %w", archivePath, err)
	}
	if err := os.MkdirAll(destRoot, 0755); err != nil {
		return nil, fmt.Errorf("failed to create project root: %w", err)
	}

	// 先复制一份到项目目录内，保持与目标目录同盘
	localCopy := filepath.Join(destRoot, filepath.Base(archivePath))
	if err := copyFile(archivePath, localCopy); err != nil {
		return nil, fmt.Errorf("failed to copy template archive: %w", err)
	}
	defer func() {
		if err := os.Remove(localCopy); err != nil {
			klog.Errorf("删除压缩包副本失败: %s, err=%v", localCopy, err)
		}
	}()

	reader, err := zip.OpenReader(localCopy)
	if err != nil {
		return nil, fmt.Errorf("failed to open template archive: %w", err)
	}
	defer reader.Close()

	var extracted []string
	for _, f := range reader.File {
		rel := filepath.FromSlash(f.Name)
		target := filepath.Join(destRoot, rel)
		// 防止 zip 条目逃逸出目标目录
		if !strings.HasPrefix(filepath.Clean(target), filepath.Clean(destRoot)+string(filepath.Separator)) {
			klog.Warningf("跳过越界的压缩包条目: %s", f.Name)
			continue
		}

		if f.FileInfo().IsDir() {
			if err := os.MkdirAll(target, 0755); err != nil {
				return nil, fmt.Errorf("failed to create directory %s: %w", rel, err)
			}
			continue
		}

		if err := os.MkdirAll(filepath.Dir(target), 0755); err != nil {
			return nil, fmt.Errorf("failed to create directory for %s: %w", rel, err)
		}
		if err := extractEntry(f, target); err != nil {
			return nil, fmt.Errorf("failed to extract %s: %w", rel, err)
		}
		extracted = append(extracted, rel)
	}

	klog.V(6).Infof("脚手架解包完成: archive=%s, files=%d", archivePath, len(extracted))
	return extracted, nil
}

// Cleanup 删除项目树中除 keepFile（快照文件，相对路径）之外的所有普通文件，
// 随后自底向上反复删除空目录，直到一轮没有删除任何目录或达到轮数上限
// 目的：让项目根目录只剩下提供给 LLM 的文本快照
func Cleanup(rootPath, keepFile string, passCap int) error {
	if passCap <= 0 {
		passCap = 5
	}
	keepAbs := filepath.Join(rootPath, filepath.FromSlash(keepFile))

	err := filepath.WalkDir(rootPath, func(path string, d fs.DirEntry, err error) error {
		if err != nil || d.IsDir() {
			return nil
		}
		if filepath.Clean(path) == filepath.Clean(keepAbs) {
			return nil
		}
		if rmErr := os.Remove(path); rmErr != nil {
			klog.Errorf("删除脚手架文件失败: %s, err=%v", path, rmErr)
		}
		return nil
	})
	if err != nil {
		return fmt.Errorf("cleanup walk failed: %w", err)
	}

	// 空目录清理：重复扫描直到不动点或达到上限
	for pass := 0; pass < passCap; pass++ {
		removed := removeEmptyDirs(rootPath)
		klog.V(6).Infof("空目录清理: pass=%d, removed=%d", pass+1, removed)
		if removed == 0 {
			break
		}
	}
	return nil
}

// removeEmptyDirs 删除一轮空目录（深的在前），返回删除数量
func removeEmptyDirs(rootPath string) int {
	var dirs []string
	_ = filepath.WalkDir(rootPath, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return nil
		}
		if d.IsDir() && path != rootPath {
			dirs = append(dirs, path)
		}
		return nil
	})

	sort.Slice(dirs, func(i, j int) bool {
		return strings.Count(dirs[i], string(filepath.Separator)) > strings.Count(dirs[j], string(filepath.Separator))
	})

	removed := 0
	for _, dir := range dirs {
		entries, err := os.ReadDir(dir)
		if err != nil || len(entries) > 0 {
			continue
		}
		if err := os.Remove(dir); err == nil {
			removed++
		}
	}
	return removed
}

func extractEntry(f *zip.File, target string) error {
	rc, err := f.Open()
	if err != nil {
		return err
	}
	defer rc.Close()

	out, err := os.OpenFile(target, os.O_WRONLY|os.O_CREATE|os.O_TRUNC, 0644)
	if err != nil {
		return err
	}
	defer out.Close()

	_, err = io.Copy(out, rc)
	return err
}

func copyFile(src, dst string) error {
	in, err := os.Open(src)
	if err != nil {
		return err
	}
	defer in.Close()

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
