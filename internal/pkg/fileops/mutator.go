package fileops

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"k8s.io/klog/v2"
)

// Apply 将一批文件变更落盘到项目根目录
// 处理顺序固定：renames（父目录浅的在前）-> deletes -> creates -> modifies
// 批次为尽力而为，单条失败只记录日志并跳过，返回成功条数
func Apply(actions []FileAction, rootPath string) int {
	var renames, deletes, creates, modifies []FileAction
	for _, a := range actions {
		switch a.Type {
		case ActionRename:
			renames = append(renames, a)
		case ActionDelete:
			deletes = append(deletes, a)
		case ActionCreate:
			creates = append(creates, a)
		case ActionModify:
			modifies = append(modifies, a)
		default:
			klog.Warningf("未知的文件变更类型: %s, path=%s", a.Type, a.Path)
		}
	}

	// 重命名按父目录深度从浅到深执行，保证目录先于其内容被移动
	sort.SliceStable(renames, func(i, j int) bool {
		return pathDepth(renames[i].OldPath) < pathDepth(renames[j].OldPath)
	})

	applied := 0
	for _, a := range renames {
		if err := applyRename(a, rootPath); err != nil {
			klog.Errorf("重命名失败，跳过: %s -> %s, err=%v", a.OldPath, a.NewPath, err)
			continue
		}
		applied++
	}
	for _, a := range deletes {
		if err := applyDelete(a, rootPath); err != nil {
			klog.Errorf("删除失败，跳过: %s, err=%v", a.Path, err)
			continue
		}
		applied++
	}
	for _, a := range creates {
		if err := applyWrite(a, rootPath); err != nil {
			klog.Errorf("创建失败，跳过: %s, err=%v", a.Path, err)
			continue
		}
		applied++
	}
	for _, a := range modifies {
		if err := applyWrite(a, rootPath); err != nil {
			klog.Errorf("修改失败，跳过: %s, err=%v", a.Path, err)
			continue
		}
		applied++
	}

	klog.V(6).Infof("文件变更批次完成: total=%d, applied=%d, root=%s", len(actions), applied, rootPath)
	return applied
}

// ResolvePath 将相对路径解析到项目根目录内
// 拒绝绝对路径与逃逸出根目录的路径
func ResolvePath(rootPath, relPath string) (string, error) {
	if relPath == "" {
		return "", fmt.Errorf("path is empty")
	}
	if filepath.IsAbs(relPath) {
		return "", fmt.Errorf("absolute path not allowed: %s", relPath)
	}
	target := filepath.Join(rootPath, filepath.Clean(relPath))
	if !isPathSafe(rootPath, target) {
		return "", fmt.Errorf("path escapes project root: %s", relPath)
	}
	return target, nil
}

func isPathSafe(basePath, targetPath string) bool {
	absBase, err := filepath.Abs(basePath)
	if err != nil {
		return false
	}
	absTarget, err := filepath.Abs(targetPath)
	if err != nil {
		return false
	}

	absBase = filepath.Clean(absBase)
	absTarget = filepath.Clean(absTarget)

	if absTarget == absBase {
		return true
	}
	return strings.HasPrefix(absTarget, absBase+string(filepath.Separator))
}

func pathDepth(p string) int {
	return strings.Count(filepath.ToSlash(filepath.Clean(p)), "/")
}

func applyWrite(a FileAction, rootPath string) error {
	target, err := ResolvePath(rootPath, a.Path)
	if err != nil {
		return err
	}
	if err := os.MkdirAll(filepath.Dir(target), 0755); err != nil {
		return fmt.Errorf("failed to create parent directory: %w", err)
	}
	// 整文件覆盖写，不做内容合并
	return os.WriteFile(target, []byte(a.Content), 0644)
}

func applyDelete(a FileAction, rootPath string) error {
	target, err := ResolvePath(rootPath, a.Path)
	if err != nil {
		return err
	}
	if _, err := os.Stat(target); os.IsNotExist(err) {
		return fmt.Errorf("file does not exist: %s", a.Path)
	}
	return os.Remove(target)
}

func applyRename(a FileAction, rootPath string) error {
	oldTarget, err := ResolvePath(rootPath, a.OldPath)
	if err != nil {
		return err
	}
	newTarget, err := ResolvePath(rootPath, a.NewPath)
	if err != nil {
		return err
	}
	if err := os.MkdirAll(filepath.Dir(newTarget), 0755); err != nil {
		return fmt.Errorf("failed to create parent directory: %w", err)
	}
	return os.Rename(oldTarget, newTarget)
}
