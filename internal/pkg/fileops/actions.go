package fileops

// ActionType 文件变更类型
type ActionType string

const (
	ActionCreate ActionType = "create"
	ActionModify ActionType = "modify"
	ActionDelete ActionType = "delete"
	ActionRename ActionType = "rename"
)

// FileAction 单条文件变更，路径均相对于项目根目录
// Create/Modify 使用 Path+Content，Delete 使用 Path，Rename 使用 OldPath+NewPath
type FileAction struct {
	Type    ActionType `json:"type"`
	Path    string     `json:"path,omitempty"`
	Content string     `json:"content,omitempty"`
	OldPath string     `json:"old_path,omitempty"`
	NewPath string     `json:"new_path,omitempty"`
}

// NewCreate 创建文件动作
func NewCreate(path, content string) FileAction {
	return FileAction{Type: ActionCreate, Path: path, Content: content}
}

// NewModify 覆盖写文件动作
func NewModify(path, content string) FileAction {
	return FileAction{Type: ActionModify, Path: path, Content: content}
}

// NewDelete 删除文件动作
func NewDelete(path string) FileAction {
	return FileAction{Type: ActionDelete, Path: path}
}

// NewRename 重命名文件动作
func NewRename(oldPath, newPath string) FileAction {
	return FileAction{Type: ActionRename, OldPath: oldPath, NewPath: newPath}
}
