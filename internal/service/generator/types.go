package generator

import (
	"context"

	"github.com/craftforge/backend/internal/pkg/fileops"
)

// GenerationResult LLM 一次生成/修复的解析结果
// WellFormed=false 表示走了内置兜底生成器（LLM 不可达或输出不合规）
type GenerationResult struct {
	Actions     []fileops.FileAction
	RawResponse string
	WellFormed  bool
}

// GenerateRequest 初次生成请求
type GenerateRequest struct {
	Name         string // 项目名，用于派生类名/包名
	Prompt       string // 用户的自然语言需求
	SnapshotPath string // 源码快照文件路径，作为上下文
}

// RepairRequest 编译失败后的修复请求
type RepairRequest struct {
	Name         string
	Diagnostics  string // 提炼后的构建错误
	SnapshotPath string
	ProjectRoot  string // 用于按文件名定位被点名的源文件
}

// Oracle 代码生成器接口
// 实现必须保证永不返回错误：任何失败都以兜底结果吸收
type Oracle interface {
	Generate(ctx context.Context, req GenerateRequest) *GenerationResult
	Repair(ctx context.Context, req RepairRequest) *GenerationResult
}
