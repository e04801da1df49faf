package statemachine

import (
	"fmt"

	"k8s.io/klog/v2"
)

// ProjectStatus 定义构建项目的所有可能状态
type ProjectStatus string

const (
	ProjectStatusPending    ProjectStatus = "pending"    // 未运行（初始态/重置态）
	ProjectStatusExtracting ProjectStatus = "extracting" // 正在解包脚手架
	ProjectStatusGenerating ProjectStatus = "generating" // 正在调用 LLM 生成源码
	ProjectStatusMutating   ProjectStatus = "mutating"   // 正在落盘文件变更
	ProjectStatusCompiling  ProjectStatus = "compiling"  // 正在执行 Maven 构建
	ProjectStatusRepairing  ProjectStatus = "repairing"  // 编译失败，正在请求修复补丁
	ProjectStatusVerified   ProjectStatus = "verified"   // 构建成功且产物已校验
	ProjectStatusFailed     ProjectStatus = "failed"     // 执行失败
)

// ProjectTransition 定义项目状态迁移
type ProjectTransition struct {
	From ProjectStatus
	To   ProjectStatus
}

// ProjectStateMachine 项目状态机
// 状态迁移整体单调，唯一的环是 compiling <-> repairing，
// 该环的次数上限由流水线的修复预算控制，状态机本身只约束合法边
type ProjectStateMachine struct {
	allowedTransitions map[ProjectTransition]bool
}

// NewProjectStateMachine 创建新的项目状态机
func NewProjectStateMachine() *ProjectStateMachine {
	sm := &ProjectStateMachine{
		allowedTransitions: make(map[ProjectTransition]bool),
	}

	// 定义合法的状态迁移路径
	// pending -> extracting -> generating -> mutating -> compiling -> verified/repairing
	// repairing -> compiling（修复循环，次数由流水线限制）
	// 任意中间态 -> failed（不可恢复错误）
	// verified -> compiling（幂等重入，只重新编译）
	// failed/verified -> pending（reset）
	transitions := []ProjectTransition{
		// 正常执行流程
		{ProjectStatusPending, ProjectStatusExtracting},
		{ProjectStatusExtracting, ProjectStatusGenerating},
		{ProjectStatusGenerating, ProjectStatusMutating},
		{ProjectStatusMutating, ProjectStatusCompiling},
		{ProjectStatusCompiling, ProjectStatusVerified},

		// 修复循环
		{ProjectStatusCompiling, ProjectStatusRepairing},
		{ProjectStatusRepairing, ProjectStatusMutating},
		{ProjectStatusRepairing, ProjectStatusCompiling},

		// 失败路径
		{ProjectStatusExtracting, ProjectStatusFailed},
		{ProjectStatusGenerating, ProjectStatusFailed},
		{ProjectStatusMutating, ProjectStatusFailed},
		{ProjectStatusCompiling, ProjectStatusFailed},
		{ProjectStatusRepairing, ProjectStatusFailed},

		// 幂等重入：已完成的项目只重新编译
		{ProjectStatusVerified, ProjectStatusCompiling},

		// 重置流程
		{ProjectStatusFailed, ProjectStatusPending},
		{ProjectStatusVerified, ProjectStatusPending},
	}

	for _, t := range transitions {
		sm.allowedTransitions[t] = true
	}

	return sm
}

// CanTransition 检查状态迁移是否合法
func (sm *ProjectStateMachine) CanTransition(from, to ProjectStatus) bool {
	if from == to {
		return false // 不允许状态不变
	}
	return sm.allowedTransitions[ProjectTransition{From: from, To: to}]
}

// ValidateTransition 验证状态迁移并返回错误
func (sm *ProjectStateMachine) ValidateTransition(from, to ProjectStatus) error {
	if !sm.CanTransition(from, to) {
		return &InvalidStateTransitionError{
			From: string(from),
			To:   string(to),
		}
	}
	return nil
}

// Transition 执行状态迁移（带日志）
func (sm *ProjectStateMachine) Transition(from, to ProjectStatus, projectID uint) error {
	if err := sm.ValidateTransition(from, to); err != nil {
		klog.V(6).Infof("项目状态迁移被拒绝: projectID=%d, %s -> %s, error=%v",
			projectID, from, to, err)
		return err
	}

	klog.V(6).Infof("项目状态迁移成功: projectID=%d, %s -> %s", projectID, from, to)
	return nil
}

// InvalidStateTransitionError 无效的状态迁移错误
type InvalidStateTransitionError struct {
	From string
	To   string
}

func (e *InvalidStateTransitionError) Error() string {
	return fmt.Sprintf("invalid project state transition: %s -> %s", e.From, e.To)
}

// IsTerminal 判断状态是否为终止态（不能再迁移，除 reset/重入外）
func IsTerminal(status ProjectStatus) bool {
	return status == ProjectStatusVerified || status == ProjectStatusFailed
}

// IsRunning 判断项目是否处于流水线执行中
func IsRunning(status ProjectStatus) bool {
	switch status {
	case ProjectStatusExtracting, ProjectStatusGenerating, ProjectStatusMutating,
		ProjectStatusCompiling, ProjectStatusRepairing:
		return true
	}
	return false
}
