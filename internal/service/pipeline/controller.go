package pipeline

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/craftforge/backend/config"
	"github.com/craftforge/backend/internal/eventbus"
	"github.com/craftforge/backend/internal/model"
	"github.com/craftforge/backend/internal/pkg/fileops"
	"github.com/craftforge/backend/internal/pkg/jarcheck"
	"github.com/craftforge/backend/internal/pkg/maven"
	"github.com/craftforge/backend/internal/pkg/snapshot"
	"github.com/craftforge/backend/internal/pkg/template"
	"github.com/craftforge/backend/internal/repository"
	"github.com/craftforge/backend/internal/service/generator"
	"github.com/craftforge/backend/internal/service/statemachine"
	"github.com/google/uuid"
	"k8s.io/klog/v2"
)

// ErrProjectBusy 同名项目已有流水线在执行
var ErrProjectBusy = errors.New("project is already being built")

// TerminalResult 一次流水线运行的终态结果
type TerminalResult struct {
	Success      bool   `json:"success"`
	ArtifactPath string `json:"artifact_path,omitempty"`
	Error        string `json:"error,omitempty"`
	AttemptsUsed int    `json:"attempts_used"`
	UsedFallback bool   `json:"used_fallback"`
}

// Controller 构建修复流水线控制器
// 每次 Run 严格串行执行：解包 -> 快照 -> 生成 -> 落盘 -> 构建，
// 构建失败进入诊断-修复循环，次数受 MaxFixAttempts 限制；
// 同名项目互斥，项目根目录在运行期间归本控制器独占
type Controller struct {
	cfg      *config.Config
	projects repository.ProjectRepository
	sm       *statemachine.ProjectStateMachine
	oracle   generator.Oracle
	builder  maven.Runner
	bus      *eventbus.BuildEventBus

	activeMutex sync.Mutex
	active      map[string]bool
}

func NewController(cfg *config.Config, projects repository.ProjectRepository,
	oracle generator.Oracle, builder maven.Runner, bus *eventbus.BuildEventBus) *Controller {
	return &Controller{
		cfg:      cfg,
		projects: projects,
		sm:       statemachine.NewProjectStateMachine(),
		oracle:   oracle,
		builder:  builder,
		bus:      bus,
		active:   make(map[string]bool),
	}
}

// Run 执行一次完整的构建流水线
// 对已经 verified 的项目做幂等重入：只重新编译，不再生成/落盘
func (c *Controller) Run(ctx context.Context, projectID uint) (*TerminalResult, error) {
	project, err := c.projects.Get(projectID)
	if err != nil {
		return nil, fmt.Errorf("获取项目失败: %w", err)
	}

	if !c.acquire(project.Name) {
		klog.Warningf("同名项目正在构建，拒绝并发执行: name=%s", project.Name)
		return nil, ErrProjectBusy
	}
	defer c.release(project.Name)

	runID := uuid.NewString()
	rootPath := filepath.Join(c.cfg.Data.ProjectDir, project.Name)
	project.LocalPath = rootPath
	now := time.Now()
	project.StartedAt = &now
	project.CompletedAt = nil

	// 幂等重入路径：之前已成功的项目只做重编译
	if project.Status == string(statemachine.ProjectStatusVerified) && dirExists(rootPath) {
		return c.recompileOnly(ctx, runID, project, rootPath)
	}

	// 终态项目（失败过、或 verified 但目录已不在）重新跑完整流水线前先 reset
	if statemachine.IsTerminal(statemachine.ProjectStatus(project.Status)) {
		if err := c.setStatus(ctx, runID, project, statemachine.ProjectStatusPending); err != nil {
			return nil, err
		}
	}

	project.Attempts = 0
	project.ErrorMsg = ""
	project.ArtifactPath = ""

	// 1. 解包脚手架
	if err := c.setStatus(ctx, runID, project, statemachine.ProjectStatusExtracting); err != nil {
		return nil, err
	}
	if _, err := template.Extract(c.cfg.Build.TemplateArchive, rootPath); err != nil {
		return c.fail(ctx, runID, project, fmt.Sprintf("脚手架解包失败: %v", err)), nil
	}

	// 2. 压平快照并清理脚手架原始文件，只留快照给 LLM
	snapshotPath, err := snapshot.Compile(rootPath)
	if err != nil {
		return c.fail(ctx, runID, project, fmt.Sprintf("源码快照失败: %v", err)), nil
	}
	if err := template.Cleanup(rootPath, snapshot.DefaultFileName, c.cfg.Pipeline.CleanupPassCap); err != nil {
		return c.fail(ctx, runID, project, fmt.Sprintf("脚手架清理失败: %v", err)), nil
	}

	if canceled := c.checkCancel(ctx, runID, project); canceled != nil {
		return canceled, nil
	}

	// 3. LLM 生成（失败由兜底生成器吸收，永不报错）
	if err := c.setStatus(ctx, runID, project, statemachine.ProjectStatusGenerating); err != nil {
		return nil, err
	}
	genResult := c.oracle.Generate(ctx, generator.GenerateRequest{
		Name:         project.Name,
		Prompt:       project.Prompt,
		SnapshotPath: snapshotPath,
	})
	usedFallback := !genResult.WellFormed

	if canceled := c.checkCancel(ctx, runID, project); canceled != nil {
		return canceled, nil
	}

	// 4. 落盘文件变更
	if err := c.setStatus(ctx, runID, project, statemachine.ProjectStatusMutating); err != nil {
		return nil, err
	}
	applied := fileops.Apply(genResult.Actions, rootPath)
	if applied == 0 {
		return c.fail(ctx, runID, project, "文件变更全部失败，没有可构建的内容"), nil
	}
	fileops.CorrectResourceLocations(rootPath)

	// 5. 构建 + 有界修复循环
	maxFix := c.cfg.Pipeline.MaxFixAttempts
	var lastDiagnostics string
	for attempt := 0; attempt <= maxFix; attempt++ {
		if canceled := c.checkCancel(ctx, runID, project); canceled != nil {
			return canceled, nil
		}

		if err := c.setStatus(ctx, runID, project, statemachine.ProjectStatusCompiling); err != nil {
			return nil, err
		}
		project.Attempts = attempt
		_ = c.projects.Save(project)
		c.publishAttempt(ctx, runID, project, attempt)

		buildResult, buildErr := c.builder.Build(ctx, rootPath, true)
		if buildErr != nil {
			// 构建工具本身不可用属于环境错误，不消耗修复预算
			return c.fail(ctx, runID, project, fmt.Sprintf("无法调用构建工具: %v", buildErr)), nil
		}

		if buildResult.Success {
			return c.succeed(ctx, runID, project, buildResult.ArtifactPath, attempt, usedFallback), nil
		}

		lastDiagnostics = buildResult.Diagnostics
		klog.V(6).Infof("构建失败: name=%s, attempt=%d/%d", project.Name, attempt, maxFix)

		if attempt == maxFix {
			break
		}

		// 修复：重新快照，请求补丁，落盘后重试
		if err := c.setStatus(ctx, runID, project, statemachine.ProjectStatusRepairing); err != nil {
			return nil, err
		}
		repairSnapshot, snapErr := snapshot.Compile(rootPath)
		if snapErr != nil {
			klog.Errorf("修复前快照失败，继续使用上一份: %v", snapErr)
			repairSnapshot = snapshotPath
		}
		repairResult := c.oracle.Repair(ctx, generator.RepairRequest{
			Name:         project.Name,
			Diagnostics:  lastDiagnostics,
			SnapshotPath: repairSnapshot,
			ProjectRoot:  rootPath,
		})
		if !repairResult.WellFormed {
			usedFallback = true
		}

		if err := c.setStatus(ctx, runID, project, statemachine.ProjectStatusMutating); err != nil {
			return nil, err
		}
		fileops.Apply(repairResult.Actions, rootPath)
		fileops.CorrectResourceLocations(rootPath)
	}

	result := c.fail(ctx, runID, project,
		fmt.Sprintf("构建在 %d 次修复后仍失败，最后的错误:\n%s", maxFix, lastDiagnostics))
	result.UsedFallback = usedFallback
	return result, nil
}

// recompileOnly 幂等重入路径：不重新生成，只调一次构建（关闭自动修补）
func (c *Controller) recompileOnly(ctx context.Context, runID string, project *model.Project, rootPath string) (*TerminalResult, error) {
	klog.V(6).Infof("项目已完成，走快速重编译路径: name=%s", project.Name)
	if err := c.setStatus(ctx, runID, project, statemachine.ProjectStatusCompiling); err != nil {
		return nil, err
	}

	buildResult, buildErr := c.builder.Build(ctx, rootPath, false)
	if buildErr != nil {
		return c.fail(ctx, runID, project, fmt.Sprintf("无法调用构建工具: %v", buildErr)), nil
	}
	if !buildResult.Success {
		return c.fail(ctx, runID, project, fmt.Sprintf("重编译失败:\n%s", buildResult.Diagnostics)), nil
	}
	return c.succeed(ctx, runID, project, buildResult.ArtifactPath, 0, false), nil
}

// succeed 构建成功：校验产物（缺失只告警），落库并发布终态事件
func (c *Controller) succeed(ctx context.Context, runID string, project *model.Project,
	artifactPath string, attemptsUsed int, usedFallback bool) *TerminalResult {
	missing, verifyErr := jarcheck.Verify(artifactPath, nil)
	if verifyErr != nil {
		klog.Warningf("产物校验无法执行: artifact=%s, err=%v", artifactPath, verifyErr)
	} else if len(missing) > 0 {
		klog.Warningf("产物缺少条目（不影响结果）: name=%s, missing=%v", project.Name, missing)
	}

	project.ArtifactPath = artifactPath
	project.Attempts = attemptsUsed
	project.ErrorMsg = ""
	if err := c.setStatus(ctx, runID, project, statemachine.ProjectStatusVerified); err != nil {
		klog.Errorf("终态迁移失败: name=%s, err=%v", project.Name, err)
	}
	now := time.Now()
	project.CompletedAt = &now
	_ = c.projects.Save(project)

	c.publishCompleted(ctx, runID, project, "构建成功")
	return &TerminalResult{
		Success:      true,
		ArtifactPath: artifactPath,
		AttemptsUsed: attemptsUsed,
		UsedFallback: usedFallback,
	}
}

// fail 终态失败：记录最后的诊断，部分完成的文件保留在项目根目录供排查
func (c *Controller) fail(ctx context.Context, runID string, project *model.Project, message string) *TerminalResult {
	from := statemachine.ProjectStatus(project.Status)
	if err := c.sm.Transition(from, statemachine.ProjectStatusFailed, project.ID); err != nil {
		// 终态失败必须落地，即使来源状态不在合法边上
		klog.V(6).Infof("failed 迁移未在状态表中，强制落地: name=%s, from=%s", project.Name, from)
	}
	project.Status = string(statemachine.ProjectStatusFailed)
	project.ErrorMsg = truncateMsg(message, 2000)
	now := time.Now()
	project.CompletedAt = &now
	_ = c.projects.Save(project)

	klog.Errorf("流水线失败: name=%s, %s", project.Name, message)
	c.publishCompleted(ctx, runID, project, message)
	return &TerminalResult{
		Success:      false,
		Error:        message,
		AttemptsUsed: project.Attempts,
	}
}

// setStatus 状态机校验 + 落库 + 发布进度事件
func (c *Controller) setStatus(ctx context.Context, runID string, project *model.Project, to statemachine.ProjectStatus) error {
	from := statemachine.ProjectStatus(project.Status)
	if err := c.sm.Transition(from, to, project.ID); err != nil {
		return err
	}
	project.Status = string(to)
	if err := c.projects.Save(project); err != nil {
		return fmt.Errorf("保存项目状态失败: %w", err)
	}

	_ = eventbus.PublishStatus(ctx, c.bus, eventbus.BuildEvent{
		Type:      eventbus.BuildEventStatusChanged,
		RunID:     runID,
		ProjectID: project.ID,
		Name:      project.Name,
		Status:    project.Status,
		Attempt:   project.Attempts,
	})
	return nil
}

// checkCancel 步骤之间的协作式取消检查
func (c *Controller) checkCancel(ctx context.Context, runID string, project *model.Project) *TerminalResult {
	if ctx.Err() == nil {
		return nil
	}
	klog.Warningf("流水线被取消或超时: name=%s, err=%v", project.Name, ctx.Err())
	return c.fail(ctx, runID, project, fmt.Sprintf("构建被取消: %v", ctx.Err()))
}

func (c *Controller) publishAttempt(ctx context.Context, runID string, project *model.Project, attempt int) {
	_ = eventbus.PublishStatus(ctx, c.bus, eventbus.BuildEvent{
		Type:      eventbus.BuildEventAttempt,
		RunID:     runID,
		ProjectID: project.ID,
		Name:      project.Name,
		Status:    project.Status,
		Attempt:   attempt,
	})
}

func (c *Controller) publishCompleted(ctx context.Context, runID string, project *model.Project, message string) {
	_ = eventbus.PublishStatus(ctx, c.bus, eventbus.BuildEvent{
		Type:      eventbus.BuildEventCompleted,
		RunID:     runID,
		ProjectID: project.ID,
		Name:      project.Name,
		Status:    project.Status,
		Attempt:   project.Attempts,
		Message:   truncateMsg(message, 500),
	})
}

func (c *Controller) acquire(name string) bool {
	c.activeMutex.Lock()
	defer c.activeMutex.Unlock()
	if c.active[name] {
		return false
	}
	c.active[name] = true
	return true
}

func (c *Controller) release(name string) {
	c.activeMutex.Lock()
	defer c.activeMutex.Unlock()
	delete(c.active, name)
}

func dirExists(path string) bool {
	info, err := os.Stat(path)
	return err == nil && info.IsDir()
}

func truncateMsg(s string, limit int) string {
	if len(s) <= limit {
		return s
	}
	return s[:limit]
}
