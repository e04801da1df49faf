package service

import (
	"errors"
	"fmt"
	"regexp"
	"time"

	"github.com/craftforge/backend/config"
	"github.com/craftforge/backend/internal/model"
	"github.com/craftforge/backend/internal/repository"
	"github.com/craftforge/backend/internal/service/orchestrator"
	"github.com/craftforge/backend/internal/service/statemachine"
	"k8s.io/klog/v2"
)

var (
	// ErrNameInUse 同名项目正在排队或执行
	ErrNameInUse = errors.New("a build with this name is already queued or running")
	// ErrInvalidName 项目名不是合法标识符
	ErrInvalidName = errors.New("invalid project name")
)

// 项目名决定项目根目录，必须是安全的标识符
var namePattern = regexp.MustCompile(`^[A-Za-z][A-Za-z0-9_-]{0,63}$`)

// BuildService 构建请求的接入层
// 负责重名互斥判定与任务入队；具体执行由编排器调度 pipeline 控制器
type BuildService struct {
	cfg          *config.Config
	projects     repository.ProjectRepository
	orchestrator *orchestrator.Orchestrator
}

func NewBuildService(cfg *config.Config, projects repository.ProjectRepository) *BuildService {
	return &BuildService{
		cfg:      cfg,
		projects: projects,
	}
}

// SetOrchestrator 设置任务编排器
// 用于解决初始化时的循环依赖问题
func (s *BuildService) SetOrchestrator(o *orchestrator.Orchestrator) {
	s.orchestrator = o
}

// Submit 提交构建请求
// 重名规则：排队/执行中的同名请求被拒绝；已完成（verified/failed）的同名
// 请求复用原记录重新入队——对 verified 的项目流水线走幂等重编译路径
func (s *BuildService) Submit(name, prompt string) (*model.Project, error) {
	if !namePattern.MatchString(name) {
		return nil, ErrInvalidName
	}

	project, err := s.projects.GetByName(name)
	switch {
	case err == nil:
		status := statemachine.ProjectStatus(project.Status)
		if statemachine.IsRunning(status) || status == statemachine.ProjectStatusPending {
			return nil, ErrNameInUse
		}
		// 终态记录复用：verified 重入只重编译，failed 重跑完整流水线
		if prompt != "" && status != statemachine.ProjectStatusVerified {
			project.Prompt = prompt
			if err := s.projects.Save(project); err != nil {
				return nil, fmt.Errorf("更新项目失败: %w", err)
			}
		}
	case errors.Is(err, repository.ErrNotFound):
		project = &model.Project{
			Name:   name,
			Prompt: prompt,
			Status: string(statemachine.ProjectStatusPending),
		}
		if err := s.projects.Create(project); err != nil {
			return nil, fmt.Errorf("创建项目失败: %w", err)
		}
	default:
		return nil, fmt.Errorf("查询项目失败: %w", err)
	}

	job := &orchestrator.Job{
		ProjectID:  project.ID,
		EnqueuedAt: time.Now(),
		Timeout:    s.cfg.JobTimeout(),
	}
	if err := s.orchestrator.EnqueueJob(job); err != nil {
		return nil, fmt.Errorf("任务入队失败: %w", err)
	}

	klog.V(6).Infof("构建请求已入队: name=%s, projectID=%d", name, project.ID)
	return project, nil
}

// Get 获取单个项目
func (s *BuildService) Get(id uint) (*model.Project, error) {
	return s.projects.Get(id)
}

// GetByName 按名称获取项目
func (s *BuildService) GetByName(name string) (*model.Project, error) {
	return s.projects.GetByName(name)
}

// List 列出全部项目
func (s *BuildService) List() ([]model.Project, error) {
	return s.projects.List()
}

// Cancel 取消正在执行的构建
func (s *BuildService) Cancel(id uint) bool {
	return s.orchestrator.CancelProject(id)
}

// Delete 删除项目记录
func (s *BuildService) Delete(id uint) error {
	project, err := s.projects.Get(id)
	if err != nil {
		return err
	}
	if statemachine.IsRunning(statemachine.ProjectStatus(project.Status)) {
		return fmt.Errorf("project is running, cancel it first")
	}
	return s.projects.Delete(id)
}

// QueueStatus 编排器负载
func (s *BuildService) QueueStatus() *orchestrator.QueueStatus {
	return s.orchestrator.GetQueueStatus()
}

// CleanupStuckProjects 清理卡住的构建记录（服务重启恢复用）
func (s *BuildService) CleanupStuckProjects(timeout time.Duration) (int64, error) {
	return s.projects.CleanupStuckProjects(timeout)
}
