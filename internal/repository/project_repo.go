package repository

import (
	"errors"
	"fmt"
	"time"

	"github.com/craftforge/backend/internal/model"
	"gorm.io/gorm"
)

type projectRepository struct {
	db *gorm.DB
}

func NewProjectRepository(db *gorm.DB) ProjectRepository {
	return &projectRepository{db: db}
}

func (r *projectRepository) Create(project *model.Project) error {
	return r.db.Create(project).Error
}

func (r *projectRepository) List() ([]model.Project, error) {
	var projects []model.Project
	err := r.db.Order("created_at desc").Find(&projects).Error
	return projects, err
}

func (r *projectRepository) Get(id uint) (*model.Project, error) {
	var project model.Project
	err := r.db.First(&project, id).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	return &project, nil
}

func (r *projectRepository) GetByName(name string) (*model.Project, error) {
	var project model.Project
	err := r.db.Where("name = ?", name).First(&project).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	return &project, nil
}

func (r *projectRepository) GetByStatus(status string) ([]model.Project, error) {
	var projects []model.Project
	err := r.db.Where("status = ?", status).Find(&projects).Error
	return projects, err
}

func (r *projectRepository) Save(project *model.Project) error {
	return r.db.Save(project).Error
}

// CleanupStuckProjects 清理卡住的非终态项目（开始执行后超过指定时间仍未结束）
// 用于服务重启后恢复一致状态
func (r *projectRepository) CleanupStuckProjects(timeout time.Duration) (int64, error) {
	cutoff := time.Now().Add(-timeout)
	result := r.db.Model(&model.Project{}).
		Where("status NOT IN ? AND started_at < ?", []string{"pending", "verified", "failed"}, cutoff).
		Updates(map[string]interface{}{
			"status":    "failed",
			"error_msg": fmt.Sprintf("构建超时（超过 %v），已自动标记为失败", timeout),
		})
	return result.RowsAffected, result.Error
}

func (r *projectRepository) Delete(id uint) error {
	return r.db.Delete(&model.Project{}, id).Error
}
