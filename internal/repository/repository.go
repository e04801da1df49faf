package repository

import (
	"errors"
	"time"

	"github.com/craftforge/backend/internal/model"
)

// ErrNotFound 记录不存在错误
var ErrNotFound = errors.New("record not found")

type ProjectRepository interface {
	Create(project *model.Project) error
	List() ([]model.Project, error)
	Get(id uint) (*model.Project, error)
	GetByName(name string) (*model.Project, error)
	GetByStatus(status string) ([]model.Project, error)
	Save(project *model.Project) error
	CleanupStuckProjects(timeout time.Duration) (int64, error)
	Delete(id uint) error
}
