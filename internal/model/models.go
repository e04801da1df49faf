package model

import (
	"time"
)

// Project 一次插件构建请求对应的项目记录
// Status 取值见 statemachine.ProjectStatus
type Project struct {
	ID           uint       `json:"id" gorm:"primaryKey"`
	Name         string     `json:"name" gorm:"size:255;not null;uniqueIndex"`
	Prompt       string     `json:"prompt" gorm:"type:text"`
	Status       string     `json:"status" gorm:"size:50;default:pending"` // pending, extracting, generating, mutating, compiling, repairing, verified, failed
	Attempts     int        `json:"attempts" gorm:"default:0"`
	ErrorMsg     string     `json:"error_msg" gorm:"size:2000"`
	ArtifactPath string     `json:"artifact_path" gorm:"size:500"`
	LocalPath    string     `json:"local_path" gorm:"size:500"`
	StartedAt    *time.Time `json:"started_at" gorm:"column:started_at"`
	CompletedAt  *time.Time `json:"completed_at" gorm:"column:completed_at"`
	CreatedAt    time.Time  `json:"created_at"`
	UpdatedAt    time.Time  `json:"updated_at"`
}
