package main

import (
	"context"

	"github.com/craftforge/backend/internal/service/pipeline"
)

// pipelineExecutorAdapter 把 pipeline.Controller 适配成编排器的执行接口
// 流水线的终态失败已经落库并发布事件，不算执行错误；
// 只有基础设施层面的问题（项目不存在、同名并发）才向编排器报错
type pipelineExecutorAdapter struct {
	controller *pipeline.Controller
}

func (a *pipelineExecutorAdapter) ExecuteProject(ctx context.Context, projectID uint) error {
	_, err := a.controller.Run(ctx, projectID)
	return err
}
