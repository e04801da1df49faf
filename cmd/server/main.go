package main

import (
	"flag"
	"log"
	"os"
	"time"

	"k8s.io/klog/v2"

	"github.com/craftforge/backend/config"
	"github.com/craftforge/backend/internal/eventbus"
	"github.com/craftforge/backend/internal/handler"
	"github.com/craftforge/backend/internal/pkg/database"
	"github.com/craftforge/backend/internal/pkg/llm"
	"github.com/craftforge/backend/internal/pkg/maven"
	"github.com/craftforge/backend/internal/repository"
	"github.com/craftforge/backend/internal/router"
	"github.com/craftforge/backend/internal/service"
	"github.com/craftforge/backend/internal/service/generator"
	"github.com/craftforge/backend/internal/service/orchestrator"
	"github.com/craftforge/backend/internal/service/pipeline"
	"github.com/craftforge/backend/internal/subscriber"
)

func main() {
	// 初始化 klog
	klog.InitFlags(nil)
	flag.Parse()
	defer klog.Flush()

	klog.V(6).Info("服务启动中...")

	cfg := config.GetConfig()

	if err := os.MkdirAll(cfg.Data.Dir, 0755); err != nil {
		log.Fatalf("Failed to create data directory: %v", err)
	}
	if err := os.MkdirAll(cfg.Data.ProjectDir, 0755); err != nil {
		log.Fatalf("Failed to create project directory: %v", err)
	}

	// 初始化数据库
	db, err := database.InitDB(cfg.Database.Type, cfg.Database.DSN)
	if err != nil {
		log.Fatalf("Failed to initialize database: %v", err)
	}

	// 初始化 Repository
	projectRepo := repository.NewProjectRepository(db)

	// 初始化进度事件总线与日志订阅
	bus := eventbus.NewBuildEventBus()
	defer subscriber.RegisterBuildEventLogger(bus)()

	// 初始化流水线依赖：LLM 生成器 + Maven 运行器
	oracle := generator.NewClient(llm.NewClient(cfg))
	builder := maven.NewMavenRunner(cfg.Build.MavenPath, cfg.BuildTimeout(), cfg.Build.GroupID)
	controller := pipeline.NewController(cfg, projectRepo, oracle, builder, bus)

	// 初始化 Service
	buildService := service.NewBuildService(cfg, projectRepo)

	// 初始化任务编排器
	// maxWorkers 默认为 2，避免并发过多打爆 CPU/LLM 配额
	executor := &pipelineExecutorAdapter{controller: controller}
	orch, err := orchestrator.NewOrchestrator(cfg.Pipeline.MaxWorkers, cfg.JobTimeout(), executor)
	if err != nil {
		log.Fatalf("Failed to initialize orchestrator: %v", err)
	}
	orch.Start()
	defer orch.Stop()
	buildService.SetOrchestrator(orch)

	// 启动时清理卡住的构建记录
	cleanupStuckProjects(buildService)

	// 初始化 Handler 与路由
	projectHandler := handler.NewProjectHandler(buildService)
	r := router.Setup(cfg, projectHandler)

	log.Printf("Server starting on port %s...", cfg.Server.Port)
	if err := r.Run(":" + cfg.Server.Port); err != nil {
		log.Fatalf("Failed to start server: %v", err)
	}
}

// cleanupStuckProjects 清理启动前卡在中间状态的构建
func cleanupStuckProjects(buildService *service.BuildService) {
	timeout := 30 * time.Minute

	affected, err := buildService.CleanupStuckProjects(timeout)
	if err != nil {
		klog.V(6).Infof("清理卡住构建失败: %v", err)
		return
	}

	if affected > 0 {
		klog.V(6).Infof("启动时清理了 %d 个卡住的构建", affected)
	}
}
