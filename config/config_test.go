package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

// 测试默认配置值
func TestLoadConfigDefaults(t *testing.T) {
	t.Setenv("CONFIG_PATH", filepath.Join(t.TempDir(), "no-such-config.yaml"))

	cfg := loadConfig()

	assert.Equal(t, "8080", cfg.Server.Port)
	assert.Equal(t, "sqlite", cfg.Database.Type)
	assert.Equal(t, "mvn", cfg.Build.MavenPath)
	assert.Equal(t, 2, cfg.Pipeline.MaxFixAttempts, "默认修复预算应为 2")
	assert.Equal(t, 5, cfg.Pipeline.CleanupPassCap)
	assert.Equal(t, 2, cfg.Pipeline.MaxWorkers)
}

// 测试配置文件覆盖默认值
func TestLoadConfigFromFile(t *testing.T) {
	configPath := filepath.Join(t.TempDir(), "config.yaml")
	content := `server:
  port: "9090"
build:
  maven_path: /opt/maven/bin/mvn
  template_archive: /srv/templates/plugin.zip
pipeline:
  max_fix_attempts: 4
`
	if err := os.WriteFile(configPath, []byte(content), 0644); err != nil {
		t.Fatalf("write config: %v", err)
	}
	t.Setenv("CONFIG_PATH", configPath)

	cfg := loadConfig()

	assert.Equal(t, "9090", cfg.Server.Port)
	assert.Equal(t, "/opt/maven/bin/mvn", cfg.Build.MavenPath)
	assert.Equal(t, "/srv/templates/plugin.zip", cfg.Build.TemplateArchive)
	assert.Equal(t, 4, cfg.Pipeline.MaxFixAttempts)
	// 未覆盖的段保持默认
	assert.Equal(t, "sqlite", cfg.Database.Type)
}

// 测试环境变量优先级高于配置文件
func TestLoadConfigEnvOverrides(t *testing.T) {
	t.Setenv("CONFIG_PATH", filepath.Join(t.TempDir(), "no-such-config.yaml"))
	t.Setenv("OPENAI_API_KEY", "sk-test")
	t.Setenv("OPENAI_BASE_URL", "http://localhost:11434/v1")
	t.Setenv("MAVEN_PATH", "/usr/local/bin/mvn")
	t.Setenv("MAX_FIX_ATTEMPTS", "0")

	cfg := loadConfig()

	assert.Equal(t, "sk-test", cfg.LLM.APIKey)
	assert.Equal(t, "http://localhost:11434/v1", cfg.LLM.APIURL)
	assert.Equal(t, "/usr/local/bin/mvn", cfg.Build.MavenPath)
	assert.Equal(t, 0, cfg.Pipeline.MaxFixAttempts, "预算为 0 表示只编译不修复")
}

// 测试超时换算
func TestTimeoutHelpers(t *testing.T) {
	cfg := &Config{
		Build:    BuildConfig{Timeout: 600},
		LLM:      LLMConfig{Timeout: 300},
		Pipeline: PipelineConfig{JobTimeout: 1800},
	}

	assert.Equal(t, 10*time.Minute, cfg.BuildTimeout())
	assert.Equal(t, 5*time.Minute, cfg.LLMTimeout())
	assert.Equal(t, 30*time.Minute, cfg.JobTimeout())
}
