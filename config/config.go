package config

import (
	"os"
	"path/filepath"
	"strconv"
	"sync"
	"time"

	"gopkg.in/yaml.v3"
)

type Config struct {
	Server   ServerConfig   `yaml:"server"`
	Database DatabaseConfig `yaml:"database"`
	LLM      LLMConfig      `yaml:"llm"`
	Build    BuildConfig    `yaml:"build"`
	Pipeline PipelineConfig `yaml:"pipeline"`
	Data     DataConfig     `yaml:"data"`
}

type ServerConfig struct {
	Port string `yaml:"port"`
	Mode string `yaml:"mode"` // debug, release
}

type DatabaseConfig struct {
	Type string `yaml:"type"` // sqlite, mysql
	DSN  string `yaml:"dsn"`
}

type LLMConfig struct {
	APIURL    string `yaml:"api_url"`
	APIKey    string `yaml:"api_key"`
	Model     string `yaml:"model"`
	MaxTokens int    `yaml:"max_tokens"`
	// Timeout 单次 LLM 请求超时（秒）
	Timeout int `yaml:"timeout"`
}

// BuildConfig 外部构建工具（Maven）相关配置
type BuildConfig struct {
	MavenPath string `yaml:"maven_path"`
	// Timeout 单次构建超时（秒）
	Timeout int `yaml:"timeout"`
	// TemplateArchive 插件脚手架压缩包路径
	TemplateArchive string `yaml:"template_archive"`
	// GroupID 生成 pom.xml 时使用的 groupId 前缀
	GroupID string `yaml:"group_id"`
}

// PipelineConfig 构建修复流水线的策略配置
type PipelineConfig struct {
	// MaxFixAttempts 编译失败后允许的最大修复次数
	MaxFixAttempts int `yaml:"max_fix_attempts"`
	// CleanupPassCap 脚手架清理时空目录扫描的最大轮数
	CleanupPassCap int `yaml:"cleanup_pass_cap"`
	// MaxWorkers 并发执行的流水线数量上限
	MaxWorkers int `yaml:"max_workers"`
	// JobTimeout 单个流水线任务的总超时（秒）
	JobTimeout int `yaml:"job_timeout"`
}

type DataConfig struct {
	Dir string `yaml:"dir"`
	// ProjectDir 各插件项目根目录的父目录
	ProjectDir string `yaml:"project_dir"`
}

var (
	cfg  *Config
	once sync.Once
)

func GetConfig() *Config {
	once.Do(func() {
		cfg = loadConfig()
	})
	return cfg
}

func loadConfig() *Config {
	config := &Config{
		Server: ServerConfig{
			Port: "8080",
			Mode: "debug",
		},
		Database: DatabaseConfig{
			Type: "sqlite",
			DSN:  "./data/app.db",
		},
		LLM: LLMConfig{
			APIURL:    "https://api.openai.com/v1",
			Model:     "gpt-4o",
			MaxTokens: 8192,
			Timeout:   300,
		},
		Build: BuildConfig{
			MavenPath:       "mvn",
			Timeout:         600,
			TemplateArchive: "./assets/plugin-template.zip",
			GroupID:         "com.craftforge",
		},
		Pipeline: PipelineConfig{
			MaxFixAttempts: 2,
			CleanupPassCap: 5,
			MaxWorkers:     2,
			JobTimeout:     1800,
		},
		Data: DataConfig{
			Dir:        "./data",
			ProjectDir: "./data/projects",
		},
	}

	configPath := os.Getenv("CONFIG_PATH")
	if configPath == "" {
		configPath = "config.yaml"
	}

	data, err := os.ReadFile(configPath)
	if err == nil {
		yaml.Unmarshal(data, config)
	}

	// 环境变量优先级高于配置文件
	if apiKey := os.Getenv("OPENAI_API_KEY"); apiKey != "" {
		config.LLM.APIKey = apiKey
	}
	if baseURL := os.Getenv("OPENAI_BASE_URL"); baseURL != "" {
		config.LLM.APIURL = baseURL
	}
	if model := os.Getenv("OPENAI_MODEL_NAME"); model != "" {
		config.LLM.Model = model
	}

	// 数据库环境变量
	if dbType := os.Getenv("DB_TYPE"); dbType != "" {
		config.Database.Type = dbType
	}
	if dbDSN := os.Getenv("DB_DSN"); dbDSN != "" {
		config.Database.DSN = dbDSN
	}

	// 数据目录环境变量
	if dataDir := os.Getenv("DATA_DIR"); dataDir != "" {
		config.Data.Dir = dataDir
	}
	if projectDir := os.Getenv("PROJECT_DIR"); projectDir != "" {
		config.Data.ProjectDir = projectDir
	}
	if config.Data.ProjectDir == "" {
		config.Data.ProjectDir = filepath.Join(config.Data.Dir, "projects")
	}

	// 构建工具环境变量
	if mavenPath := os.Getenv("MAVEN_PATH"); mavenPath != "" {
		config.Build.MavenPath = mavenPath
	}
	if archive := os.Getenv("TEMPLATE_ARCHIVE"); archive != "" {
		config.Build.TemplateArchive = archive
	}
	if attempts := os.Getenv("MAX_FIX_ATTEMPTS"); attempts != "" {
		if n, err := strconv.Atoi(attempts); err == nil && n >= 0 {
			config.Pipeline.MaxFixAttempts = n
		}
	}

	return config
}

// BuildTimeout 构建超时时间
func (c *Config) BuildTimeout() time.Duration {
	return time.Duration(c.Build.Timeout) * time.Second
}

// LLMTimeout LLM 请求超时时间
func (c *Config) LLMTimeout() time.Duration {
	return time.Duration(c.LLM.Timeout) * time.Second
}

// JobTimeout 单个流水线任务超时时间
func (c *Config) JobTimeout() time.Duration {
	return time.Duration(c.Pipeline.JobTimeout) * time.Second
}

func (c *Config) Save(path string) error {
	data, err := yaml.Marshal(c)
	if err != nil {
		return err
	}
	return os.WriteFile(path, data, 0644)
}

func UpdateConfig(newCfg *Config) {
	cfg = newCfg
}
