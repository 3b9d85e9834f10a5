package config

import (
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/viper"
)

type Config struct {
	Server   ServerConfig   `mapstructure:"server"`
	Database DatabaseConfig `mapstructure:"database"`
	Redis    RedisConfig    `mapstructure:"redis"`
	JWT      JWTConfig      `mapstructure:"jwt"`
	CORS     CORSConfig     `mapstructure:"cors"`
	Backend  BackendConfig  `mapstructure:"backend"`
	Galaxy   GalaxyConfig   `mapstructure:"galaxy"`
	Callback CallbackConfig `mapstructure:"callback"`
	Sweep    SweepConfig    `mapstructure:"sweep"`
}

type ServerConfig struct {
	Host string `mapstructure:"host"`
	Port int    `mapstructure:"port"`
	Mode string `mapstructure:"mode"`
}

type DatabaseConfig struct {
	Host         string `mapstructure:"host"`
	Port         int    `mapstructure:"port"`
	Username     string `mapstructure:"username"`
	Password     string `mapstructure:"password"`
	Database     string `mapstructure:"database"`
	MaxIdleConns int    `mapstructure:"max_idle_conns"`
	MaxOpenConns int    `mapstructure:"max_open_conns"`
}

type RedisConfig struct {
	Host     string `mapstructure:"host"`
	Port     int    `mapstructure:"port"`
	Password string `mapstructure:"password"`
	DB       int    `mapstructure:"db"`
	PoolSize int    `mapstructure:"pool_size"`
}

type JWTConfig struct {
	Secret      string `mapstructure:"secret"`
	ExpireHours int    `mapstructure:"expire_hours"`
}

type CORSConfig struct {
	AllowedOrigins []string `mapstructure:"allowed_origins"`
	AllowedMethods []string `mapstructure:"allowed_methods"`
	AllowedHeaders []string `mapstructure:"allowed_headers"`
}

// BackendConfig 远端计算后端的调用参数
type BackendConfig struct {
	TimeoutSeconds  int `mapstructure:"timeout_seconds"`  // 单次远端调用超时（默认 30 秒）
	PollConcurrency int `mapstructure:"poll_concurrency"` // 批量轮询的并发上限
}

// GalaxyConfig Galaxy 结果文件的本地共享存储根目录
// （Galaxy 的输出由外部流程拷贝到共享存储，编排层只按相对路径读取）
type GalaxyConfig struct {
	ResultRoot string `mapstructure:"result_root"`
}

// CallbackConfig 任务状态回调入口
type CallbackConfig struct {
	Token string `mapstructure:"token"` // 为空时不校验
}

type SweepConfig struct {
	IntervalSeconds int `mapstructure:"interval_seconds"`
}

func Load(configPath string) (*Config, error) {
	// 优先尝试读取 config.local.yaml（包含真实密钥，不提交到git）
	dir := filepath.Dir(configPath)
	localConfigPath := filepath.Join(dir, "config.local.yaml")

	if _, err := os.Stat(localConfigPath); err == nil {
		configPath = localConfigPath
	}

	viper.SetConfigFile(configPath)
	viper.SetConfigType("yaml")

	// 环境变量覆盖
	viper.AutomaticEnv()
	viper.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))

	if err := viper.ReadInConfig(); err != nil {
		return nil, err
	}

	var cfg Config
	if err := viper.Unmarshal(&cfg); err != nil {
		return nil, err
	}

	return &cfg, nil
}

// BackendTimeoutSeconds 带默认值的后端调用超时
func (c *Config) BackendTimeoutSeconds() int {
	if c.Backend.TimeoutSeconds <= 0 {
		return 30
	}
	return c.Backend.TimeoutSeconds
}

// PollConcurrency 带默认值的轮询并发上限
func (c *Config) PollConcurrency() int {
	if c.Backend.PollConcurrency <= 0 {
		return 4
	}
	return c.Backend.PollConcurrency
}
