package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

// DefaultAPIURL 未配置 API_URL 时使用的后端地址
const DefaultAPIURL = "http://localhost:5000"

type Config struct {
	Server     ServerConfig     `mapstructure:"server"`
	API        APIConfig        `mapstructure:"api"`
	Proxy      ProxyConfig      `mapstructure:"proxy"`
	Redis      RedisConfig      `mapstructure:"redis"`
	Upload     UploadConfig     `mapstructure:"upload"`
	Preprocess PreprocessConfig `mapstructure:"preprocess"`
}

type ServerConfig struct {
	Port         string        `mapstructure:"port"`
	Mode         string        `mapstructure:"mode"`
	ReadTimeout  time.Duration `mapstructure:"read_timeout"`
	WriteTimeout time.Duration `mapstructure:"write_timeout"`
}

// APIConfig 后端检测服务的客户端配置
type APIConfig struct {
	BaseURL string        `mapstructure:"base_url"`
	Timeout time.Duration `mapstructure:"timeout"`
	Token   string        `mapstructure:"token"`
}

// ProxyConfig 开发模式下 /api 转发规则
type ProxyConfig struct {
	Enabled      bool          `mapstructure:"enabled"`
	Prefix       string        `mapstructure:"prefix"`
	Target       string        `mapstructure:"target"`
	ChangeOrigin bool          `mapstructure:"change_origin"`
	Secure       bool          `mapstructure:"secure"`
	WS           bool          `mapstructure:"ws"`
	Timeout      time.Duration `mapstructure:"timeout"`
}

type RedisConfig struct {
	Addr     string        `mapstructure:"addr"`
	Password string        `mapstructure:"password"`
	DB       int           `mapstructure:"db"`
	TTL      time.Duration `mapstructure:"ttl"`
}

type UploadConfig struct {
	MaxSize      int64    `mapstructure:"max_size"`
	AllowedTypes []string `mapstructure:"allowed_types"`
}

type PreprocessConfig struct {
	MaxDimension int `mapstructure:"max_dimension"`
	JPEGQuality  int `mapstructure:"jpeg_quality"`
}

// Load 从 YAML 文件和环境变量加载配置，配置文件不存在时只使用默认值和环境变量
func Load(configPath string) (*Config, error) {
	if err := godotenv.Load(); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return nil, fmt.Errorf("failed to load .env: %w", err)
	}

	v := viper.New()
	setDefaults(v)
	if err := bindEnv(v); err != nil {
		return nil, err
	}

	if configPath != "" {
		if _, err := os.Stat(configPath); err == nil {
			v.SetConfigFile(configPath)
			v.SetConfigType("yaml")
			if err := v.ReadInConfig(); err != nil {
				return nil, fmt.Errorf("failed to read config file: %w", err)
			}
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	return &cfg, nil
}

// New 使用默认配置路径加载配置
func New() *Config {
	cfg, err := Load("config.yaml")
	if err != nil {
		// 如果加载失败，返回默认配置
		return getDefaultConfig()
	}
	return cfg
}

func bindEnv(v *viper.Viper) error {
	bindings := map[string][]string{
		"api.base_url": {"API_URL", "VITE_API_URL"},
		"api.token":    {"API_TOKEN"},
		"server.port":  {"SERVER_PORT"},
		"server.mode":  {"GIN_MODE"},
		"redis.addr":   {"REDIS_ADDR"},
		"proxy.target": {"PROXY_TARGET"},
	}
	for key, envs := range bindings {
		if err := v.BindEnv(append([]string{key}, envs...)...); err != nil {
			return fmt.Errorf("failed to bind env for %s: %w", key, err)
		}
	}
	return nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("server.port", ":8080")
	v.SetDefault("server.mode", "debug")
	v.SetDefault("server.read_timeout", 10*time.Second)
	v.SetDefault("server.write_timeout", 90*time.Second)

	v.SetDefault("api.base_url", DefaultAPIURL)
	v.SetDefault("api.timeout", 30*time.Second)
	v.SetDefault("api.token", "")

	v.SetDefault("proxy.enabled", true)
	v.SetDefault("proxy.prefix", "/api")
	v.SetDefault("proxy.target", "http://localhost:5000")
	v.SetDefault("proxy.change_origin", true)
	v.SetDefault("proxy.secure", false)
	v.SetDefault("proxy.ws", true)
	v.SetDefault("proxy.timeout", 60*time.Second)

	v.SetDefault("redis.addr", "localhost:6379")
	v.SetDefault("redis.password", "")
	v.SetDefault("redis.db", 0)
	v.SetDefault("redis.ttl", 24*time.Hour)

	v.SetDefault("upload.max_size", 50*1024*1024)
	v.SetDefault("upload.allowed_types", []string{"image/jpeg", "image/png", "image/jpg", "image/bmp"})

	v.SetDefault("preprocess.max_dimension", 4096)
	v.SetDefault("preprocess.jpeg_quality", 92)
}

func getDefaultConfig() *Config {
	return &Config{
		Server: ServerConfig{
			Port:         ":8080",
			Mode:         "debug",
			ReadTimeout:  10 * time.Second,
			WriteTimeout: 90 * time.Second,
		},
		API: APIConfig{
			BaseURL: DefaultAPIURL,
			Timeout: 30 * time.Second,
		},
		Proxy: ProxyConfig{
			Enabled:      true,
			Prefix:       "/api",
			Target:       "http://localhost:5000",
			ChangeOrigin: true,
			Secure:       false,
			WS:           true,
			Timeout:      60 * time.Second,
		},
		Redis: RedisConfig{
			Addr:     "localhost:6379",
			Password: "",
			DB:       0,
			TTL:      24 * time.Hour,
		},
		Upload: UploadConfig{
			MaxSize:      50 * 1024 * 1024,
			AllowedTypes: []string{"image/jpeg", "image/png", "image/jpg", "image/bmp"},
		},
		Preprocess: PreprocessConfig{
			MaxDimension: 4096,
			JPEGQuality:  92,
		},
	}
}
