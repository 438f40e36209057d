package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

// EnvPrefix 环境变量前缀, 如 BRIDGE_CONFIG_DIR
const EnvPrefix = "BRIDGE"

// ReceiptMode 交易回执等待方式
type ReceiptMode string

const (
	ReceiptNone ReceiptMode = "none" // 广播后立即返回
	ReceiptPoll ReceiptMode = "poll" // 定时轮询
	ReceiptWS   ReceiptMode = "ws"   // 订阅新区块, 网络未配置 wsURL 时退化为轮询
)

// AppConfig 应用配置
type AppConfig struct {
	ConfigDir     string        `mapstructure:"config_dir" validate:"required"`
	LedgerPath    string        `mapstructure:"ledger_path"` // 为空时使用内存存储
	PrivateKeyEnv string        `mapstructure:"private_key_env" validate:"required"`
	ProxyString   string        `mapstructure:"proxy"`
	Receipt       ReceiptMode   `mapstructure:"receipt" validate:"oneof=none poll ws"`
	PollInterval  time.Duration `mapstructure:"poll_interval"`
	RPCTimeout    time.Duration `mapstructure:"rpc_timeout"`
	LogLevel      string        `mapstructure:"log_level" validate:"oneof=debug info warn error"`
	QRCode        bool          `mapstructure:"qrcode"`
}

// DefaultAppConfig 默认配置
func DefaultAppConfig() AppConfig {
	return AppConfig{
		ConfigDir:     "configs",
		LedgerPath:    defaultLedgerPath(),
		PrivateKeyEnv: "BRIDGE_PRIVATE_KEY",
		Receipt:       ReceiptPoll,
		PollInterval:  2 * time.Second,
		RPCTimeout:    30 * time.Second,
		LogLevel:      "info",
	}
}

func defaultLedgerPath() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return ""
	}
	return filepath.Join(home, ".cross-bridge", "ledger")
}

// LoadEnv 加载 .env 文件 (不覆盖已存在的环境变量), 文件不存在时忽略
func LoadEnv(paths ...string) error {
	for _, p := range paths {
		if _, err := os.Stat(p); err != nil {
			continue
		}
		if err := godotenv.Load(p); err != nil {
			return fmt.Errorf("load env %s: %w", p, err)
		}
	}
	return nil
}

// LoadApp 加载应用配置
// path 为空时按 ./bridge.yaml, ~/.config/cross-bridge/bridge.yaml 顺序查找, 都不存在则使用默认值
// 环境变量 BRIDGE_<KEY> 覆盖文件中的值
func LoadApp(path string) (*AppConfig, error) {
	v := viper.New()
	def := DefaultAppConfig()
	v.SetDefault("config_dir", def.ConfigDir)
	v.SetDefault("ledger_path", def.LedgerPath)
	v.SetDefault("private_key_env", def.PrivateKeyEnv)
	v.SetDefault("proxy", def.ProxyString)
	v.SetDefault("receipt", string(def.Receipt))
	v.SetDefault("poll_interval", def.PollInterval)
	v.SetDefault("rpc_timeout", def.RPCTimeout)
	v.SetDefault("log_level", def.LogLevel)
	v.SetDefault("qrcode", def.QRCode)

	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("read config %s: %w", path, err)
		}
	} else {
		v.SetConfigName("bridge")
		v.AddConfigPath(".")
		if home, err := os.UserHomeDir(); err == nil {
			v.AddConfigPath(filepath.Join(home, ".config", "cross-bridge"))
		}
		if err := v.ReadInConfig(); err != nil {
			if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
				return nil, fmt.Errorf("read config: %w", err)
			}
		}
	}

	var cfg AppConfig
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("decode config: %w", err)
	}
	if err := Validate(cfg); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}
	return &cfg, nil
}

// PrivateKey 从配置的环境变量读取私钥
func (c *AppConfig) PrivateKey() (string, error) {
	key := strings.TrimSpace(os.Getenv(c.PrivateKeyEnv))
	if key == "" {
		return "", fmt.Errorf("%s is not set", c.PrivateKeyEnv)
	}
	return key, nil
}
