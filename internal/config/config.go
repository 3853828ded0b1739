package config

import (
	"strings"
	"time"

	"github.com/spf13/viper"
)

type Config struct {
	Server       ServerConfig       `mapstructure:"server"`
	HTTP         HTTPConfig         `mapstructure:"http"`
	Log          LogConfig          `mapstructure:"log"`
	Auth         AuthConfig         `mapstructure:"auth"`
	Decoder      DecoderConfig      `mapstructure:"decoder"`
	Dispatcher   DispatcherConfig   `mapstructure:"dispatcher"`
	Storage      StorageConfig      `mapstructure:"storage"`
	MessageQueue MessageQueueConfig `mapstructure:"message_queue"`
}

type MessageQueueConfig struct {
	Enabled  bool           `mapstructure:"enabled"`
	Type     string         `mapstructure:"type"`     // kafka | rabbitmq
	Encoding string         `mapstructure:"encoding"` // json | cbor
	Topic    string         `mapstructure:"topic"`
	RabbitMQ RabbitMQConfig `mapstructure:"rabbitmq"`
	Kafka    KafkaConfig    `mapstructure:"kafka"`
}

type RabbitMQConfig struct {
	URL          string `mapstructure:"url"`
	VirtualHost  string `mapstructure:"virtual_host"`
	Exchange     string `mapstructure:"exchange"`
	ExchangeType string `mapstructure:"exchange_type"` // 默认 topic
	RoutingKey   string `mapstructure:"routing_key"`
	QueueName    string `mapstructure:"queue_name"`
}

type KafkaConfig struct {
	Brokers []string `mapstructure:"brokers"`
	Topic   string   `mapstructure:"topic"`
}

type ServerConfig struct {
	Port             int           `mapstructure:"port"`
	Host             string        `mapstructure:"host"`
	MaxLineSize      int           `mapstructure:"max_line_size"`
	HeartbeatTimeout time.Duration `mapstructure:"heartbeat_timeout"`
}

type HTTPConfig struct {
	Enabled bool   `mapstructure:"enabled"`
	Addr    string `mapstructure:"addr"`
}

type LogConfig struct {
	Level      string `mapstructure:"level"`
	Filename   string `mapstructure:"filename"`
	MaxSize    int    `mapstructure:"max_size"`
	MaxBackups int    `mapstructure:"max_backups"`
	MaxAge     int    `mapstructure:"max_age"`
	Compress   bool   `mapstructure:"compress"`
	Console    bool   `mapstructure:"console"`
}

// AuthConfig 设备白名单。为空时不校验 LOGIN。
type AuthConfig struct {
	Devices []DeviceConfig `mapstructure:"devices"`
}

type DeviceConfig struct {
	ID    string `mapstructure:"id"`
	Token string `mapstructure:"token"`
}

// DecoderConfig 可变长区段长度, 0 表示使用默认值
type DecoderConfig struct {
	CellTemperatureCount int `mapstructure:"cell_temperature_count"`
	BalanceStateCount    int `mapstructure:"balance_state_count"`
	FaultBitCount        int `mapstructure:"fault_bit_count"`
}

type DispatcherConfig struct {
	Workers    int `mapstructure:"workers"`
	BufferSize int `mapstructure:"buffer_size"`
}

type StorageConfig struct {
	Enabled bool   `mapstructure:"enabled"`
	Path    string `mapstructure:"path"`
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("server.host", "0.0.0.0")
	v.SetDefault("server.port", 9600)
	v.SetDefault("server.max_line_size", 16*1024)
	v.SetDefault("server.heartbeat_timeout", 5*time.Minute)

	v.SetDefault("http.enabled", true)
	v.SetDefault("http.addr", ":8080")

	v.SetDefault("log.level", "info")
	v.SetDefault("log.filename", "logs/bms-gateway.log")
	v.SetDefault("log.max_size", 100)
	v.SetDefault("log.max_backups", 7)
	v.SetDefault("log.max_age", 30)

	v.SetDefault("dispatcher.workers", 4)
	v.SetDefault("dispatcher.buffer_size", 10000)

	v.SetDefault("storage.enabled", true)
	v.SetDefault("storage.path", "data/frames.db")

	v.SetDefault("message_queue.type", "kafka")
	v.SetDefault("message_queue.encoding", "json")
	v.SetDefault("message_queue.topic", "bms_frames")
}

func LoadConfig(path string) (*Config, error) {
	v := viper.New()
	setDefaults(v)
	v.SetConfigFile(path)
	v.SetEnvPrefix("BMS")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if err := v.ReadInConfig(); err != nil {
		return nil, err
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, err
	}

	return &cfg, nil
}
