// Package config loads runtime settings from defaults, an optional config
// file and POWERSIM_* environment variables, in increasing precedence.
package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// EnvPrefix is prepended to every environment variable, so sim.tick is read
// from POWERSIM_SIM_TICK.
const EnvPrefix = "POWERSIM"

type Config struct {
	Sim    Sim    `mapstructure:"sim"`
	HTTP   HTTP   `mapstructure:"http"`
	Log    Log    `mapstructure:"log"`
	SQL    SQL    `mapstructure:"sql"`
	Mongo  Mongo  `mapstructure:"mongo"`
	NATS   NATS   `mapstructure:"nats"`
	MQTT   MQTT   `mapstructure:"mqtt"`
	Kafka  Kafka  `mapstructure:"kafka"`
	AWS    AWS    `mapstructure:"aws"`
	Modbus Modbus `mapstructure:"modbus"`
}

type Sim struct {
	Tick     time.Duration `mapstructure:"tick"`
	Passes   int           `mapstructure:"passes"`
	Ordering string        `mapstructure:"ordering"`
	Seed     bool          `mapstructure:"seed"`
	Snapshot string        `mapstructure:"snapshot"`
	// SnapshotDir is where the file store keeps named snapshots.
	SnapshotDir string `mapstructure:"snapshotDir"`
}

type HTTP struct {
	Addr string `mapstructure:"addr"`
}

type Log struct {
	Level   string `mapstructure:"level"`
	Console bool   `mapstructure:"console"`
}

type SQL struct {
	Driver string `mapstructure:"driver"`
	DSN    string `mapstructure:"dsn"`
}

type Mongo struct {
	URI      string `mapstructure:"uri"`
	Database string `mapstructure:"database"`
}

type NATS struct {
	URL string `mapstructure:"url"`
}

type MQTT struct {
	Broker string `mapstructure:"broker"`
	Topic  string `mapstructure:"topic"`
}

type Kafka struct {
	Brokers []string `mapstructure:"brokers"`
	Topic   string   `mapstructure:"topic"`
}

type AWS struct {
	Region   string `mapstructure:"region"`
	Bucket   string `mapstructure:"bucket"`
	TopicArn string `mapstructure:"topicArn"`
}

type Modbus struct {
	Addr      string        `mapstructure:"addr"`
	SlaveID   byte          `mapstructure:"slaveId"`
	Register  uint16        `mapstructure:"register"`
	DataType  string        `mapstructure:"dataType"`
	Threshold float64       `mapstructure:"threshold"`
	PollRate  time.Duration `mapstructure:"pollrate"`
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("sim.tick", 20*time.Millisecond)
	v.SetDefault("sim.passes", 5)
	v.SetDefault("sim.ordering", "stored")
	v.SetDefault("sim.seed", true)
	v.SetDefault("sim.snapshot", "")
	v.SetDefault("sim.snapshotDir", "./snapshots")

	v.SetDefault("http.addr", ":8080")

	v.SetDefault("log.level", "info")
	v.SetDefault("log.console", false)

	v.SetDefault("sql.driver", "pgx")
	v.SetDefault("sql.dsn", "")

	v.SetDefault("mongo.uri", "")
	v.SetDefault("mongo.database", "powersim")

	v.SetDefault("nats.url", "")

	v.SetDefault("mqtt.broker", "")
	v.SetDefault("mqtt.topic", "powersim")

	v.SetDefault("kafka.brokers", []string{})
	v.SetDefault("kafka.topic", "powersim.ticks")

	v.SetDefault("aws.region", "us-east-1")
	v.SetDefault("aws.bucket", "")
	v.SetDefault("aws.topicArn", "")

	v.SetDefault("modbus.addr", "")
	v.SetDefault("modbus.slaveId", 1)
	v.SetDefault("modbus.register", 0)
	v.SetDefault("modbus.dataType", "u16")
	v.SetDefault("modbus.threshold", 0.5)
	v.SetDefault("modbus.pollrate", time.Second)
}

// Load reads the configuration. path may be empty, in which case only
// defaults and the environment apply.
func Load(path string) (Config, error) {
	v := viper.New()
	setDefaults(v)

	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			return Config{}, fmt.Errorf("read config %s: %w", path, err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return Config{}, fmt.Errorf("decode config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

func (c Config) Validate() error {
	if c.Sim.Tick <= 0 {
		return fmt.Errorf("sim.tick must be positive, got %v", c.Sim.Tick)
	}
	if c.Sim.Passes <= 0 {
		return fmt.Errorf("sim.passes must be positive, got %d", c.Sim.Passes)
	}
	switch c.Sim.Ordering {
	case "stored", "topological":
	default:
		return fmt.Errorf("sim.ordering must be stored or topological, got %q", c.Sim.Ordering)
	}
	return nil
}
