package config

import (
	"log"
	"strings"

	"github.com/spf13/viper"
)

type Config struct {
	Station struct {
		Name string `mapstructure:"name"`
		Path string `mapstructure:"path"`
	} `mapstructure:"station"`
	Engine struct {
		Binary          string `mapstructure:"binary"`
		Verbose         bool   `mapstructure:"verbose"`
		SocketTimeout   int    `mapstructure:"socket_timeout_seconds"`
		RetryCount      int    `mapstructure:"retry_count"`
		RestartSeekBack int    `mapstructure:"restart_seek_back"`
		RefreshInterval int    `mapstructure:"refresh_interval_seconds"`
	} `mapstructure:"engine"`
	Server struct {
		APIPort     string `mapstructure:"api_port"`
		MetricsPort string `mapstructure:"metrics_port"`
		LogLevel    string `mapstructure:"log_level"`
	} `mapstructure:"server"`
	Database struct {
		Driver   string `mapstructure:"driver"`
		Path     string `mapstructure:"path"`
		Host     string `mapstructure:"host"`
		Port     string `mapstructure:"port"`
		User     string `mapstructure:"user"`
		Password string `mapstructure:"password"`
		Name     string `mapstructure:"name"`
	} `mapstructure:"database"`
	Storage struct {
		Provider   string `mapstructure:"provider"`
		ArchiveDir string `mapstructure:"archive_dir"`
		KeyID      string `mapstructure:"key_id"`
		AppKey     string `mapstructure:"app_key"`
		Endpoint   string `mapstructure:"endpoint"`
		Region     string `mapstructure:"region"`
		Bucket     string `mapstructure:"bucket"`
	} `mapstructure:"storage"`
}

func Load() *Config {
	viper.SetEnvPrefix("AIRCOX")
	viper.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	viper.AutomaticEnv()

	// Register keys
	viper.BindEnv("station.name")
	viper.BindEnv("station.path")
	viper.BindEnv("engine.binary")
	viper.BindEnv("engine.verbose")
	viper.BindEnv("engine.socket_timeout_seconds")
	viper.BindEnv("engine.retry_count")
	viper.BindEnv("engine.restart_seek_back")
	viper.BindEnv("engine.refresh_interval_seconds")
	viper.BindEnv("server.api_port")
	viper.BindEnv("server.metrics_port")
	viper.BindEnv("server.log_level")
	viper.BindEnv("database.driver")
	viper.BindEnv("database.path")
	viper.BindEnv("database.host")
	viper.BindEnv("database.port")
	viper.BindEnv("database.user")
	viper.BindEnv("database.password")
	viper.BindEnv("database.name")
	viper.BindEnv("storage.provider")
	viper.BindEnv("storage.archive_dir")
	viper.BindEnv("storage.key_id")
	viper.BindEnv("storage.app_key")
	viper.BindEnv("storage.endpoint")
	viper.BindEnv("storage.region")
	viper.BindEnv("storage.bucket")

	// Defaults
	viper.SetDefault("station.name", "Aircox")
	viper.SetDefault("station.path", "./station")
	viper.SetDefault("engine.binary", "liquidsoap")
	viper.SetDefault("engine.verbose", true)
	viper.SetDefault("engine.socket_timeout_seconds", 10)
	viper.SetDefault("engine.retry_count", 1)
	// The engine exposes no absolute playback position; restart() seeks
	// back by this many frames to cover up to ~10 hours of sound.
	viper.SetDefault("engine.restart_seek_back", 216000*10)
	viper.SetDefault("engine.refresh_interval_seconds", 5)
	viper.SetDefault("server.api_port", ":8000")
	viper.SetDefault("server.metrics_port", ":9091")
	viper.SetDefault("server.log_level", "info")
	viper.SetDefault("database.driver", "sqlite")
	viper.SetDefault("database.path", "./aircox.db")
	viper.SetDefault("database.port", "5432")
	viper.SetDefault("storage.provider", "local")
	viper.SetDefault("storage.archive_dir", "./archives")

	viper.SetConfigName("config")
	viper.SetConfigType("yaml")
	viper.AddConfigPath(".")
	viper.AddConfigPath("../")

	if err := viper.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			log.Printf("Warning: Config error: %s", err)
		} else {
			log.Println("Info: config.yaml not found, using Environment Variables only.")
		}
	}

	var cfg Config
	if err := viper.Unmarshal(&cfg); err != nil {
		log.Fatalf("Unable to decode config: %v", err)
	}

	return &cfg
}
