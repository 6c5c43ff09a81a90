package main

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"time"

	"github.com/spf13/pflag"
	"github.com/spf13/viper"

	"github.com/sharetube/review/internal/app"
)

type configVar[T any] struct {
	envKey       string
	flagKey      string
	defaultValue T
}

var (
	secret = configVar[string]{
		envKey:       "SERVER_SECRET",
		flagKey:      "secret",
		defaultValue: "",
	}
	port = configVar[int]{
		envKey:       "SERVER_PORT",
		flagKey:      "port",
		defaultValue: 80,
	}
	host = configVar[string]{
		envKey:       "SERVER_HOST",
		flagKey:      "host",
		defaultValue: "0.0.0.0",
	}
	logLevel = configVar[string]{
		envKey:       "SERVER_LOG_LEVEL",
		flagKey:      "log-level",
		defaultValue: "INFO",
	}
	dbPath = configVar[string]{
		envKey:       "SERVER_DB_PATH",
		flagKey:      "db-path",
		defaultValue: "/var/lib/review/review.db",
	}
	presenceTTL = configVar[time.Duration]{
		envKey:       "SERVER_PRESENCE_TTL",
		flagKey:      "presence-ttl",
		defaultValue: 5 * time.Minute,
	}
	tokenTTL = configVar[time.Duration]{
		envKey:       "SERVER_TOKEN_TTL",
		flagKey:      "token-ttl",
		defaultValue: 24 * time.Hour,
	}
	handshakeTimeout = configVar[time.Duration]{
		envKey:       "SERVER_HANDSHAKE_TIMEOUT",
		flagKey:      "handshake-timeout",
		defaultValue: 10 * time.Second,
	}
	redisPort = configVar[int]{
		envKey:       "REDIS_PORT",
		flagKey:      "redis-port",
		defaultValue: 6379,
	}
	redisHost = configVar[string]{
		envKey:       "REDIS_HOST",
		flagKey:      "redis-host",
		defaultValue: "localhost",
	}
	redisPassword = configVar[string]{
		envKey:       "REDIS_PASSWORD",
		flagKey:      "redis-password",
		defaultValue: "",
	}
)

func loadAppConfig() *app.AppConfig {
	pflag.String(secret.flagKey, secret.defaultValue, "Secret used to sign join tokens")
	pflag.Int(port.flagKey, port.defaultValue, "Server port")
	pflag.String(host.flagKey, host.defaultValue, "Server host")
	pflag.String(logLevel.flagKey, logLevel.defaultValue, "Logging level")
	pflag.String(dbPath.flagKey, dbPath.defaultValue, "Path to the sqlite database")
	pflag.Duration(presenceTTL.flagKey, presenceTTL.defaultValue, "How long a member stays active after last seen")
	pflag.Duration(tokenTTL.flagKey, tokenTTL.defaultValue, "Join token lifetime")
	pflag.Duration(handshakeTimeout.flagKey, handshakeTimeout.defaultValue, "Time a client has to send HELLO")
	pflag.Int(redisPort.flagKey, redisPort.defaultValue, "Redis port")
	pflag.String(redisHost.flagKey, redisHost.defaultValue, "Redis host")
	pflag.String(redisPassword.flagKey, redisPassword.defaultValue, "Redis password")
	pflag.Parse()

	viper.BindPFlags(pflag.CommandLine)

	viper.BindEnv(secret.flagKey, secret.envKey)
	viper.BindEnv(port.flagKey, port.envKey)
	viper.BindEnv(host.flagKey, host.envKey)
	viper.BindEnv(logLevel.flagKey, logLevel.envKey)
	viper.BindEnv(dbPath.flagKey, dbPath.envKey)
	viper.BindEnv(presenceTTL.flagKey, presenceTTL.envKey)
	viper.BindEnv(tokenTTL.flagKey, tokenTTL.envKey)
	viper.BindEnv(handshakeTimeout.flagKey, handshakeTimeout.envKey)
	viper.BindEnv(redisPort.flagKey, redisPort.envKey)
	viper.BindEnv(redisHost.flagKey, redisHost.envKey)
	viper.BindEnv(redisPassword.flagKey, redisPassword.envKey)

	viper.SetDefault(secret.flagKey, secret.defaultValue)
	viper.SetDefault(port.flagKey, port.defaultValue)
	viper.SetDefault(host.flagKey, host.defaultValue)
	viper.SetDefault(logLevel.flagKey, logLevel.defaultValue)
	viper.SetDefault(dbPath.flagKey, dbPath.defaultValue)
	viper.SetDefault(presenceTTL.flagKey, presenceTTL.defaultValue)
	viper.SetDefault(tokenTTL.flagKey, tokenTTL.defaultValue)
	viper.SetDefault(handshakeTimeout.flagKey, handshakeTimeout.defaultValue)
	viper.SetDefault(redisPort.flagKey, redisPort.defaultValue)
	viper.SetDefault(redisHost.flagKey, redisHost.defaultValue)
	viper.SetDefault(redisPassword.flagKey, redisPassword.defaultValue)

	return &app.AppConfig{
		Secret:           viper.GetString(secret.flagKey),
		Host:             viper.GetString(host.flagKey),
		Port:             viper.GetInt(port.flagKey),
		LogLevel:         viper.GetString(logLevel.flagKey),
		DBPath:           viper.GetString(dbPath.flagKey),
		PresenceTTL:      viper.GetDuration(presenceTTL.flagKey),
		TokenTTL:         viper.GetDuration(tokenTTL.flagKey),
		HandshakeTimeout: viper.GetDuration(handshakeTimeout.flagKey),
		RedisPort:        viper.GetInt(redisPort.flagKey),
		RedisHost:        viper.GetString(redisHost.flagKey),
		RedisPassword:    viper.GetString(redisPassword.flagKey),
	}
}

func main() {
	ctx := context.Background()

	appConfig := loadAppConfig()
	if err := appConfig.Validate(); err != nil {
		log.Fatalf("invalid config: %v", err)
	}

	jsonConfig, _ := json.MarshalIndent(appConfig, "", "  ")
	fmt.Printf("starting app with config: %s\n", jsonConfig)

	log.Fatal(app.Run(ctx, appConfig))
}
