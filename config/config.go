package config

import (
	"bytes"
	_ "embed"
	"fmt"
	"time"

	"github.com/spf13/viper"
)

//go:embed config.yml
var embeddedConfig []byte

type JWTConfig struct {
	SecretKey        string        `mapstructure:"secretKey"`
	RefreshSecretKey string        `mapstructure:"refreshSecretKey"`
	Issuer           string        `mapstructure:"issuer"`
	AccessTokenTTL   time.Duration `mapstructure:"accessTokenTTL"`
	RefreshTokenTTL  time.Duration `mapstructure:"refreshTokenTTL"`
}

type S3Config struct {
	Region    string `mapstructure:"region"`
	Bucket    string `mapstructure:"bucket"`
	AccessKey string `mapstructure:"accessKey"`
	SecretKey string `mapstructure:"secretKey"`
	Endpoint  string `mapstructure:"endpoint"`
}

type Config struct {
	Mode         string    `mapstructure:"mode"`
	JWT          JWTConfig `mapstructure:"jwt"`
	S3           S3Config  `mapstructure:"s3"`
	Repositories struct {
		Postgres struct {
			Host     string `mapstructure:"host"`
			Password string `mapstructure:"password"`
			Port     string `mapstructure:"port"`
			Username string `mapstructure:"username"`
			DB       string `mapstructure:"db"`
			SSLMode  string `mapstructure:"sslmode"`
		} `mapstructure:"postgres"`
	} `mapstructure:"repositories"`
	Server struct {
		HTTPPort string        `mapstructure:"HTTPPort"`
		Timeout  time.Duration `mapstructure:"HTTPTimeout"`
	} `mapstructure:"server"`
}

func InitConfig() (Config, error) {
	var config Config
	v := viper.New()

	v.AddConfigPath(".")
	v.AddConfigPath("config")
	v.AddConfigPath("/app/config")

	v.SetConfigName("config")
	v.SetConfigType("yml")

	// Environment overrides for secret material so nothing sensitive has to
	// live in the checked-in yml.
	v.SetEnvPrefix("VOZ")
	v.AutomaticEnv()
	_ = v.BindEnv("jwt.secretKey", "VOZ_JWT_SECRET")
	_ = v.BindEnv("jwt.refreshSecretKey", "VOZ_JWT_REFRESH_SECRET")
	_ = v.BindEnv("s3.accessKey", "VOZ_S3_ACCESS_KEY")
	_ = v.BindEnv("s3.secretKey", "VOZ_S3_SECRET_KEY")

	err := v.ReadInConfig()
	if err != nil {
		fmt.Printf("Warning: Failed to find file-based config: %s. Falling back to embedded config.\n", err)
		if err = v.ReadConfig(bytes.NewReader(embeddedConfig)); err != nil {
			return Config{}, fmt.Errorf("failed to read embedded config: %s", err)
		}
	}

	if err = v.Unmarshal(&config); err != nil {
		return Config{}, fmt.Errorf("failed to unmarshal config: %s", err)
	}
	return config, nil
}
