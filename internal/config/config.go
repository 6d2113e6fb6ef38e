package config

import (
	"errors"
	"os"
	"strconv"
)

type Config struct {
	Port            string
	DatabaseDSN     string
	Env             string
	JWTPrivateKey   string
	JWTPublicKey    string
	TokenTTLMinutes int
}

func getenv(key, def string) string {
	v := os.Getenv(key)
	if v == "" {
		return def
	}
	return v
}

// Load 从环境变量读取配置。JWT 密钥对是去掉 PEM 头尾后的 Base64 DER 文本，
// dev 环境允许留空（启动时生成临时密钥对）。
func Load() Config {
	port := getenv("APP_PORT", "8080")
	dsn := getenv("DATABASE_DSN", "host=localhost user=postgres password=postgres dbname=microblog port=5432 sslmode=disable TimeZone=UTC")
	env := getenv("APP_ENV", "dev")
	privKey := os.Getenv("JWT_PRIVATE_KEY")
	pubKey := os.Getenv("JWT_PUBLIC_KEY")
	ttlStr := getenv("TOKEN_TTL_MINUTES", "60")
	ttl, _ := strconv.Atoi(ttlStr)
	if ttl <= 0 {
		ttl = 60
	}
	return Config{
		Port:            port,
		DatabaseDSN:     dsn,
		Env:             env,
		JWTPrivateKey:   privKey,
		JWTPublicKey:    pubKey,
		TokenTTLMinutes: ttl,
	}
}

// Validate 做启动前的基本检查：dev 之外的环境必须显式提供密钥对。
func Validate(cfg Config) error {
	if cfg.Port == "" {
		return errors.New("port must not be empty")
	}
	if cfg.DatabaseDSN == "" {
		return errors.New("database dsn must not be empty")
	}
	if cfg.Env != "dev" {
		if cfg.JWTPrivateKey == "" || cfg.JWTPublicKey == "" {
			return errors.New("jwt key pair must be provided outside dev")
		}
	}
	return nil
}
