package main

import (
	"microblog/internal/auth"
	"microblog/internal/config"
	"microblog/internal/db"
	clog "microblog/internal/log"
	"microblog/internal/server"

	"github.com/rs/zerolog/log"
)

func main() {
	// main 函数负责加载配置、初始化日志、装载签名密钥、连接数据库并启动 Gin 服务。
	cfg := config.Load()
	clog.Init(cfg.Env)

	if err := config.Validate(cfg); err != nil {
		log.Fatal().Err(err).Msg("config validate")
	}

	var keys *auth.KeyPair
	var err error
	if cfg.JWTPrivateKey == "" || cfg.JWTPublicKey == "" {
		// 只有 dev 能走到这里（Validate 已拦截其它环境），生成临时密钥对兜底。
		keys, err = auth.GenerateKeyPair()
		if err != nil {
			log.Fatal().Err(err).Msg("generate dev key pair")
		}
		log.Warn().Msg("JWT key pair not configured, using ephemeral dev keys; tokens will not survive restarts")
	} else {
		keys, err = auth.LoadKeyPair(cfg.JWTPrivateKey, cfg.JWTPublicKey)
		if err != nil {
			log.Fatal().Err(err).Msg("load jwt key pair")
		}
	}

	gdb, err := db.Connect(cfg.DatabaseDSN)
	if err != nil {
		log.Fatal().Err(err).Msg("db connect")
	}
	if err := db.Migrate(gdb); err != nil {
		log.Fatal().Err(err).Msg("db migrate")
	}

	r := server.SetupRouter(cfg, gdb, keys)
	if err := r.Run(":" + cfg.Port); err != nil {
		log.Fatal().Err(err).Msg("server run")
	}
}
