package db

import (
	"context"
	"log"

	"test-service/internal/config"

	"github.com/redis/go-redis/v9"
)

var RedisClient *redis.Client

func InitRedis(cfg config.RedisConfig) {
	if cfg.Address == "" {
		log.Println("Redis not configured, dashboard caching is disabled")
		return
	}

	RedisClient = redis.NewClient(&redis.Options{
		Addr:     cfg.Address,
		Password: cfg.Password,
		DB:       cfg.DB,
	})

	if err := RedisClient.Ping(context.Background()).Err(); err != nil {
		log.Printf("Error connecting to Redis: %v", err)
		RedisClient = nil
		return
	}
	log.Println("Connected to Redis")
}
