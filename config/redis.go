// config/redis.go
package config

import (
	"context"
	"encoding/json"
	"log"
	"os"
	"strconv"
	"time"

	"github.com/go-redis/redis/v8"
)

var RedisClient *redis.Client

// ConnectRedis establishes connection to Redis. Redis only backs display
// caches (stock distribution, admin summary), so a failed connection is a
// warning, not a fatal error.
func ConnectRedis() *redis.Client {
	redisAddr := os.Getenv("REDIS_ADDR")
	if redisAddr == "" {
		redisAddr = "localhost:6379"
	}

	redisPassword := os.Getenv("REDIS_PASSWORD")
	redisDB := 0

	if dbStr := os.Getenv("REDIS_DB"); dbStr != "" {
		if db, err := strconv.Atoi(dbStr); err == nil {
			redisDB = db
		}
	}

	client := redis.NewClient(&redis.Options{
		Addr:         redisAddr,
		Password:     redisPassword,
		DB:           redisDB,
		DialTimeout:  10 * time.Second,
		ReadTimeout:  30 * time.Second,
		WriteTimeout: 30 * time.Second,
		PoolSize:     10,
		MinIdleConns: 5,
		MaxRetries:   3,
	})

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	_, err := client.Ping(ctx).Result()
	if err != nil {
		log.Printf("Warning: Redis connection failed: %v", err)
		log.Println("Dashboard caching will be disabled")
		return nil
	}

	log.Println("Connected to Redis")
	RedisClient = client
	return client
}

// GetRedisClient returns the Redis client instance
func GetRedisClient() *redis.Client {
	return RedisClient
}

// CloseRedis closes the Redis connection
func CloseRedis() {
	if RedisClient != nil {
		RedisClient.Close()
	}
}

// CacheGet loads a cached JSON value into dest. Returns false when Redis is
// unavailable or the key is missing.
func CacheGet(ctx context.Context, key string, dest interface{}) bool {
	if RedisClient == nil {
		return false
	}
	val, err := RedisClient.Get(ctx, key).Result()
	if err != nil {
		return false
	}
	if err := json.Unmarshal([]byte(val), dest); err != nil {
		return false
	}
	return true
}

// CacheSet stores a JSON value with a TTL. Best effort.
func CacheSet(ctx context.Context, key string, value interface{}, ttl time.Duration) {
	if RedisClient == nil {
		return
	}
	data, err := json.Marshal(value)
	if err != nil {
		return
	}
	if err := RedisClient.Set(ctx, key, data, ttl).Err(); err != nil {
		log.Printf("Warning: failed to cache %s: %v", key, err)
	}
}

// CacheDel drops cached keys, used to invalidate after inventory mutations.
func CacheDel(ctx context.Context, keys ...string) {
	if RedisClient == nil || len(keys) == 0 {
		return
	}
	if err := RedisClient.Del(ctx, keys...).Err(); err != nil {
		log.Printf("Warning: failed to invalidate cache: %v", err)
	}
}
