package config

import (
	"context"
	"encoding/json"
	"errors"
	"os"
	"time"

	"github.com/bsm/redislock"
	"github.com/redis/go-redis/v9"
	"github.com/sirupsen/logrus"
)

var (
	rdb    *redis.Client
	locker *redislock.Client
)
var ctx = context.Background()

func GetRedisDB() *redis.Client {
	return rdb
}

func GetRedisLock() *redislock.Client {
	return locker
}

// SetRedis installs an existing client (tests, tools).
func SetRedis(client *redis.Client) {
	rdb = client
	if client == nil {
		locker = nil
		return
	}
	locker = redislock.New(client)
}

func GetRedisObject(key string, dest interface{}) (bool, error) {
	if rdb == nil {
		return false, nil
	}
	val, err := rdb.Get(ctx, key).Result()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return false, nil
		}
		return false, err
	}
	err = json.Unmarshal([]byte(val), &dest)
	if err != nil {
		return false, err
	}
	return true, nil
}

func GetRedisValue(key string) (string, bool, error) {
	if rdb == nil {
		return "", false, nil
	}
	val, err := rdb.Get(ctx, key).Result()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return "", false, nil
		}
		return "", false, err
	}
	return val, true, nil
}

func SetRedisObject(key string, obj interface{}, exp time.Duration) error {
	if rdb == nil {
		return nil
	}
	objInByte, err := json.Marshal(obj)
	if err != nil {
		return err
	}
	return rdb.Set(ctx, key, objInByte, exp).Err()
}

func SetRedisValue(key string, value string, exp time.Duration) error {
	if rdb == nil {
		return nil
	}
	return rdb.Set(ctx, key, value, exp).Err()
}

func RemoveRedisKey(keys ...string) error {
	if rdb == nil || len(keys) == 0 {
		return nil
	}
	_, err := rdb.Del(ctx, keys...).Result()
	return err
}

// ConnectRedisWithRetry connects and sets the global Redis client and lock client.
// REDIS_ADDRESS=off runs without Redis: the registry cache is skipped and only the
// database posting lock applies.
func ConnectRedisWithRetry() {
	logger := GetLogger().WithFields(logrus.Fields{"field": "redis"})
	addr := os.Getenv("REDIS_ADDRESS")
	if addr == "off" {
		logger.Warn("REDIS_ADDRESS=off; running without redis")
		return
	}
	if addr == "" {
		addr = "localhost:6379"
		logger.Info("REDIS_ADDRESS not set; defaulting to " + addr)
	}

	for attempt := 1; ; attempt++ {
		client := redis.NewClient(&redis.Options{
			Addr:     addr,
			Password: os.Getenv("REDIS_PASSWORD"),
			DB:       intFromEnv("REDIS_DB", 0),
			PoolSize: intFromEnv("REDIS_POOL_SIZE", 20),
		})
		err := client.Ping(ctx).Err()
		if err == nil {
			SetRedis(client)
			logger.WithFields(logrus.Fields{"attempt": attempt, "addr": addr}).Info("connected to redis")
			return
		}
		_ = client.Close()
		wait := retryDelay(attempt)
		logger.WithFields(logrus.Fields{"attempt": attempt, "addr": addr, "retry_in": wait.String()}).
			Warn("failed to connect redis: " + err.Error())
		time.Sleep(wait)
	}
}
