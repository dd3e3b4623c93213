package utils

import (
	"os"
	"strconv"
	"time"

	"github.com/tartansystems/tartan_backend/config"
)

const registryCachePrefix = "ActiveRegistry:"

func GetCacheLifespan() time.Duration {
	lifespan, err := strconv.Atoi(os.Getenv("CACHE_LIFESPAN"))
	if err != nil {
		lifespan = 1
	}
	return time.Duration(lifespan) * time.Hour
}

func RegistryCacheKey(entityCode string) string {
	return registryCachePrefix + entityCode
}

// RetrieveRegistryTables returns the cached active table names for an entity.
func RetrieveRegistryTables(entityCode string) ([]string, bool, error) {
	if !config.RegistryCacheEnabled() {
		return nil, false, nil
	}
	var tables []string
	exists, err := config.GetRedisObject(RegistryCacheKey(entityCode), &tables)
	if err != nil || !exists {
		return nil, false, err
	}
	return tables, true, nil
}

func StoreRegistryTables(entityCode string, tables []string) error {
	if !config.RegistryCacheEnabled() {
		return nil
	}
	return config.SetRedisObject(RegistryCacheKey(entityCode), tables, GetCacheLifespan())
}

// ClearRegistryCache drops cached registries; called whenever schema metadata changes.
func ClearRegistryCache(entityCodes ...string) error {
	keys := make([]string, 0, len(entityCodes))
	for _, code := range entityCodes {
		keys = append(keys, RegistryCacheKey(code))
	}
	if len(keys) == 0 {
		return nil
	}
	return config.RemoveRedisKey(keys...)
}
