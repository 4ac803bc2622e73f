package config

// Redis backs the auth rate limiter and the product list cache. If the
// server cannot be reached at startup both features are disabled.

import (
	"context"
	"crypto/tls"
	"os"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"
)

// RedisOptions builds client options from REDIS_* variables:
//
//	REDIS_HOST and REDIS_PORT  hostname and port of the Redis server
//	REDIS_ADDR                 host:port shorthand, used when host/port are unset
//	REDIS_PASSWORD             optional password
//	REDIS_DB                   database number (default 0)
//	REDIS_TLS                  enable TLS when "true" or "1"
func RedisOptions(lookup Lookup) *redis.Options {
	e := env{lookup: lookup}
	addr := e.str("REDIS_ADDR", "")
	if host, port := e.raw("REDIS_HOST"), e.raw("REDIS_PORT"); host != "" && port != "" {
		addr = host + ":" + port
	}
	if addr == "" {
		addr = "localhost:6379"
	}
	var tlsConf *tls.Config
	if v := e.raw("REDIS_TLS"); strings.EqualFold(v, "true") || v == "1" {
		tlsConf = &tls.Config{InsecureSkipVerify: true}
	}
	return &redis.Options{
		Addr:      addr,
		Password:  e.raw("REDIS_PASSWORD"),
		DB:        e.num("REDIS_DB", 0),
		TLSConfig: tlsConf,
	}
}

// NewRedisClient connects using the process environment. It returns nil
// when the server does not answer a ping within two seconds.
func NewRedisClient(ctx context.Context) *redis.Client {
	client := redis.NewClient(RedisOptions(os.LookupEnv))
	ctx, cancel := context.WithTimeout(ctx, 2*time.Second)
	defer cancel()
	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close()
		return nil
	}
	return client
}
