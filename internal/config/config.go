package config

import (
	"errors"
	"io/fs"
	"log"
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"
)

type Config struct {
	HTTPAddr string
	GRPCAddr string

	StoreDriver string // mysql | sqlite3
	StoreDSN    string

	RedisAddr string // empty: locks are process-local
	LockTTL   time.Duration
	LockWait  time.Duration

	MQTTBroker      string
	MQTTPort        int
	MQTTClientID    string
	MQTTUsername    string
	MQTTPassword    string
	MQTTTopic       string
	MQTTQoS         int
	DispatchTimeout time.Duration

	AllowUnknownPurchaser bool

	SheetInventory string
	SheetUsers     string
	SheetSales     string

	HealthInterval time.Duration
}

func getenv(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}

func atoiEnv(key string, def int) int {
	v := getenv(key, "")
	if v == "" {
		return def
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		log.Printf("invalid int env %s=%s, using default %d", key, v, def)
		return def
	}
	return n
}

func durationEnv(key string, def time.Duration) time.Duration {
	v := getenv(key, "")
	if v == "" {
		return def
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		log.Printf("invalid duration env %s=%s, using default %s", key, v, def)
		return def
	}
	return d
}

func boolEnv(key string, def bool) bool {
	v := getenv(key, "")
	if v == "" {
		return def
	}
	b, err := strconv.ParseBool(v)
	if err != nil {
		log.Printf("invalid bool env %s=%s, using default %t", key, v, def)
		return def
	}
	return b
}

// Load reads the environment, after merging in a .env file if one exists.
// Variables already set take precedence over the file.
func Load() Config {
	if err := godotenv.Load(); err != nil && !errors.Is(err, fs.ErrNotExist) {
		log.Printf("ignoring .env: %v", err)
	}

	return Config{
		HTTPAddr: getenv("HTTP_ADDR", ":8080"),
		GRPCAddr: getenv("GRPC_ADDR", ":50051"),

		StoreDriver: getenv("STORE_DRIVER", "sqlite3"),
		StoreDSN:    getenv("STORE_DSN", "file:vending.db?_busy_timeout=5000"),

		RedisAddr: getenv("REDIS_ADDR", ""),
		LockTTL:   durationEnv("LOCK_TTL", 10*time.Second),
		LockWait:  durationEnv("LOCK_WAIT", 5*time.Second),

		MQTTBroker:      getenv("MQTT_BROKER", "tcp://broker.hivemq.com"),
		MQTTPort:        atoiEnv("MQTT_PORT", 1883),
		MQTTClientID:    getenv("MQTT_CLIENT_ID", ""),
		MQTTUsername:    getenv("MQTT_USERNAME", ""),
		MQTTPassword:    getenv("MQTT_PASSWORD", ""),
		MQTTTopic:       getenv("MQTT_TOPIC", "vending/dispense"),
		MQTTQoS:         atoiEnv("MQTT_QOS", 0),
		DispatchTimeout: durationEnv("DISPATCH_TIMEOUT", 3*time.Second),

		AllowUnknownPurchaser: boolEnv("ALLOW_UNKNOWN_PURCHASER", true),

		SheetInventory: getenv("SHEET_INVENTORY", "inventory"),
		SheetUsers:     getenv("SHEET_USERS", "users"),
		SheetSales:     getenv("SHEET_SALES", "sales"),

		HealthInterval: durationEnv("HEALTH_INTERVAL", 30*time.Second),
	}
}
