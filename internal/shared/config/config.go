package config

import (
	"fmt"
	"os"
	"strconv"
)

// ServerConfig holds the HTTP listener settings shared by all services.
type ServerConfig struct {
	Port int
	Env  string
}

// Addr returns the listen address for http.Server.
func (s ServerConfig) Addr() string {
	return fmt.Sprintf(":%d", s.Port)
}

// AuthConfig holds JWT settings for the production-only auth gate.
type AuthConfig struct {
	JWTSecret string
}

// BrokerConfig configures the central HIE broker.
type BrokerConfig struct {
	Server    ServerConfig
	Auth      AuthConfig
	StorePath string
	// RatePerSecond and RateBurst tune the per-IP limiter.
	RatePerSecond int
	RateBurst     int
}

// NodeConfig configures a hospital node.
type NodeConfig struct {
	Server    ServerConfig
	Auth      AuthConfig
	StorePath string
	// NodeCode selects the node identity and its local gender code table.
	NodeCode string
	NodeName string
	// BrokerURL is the base URL of the HIE broker this node reports to.
	BrokerURL     string
	RatePerSecond int
	RateBurst     int
}

// PortalConfig configures the clinical-workflow portal.
type PortalConfig struct {
	Server        ServerConfig
	StorePath     string
	RatePerSecond int
	RateBurst     int
}

// LoadBroker reads broker configuration from the environment.
func LoadBroker() (*BrokerConfig, error) {
	return &BrokerConfig{
		Server:        loadServer(9000),
		Auth:          loadAuth(),
		StorePath:     getEnv("STORE_PATH", "data/broker.json"),
		RatePerSecond: getEnvInt("RATE_LIMIT_RPS", 50),
		RateBurst:     getEnvInt("RATE_LIMIT_BURST", 100),
	}, nil
}

// LoadNode reads node configuration from the environment.
func LoadNode() (*NodeConfig, error) {
	code := getEnv("NODE_CODE", "general")
	return &NodeConfig{
		Server:        loadServer(9001),
		Auth:          loadAuth(),
		StorePath:     getEnv("STORE_PATH", fmt.Sprintf("data/node-%s.json", code)),
		NodeCode:      code,
		NodeName:      getEnv("NODE_NAME", code),
		BrokerURL:     getEnv("BROKER_URL", "http://localhost:9000"),
		RatePerSecond: getEnvInt("RATE_LIMIT_RPS", 50),
		RateBurst:     getEnvInt("RATE_LIMIT_BURST", 100),
	}, nil
}

// LoadPortal reads portal configuration from the environment.
func LoadPortal() (*PortalConfig, error) {
	return &PortalConfig{
		Server:        loadServer(9100),
		StorePath:     getEnv("STORE_PATH", "data/portal.json"),
		RatePerSecond: getEnvInt("RATE_LIMIT_RPS", 50),
		RateBurst:     getEnvInt("RATE_LIMIT_BURST", 100),
	}, nil
}

func loadServer(defaultPort int) ServerConfig {
	return ServerConfig{
		Port: getEnvInt("SERVER_PORT", defaultPort),
		Env:  getEnv("ENV", "development"),
	}
}

func loadAuth() AuthConfig {
	return AuthConfig{
		JWTSecret: getEnv("JWT_SECRET", "dev-secret-change-in-prod"),
	}
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if i, err := strconv.Atoi(value); err == nil {
			return i
		}
	}
	return defaultValue
}
