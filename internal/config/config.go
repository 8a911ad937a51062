package config

import (
	"fmt"
	"os"
	"strconv"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

type Database struct {
	Host     string `yaml:"host"`
	Port     int    `yaml:"port"`
	User     string `yaml:"user"`
	Password string `yaml:"password"`
	Name     string `yaml:"database"`
	SSLMode  string `yaml:"sslmode"`
	MaxConns int    `yaml:"max_conns"`
}

type RabbitMQ struct {
	Host     string `yaml:"host"`
	Port     int    `yaml:"port"`
	User     string `yaml:"user"`
	Password string `yaml:"password"`
	VHost    string `yaml:"vhost"`
}

type Redis struct {
	Addr     string `yaml:"addr"`
	Password string `yaml:"password"`
	DB       int    `yaml:"db"`
	// CacheTTLSeconds bounds staleness of catalog lookups served from cache.
	CacheTTLSeconds int `yaml:"cache_ttl_seconds"`
}

type Server struct {
	Port    int    `yaml:"port"`
	LogMode string `yaml:"log_mode"`
}

type Attendance struct {
	// LocalOffsetMinutes is the fixed offset used to bucket worked minutes
	// into local calendar dates. Shifts themselves are stored in UTC.
	LocalOffsetMinutes int `yaml:"local_offset_minutes"`
}

type App struct {
	Database   Database   `yaml:"database"`
	Rabbit     RabbitMQ   `yaml:"rabbitmq"`
	Redis      Redis      `yaml:"redis"`
	Server     Server     `yaml:"server"`
	Attendance Attendance `yaml:"attendance"`
}

func Load(path string) (App, error) {
	// .env is optional; real deployments set the environment directly.
	_ = godotenv.Load()

	b, err := os.ReadFile(path)
	if err != nil {
		return App{}, fmt.Errorf("read config: %w", err)
	}

	a := defaults()
	if err := yaml.Unmarshal(b, &a); err != nil {
		return App{}, fmt.Errorf("parse config: %w", err)
	}
	applyEnv(&a)

	if a.Database.Host == "" || a.Database.User == "" || a.Database.Name == "" {
		return App{}, fmt.Errorf("database config incomplete")
	}
	if a.Rabbit.Host == "" || a.Rabbit.User == "" {
		return App{}, fmt.Errorf("rabbitmq config incomplete")
	}
	return a, nil
}

func defaults() App {
	return App{
		Database: Database{Port: 5432, SSLMode: "disable", MaxConns: 10},
		Rabbit:   RabbitMQ{Port: 5672, VHost: "/"},
		Redis:    Redis{Addr: "localhost:6379", CacheTTLSeconds: 60},
		Server:   Server{Port: 3000, LogMode: "development"},
		// Asia/Seoul (UTC+9), the restaurant's reporting day.
		Attendance: Attendance{LocalOffsetMinutes: 540},
	}
}

// applyEnv lets secrets come from the environment instead of the YAML file.
func applyEnv(a *App) {
	if v := os.Getenv("DB_HOST"); v != "" {
		a.Database.Host = v
	}
	if v := os.Getenv("DB_PORT"); v != "" {
		a.Database.Port = atoi(v, a.Database.Port)
	}
	if v := os.Getenv("DB_USER"); v != "" {
		a.Database.User = v
	}
	if v := os.Getenv("DB_PASSWORD"); v != "" {
		a.Database.Password = v
	}
	if v := os.Getenv("DB_NAME"); v != "" {
		a.Database.Name = v
	}
	if v := os.Getenv("RABBITMQ_HOST"); v != "" {
		a.Rabbit.Host = v
	}
	if v := os.Getenv("RABBITMQ_USER"); v != "" {
		a.Rabbit.User = v
	}
	if v := os.Getenv("RABBITMQ_PASSWORD"); v != "" {
		a.Rabbit.Password = v
	}
	if v := os.Getenv("REDIS_ADDR"); v != "" {
		a.Redis.Addr = v
	}
	if v := os.Getenv("SERVER_PORT"); v != "" {
		a.Server.Port = atoi(v, a.Server.Port)
	}
}

func atoi(s string, def int) int {
	n, err := strconv.Atoi(s)
	if err != nil {
		return def
	}
	return n
}

// Find returns the first config file that exists among the usual locations.
func Find() (string, error) {
	for _, p := range []string{"config.yaml", "config.yml", "deploy/config.example.yaml"} {
		if _, err := os.Stat(p); err == nil {
			return p, nil
		}
	}
	return "", os.ErrNotExist
}
