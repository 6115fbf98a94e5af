// Package config загружает настройки мигратора из YAML файла.
package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"

	"github.com/go-playground/validator/v10"
	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

type Config struct {
	Database Database `yaml:"database"`
	Migrator Migrator `yaml:"migrator"`
	Log      Log      `yaml:"log"`
}

type Database struct {
	Driver       string `yaml:"driver" validate:"required,oneof=postgres mysql sqlite"`
	DSN          string `yaml:"dsn" validate:"required"`
	Debug        bool   `yaml:"debug"`
	MaxOpenConns int    `yaml:"maxOpenConns" validate:"gte=0"`
}

type Migrator struct {
	TablePrefix string `yaml:"tablePrefix"`
}

type Log struct {
	Level string `yaml:"level" validate:"omitempty,oneof=trace debug info warn warning error"`
}

func Default() Config {
	return Config{
		Database: Database{Driver: "sqlite", DSN: "migrator.db"},
		Log:      Log{Level: "info"},
	}
}

// Load читает файл path. Перед разбором подгружаются переменные из .env (если файл есть),
// а ссылки ${VAR} в файле заменяются значениями окружения.
func Load(path string) (Config, error) {
	if err := godotenv.Load(); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return Config{}, fmt.Errorf("load .env: %w", err)
	}

	raw, err := os.ReadFile(path)
	if err != nil {
		return Config{}, fmt.Errorf("read config %s: %w", path, err)
	}

	return Parse(raw)
}

func Parse(raw []byte) (Config, error) {
	cfg := Default()
	if err := yaml.Unmarshal([]byte(os.ExpandEnv(string(raw))), &cfg); err != nil {
		return Config{}, fmt.Errorf("parse config: %w", err)
	}

	if err := validator.New().Struct(cfg); err != nil {
		return Config{}, fmt.Errorf("validate config: %w", err)
	}

	return cfg, nil
}
