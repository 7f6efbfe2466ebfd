package config

import "errors"

var (
	// ErrConfigFileNotFound файл конфигурации не найден
	ErrConfigFileNotFound = errors.New("config file not found")
	// ErrInvalidConfigFormat файл конфигурации не разбирается как YAML
	ErrInvalidConfigFormat = errors.New("invalid config format")
	// ErrInvalidConfig значение конфигурации вне допустимого диапазона
	ErrInvalidConfig = errors.New("invalid config")
)
