package config

import (
	"errors"
	"fmt"
)

var ErrInvalidRegistry = errors.New("invalid component registry")

// ConfigError 注册表或配置文件错误，在启动任何进程之前终止
type ConfigError struct {
	Component string
	Msg       string
	Err       error
}

func (e *ConfigError) Error() string {
	if e.Component != "" {
		if e.Err != nil {
			return fmt.Sprintf("config error: component '%s': %s: %v", e.Component, e.Msg, e.Err)
		}
		return fmt.Sprintf("config error: component '%s': %s", e.Component, e.Msg)
	}
	if e.Err != nil {
		return fmt.Sprintf("config error: %s: %v", e.Msg, e.Err)
	}
	return "config error: " + e.Msg
}

func (e *ConfigError) Unwrap() error {
	if e.Err != nil {
		return e.Err
	}
	return ErrInvalidRegistry
}

func invalidf(component, format string, args ...any) error {
	return &ConfigError{Component: component, Msg: fmt.Sprintf(format, args...)}
}
