package env

import (
	"os"
	"path/filepath"
)

// Daemon 当前进程是否以守护进程(server命令)方式运行
var Daemon bool = false

// (default: %USERPROFILE%/.fleet-keeper on Windows, $HOME/.fleet-keeper on Linux)
var FleetDir string = GetFleetDir()

/**
 * Get fleet-keeper user directory path
 * @returns {string} Returns user directory path, empty when HOME is unknown
 */
func GetFleetDir() string {
	homeDir, err := os.UserHomeDir()
	if err != nil {
		return ""
	}
	return filepath.Join(homeDir, ".fleet-keeper")
}

// Version 程序版本，构建时通过 -ldflags "-X fleet-keeper/internal/env.Version=..." 设置
var Version string = "1.0.0"
