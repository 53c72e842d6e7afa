package consts

import (
	"os"
	"path/filepath"
)

const (
	HomeDirName      = ".macmate"
	ConfigFileName   = "config.yaml"
	TaskStoreRelPath = "scheduled_tasks.json"
	LogFileRelPath   = "logs/macmate.log"
)

// HomeDir honours MACMATE_HOME before falling back to ~/.macmate.
func HomeDir() string {
	if dir := os.Getenv("MACMATE_HOME"); dir != "" {
		return dir
	}
	home, _ := os.UserHomeDir()
	return filepath.Join(home, HomeDirName)
}

func DefaultConfigPath() string {
	return filepath.Join(HomeDir(), ConfigFileName)
}

func DefaultTaskStorePath() string {
	return filepath.Join(HomeDir(), TaskStoreRelPath)
}

func DefaultLogFilePath() string {
	return filepath.Join(HomeDir(), LogFileRelPath)
}
