// conf/utils.go various util functions for configuration package
package conf

import (
	"bufio"
	"os"
	"path/filepath"
	"strings"

	"github.com/ocrwatch/frigate-ocr/internal/errors"
	"github.com/ocrwatch/frigate-ocr/internal/logger"
)

// ContainerConfigDir is the config mount used by the container image.
const ContainerConfigDir = "/config"

// GetDefaultConfigPaths returns the directories searched for config.yml.
// If a config file is found in one of them, only that directory is returned.
func GetDefaultConfigPaths() ([]string, error) {
	configPaths := []string{ContainerConfigDir}

	exePath, err := os.Executable()
	if err != nil {
		return nil, errors.New(err).
			Category(errors.CategorySystem).
			Context("operation", "get-executable-path").
			Build()
	}
	configPaths = append(configPaths, filepath.Dir(exePath))

	// A missing home directory is normal for service accounts
	if homeDir, err := os.UserHomeDir(); err == nil {
		configPaths = append(configPaths, filepath.Join(homeDir, ".config", "frigate-ocr"))
	}

	for _, path := range configPaths {
		for _, name := range []string{"config.yml", "config.yaml"} {
			if _, err := os.Stat(filepath.Join(path, name)); err == nil {
				return []string{path}, nil
			}
		}
	}

	// Outside a container the /config mount is usually not writable
	if !RunningInContainer() {
		configPaths = configPaths[1:]
	}

	return configPaths, nil
}

// RunningInContainer checks if the program is running inside a container.
func RunningInContainer() bool {
	if _, err := os.Stat("/.dockerenv"); err == nil {
		return true
	}

	if _, err := os.Stat("/run/.containerenv"); err == nil {
		return true
	}

	if containerEnv, exists := os.LookupEnv("container"); exists && containerEnv != "" {
		return true
	}

	file, err := os.Open("/proc/self/cgroup")
	if err != nil {
		return false
	}
	defer func() {
		if err := file.Close(); err != nil {
			GetLogger().Warn("Failed to close /proc/self/cgroup", logger.Error(err))
		}
	}()

	scanner := bufio.NewScanner(file)
	for scanner.Scan() {
		line := scanner.Text()
		if strings.Contains(line, "docker") || strings.Contains(line, "podman") || strings.Contains(line, "kubepods") {
			return true
		}
	}

	return false
}
