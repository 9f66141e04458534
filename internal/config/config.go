package config

import (
	"fmt"
	"os"
	"path/filepath"

	"martflow/internal/common"
	"martflow/pkg/models"

	"gopkg.in/yaml.v3"
)

func GetConfigPath() string {
	// Check for environment variable first
	if configPath := os.Getenv("MARTFLOW_CONFIG"); configPath != "" {
		return filepath.Dir(configPath)
	}
	home, _ := os.UserHomeDir()
	return filepath.Join(home, ".martflow")
}

func GetConfigFile() string {
	// Check for environment variable first
	if configFile := os.Getenv("MARTFLOW_CONFIG"); configFile != "" {
		// Validate the path to prevent directory traversal
		cleaned, err := common.CleanPath(configFile)
		if err != nil {
			// Fall back to default if invalid
			return filepath.Join(GetConfigPath(), "config.yaml")
		}
		return cleaned
	}
	return filepath.Join(GetConfigPath(), "config.yaml")
}

func Load() (*models.Config, error) {
	configFile := GetConfigFile()

	cleanedPath, err := common.CleanPath(configFile)
	if err != nil {
		return nil, fmt.Errorf("invalid config file path: %w", err)
	}

	if _, err := os.Stat(cleanedPath); os.IsNotExist(err) {
		return &models.Config{}, nil
	}

	data, err := os.ReadFile(cleanedPath) // #nosec G304 - path is validated
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	var config models.Config
	if err := yaml.Unmarshal(data, &config); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	// Stored passwords are encrypted at rest
	if IsEncrypted(config.Snowflake.Password) {
		plain, err := DecryptPassword(config.Snowflake.Password)
		if err != nil {
			return nil, fmt.Errorf("failed to decrypt warehouse password: %w", err)
		}
		config.Snowflake.Password = plain
	}

	return &config, nil
}

func Save(config *models.Config) error {
	configPath := GetConfigPath()
	if err := os.MkdirAll(configPath, 0700); err != nil {
		return fmt.Errorf("failed to create config directory: %w", err)
	}

	configFile := GetConfigFile()

	toSave := *config
	if toSave.Snowflake.Password != "" {
		encrypted, err := EncryptPassword(toSave.Snowflake.Password)
		if err != nil {
			return fmt.Errorf("failed to encrypt warehouse password: %w", err)
		}
		toSave.Snowflake.Password = encrypted
	}

	data, err := yaml.Marshal(&toSave)
	if err != nil {
		return fmt.Errorf("failed to marshal config: %w", err)
	}

	if err := os.WriteFile(configFile, data, 0600); err != nil {
		return fmt.Errorf("failed to write config file: %w", err)
	}

	return nil
}

func Exists() bool {
	_, err := os.Stat(GetConfigFile())
	return err == nil
}
