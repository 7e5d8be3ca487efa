package util

import (
	_ "embed"
	"fmt"
	"gopkg.in/yaml.v3"
	"log"
	"os"
	"strconv"
)

const Name = "loxodon"
const ConfigFileName = "config.yaml"

//go:embed config_default.yaml
var embeddedConfig []byte

type AppConfig struct {
	Conf struct {
		Host           string
		MetricsPort    int    `yaml:"metricsPort"`
		SslDomain      string `yaml:"sslDomain"`
		NatsUrl        string `yaml:"natsUrl"`
		QueueDriver    string `yaml:"queueDriver"`
		DeliveryTopic  string `yaml:"deliveryTopic"`
		WithConsumer   bool   `yaml:"withConsumer"`
		PregenInterval int    `yaml:"pregenInterval"`
	}
}

func ReadConf() (*AppConfig, error) {

	c := &AppConfig{}

	// Try to resolve config file path (local first, then user dir)
	configPath := ResolveFilePath(ConfigFileName)

	var buf []byte
	var err error

	// Try to read from resolved path
	buf, err = os.ReadFile(configPath)
	if err != nil {
		// If file doesn't exist, use embedded config and create user config file
		log.Printf("Config file not found at %s, using embedded defaults", configPath)
		buf = embeddedConfig

		// Try to write default config to user config directory
		configDir, dirErr := GetConfigDir()
		if dirErr == nil {
			userConfigPath := configDir + "/" + ConfigFileName
			writeErr := os.WriteFile(userConfigPath, embeddedConfig, 0644)
			if writeErr != nil {
				log.Printf("Warning: could not write default config to %s: %v", userConfigPath, writeErr)
			} else {
				log.Printf("Created default config file at %s", userConfigPath)
			}
		}
	}

	err = yaml.Unmarshal(buf, c)
	if err != nil {
		return nil, fmt.Errorf("in config file: %w", err)
	}

	envHost := os.Getenv("LOXODON_HOST")
	envMetricsPort := os.Getenv("LOXODON_METRICSPORT")
	envSslDomain := os.Getenv("LOXODON_SSLDOMAIN")
	envNatsUrl := os.Getenv("LOXODON_NATSURL")
	envQueueDriver := os.Getenv("LOXODON_QUEUEDRIVER")
	envDeliveryTopic := os.Getenv("LOXODON_DELIVERYTOPIC")
	envWithConsumer := os.Getenv("LOXODON_WITH_CONSUMER")
	envPregenInterval := os.Getenv("LOXODON_PREGEN_INTERVAL")

	if envHost != "" {
		c.Conf.Host = envHost
	}

	if envMetricsPort != "" {
		v, err := strconv.Atoi(envMetricsPort)
		if err != nil {
			fmt.Println(err)
		}
		c.Conf.MetricsPort = v
	}

	if envSslDomain != "" {
		c.Conf.SslDomain = envSslDomain
	}

	if envNatsUrl != "" {
		c.Conf.NatsUrl = envNatsUrl
	}

	if envQueueDriver != "" {
		c.Conf.QueueDriver = envQueueDriver
	}

	if envDeliveryTopic != "" {
		c.Conf.DeliveryTopic = envDeliveryTopic
	}

	if envWithConsumer == "true" {
		c.Conf.WithConsumer = true
	}

	if envPregenInterval != "" {
		v, err := strconv.Atoi(envPregenInterval)
		if err != nil {
			fmt.Println(err)
		}
		c.Conf.PregenInterval = v
	}

	return c, nil
}
