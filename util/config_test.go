package util

import (
	"os"
	"testing"
)

func TestConfigConstants(t *testing.T) {
	if Name != "loxodon" {
		t.Errorf("Expected Name 'loxodon', got '%s'", Name)
	}

	if ConfigFileName != "config.yaml" {
		t.Errorf("Expected ConfigFileName 'config.yaml', got '%s'", ConfigFileName)
	}
}

func TestReadConfWithYaml(t *testing.T) {
	// Create a test config file
	yamlContent := `
conf:
  host: 127.0.0.1
  metricsPort: 9999
  sslDomain: example.com
  natsUrl: nats://127.0.0.1:4222
  queueDriver: nats
  deliveryTopic: deliver
  withConsumer: true
  pregenInterval: 60
`
	err := os.WriteFile("config.yaml", []byte(yamlContent), 0644)
	if err != nil {
		t.Fatalf("Failed to create test config: %v", err)
	}
	defer os.Remove("config.yaml")

	config, err := ReadConf()
	if err != nil {
		t.Fatalf("ReadConf failed: %v", err)
	}

	if config.Conf.Host != "127.0.0.1" {
		t.Errorf("Expected Host '127.0.0.1', got '%s'", config.Conf.Host)
	}

	if config.Conf.MetricsPort != 9999 {
		t.Errorf("Expected MetricsPort 9999, got %d", config.Conf.MetricsPort)
	}

	if config.Conf.SslDomain != "example.com" {
		t.Errorf("Expected SslDomain 'example.com', got '%s'", config.Conf.SslDomain)
	}

	if config.Conf.QueueDriver != "nats" {
		t.Errorf("Expected QueueDriver 'nats', got '%s'", config.Conf.QueueDriver)
	}

	if config.Conf.DeliveryTopic != "deliver" {
		t.Errorf("Expected DeliveryTopic 'deliver', got '%s'", config.Conf.DeliveryTopic)
	}

	if !config.Conf.WithConsumer {
		t.Error("Expected WithConsumer to be true")
	}

	if config.Conf.PregenInterval != 60 {
		t.Errorf("Expected PregenInterval 60, got %d", config.Conf.PregenInterval)
	}
}

func TestReadConfWithEnvOverrides(t *testing.T) {
	yamlContent := `
conf:
  host: 127.0.0.1
  sslDomain: example.com
  queueDriver: channel
`
	err := os.WriteFile("config.yaml", []byte(yamlContent), 0644)
	if err != nil {
		t.Fatalf("Failed to create test config: %v", err)
	}
	defer os.Remove("config.yaml")

	os.Setenv("LOXODON_SSLDOMAIN", "override.social")
	os.Setenv("LOXODON_QUEUEDRIVER", "nats")
	os.Setenv("LOXODON_WITH_CONSUMER", "true")
	defer os.Unsetenv("LOXODON_SSLDOMAIN")
	defer os.Unsetenv("LOXODON_QUEUEDRIVER")
	defer os.Unsetenv("LOXODON_WITH_CONSUMER")

	config, err := ReadConf()
	if err != nil {
		t.Fatalf("ReadConf failed: %v", err)
	}

	if config.Conf.SslDomain != "override.social" {
		t.Errorf("Expected SslDomain 'override.social', got '%s'", config.Conf.SslDomain)
	}

	if config.Conf.QueueDriver != "nats" {
		t.Errorf("Expected QueueDriver 'nats', got '%s'", config.Conf.QueueDriver)
	}

	if !config.Conf.WithConsumer {
		t.Error("Expected WithConsumer to be true")
	}
}
