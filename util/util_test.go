package util

import (
	"strings"
	"testing"
)

func TestGetVersion(t *testing.T) {
	version := GetVersion()
	if version == "" {
		t.Error("Expected non-empty version")
	}

	if strings.TrimSpace(version) != version {
		t.Errorf("Expected trimmed version, got '%s'", version)
	}
}

func TestGetNameAndVersion(t *testing.T) {
	nameAndVersion := GetNameAndVersion()

	if !strings.HasPrefix(nameAndVersion, Name+" / ") {
		t.Errorf("Expected '%s / <version>', got '%s'", Name, nameAndVersion)
	}

	if !strings.HasSuffix(nameAndVersion, GetVersion()) {
		t.Errorf("Expected version suffix, got '%s'", nameAndVersion)
	}
}

func TestUserAgent(t *testing.T) {
	ua := UserAgent()

	if !strings.HasPrefix(ua, "loxodon/") {
		t.Errorf("Expected User-Agent to start with 'loxodon/', got '%s'", ua)
	}

	if !strings.Contains(ua, "mastodon/"+MastodonApiVersion) {
		t.Errorf("Expected User-Agent to contain mastodon api version, got '%s'", ua)
	}
}

func TestGeneratePemKeypair(t *testing.T) {
	keypair := GeneratePemKeypair()

	if keypair == nil {
		t.Fatal("Expected keypair, got nil")
	}

	if !strings.Contains(keypair.Private, "RSA PRIVATE KEY") {
		t.Error("Expected PEM encoded private key")
	}

	if !strings.Contains(keypair.Public, "RSA PUBLIC KEY") {
		t.Error("Expected PEM encoded public key")
	}
}
