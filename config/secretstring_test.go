package config

import (
	"encoding/json"
	"fmt"
	"strings"
	"testing"

	yaml "gopkg.in/yaml.v3"
)

func TestSecretString_Marshal(t *testing.T) {
	tests := []struct {
		name     string
		input    SecretString
		wantJSON string
		wantYAML any
	}{
		{name: "empty", input: "", wantJSON: "null", wantYAML: nil},
		{name: "proxy password", input: "hunter2", wantJSON: `"` + SecretStringValue + `"`, wantYAML: SecretStringValue},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			gotJSON, err := tt.input.MarshalJSON()
			if err != nil {
				t.Fatalf("MarshalJSON() error = %v", err)
			}
			if string(gotJSON) != tt.wantJSON {
				t.Errorf("MarshalJSON() = %s, want %s", gotJSON, tt.wantJSON)
			}

			gotYAML, err := tt.input.MarshalYAML()
			if err != nil {
				t.Fatalf("MarshalYAML() error = %v", err)
			}
			if gotYAML != tt.wantYAML {
				t.Errorf("MarshalYAML() = %v, want %v", gotYAML, tt.wantYAML)
			}
		})
	}
}

func TestSecretString_NoLeakage(t *testing.T) {
	cfg := SecondaryFetchConfig{
		UserAgent:     "agent",
		Proxy:         "127.0.0.1:1080",
		ProxyUser:     "user",
		ProxyPassword: "super-secret-password",
	}

	y, err := yaml.Marshal(cfg)
	if err != nil {
		t.Fatalf("yaml.Marshal() error = %v", err)
	}
	j, err := json.Marshal(cfg)
	if err != nil {
		t.Fatalf("json.Marshal() error = %v", err)
	}
	printed := fmt.Sprintf("%v", cfg.ProxyPassword)

	for name, out := range map[string]string{"yaml": string(y), "json": string(j), "fmt": printed} {
		if strings.Contains(out, "super-secret") {
			t.Errorf("%s output leaks secret: %s", name, out)
		}
		if !strings.Contains(out, SecretStringValue) {
			t.Errorf("%s output does not carry mask: %s", name, out)
		}
	}

	if cfg.ProxyPassword.Reveal() != "super-secret-password" {
		t.Errorf("Reveal() = %q", cfg.ProxyPassword.Reveal())
	}
}
