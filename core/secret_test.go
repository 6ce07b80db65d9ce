package core

import (
	"bytes"
	"encoding/json"
	"fmt"
	"log/slog"
	"strings"
	"testing"
)

const testKey = "0123456789abcdef0123456789abcdef"

func TestSecretRedaction(t *testing.T) {
	secret := NewSecret(testKey)

	tests := []struct {
		name   string
		format string
		want   string
	}{
		{"%v", "%v", "[REDACTED]"},
		{"%s", "%s", "[REDACTED]"},
		{"%+v", "%+v", "[REDACTED]"},
		{"%#v", "%#v", "core.Secret{[REDACTED]}"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := fmt.Sprintf(tt.format, secret)
			if got != tt.want {
				t.Errorf("fmt.Sprintf(%q, secret) = %q, want %q", tt.format, got, tt.want)
			}
		})
	}
}

func TestSecretInStructPrinting(t *testing.T) {
	type Config struct {
		Endpoint string
		APIKey   Secret
	}
	cfg := Config{Endpoint: "https://example.openai.azure.com", APIKey: NewSecret(testKey)}

	for _, format := range []string{"%v", "%+v", "%#v"} {
		got := fmt.Sprintf(format, cfg)
		if strings.Contains(got, testKey) {
			t.Errorf("fmt.Sprintf(%q, config) exposed the key: %s", format, got)
		}
		if !strings.Contains(got, "REDACTED") {
			t.Errorf("fmt.Sprintf(%q, config) should contain REDACTED: %s", format, got)
		}
	}
}

func TestSecretJSONInStruct(t *testing.T) {
	type Config struct {
		Name   string `json:"name"`
		APIKey Secret `json:"api_key"`
	}

	data, err := json.Marshal(Config{Name: "prod", APIKey: NewSecret(testKey)})
	if err != nil {
		t.Fatalf("json.Marshal() error = %v", err)
	}
	want := `{"name":"prod","api_key":"[REDACTED]"}`
	if string(data) != want {
		t.Errorf("json.Marshal() = %s, want %s", data, want)
	}
}

func TestSecretMarshalText(t *testing.T) {
	got, err := NewSecret(testKey).MarshalText()
	if err != nil {
		t.Fatalf("MarshalText() error = %v", err)
	}
	if string(got) != "[REDACTED]" {
		t.Errorf("MarshalText() = %s", got)
	}
}

func TestSecretSlog(t *testing.T) {
	var buf bytes.Buffer
	logger := slog.New(slog.NewJSONHandler(&buf, nil))
	logger.Info("configured", "api_key", NewSecret(testKey))

	if strings.Contains(buf.String(), testKey) {
		t.Errorf("slog output exposed the key: %s", buf.String())
	}
	if !strings.Contains(buf.String(), `"api_key":"[REDACTED]"`) {
		t.Errorf("slog output = %s", buf.String())
	}
}

func TestSecretExposeAndEmpty(t *testing.T) {
	tests := []struct {
		value string
		empty bool
	}{
		{"", true},
		{"  ", false},
		{"key\nwith\nnewlines", false},
		{testKey, false},
	}
	for _, tt := range tests {
		s := NewSecret(tt.value)
		if s.Expose() != tt.value {
			t.Errorf("Expose() = %q, want %q", s.Expose(), tt.value)
		}
		if s.IsEmpty() != tt.empty {
			t.Errorf("IsEmpty(%q) = %v, want %v", tt.value, s.IsEmpty(), tt.empty)
		}
		if s.String() != "[REDACTED]" {
			t.Errorf("String() = %q", s.String())
		}
	}
}

func TestSecretLast4(t *testing.T) {
	if got := NewSecret(testKey).Last4(); got != "...cdef" {
		t.Errorf("Last4() = %q, want ...cdef", got)
	}
	if got := NewSecret("short").Last4(); got != "[REDACTED]" {
		t.Errorf("Last4() on short value = %q", got)
	}
}
