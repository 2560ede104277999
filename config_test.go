package blitzware

import (
	"testing"
)

func validConfig() *Config {
	return &Config{
		ClientID:     "test-client",
		ClientSecret: "test-secret",
		RedirectURI:  "http://localhost:3000/auth/callback",
	}
}

func TestConfigValidate(t *testing.T) {
	tests := []struct {
		name     string
		mutate   func(*Config)
		wantCode string
	}{
		{"valid", func(c *Config) {}, ""},
		{"missing client id", func(c *Config) { c.ClientID = "" }, ErrorCodeMissingClientID},
		{"missing client secret", func(c *Config) { c.ClientSecret = "" }, ErrorCodeMissingClientSecret},
		{"missing redirect uri", func(c *Config) { c.RedirectURI = "" }, ErrorCodeMissingRedirectURI},
		{"relative redirect uri", func(c *Config) { c.RedirectURI = "/auth/callback" }, ErrorCodeMissingRedirectURI},
		{"unparseable redirect uri", func(c *Config) { c.RedirectURI = "http://[::1" }, ErrorCodeMissingRedirectURI},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := validConfig()
			tt.mutate(cfg)
			err := cfg.Validate()
			if tt.wantCode == "" {
				if err != nil {
					t.Fatalf("unexpected error: %v", err)
				}
				return
			}
			if got := ErrorCode(err); got != tt.wantCode {
				t.Fatalf("error code = %q, want %q", got, tt.wantCode)
			}
		})
	}
}

func TestConfigResolvedDefaults(t *testing.T) {
	cfg := validConfig().resolved()

	if cfg.BaseURL != DefaultBaseURL {
		t.Errorf("BaseURL = %q", cfg.BaseURL)
	}
	if len(cfg.Scopes) != 3 {
		t.Errorf("Scopes = %v", cfg.Scopes)
	}
	if cfg.LoginURL != "/login" {
		t.Errorf("LoginURL = %q", cfg.LoginURL)
	}
	if cfg.SuccessRedirect != "/" {
		t.Errorf("SuccessRedirect = %q", cfg.SuccessRedirect)
	}
	if cfg.FailureRedirect != "/login" {
		t.Errorf("FailureRedirect = %q, want LoginURL default", cfg.FailureRedirect)
	}
	if cfg.HTTPClient == nil {
		t.Error("HTTPClient not defaulted")
	}
	if cfg.Logger == nil {
		t.Error("Logger not defaulted")
	}
	if cfg.SessionKeys.AccessToken != "accessToken" {
		t.Errorf("SessionKeys.AccessToken = %q", cfg.SessionKeys.AccessToken)
	}
	if cfg.SessionKeys.CodeVerifier != "codeVerifier" {
		t.Errorf("SessionKeys.CodeVerifier = %q", cfg.SessionKeys.CodeVerifier)
	}
}

func TestConfigResolvedDoesNotMutateOriginal(t *testing.T) {
	cfg := validConfig()
	_ = cfg.resolved()
	if cfg.BaseURL != "" || cfg.LoginURL != "" {
		t.Error("resolved must not mutate the caller's config")
	}
}

func TestConfigFailureRedirectFollowsLoginURL(t *testing.T) {
	cfg := validConfig()
	cfg.LoginURL = "/auth/login"
	resolved := cfg.resolved()
	if resolved.FailureRedirect != "/auth/login" {
		t.Errorf("FailureRedirect = %q", resolved.FailureRedirect)
	}
}

func TestSessionKeysOverride(t *testing.T) {
	keys := SessionKeys{AccessToken: "at"}.withDefaults()
	if keys.AccessToken != "at" {
		t.Errorf("override lost: %q", keys.AccessToken)
	}
	if keys.RefreshToken != "refreshToken" {
		t.Errorf("default lost: %q", keys.RefreshToken)
	}
}
