package config

import (
	"errors"
	"flag"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

// Config holds everything the relay needs at startup. Values are resolved
// in order flag > environment > YAML file (CONFIG_FILE) > default.
type Config struct {
	ListenAddr string `yaml:"listen_addr"`

	// Abacus.AI
	AbacusBaseURL         string        `yaml:"abacus_base_url"`
	AbacusAPIKey          string        `yaml:"abacus_api_key"`
	AbacusDeploymentID    string        `yaml:"abacus_deployment_id"`
	AbacusDeploymentToken string        `yaml:"abacus_deployment_token"`
	AbacusProxyURL        string        `yaml:"abacus_proxy_url"`
	RequestTimeout        time.Duration `yaml:"request_timeout"`

	// UI
	StaticDir string `yaml:"static_dir"`
	IndexFile string `yaml:"index_file"`

	AllowedOrigins     []string `yaml:"allowed_origins"`
	ExposeErrorDetails bool     `yaml:"expose_error_details"`

	LogLevel  string `yaml:"log_level"`
	LogFormat string `yaml:"log_format"`

	// A2A
	A2AEnabled bool   `yaml:"a2a_enabled"`
	A2APort    int    `yaml:"a2a_port"`
	AgentName  string `yaml:"agent_name"`
	AgentDesc  string `yaml:"agent_desc"`
}

// Default returns the configuration used when nothing else is set.
func Default() *Config {
	return &Config{
		ListenAddr:     ":8000",
		AbacusBaseURL:  "https://api.abacus.ai",
		RequestTimeout: 120 * time.Second,
		StaticDir:      "app/static",
		IndexFile:      "app/static/index.html",
		LogLevel:       "info",
		LogFormat:      "text",
		A2APort:        8001,
		AgentName:      "chat-relay",
		AgentDesc:      "Abacus.AI chat deployment exposed via A2A protocol",
	}
}

// Load reads .env, the optional YAML file, the environment and the process
// arguments.
func Load() (*Config, error) {
	// A missing .env is normal in containers.
	_ = godotenv.Load()
	return Parse(os.Args[1:])
}

// Parse builds a Config from the environment and the given arguments.
func Parse(args []string) (*Config, error) {
	cfg := Default()
	if path := os.Getenv("CONFIG_FILE"); path != "" {
		if err := cfg.mergeFile(path); err != nil {
			return nil, err
		}
	}

	timeout, timeoutErr := getEnvDuration("REQUEST_TIMEOUT", cfg.RequestTimeout)
	a2aPort, portErr := getEnvInt("A2A_PORT", cfg.A2APort)
	if err := errors.Join(timeoutErr, portErr); err != nil {
		return nil, err
	}

	fs := flag.NewFlagSet("chat-relay", flag.ContinueOnError)

	fs.StringVar(&cfg.ListenAddr, "listen-addr", getEnv("LISTEN_ADDR", cfg.ListenAddr), "HTTP listen address")
	fs.StringVar(&cfg.AbacusBaseURL, "abacus-base-url", getEnv("ABACUS_BASE_URL", cfg.AbacusBaseURL), "Abacus.AI API base URL")
	fs.StringVar(&cfg.AbacusAPIKey, "abacus-api-key", getEnv("ABACUS_API_KEY", cfg.AbacusAPIKey), "Abacus.AI API key")
	fs.StringVar(&cfg.AbacusDeploymentID, "deployment-id", getEnv("ABACUS_DEPLOYMENT_ID", cfg.AbacusDeploymentID), "Abacus.AI deployment ID")
	fs.StringVar(&cfg.AbacusDeploymentToken, "deployment-token", getEnv("ABACUS_DEPLOYMENT_TOKEN", cfg.AbacusDeploymentToken), "Abacus.AI deployment token")
	fs.StringVar(&cfg.AbacusProxyURL, "abacus-proxy-url", getEnv("ABACUS_PROXY_URL", cfg.AbacusProxyURL), "HTTP/HTTPS proxy URL for Abacus.AI requests")
	fs.DurationVar(&cfg.RequestTimeout, "request-timeout", timeout, "Abacus.AI round-trip timeout")

	fs.StringVar(&cfg.StaticDir, "static-dir", getEnv("STATIC_DIR", cfg.StaticDir), "Directory served under /static/")
	fs.StringVar(&cfg.IndexFile, "index-file", getEnv("INDEX_FILE", cfg.IndexFile), "HTML file served at /")

	origins := fs.String("allowed-origins", getEnv("ALLOWED_ORIGINS", strings.Join(cfg.AllowedOrigins, ",")), "Comma separated CORS origins")
	fs.BoolVar(&cfg.ExposeErrorDetails, "expose-error-details", getEnvBool("EXPOSE_ERROR_DETAILS", cfg.ExposeErrorDetails), "Return raw upstream error text to callers")

	fs.StringVar(&cfg.LogLevel, "log-level", getEnv("LOG_LEVEL", cfg.LogLevel), "debug, info, warn or error")
	fs.StringVar(&cfg.LogFormat, "log-format", getEnv("LOG_FORMAT", cfg.LogFormat), "text or json")

	fs.BoolVar(&cfg.A2AEnabled, "a2a", getEnvBool("A2A_ENABLED", cfg.A2AEnabled), "Enable A2A server alongside the relay")
	fs.IntVar(&cfg.A2APort, "a2a-port", a2aPort, "A2A server listen port")
	fs.StringVar(&cfg.AgentName, "agent-name", getEnv("AGENT_NAME", cfg.AgentName), "A2A AgentCard name")
	fs.StringVar(&cfg.AgentDesc, "agent-desc", getEnv("AGENT_DESC", cfg.AgentDesc), "A2A AgentCard description")

	if err := fs.Parse(args); err != nil {
		return nil, err
	}
	cfg.AllowedOrigins = splitList(*origins)
	return cfg, nil
}

// Validate reports settings the relay cannot run without.
func (c *Config) Validate() error {
	var errs []error
	if c.AbacusAPIKey == "" {
		errs = append(errs, errors.New("abacus api key is not set (ABACUS_API_KEY)"))
	}
	if c.AbacusDeploymentID == "" {
		errs = append(errs, errors.New("deployment id is not set (ABACUS_DEPLOYMENT_ID)"))
	}
	if c.AbacusDeploymentToken == "" {
		errs = append(errs, errors.New("deployment token is not set (ABACUS_DEPLOYMENT_TOKEN)"))
	}
	if c.RequestTimeout <= 0 {
		errs = append(errs, fmt.Errorf("request timeout must be positive, got %s", c.RequestTimeout))
	}
	return errors.Join(errs...)
}

func (c *Config) mergeFile(path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("read config file: %w", err)
	}
	if err := yaml.Unmarshal(data, c); err != nil {
		return fmt.Errorf("parse config file %s: %w", path, err)
	}
	return nil
}

func getEnv(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func getEnvBool(key string, fallback bool) bool {
	v := os.Getenv(key)
	switch v {
	case "true", "1", "yes":
		return true
	case "false", "0", "no":
		return false
	}
	return fallback
}

func getEnvInt(key string, fallback int) (int, error) {
	v := os.Getenv(key)
	if v == "" {
		return fallback, nil
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return fallback, fmt.Errorf("%s: invalid integer %q", key, v)
	}
	return n, nil
}

func getEnvDuration(key string, fallback time.Duration) (time.Duration, error) {
	v := os.Getenv(key)
	if v == "" {
		return fallback, nil
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		return fallback, fmt.Errorf("%s: invalid duration %q", key, v)
	}
	return d, nil
}

func splitList(s string) []string {
	var out []string
	for _, part := range strings.Split(s, ",") {
		if p := strings.TrimSpace(part); p != "" {
			out = append(out, p)
		}
	}
	return out
}
