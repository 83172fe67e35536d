package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// Config holds all configuration for the sqlchat services.
type Config struct {
	Port      int
	Version   string
	LogLevel  string
	LogFormat string
	AWSRegion string
	APIKeys   []string
	Agent     AgentConfig
	UI        UIConfig
	QueryTool QueryToolConfig
	Telemetry TelemetryConfig
}

type AgentConfig struct {
	// AgentID and AliasID win over the Parameter Store lookup when set.
	AgentID      string
	AliasID      string
	AgentIDParam string
	AliasIDParam string
	EnableTrace  bool
	Timeout      time.Duration
	QueryPath    string
	SessionTTL   time.Duration
}

type UIConfig struct {
	Title         string
	QuestionsFile string
	ChatPath      string
}

type QueryToolConfig struct {
	DatabaseName  string
	ResultsBucket string
	WorkGroup     string
	MaxRows       int
	MaxWait       time.Duration
}

type TelemetryConfig struct {
	Enabled      bool
	OTLPEndpoint string
	ServiceName  string
}

// Load reads configuration from environment variables with sensible defaults.
func Load() *Config {
	return &Config{
		Port:      envInt("PORT", 8080),
		Version:   envStr("SQLCHAT_VERSION", "0.1.0"),
		LogLevel:  envStr("LOG_LEVEL", "debug"),
		LogFormat: envStr("LOG_FORMAT", "console"),
		AWSRegion: envStr("AWS_REGION", ""),
		APIKeys:   envList("SQLCHAT_API_KEYS"),
		Agent: AgentConfig{
			AgentID:      envStr("BEDROCK_AGENT_ID", ""),
			AliasID:      envStr("BEDROCK_AGENT_ALIAS_ID", ""),
			AgentIDParam: envStr("AGENT_ID_PARAMETER", "/bedrock-agent-data/Bedrock-agent-id"),
			AliasIDParam: envStr("AGENT_ALIAS_PARAMETER", "/bedrock-agent-data/Bedrock-agent-alias-id"),
			EnableTrace:  envBool("AGENT_ENABLE_TRACE", true),
			Timeout:      envDuration("AGENT_TIMEOUT", 2*time.Minute),
			QueryPath:    envStr("AGENT_QUERY_PATH", "/querydatabase"),
			SessionTTL:   envDuration("SESSION_TTL", 12*time.Hour),
		},
		UI: UIConfig{
			Title:         envStr("UI_TITLE", "Bedrock Agent Chat"),
			QuestionsFile: envStr("QUESTIONS_FILE", ""),
			ChatPath:      envStr("UI_CHAT_PATH", "/chat-about-baseball"),
		},
		QueryTool: QueryToolConfig{
			DatabaseName:  envStr("DATABASE_NAME", "bedrock_agent"),
			ResultsBucket: envStr("ATHENA_RESULTS_BUCKET", ""),
			WorkGroup:     envStr("ATHENA_WORKGROUP", ""),
			MaxRows:       envInt("QUERY_MAX_ROWS", 1000),
			MaxWait:       envDuration("QUERY_MAX_WAIT", 2*time.Minute),
		},
		Telemetry: TelemetryConfig{
			Enabled:      envBool("OTEL_ENABLED", false),
			OTLPEndpoint: envStr("OTEL_EXPORTER_OTLP_ENDPOINT", "localhost:4317"),
			ServiceName:  envStr("OTEL_SERVICE_NAME", "sqlchat"),
		},
	}
}

// DefaultQuestions are suggested in the UI when no questions file is set.
var DefaultQuestions = []string{
	"What was John Denny's salary in 1986?",
	"What year was Nolan Ryan inducted into the Hall of Fame?",
	"Who is the richest player in the history of baseball?",
}

type questionsFile struct {
	Questions []string `yaml:"questions"`
}

// LoadQuestions reads the recommended questions from a YAML file of the
// form "questions: [...]". An empty path returns DefaultQuestions.
func LoadQuestions(path string) ([]string, error) {
	if path == "" {
		return DefaultQuestions, nil
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read questions file: %w", err)
	}
	var qf questionsFile
	if err := yaml.Unmarshal(data, &qf); err != nil {
		return nil, fmt.Errorf("parse questions file %s: %w", path, err)
	}
	if len(qf.Questions) == 0 {
		return DefaultQuestions, nil
	}
	return qf.Questions, nil
}

func envStr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

// envList splits a comma-separated variable, dropping blank entries.
func envList(key string) []string {
	var out []string
	for _, v := range strings.Split(os.Getenv(key), ",") {
		if v = strings.TrimSpace(v); v != "" {
			out = append(out, v)
		}
	}
	return out
}

func envInt(key string, fallback int) int {
	if v := os.Getenv(key); v != "" {
		if i, err := strconv.Atoi(v); err == nil {
			return i
		}
	}
	return fallback
}

func envBool(key string, fallback bool) bool {
	if v := os.Getenv(key); v != "" {
		if b, err := strconv.ParseBool(v); err == nil {
			return b
		}
	}
	return fallback
}

func envDuration(key string, fallback time.Duration) time.Duration {
	if v := os.Getenv(key); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			return d
		}
	}
	return fallback
}
