// Package server wires the chat UI: configuration, AWS clients, the agent,
// sessions and the HTTP router.
//
// Usage:
//
//	srv, err := server.New(ctx)
//	http.ListenAndServe(":8080", srv.Handler)
package server

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/bedrockagentruntime"
	"github.com/aws/aws-sdk-go-v2/service/ssm"
	"github.com/aws/aws-sdk-go-v2/service/sts"
	"github.com/rs/zerolog/log"

	"github.com/agentoven/sqlchat/internal/agent"
	"github.com/agentoven/sqlchat/internal/api"
	"github.com/agentoven/sqlchat/internal/api/handlers"
	"github.com/agentoven/sqlchat/internal/chat"
	"github.com/agentoven/sqlchat/internal/config"
	"github.com/agentoven/sqlchat/internal/conversation"
	"github.com/agentoven/sqlchat/internal/sessions"
	"github.com/agentoven/sqlchat/internal/telemetry"
)

// initTelemetry is swapped in tests.
var initTelemetry = telemetry.Init

// Server holds the initialized chat UI.
type Server struct {
	// Handler is the HTTP handler with all routes and middleware.
	Handler http.Handler

	// Sessions is the chat session store.
	Sessions *sessions.MemoryStore

	// Config is the server configuration.
	Config *config.Config

	// Port is the port the server should listen on.
	Port int

	// ShutdownFunc should be called on graceful shutdown. It stops the
	// session sweeper and flushes telemetry.
	ShutdownFunc func(context.Context) error
}

// Deployment describes what the server talks to.
type Deployment struct {
	Agent     agent.Client
	Region    string
	AccountID string
}

// New initializes all components from the environment.
func New(ctx context.Context) (*Server, error) {
	return NewWithConfig(ctx, config.Load())
}

// NewWithConfig resolves the agent and AWS identity, then builds the server.
func NewWithConfig(ctx context.Context, cfg *config.Config) (*Server, error) {
	var opts []func(*awsconfig.LoadOptions) error
	if cfg.AWSRegion != "" {
		opts = append(opts, awsconfig.WithRegion(cfg.AWSRegion))
	}
	awsCfg, err := awsconfig.LoadDefaultConfig(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("load AWS config: %w", err)
	}

	ids, err := agent.ResolveIDs(ctx, ssm.NewFromConfig(awsCfg),
		agent.IDs{AgentID: cfg.Agent.AgentID, AliasID: cfg.Agent.AliasID},
		cfg.Agent.AgentIDParam, cfg.Agent.AliasIDParam)
	if err != nil {
		return nil, fmt.Errorf("resolve agent: %w", err)
	}
	client, err := agent.NewBedrockClient(bedrockagentruntime.NewFromConfig(awsCfg), ids.AgentID, ids.AliasID)
	if err != nil {
		return nil, err
	}
	log.Info().Msg("✅ Bedrock agent client initialized")

	return NewWithDeployment(ctx, cfg, Deployment{
		Agent:     client,
		Region:    awsCfg.Region,
		AccountID: accountID(ctx, sts.NewFromConfig(awsCfg)),
	})
}

// NewWithDeployment builds the server around an already resolved agent.
func NewWithDeployment(ctx context.Context, cfg *config.Config, dep Deployment) (*Server, error) {
	shutdownTelemetry, err := initTelemetry(ctx, cfg.Telemetry, cfg.Version)
	if err != nil {
		return nil, fmt.Errorf("init telemetry: %w", err)
	}

	questions, err := config.LoadQuestions(cfg.UI.QuestionsFile)
	if err != nil {
		if serr := shutdownTelemetry(ctx); serr != nil {
			log.Warn().Err(serr).Msg("Failed to shut down telemetry")
		}
		return nil, err
	}

	store := sessions.NewMemoryStore(cfg.Agent.SessionTTL)
	svc := chat.NewService(dep.Agent, chat.Options{
		EnableTrace: cfg.Agent.EnableTrace,
		Timeout:     cfg.Agent.Timeout,
		Extractor:   &conversation.Extractor{QueryPath: cfg.Agent.QueryPath},
	})
	h := handlers.New(svc, store, questions, handlers.Page{
		Title:     cfg.UI.Title,
		Region:    dep.Region,
		AccountID: dep.AccountID,
		ChatPath:  cfg.UI.ChatPath,
	})

	sweepCtx, stopSweep := context.WithCancel(context.Background())
	if cfg.Agent.SessionTTL > 0 {
		go sweepSessions(sweepCtx, store, cfg.Agent.SessionTTL)
	}

	return &Server{
		Handler:  api.NewRouter(cfg, h),
		Sessions: store,
		Config:   cfg,
		Port:     cfg.Port,
		ShutdownFunc: func(ctx context.Context) error {
			stopSweep()
			return shutdownTelemetry(ctx)
		},
	}, nil
}

// CallerIdentityAPI is the part of the STS client we use.
type CallerIdentityAPI interface {
	GetCallerIdentity(ctx context.Context, params *sts.GetCallerIdentityInput, optFns ...func(*sts.Options)) (*sts.GetCallerIdentityOutput, error)
}

// accountID is shown on the chat page only, so a failed lookup is not fatal.
func accountID(ctx context.Context, api CallerIdentityAPI) string {
	out, err := api.GetCallerIdentity(ctx, &sts.GetCallerIdentityInput{})
	if err != nil {
		log.Warn().Err(err).Msg("Failed to look up AWS account id")
		return "unknown"
	}
	return aws.ToString(out.Account)
}

// minSweepInterval keeps tiny TTLs from spinning the sweeper.
const minSweepInterval = time.Second

func sweepInterval(ttl time.Duration) time.Duration {
	return max(ttl/2, minSweepInterval)
}

func sweepSessions(ctx context.Context, store *sessions.MemoryStore, ttl time.Duration) {
	ticker := time.NewTicker(sweepInterval(ttl))
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if n := store.Sweep(ctx); n > 0 {
				log.Debug().Int("removed", n).Msg("Expired sessions swept")
			}
		}
	}
}
