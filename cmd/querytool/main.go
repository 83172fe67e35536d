// sqlchat querytool: the agent's action group. It describes the Glue
// catalog and runs SQL on Athena.
//
// Inside the Lambda runtime it handles action-group events directly.
// Anywhere else it serves the same operations over HTTP for local use.
package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/aws/aws-lambda-go/lambda"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/athena"
	"github.com/aws/aws-sdk-go-v2/service/glue"
	"github.com/rs/zerolog/log"

	"github.com/agentoven/sqlchat/internal/api/middleware"
	"github.com/agentoven/sqlchat/internal/config"
	"github.com/agentoven/sqlchat/internal/querytool"
	"github.com/agentoven/sqlchat/internal/telemetry"
)

func main() {
	cfg := config.Load()
	inLambda := os.Getenv("AWS_LAMBDA_RUNTIME_API") != ""
	telemetry.SetupLogging(cfg.LogLevel, !inLambda && cfg.LogFormat != "json")

	ctx := context.Background()
	shutdown, err := telemetry.Init(ctx, cfg.Telemetry, cfg.Version)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to initialize telemetry")
	}
	defer shutdown(ctx)

	var opts []func(*awsconfig.LoadOptions) error
	if cfg.AWSRegion != "" {
		opts = append(opts, awsconfig.WithRegion(cfg.AWSRegion))
	}
	awsCfg, err := awsconfig.LoadDefaultConfig(ctx, opts...)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to load AWS config")
	}

	outputLocation := ""
	if cfg.QueryTool.ResultsBucket != "" {
		outputLocation = fmt.Sprintf("s3://%s/athena-results/", cfg.QueryTool.ResultsBucket)
	}
	svc := querytool.NewService(
		querytool.NewGlueCatalog(glue.NewFromConfig(awsCfg)),
		querytool.NewAthenaEngine(athena.NewFromConfig(awsCfg), querytool.AthenaOptions{
			OutputLocation: outputLocation,
			WorkGroup:      cfg.QueryTool.WorkGroup,
			MaxRows:        cfg.QueryTool.MaxRows,
			MaxWait:        cfg.QueryTool.MaxWait,
		}),
		cfg.QueryTool.DatabaseName,
	)

	if inLambda {
		log.Info().Str("database", cfg.QueryTool.DatabaseName).Msg("Serving action group events")
		lambda.Start(querytool.NewActionGroupHandler(svc).Handle)
		return
	}

	httpServer := &http.Server{
		Addr:         fmt.Sprintf(":%d", cfg.Port),
		Handler:      querytool.NewRouter(svc, middleware.Logger, middleware.Telemetry),
		ReadTimeout:  30 * time.Second,
		WriteTimeout: cfg.QueryTool.MaxWait + 30*time.Second,
		IdleTimeout:  120 * time.Second,
	}

	go func() {
		sigChan := make(chan os.Signal, 1)
		signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
		<-sigChan

		log.Info().Msg("🛑 Shutting down gracefully...")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
		defer cancel()
		httpServer.Shutdown(shutdownCtx)
	}()

	log.Info().
		Int("port", cfg.Port).
		Str("database", cfg.QueryTool.DatabaseName).
		Msg("🚀 querytool listening")

	if err := httpServer.ListenAndServe(); err != http.ErrServerClosed {
		log.Fatal().Err(err).Msg("Server failed")
	}
}
