// sqlchat seed copies the sample baseball data from a GitHub repository
// into the S3 bucket the Glue crawler reads.
//
//	seed --bucket my-data-bucket --prefix data
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"

	"github.com/agentoven/sqlchat/internal/config"
	"github.com/agentoven/sqlchat/internal/seed"
	"github.com/agentoven/sqlchat/internal/telemetry"
)

type seedFlags struct {
	bucket      string
	region      string
	owner       string
	repo        string
	branch      string
	path        string
	prefix      string
	apiBase     string
	concurrency int
}

func newRootCmd() *cobra.Command {
	f := &seedFlags{}
	cmd := &cobra.Command{
		Use:   "seed",
		Short: "Copy sample data from GitHub to S3",
		Long: `Walks a directory of a GitHub repository through the contents API and
uploads every file below it to s3://<bucket>/<prefix>/, keeping the
directory structure.`,
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runSeed(cmd, f)
		},
	}

	flags := cmd.Flags()
	flags.StringVar(&f.bucket, "bucket", os.Getenv("DATA_BUCKET"), "destination S3 bucket (env DATA_BUCKET)")
	flags.StringVar(&f.region, "region", os.Getenv("AWS_REGION"), "AWS region")
	flags.StringVar(&f.owner, "owner", "guyernest", "GitHub repository owner")
	flags.StringVar(&f.repo, "repo", "bedrock-agent", "GitHub repository name")
	flags.StringVar(&f.branch, "branch", "master", "branch to copy from")
	flags.StringVar(&f.path, "path", "sample-data", "directory inside the repository")
	flags.StringVar(&f.prefix, "prefix", "data", "destination key prefix")
	flags.StringVar(&f.apiBase, "api-base", seed.DefaultAPIBase, "GitHub API base URL")
	flags.IntVar(&f.concurrency, "concurrency", 4, "parallel uploads")
	return cmd
}

func runSeed(cmd *cobra.Command, f *seedFlags) error {
	if f.bucket == "" {
		return fmt.Errorf("--bucket is required")
	}

	ctx := cmd.Context()
	var opts []func(*awsconfig.LoadOptions) error
	if f.region != "" {
		opts = append(opts, awsconfig.WithRegion(f.region))
	}
	awsCfg, err := awsconfig.LoadDefaultConfig(ctx, opts...)
	if err != nil {
		return fmt.Errorf("load AWS config: %w", err)
	}

	copier := seed.NewCopier(seed.NewS3Uploader(s3.NewFromConfig(awsCfg), f.bucket), seed.Options{
		APIBase:     f.apiBase,
		Token:       os.Getenv("GITHUB_TOKEN"),
		Concurrency: f.concurrency,
	})
	src := seed.Source{Owner: f.owner, Repo: f.repo, Branch: f.branch, Path: f.path}

	res, err := copier.Copy(ctx, src, f.prefix)
	if err != nil {
		return err
	}
	fmt.Fprintln(cmd.OutOrStdout(), res.Message)
	return nil
}

func main() {
	cfg := config.Load()
	telemetry.SetupLogging(cfg.LogLevel, cfg.LogFormat != "json")

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := newRootCmd().ExecuteContext(ctx); err != nil {
		log.Error().Err(err).Msg("Seeding failed")
		stop()
		os.Exit(1)
	}
}
