// Command treelist-lambda serves the list API behind API Gateway. It reads
// the same TREELIST_* settings as the CLI and logs JSON to stderr.
package main

import (
	"context"
	"fmt"
	"os"

	"github.com/aws/aws-lambda-go/lambda"

	"github.com/baiirun/treelist/internal/app"
	"github.com/baiirun/treelist/internal/config"
	"github.com/baiirun/treelist/internal/logging"
)

func run(ctx context.Context) error {
	v := config.New()
	v.SetDefault("backend", config.BackendDynamoDB)
	v.SetDefault("log_format", "json")
	if err := config.ReadFile(v); err != nil {
		return err
	}
	cfg, err := config.Load(v)
	if err != nil {
		return err
	}

	logger, err := logging.New(cfg.LogLevel, cfg.LogFormat, os.Stderr)
	if err != nil {
		return err
	}
	a, err := app.Open(ctx, cfg, logger)
	if err != nil {
		return err
	}
	defer func() { _ = a.Close() }()

	lambda.Start(a.Service.HandleAPIGateway)
	return nil
}

func main() {
	if err := run(context.Background()); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
