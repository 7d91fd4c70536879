// Package app wires a resolved configuration into a running list service:
// record store, field registry, engine and request layer. Both binaries
// build on it.
package app

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb"

	"github.com/baiirun/treelist/internal/api"
	"github.com/baiirun/treelist/internal/config"
	"github.com/baiirun/treelist/internal/db"
	"github.com/baiirun/treelist/internal/dynamo"
	"github.com/baiirun/treelist/internal/field"
	"github.com/baiirun/treelist/internal/lists"
	"github.com/baiirun/treelist/internal/model"
)

// Backend is a record store the binaries can also provision and register
// owners in.
type Backend interface {
	lists.Store
	RegisterOwner(ctx context.Context, owner model.Owner, label string) error
	// Setup creates the tables. It is safe to call more than once on SQLite.
	Setup(ctx context.Context) error
	Close() error
}

type sqliteBackend struct{ *db.DB }

func (b sqliteBackend) Setup(context.Context) error { return b.Init() }

type dynamoBackend struct{ *dynamo.Store }

func (b dynamoBackend) Setup(ctx context.Context) error { return b.CreateTables(ctx) }
func (dynamoBackend) Close() error                     { return nil }

// App is a wired list service.
type App struct {
	Config  *config.Config
	Logger  *slog.Logger
	Backend Backend
	Fields  *field.Registry
	Engine  *lists.Engine
	Service *api.Service
}

// Open builds the app for cfg. The caller must Close it.
func Open(ctx context.Context, cfg *config.Config, logger *slog.Logger) (*App, error) {
	if cfg.Fields == "" {
		return nil, errors.New("no field registry configured (set fields or TREELIST_FIELDS)")
	}
	fields, err := field.LoadFile(cfg.Fields)
	if err != nil {
		return nil, err
	}

	backend, err := OpenBackend(ctx, cfg)
	if err != nil {
		return nil, err
	}

	engine := lists.New(backend, fields, lists.Options{
		LockDir:     cfg.LockDir,
		LockTimeout: cfg.LockTimeout,
		Logger:      logger,
	})
	logger.Debug("app ready", "backend", cfg.Backend, "fields", fields.IDs())

	return &App{
		Config:  cfg,
		Logger:  logger,
		Backend: backend,
		Fields:  fields,
		Engine:  engine,
		Service: api.New(engine, logger),
	}, nil
}

// Close releases the backend.
func (a *App) Close() error {
	return a.Backend.Close()
}

// OpenBackend opens the record store named by cfg.Backend. SQLite databases
// are created and migrated on open.
func OpenBackend(ctx context.Context, cfg *config.Config) (Backend, error) {
	switch cfg.Backend {
	case config.BackendSQLite:
		path := cfg.DB
		if path == "" {
			var err error
			if path, err = db.DefaultPath(); err != nil {
				return nil, err
			}
		}
		database, err := db.Open(path)
		if err != nil {
			return nil, err
		}
		if err := database.Init(); err != nil {
			_ = database.Close()
			return nil, err
		}
		return sqliteBackend{database}, nil

	case config.BackendDynamoDB:
		var opts []func(*awsconfig.LoadOptions) error
		if cfg.Dynamo.Region != "" {
			opts = append(opts, awsconfig.WithRegion(cfg.Dynamo.Region))
		}
		awsCfg, err := awsconfig.LoadDefaultConfig(ctx, opts...)
		if err != nil {
			return nil, fmt.Errorf("failed to load AWS config: %w", err)
		}
		client := dynamodb.NewFromConfig(awsCfg, func(o *dynamodb.Options) {
			if cfg.Dynamo.Endpoint != "" {
				o.BaseEndpoint = aws.String(cfg.Dynamo.Endpoint)
			}
		})
		return dynamoBackend{dynamo.New(client, dynamo.Config{
			ItemsTable:  cfg.Dynamo.ItemsTable,
			OwnersTable: cfg.Dynamo.OwnersTable,
		})}, nil
	}
	return nil, fmt.Errorf("unknown backend %q", cfg.Backend)
}
