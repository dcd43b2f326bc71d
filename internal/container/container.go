package container

import (
	"context"
	"fmt"

	"statbench/adapters/excel"
	"statbench/adapters/memory"
	"statbench/adapters/postgres"
	"statbench/app"
	"statbench/internal"
	"statbench/internal/config"
	"statbench/internal/events"
	"statbench/internal/pipeline"
	"statbench/ports"

	"github.com/jmoiron/sqlx"
)

// Container holds all application dependencies and manages their lifecycle
type Container struct {
	Config *config.Config
	Logger *internal.Logger

	// Infrastructure
	DB *sqlx.DB

	// Repositories (data access layer)
	RuleSetRepo ports.RuleSetRepository

	// Collaborators
	RowSource ports.RowSource

	// Services
	Orchestrator *pipeline.Orchestrator
	Workbench    *app.WorkbenchService

	// Table change stream
	SSEHub *events.SSEHub
}

// New creates a new dependency injection container
func New(cfg *config.Config, logger *internal.Logger) (*Container, error) {
	if cfg == nil {
		return nil, fmt.Errorf("config cannot be nil")
	}
	if logger == nil {
		logger = internal.NewDefaultLogger()
	}

	return &Container{
		Config: cfg,
		Logger: logger,
	}, nil
}

// InitWithDatabase initializes components with the postgres rule store
func (c *Container) InitWithDatabase(db *sqlx.DB) error {
	if db == nil {
		return fmt.Errorf("database connection cannot be nil")
	}

	c.DB = db

	// Test database connection
	if err := db.Ping(); err != nil {
		return fmt.Errorf("database connection test failed: %w", err)
	}

	c.RuleSetRepo = postgres.NewRuleSetRepository(db)
	c.initServices()

	c.Logger.Info("Container initialized with database connection")
	return nil
}

// InitInMemory initializes components with the in-process rule store
func (c *Container) InitInMemory() {
	c.RuleSetRepo = memory.NewRuleSetRepository()
	c.initServices()

	c.Logger.Info("Container initialized with in-memory rule store")
}

// initServices wires the pipeline and the workbench on top of the repositories
func (c *Container) initServices() {
	c.RowSource = excel.NewDataReader(excel.DefaultReaderConfig(), c.Logger)
	c.Orchestrator = pipeline.NewOrchestrator(c.Config.Pipeline, c.Logger)
	c.Workbench = app.NewWorkbenchService(c.Orchestrator, c.RuleSetRepo, c.Config.Pipeline, c.Logger)

	c.SSEHub = events.NewSSEHub(c.Logger)
	c.Workbench.AddListener(events.NewTableBroadcaster(c.SSEHub))
}

// Shutdown gracefully shuts down all components
func (c *Container) Shutdown(ctx context.Context) error {
	c.Logger.Info("Shutting down container...")

	if c.Workbench != nil {
		c.Workbench.Clear()
	}
	if c.SSEHub != nil {
		c.SSEHub.Close()
	}

	if c.DB != nil {
		if err := c.DB.Close(); err != nil {
			return fmt.Errorf("failed to close database: %w", err)
		}
	}

	c.Logger.Info("Container shutdown complete")
	return nil
}
