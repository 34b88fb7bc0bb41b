package store

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/glebarez/sqlite"
	"go.uber.org/zap"
	"gorm.io/driver/mysql"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/BaSui01/nodeflow/types"
	"github.com/BaSui01/nodeflow/workflow"
)

// ErrWorkflowNotFound is returned when a workflow id is not in the store.
var ErrWorkflowNotFound = errors.New("workflow not found")

// WorkflowRecord is the relational row holding one serialized definition.
type WorkflowRecord struct {
	ID         string `gorm:"primaryKey;size:128"`
	Name       string `gorm:"size:255;index"`
	Version    string `gorm:"size:32"`
	Definition []byte `gorm:"type:blob"`
	CreatedAt  time.Time
	UpdatedAt  time.Time
}

// TableName pins the table name independent of gorm's pluralization.
func (WorkflowRecord) TableName() string { return "workflows" }

// WorkflowRepository stores serialized workflow definitions.
type WorkflowRepository struct {
	db     *gorm.DB
	logger *zap.Logger
}

// OpenDatabase opens a gorm connection for the given driver.
// Supported drivers: sqlite, mysql, postgres.
func OpenDatabase(driver, dsn string) (*gorm.DB, error) {
	var dialector gorm.Dialector
	switch driver {
	case "sqlite":
		dialector = sqlite.Open(dsn)
	case "mysql":
		dialector = mysql.Open(dsn)
	case "postgres":
		dialector = postgres.Open(dsn)
	default:
		return nil, fmt.Errorf("unsupported database driver: %s (supported: sqlite, mysql, postgres)", driver)
	}

	db, err := gorm.Open(dialector, &gorm.Config{})
	if err != nil {
		return nil, fmt.Errorf("failed to connect database: %w", err)
	}
	return db, nil
}

// NewWorkflowRepository creates a repository and migrates its schema.
func NewWorkflowRepository(db *gorm.DB, logger *zap.Logger) (*WorkflowRepository, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	if err := db.AutoMigrate(&WorkflowRecord{}); err != nil {
		return nil, fmt.Errorf("failed to auto migrate: %w", err)
	}
	return &WorkflowRepository{
		db:     db,
		logger: logger.With(zap.String("component", "workflow_repository")),
	}, nil
}

// Save upserts a definition keyed by its workflow id.
func (r *WorkflowRepository) Save(ctx context.Context, def *workflow.Definition) error {
	if def == nil {
		return types.NewError(types.ErrValidation, "definition is nil")
	}
	if def.Config.ID == "" {
		return types.NewError(types.ErrValidation, "definition has no workflow id")
	}

	data, err := json.Marshal(def)
	if err != nil {
		return fmt.Errorf("marshal definition: %w", err)
	}

	record := WorkflowRecord{
		ID:         def.Config.ID,
		Name:       def.Config.Name,
		Version:    def.Metadata.Version,
		Definition: data,
	}
	err = r.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "id"}},
		DoUpdates: clause.AssignmentColumns([]string{"name", "version", "definition", "updated_at"}),
	}).Create(&record).Error
	if err != nil {
		return fmt.Errorf("save workflow %s: %w", def.Config.ID, err)
	}

	r.logger.Debug("workflow saved", zap.String("workflow_id", def.Config.ID))
	return nil
}

// Get loads a definition by workflow id.
func (r *WorkflowRepository) Get(ctx context.Context, id string) (*workflow.Definition, error) {
	var record WorkflowRecord
	err := r.db.WithContext(ctx).First(&record, "id = ?", id).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, fmt.Errorf("workflow %s: %w", id, ErrWorkflowNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("load workflow %s: %w", id, err)
	}

	var def workflow.Definition
	if err := json.Unmarshal(record.Definition, &def); err != nil {
		return nil, fmt.Errorf("decode workflow %s: %w", id, err)
	}
	return &def, nil
}

// List returns the stored workflow rows, newest first, without decoding
// the definitions.
func (r *WorkflowRepository) List(ctx context.Context) ([]WorkflowRecord, error) {
	var records []WorkflowRecord
	err := r.db.WithContext(ctx).
		Select("id", "name", "version", "created_at", "updated_at").
		Order("updated_at DESC").
		Find(&records).Error
	if err != nil {
		return nil, fmt.Errorf("list workflows: %w", err)
	}
	return records, nil
}

// Delete removes a workflow by id.
func (r *WorkflowRepository) Delete(ctx context.Context, id string) error {
	result := r.db.WithContext(ctx).Delete(&WorkflowRecord{}, "id = ?", id)
	if result.Error != nil {
		return fmt.Errorf("delete workflow %s: %w", id, result.Error)
	}
	if result.RowsAffected == 0 {
		return fmt.Errorf("workflow %s: %w", id, ErrWorkflowNotFound)
	}
	return nil
}
