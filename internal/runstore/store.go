package runstore

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/glebarez/sqlite"
	"github.com/google/uuid"
	"go.uber.org/zap"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"

	"github.com/BaSui01/researchflow/types"
)

// =============================================================================
// 🗄️ 运行历史存储
// =============================================================================

// RunRecord 单次运行的持久化快照
type RunRecord struct {
	ID                   string        `gorm:"primaryKey;size:36" json:"id"`
	Query                string        `gorm:"index" json:"query"`
	CompletedStages      string        `json:"completed_stages"` // JSON array of stage ids
	ErrorCount           int           `json:"error_count"`
	RecoveryApplied      bool          `json:"recovery_applied"`
	ManualReviewRequired bool          `json:"manual_review_required"`
	WorkflowCompleted    bool          `gorm:"index" json:"workflow_completed"`
	Incomplete           bool          `json:"incomplete"`
	Duration             time.Duration `json:"duration"`
	CreatedAt            time.Time     `gorm:"index" json:"created_at"`
}

// TableName 指定表名
func (RunRecord) TableName() string {
	return "run_records"
}

// Stages decodes the completed-stage list.
func (r *RunRecord) Stages() []types.StageID {
	var stages []types.StageID
	if err := json.Unmarshal([]byte(r.CompletedStages), &stages); err != nil {
		return nil
	}
	return stages
}

// Config 存储配置
type Config struct {
	// SQLite 数据库文件路径
	Path string `yaml:"path" json:"path"`

	// 最大空闲连接数
	MaxIdleConns int `yaml:"max_idle_conns" json:"max_idle_conns"`

	// 最大打开连接数
	MaxOpenConns int `yaml:"max_open_conns" json:"max_open_conns"`

	// 连接最大生命周期
	ConnMaxLifetime time.Duration `yaml:"conn_max_lifetime" json:"conn_max_lifetime"`
}

// DefaultConfig 返回默认存储配置
func DefaultConfig() Config {
	return Config{
		Path:            "data/runs.db",
		MaxIdleConns:    2,
		MaxOpenConns:    10,
		ConnMaxLifetime: time.Hour,
	}
}

// Store 运行历史存储
type Store struct {
	db     *gorm.DB
	config Config
	logger *zap.Logger
	mu     sync.RWMutex
	closed bool
}

// New 创建运行历史存储并完成迁移
func New(config Config, logger *zap.Logger) (*Store, error) {
	if config.Path == "" {
		config.Path = DefaultConfig().Path
	}
	if dir := filepath.Dir(config.Path); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("failed to create runstore directory: %w", err)
		}
	}

	db, err := gorm.Open(sqlite.Open(config.Path), &gorm.Config{
		Logger: gormlogger.Default.LogMode(gormlogger.Silent),
	})
	if err != nil {
		return nil, fmt.Errorf("failed to open runstore database: %w", err)
	}

	if err := db.AutoMigrate(&RunRecord{}); err != nil {
		return nil, fmt.Errorf("failed to migrate runstore schema: %w", err)
	}

	sqlDB, err := db.DB()
	if err != nil {
		return nil, fmt.Errorf("failed to get sql.DB: %w", err)
	}
	sqlDB.SetMaxIdleConns(config.MaxIdleConns)
	sqlDB.SetMaxOpenConns(config.MaxOpenConns)
	sqlDB.SetConnMaxLifetime(config.ConnMaxLifetime)

	logger.Info("runstore initialized", zap.String("path", config.Path))

	return &Store{
		db:     db,
		config: config,
		logger: logger.With(zap.String("component", "runstore")),
	}, nil
}

// =============================================================================
// 🎯 核心方法
// =============================================================================

// Save persists the final state of one run and returns the record id.
// Failures are logged and returned; callers treat them as non-fatal.
func (s *Store) Save(ctx context.Context, state *types.PipelineState) (string, error) {
	s.mu.RLock()
	if s.closed {
		s.mu.RUnlock()
		return "", fmt.Errorf("runstore is closed")
	}
	db := s.db
	s.mu.RUnlock()

	stages, err := json.Marshal(state.CompletedStages)
	if err != nil {
		return "", fmt.Errorf("failed to encode completed stages: %w", err)
	}

	record := RunRecord{
		ID:                   uuid.NewString(),
		Query:                state.Query,
		CompletedStages:      string(stages),
		ErrorCount:           state.ErrorCount(),
		RecoveryApplied:      state.Flags.RecoveryApplied,
		ManualReviewRequired: state.Flags.ManualReviewRequired,
		WorkflowCompleted:    state.WorkflowCompleted,
		Incomplete:           state.Incomplete,
		Duration:             state.TotalExecutionTime,
		CreatedAt:            time.Now(),
	}

	if err := db.WithContext(ctx).Create(&record).Error; err != nil {
		s.logger.Error("failed to save run record", zap.Error(err))
		return "", err
	}

	s.logger.Info("run record saved",
		zap.String("id", record.ID),
		zap.Bool("completed", record.WorkflowCompleted))
	return record.ID, nil
}

// Get 按 id 读取单条运行记录
func (s *Store) Get(ctx context.Context, id string) (*RunRecord, error) {
	var record RunRecord
	if err := s.db.WithContext(ctx).First(&record, "id = ?", id).Error; err != nil {
		return nil, err
	}
	return &record, nil
}

// Recent 返回最近的若干条运行记录，按时间倒序
func (s *Store) Recent(ctx context.Context, limit int) ([]RunRecord, error) {
	if limit <= 0 {
		limit = 20
	}
	var records []RunRecord
	err := s.db.WithContext(ctx).
		Order("created_at DESC").
		Limit(limit).
		Find(&records).Error
	return records, err
}

// CompletionRate 返回已持久化运行的整体完成率
func (s *Store) CompletionRate(ctx context.Context) (float64, error) {
	var total, completed int64
	if err := s.db.WithContext(ctx).Model(&RunRecord{}).Count(&total).Error; err != nil {
		return 0, err
	}
	if total == 0 {
		return 0, nil
	}
	err := s.db.WithContext(ctx).Model(&RunRecord{}).
		Where("workflow_completed = ?", true).
		Count(&completed).Error
	if err != nil {
		return 0, err
	}
	return float64(completed) / float64(total), nil
}

// Close 关闭底层连接
func (s *Store) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return nil
	}
	s.closed = true
	s.logger.Info("closing runstore")

	sqlDB, err := s.db.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}
