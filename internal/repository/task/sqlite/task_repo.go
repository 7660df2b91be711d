package sqlite

import (
	"context"
	"errors"
	"fmt"
	"time"

	"taskManager/internal/logger"
	"taskManager/internal/models/task"
	repo "taskManager/internal/repository"

	"go.uber.org/zap"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"
)

// taskRecord is the GORM mapping of a task row.
type taskRecord struct {
	ID          int64     `gorm:"primaryKey;autoIncrement"`
	Title       string    `gorm:"size:200;not null;index"`
	Description *string   `gorm:"size:2000"`
	Status      string    `gorm:"size:20;not null;index"`
	Priority    string    `gorm:"size:20;not null;index"`
	CreatedAt   time.Time `gorm:"not null;autoCreateTime:false"`
	UpdatedAt   time.Time `gorm:"not null;autoUpdateTime:false"`
}

func (taskRecord) TableName() string {
	return "tasks"
}

func toRecord(t *task.Task) *taskRecord {
	return &taskRecord{
		ID:          t.ID,
		Title:       t.Title,
		Description: t.Description,
		Status:      string(t.Status),
		Priority:    string(t.Priority),
		CreatedAt:   t.CreatedAt,
		UpdatedAt:   t.UpdatedAt,
	}
}

func (r *taskRecord) toTask() *task.Task {
	return &task.Task{
		ID:          r.ID,
		Title:       r.Title,
		Description: r.Description,
		Status:      task.Status(r.Status),
		Priority:    task.Priority(r.Priority),
		CreatedAt:   r.CreatedAt.UTC(),
		UpdatedAt:   r.UpdatedAt.UTC(),
	}
}

type Storage struct {
	db *gorm.DB
}

// Open открывает базу по DSN (путь к файлу или "file:...?mode=memory") и создаёт таблицу.
// SQLite допускает одного писателя, поэтому пул ограничен одним соединением.
func Open(dsn string, slowQuery time.Duration) (*Storage, error) {
	if slowQuery <= 0 {
		slowQuery = 100 * time.Millisecond
	}

	gormLog := gormlogger.New(
		zap.NewStdLog(logger.Named("gorm")),
		gormlogger.Config{
			SlowThreshold:             slowQuery,
			LogLevel:                  gormlogger.Warn,
			IgnoreRecordNotFoundError: true,
		},
	)

	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{Logger: gormLog})
	if err != nil {
		logger.Error("Repository: Не удалось открыть SQLite", err)
		return nil, fmt.Errorf("открытие sqlite: %w", err)
	}
	return newStorage(db)
}

// NewWithDB оборачивает уже открытую базу, удобно для тестов.
func NewWithDB(db *gorm.DB) (*Storage, error) {
	return newStorage(db)
}

func newStorage(db *gorm.DB) (*Storage, error) {
	sqlDB, err := db.DB()
	if err != nil {
		return nil, fmt.Errorf("получение пула: %w", err)
	}
	sqlDB.SetMaxOpenConns(1)

	if err := db.AutoMigrate(&taskRecord{}); err != nil {
		logger.Error("Repository: Не удалось создать таблицу tasks", err)
		return nil, fmt.Errorf("создание таблицы: %w", err)
	}

	logger.Info("Repository: SQLite готов")
	return &Storage{db: db}, nil
}

func (s *Storage) Close() {
	sqlDB, err := s.db.DB()
	if err != nil {
		logger.Error("Repository: Не удалось получить пул SQLite", err)
		return
	}
	if err := sqlDB.Close(); err != nil {
		logger.Error("Repository: Ошибка закрытия SQLite", err)
		return
	}
	logger.Info("Repository: SQLite закрыт")
}

func (s *Storage) HealthCheck(ctx context.Context) error {
	sqlDB, err := s.db.DB()
	if err != nil {
		return fmt.Errorf("получение пула: %w", err)
	}
	if err := sqlDB.PingContext(ctx); err != nil {
		logger.Error("Repository: Неудачная проверка ping", err)
		return fmt.Errorf("проверка соединения ping: %w", err)
	}
	return nil
}

func (s *Storage) Begin(ctx context.Context) (repo.Session, error) {
	tx := s.db.WithContext(ctx).Begin()
	if tx.Error != nil {
		logger.Error("Repository: Не удалось открыть транзакцию", tx.Error)
		return nil, fmt.Errorf("открытие транзакции: %w", tx.Error)
	}
	return &session{tx: tx}, nil
}

type session struct {
	tx   *gorm.DB
	done bool
}

func (s *session) Add(ctx context.Context, t *task.Task) error {
	rec := toRecord(t)
	rec.ID = 0
	if err := s.tx.WithContext(ctx).Create(rec).Error; err != nil {
		return err
	}
	t.ID = rec.ID
	return nil
}

func (s *session) Get(ctx context.Context, id int64) (*task.Task, error) {
	var rec taskRecord
	if err := s.tx.WithContext(ctx).First(&rec, "id = ?", id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, repo.ErrNotFound
		}
		return nil, err
	}
	return rec.toTask(), nil
}

func (s *session) Save(ctx context.Context, t *task.Task) error {
	// map, а не структура: иначе GORM пропустит nil в description
	result := s.tx.WithContext(ctx).Model(&taskRecord{}).Where("id = ?", t.ID).Updates(map[string]any{
		"title":       t.Title,
		"description": t.Description,
		"status":      string(t.Status),
		"priority":    string(t.Priority),
		"updated_at":  t.UpdatedAt,
	})
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return repo.ErrNotFound
	}
	return nil
}

func (s *session) Query(ctx context.Context, q repo.TaskQuery) ([]*task.Task, int, error) {
	db := s.tx.WithContext(ctx).Model(&taskRecord{}).Scopes(q.Filter.Scope())

	var total int64
	if err := db.Count(&total).Error; err != nil {
		return nil, 0, err
	}

	var recs []taskRecord
	err := s.tx.WithContext(ctx).
		Scopes(q.Filter.Scope()).
		Order("id ASC").
		Offset(q.Skip).
		Limit(q.Limit).
		Find(&recs).Error
	if err != nil {
		return nil, 0, err
	}

	tasks := make([]*task.Task, len(recs))
	for i := range recs {
		tasks[i] = recs[i].toTask()
	}
	return tasks, int(total), nil
}

func (s *session) Delete(ctx context.Context, id int64) error {
	result := s.tx.WithContext(ctx).Delete(&taskRecord{}, "id = ?", id)
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return repo.ErrNotFound
	}
	return nil
}

func (s *session) Commit(ctx context.Context) error {
	s.done = true
	return s.tx.Commit().Error
}

func (s *session) Rollback(ctx context.Context) error {
	if s.done {
		return nil
	}
	s.done = true
	return s.tx.Rollback().Error
}
