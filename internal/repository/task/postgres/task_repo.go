package postgres

import (
	"context"
	_ "embed"
	"errors"
	"fmt"
	"time"

	"taskManager/internal/logger"
	"taskManager/internal/models/task"
	repo "taskManager/internal/repository"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"go.uber.org/zap"
)

//go:embed schema.sql
var schema string

const taskColumns = `id, title, description, status, priority, created_at, updated_at`

type Options struct {
	MaxConnections int32
	MinConnections int32
	IdleTimeout    time.Duration
	SlowQuery      time.Duration
}

func DefaultOptions() Options {
	return Options{
		MaxConnections: 10,
		MinConnections: 2,
		IdleTimeout:    time.Minute * 5,
		SlowQuery:      time.Millisecond * 100,
	}
}

type Storage struct {
	pool      *pgxpool.Pool
	slowQuery time.Duration
}

func New(ctx context.Context, connString string, opts Options) (*Storage, error) {
	config, err := pgxpool.ParseConfig(connString)
	if err != nil {
		logger.Error("Repository: Ошибка загрузки конфига", err)
		return nil, fmt.Errorf("загрузка конфига: %w", err)
	}

	if opts.MaxConnections > 0 {
		config.MaxConns = opts.MaxConnections
	}
	if opts.MinConnections > 0 {
		config.MinConns = opts.MinConnections
	}
	if opts.IdleTimeout > 0 {
		config.MaxConnIdleTime = opts.IdleTimeout
	}

	pool, err := pgxpool.NewWithConfig(ctx, config)
	if err != nil {
		logger.Error("Repository: Ошибка создания пула", err)
		return nil, fmt.Errorf("создание пула: %w", err)
	}

	err = pool.Ping(ctx)
	if err != nil {
		pool.Close()
		logger.Error("Repository: Неудачная проверка ping", err)
		return nil, fmt.Errorf("проверка соединения ping: %w", err)
	}

	slow := opts.SlowQuery
	if slow <= 0 {
		slow = DefaultOptions().SlowQuery
	}

	logger.Info("Repository: Успешное создание подключения к PostgreSQL")
	return &Storage{pool: pool, slowQuery: slow}, nil
}

func (s *Storage) Close() {
	if s.pool == nil {
		return
	}
	s.pool.Close()
	logger.Info("Repository: Закрытие всех соединений PostgreSQL")
}

func (s *Storage) HealthCheck(ctx context.Context) error {
	err := s.pool.Ping(ctx)
	if err != nil {
		logger.Error("Repository: Неудачная проверка ping", err)
		return fmt.Errorf("проверка соединения ping: %w", err)
	}
	return nil
}

// EnsureSchema создаёт таблицу tasks, если её ещё нет.
func (s *Storage) EnsureSchema(ctx context.Context) error {
	if _, err := s.pool.Exec(ctx, schema); err != nil {
		logger.Error("Repository: Не удалось создать схему", err)
		return fmt.Errorf("создание схемы: %w", err)
	}
	logger.Info("Repository: Схема tasks готова")
	return nil
}

func (s *Storage) Begin(ctx context.Context) (repo.Session, error) {
	tx, err := s.pool.Begin(ctx)
	if err != nil {
		logger.Error("Repository: Не удалось открыть транзакцию", err)
		return nil, fmt.Errorf("открытие транзакции: %w", err)
	}
	return &session{tx: tx, slowQuery: s.slowQuery}, nil
}

type session struct {
	tx        pgx.Tx
	slowQuery time.Duration
}

func (s *session) warnIfSlow(op string, start time.Time) {
	if d := time.Since(start); d > s.slowQuery {
		logger.Warn("Repository: Медленный запрос", zap.String("operation", op), zap.Duration("ms", d))
	}
}

func (s *session) Add(ctx context.Context, t *task.Task) error {
	start := time.Now()
	defer s.warnIfSlow("add", start)

	query := `INSERT INTO tasks
				(title, description, status, priority, created_at, updated_at)
				VALUES ($1, $2, $3, $4, $5, $6)
				RETURNING id`

	err := s.tx.QueryRow(ctx, query,
		t.Title,
		t.Description,
		string(t.Status),
		string(t.Priority),
		t.CreatedAt,
		t.UpdatedAt,
	).Scan(&t.ID)
	if err != nil {
		logger.Error("Repository: Не удалось добавить задачу", err, zap.Duration("ms", time.Since(start)))
		return err
	}
	return nil
}

func (s *session) Get(ctx context.Context, id int64) (*task.Task, error) {
	start := time.Now()
	defer s.warnIfSlow("get", start)

	query := `SELECT ` + taskColumns + ` FROM tasks WHERE id = $1`

	t, err := scanTask(s.tx.QueryRow(ctx, query, id))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, repo.ErrNotFound
		}
		logger.Error("Repository: Не удалось получить задачу", err, zap.Int64("task_id", id))
		return nil, err
	}
	return t, nil
}

func (s *session) Save(ctx context.Context, t *task.Task) error {
	start := time.Now()
	defer s.warnIfSlow("save", start)

	query := `UPDATE tasks
			SET title = $1,
				description = $2,
				status = $3,
				priority = $4,
				updated_at = $5
			WHERE id = $6`

	tag, err := s.tx.Exec(ctx, query,
		t.Title,
		t.Description,
		string(t.Status),
		string(t.Priority),
		t.UpdatedAt,
		t.ID,
	)
	if err != nil {
		logger.Error("Repository: Не удалось обновить задачу", err, zap.Int64("task_id", t.ID))
		return err
	}
	if tag.RowsAffected() == 0 {
		return repo.ErrNotFound
	}
	return nil
}

func (s *session) Query(ctx context.Context, q repo.TaskQuery) ([]*task.Task, int, error) {
	start := time.Now()
	defer s.warnIfSlow("query", start)

	where, args := q.Filter.Where(1)

	var total int
	if err := s.tx.QueryRow(ctx, `SELECT COUNT(*) FROM tasks WHERE `+where, args...).Scan(&total); err != nil {
		logger.Error("Repository: Не удалось посчитать задачи", err)
		return nil, 0, err
	}

	query := fmt.Sprintf(`SELECT %s FROM tasks WHERE %s ORDER BY id ASC LIMIT $%d OFFSET $%d`,
		taskColumns, where, len(args)+1, len(args)+2)
	args = append(args, q.Limit, q.Skip)

	rows, err := s.tx.Query(ctx, query, args...)
	if err != nil {
		logger.Error("Repository: Не удалось получить задачи", err, zap.Duration("ms", time.Since(start)))
		return nil, 0, err
	}

	tasks, err := pgx.CollectRows(rows, func(row pgx.CollectableRow) (*task.Task, error) {
		return scanTask(row)
	})
	if err != nil {
		logger.Error("Repository: Ошибка итерации по строкам", err)
		return nil, 0, err
	}
	return tasks, total, nil
}

func (s *session) Delete(ctx context.Context, id int64) error {
	start := time.Now()
	defer s.warnIfSlow("delete", start)

	tag, err := s.tx.Exec(ctx, `DELETE FROM tasks WHERE id = $1`, id)
	if err != nil {
		logger.Error("Repository: Не удалось удалить задачу", err, zap.Int64("task_id", id))
		return err
	}
	if tag.RowsAffected() == 0 {
		return repo.ErrNotFound
	}
	return nil
}

func (s *session) Commit(ctx context.Context) error {
	return s.tx.Commit(ctx)
}

func (s *session) Rollback(ctx context.Context) error {
	err := s.tx.Rollback(ctx)
	if errors.Is(err, pgx.ErrTxClosed) {
		return nil
	}
	return err
}

func scanTask(row pgx.Row) (*task.Task, error) {
	t := &task.Task{}
	var status, priority string
	err := row.Scan(
		&t.ID,
		&t.Title,
		&t.Description,
		&status,
		&priority,
		&t.CreatedAt,
		&t.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	t.Status = task.Status(status)
	t.Priority = task.Priority(priority)
	t.CreatedAt = t.CreatedAt.UTC()
	t.UpdatedAt = t.UpdatedAt.UTC()
	return t, nil
}
