package repository

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/dunedivision/taskhub/internal/model"
)

// PostgresTaskRepo はPostgreSQLを使用したタスクリポジトリ。
type PostgresTaskRepo struct {
	db *sql.DB
}

// NewPostgresTaskRepo はPostgresTaskRepoを生成する。
func NewPostgresTaskRepo(db *sql.DB) *PostgresTaskRepo {
	return &PostgresTaskRepo{db: db}
}

const taskColumns = `id, owner_id, title, completed, due_date, priority, recurring, tags, notes, created_at, updated_at`

// Create はタスクと共有グループを同一トランザクションで作成する。
func (r *PostgresTaskRepo) Create(ctx context.Context, task *model.Task) error {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	_, err = tx.ExecContext(ctx,
		`INSERT INTO tasks (`+taskColumns+`)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)`,
		task.ID, task.OwnerID, task.Title, task.Completed, task.DueDate,
		task.Priority, task.Recurring, task.Tags, task.Notes, task.CreatedAt, task.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to insert task: %w", err)
	}

	if err := replaceRecordGroups(ctx, tx, "task_groups", "task_id", task.ID, task.GroupIDs); err != nil {
		return err
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit transaction: %w", err)
	}

	return nil
}

// FindByID は指定IDのタスクを共有グループID込みで取得する。見つからない場合はnilを返す。
func (r *PostgresTaskRepo) FindByID(ctx context.Context, id string) (*model.Task, error) {
	task := &model.Task{}
	err := r.db.QueryRowContext(ctx,
		`SELECT `+taskColumns+` FROM tasks WHERE id = $1`,
		id,
	).Scan(
		&task.ID, &task.OwnerID, &task.Title, &task.Completed, &task.DueDate,
		&task.Priority, &task.Recurring, &task.Tags, &task.Notes, &task.CreatedAt, &task.UpdatedAt,
	)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to find task: %w", err)
	}

	groupIDs, err := loadRecordGroups(ctx, r.db, "task_groups", "task_id", id)
	if err != nil {
		return nil, err
	}
	task.GroupIDs = groupIDs

	return task, nil
}

// Update はタスクと共有グループを上書き更新する。owner_id、created_atは変更しない。
func (r *PostgresTaskRepo) Update(ctx context.Context, task *model.Task) error {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	result, err := tx.ExecContext(ctx,
		`UPDATE tasks
		 SET title = $2, completed = $3, due_date = $4, priority = $5,
		     recurring = $6, tags = $7, notes = $8, updated_at = $9
		 WHERE id = $1`,
		task.ID, task.Title, task.Completed, task.DueDate, task.Priority,
		task.Recurring, task.Tags, task.Notes, task.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to update task: %w", err)
	}
	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get rows affected: %w", err)
	}
	if rowsAffected == 0 {
		return fmt.Errorf("task not found: %s", task.ID)
	}

	if err := replaceRecordGroups(ctx, tx, "task_groups", "task_id", task.ID, task.GroupIDs); err != nil {
		return err
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit transaction: %w", err)
	}

	return nil
}

// Delete は指定IDのタスクを削除する。task_groupsはCASCADE削除される。
func (r *PostgresTaskRepo) Delete(ctx context.Context, id string) error {
	result, err := r.db.ExecContext(ctx, `DELETE FROM tasks WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("failed to delete task: %w", err)
	}
	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get rows affected: %w", err)
	}
	if rowsAffected == 0 {
		return fmt.Errorf("task not found: %s", id)
	}
	return nil
}

// ListVisible はユーザーに可視なタスクをcreated_at降順で返す。
// 所有レコードとグループ共有レコードの和集合。EXISTSで重複なく取得する。
func (r *PostgresTaskRepo) ListVisible(ctx context.Context, userID string, limit, offset int) ([]*model.Task, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT `+taskColumns+`
		 FROM tasks t
		 WHERE t.owner_id = $1
		    OR EXISTS (
		        SELECT 1 FROM task_groups tg
		        JOIN user_groups ug ON ug.group_id = tg.group_id
		        WHERE tg.task_id = t.id AND ug.user_id = $1)
		 ORDER BY t.created_at DESC
		 LIMIT $2 OFFSET $3`,
		userID, limit, offset,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to list visible tasks: %w", err)
	}
	defer rows.Close()

	var tasks []*model.Task
	for rows.Next() {
		task := &model.Task{}
		if err := rows.Scan(
			&task.ID, &task.OwnerID, &task.Title, &task.Completed, &task.DueDate,
			&task.Priority, &task.Recurring, &task.Tags, &task.Notes, &task.CreatedAt, &task.UpdatedAt,
		); err != nil {
			return nil, fmt.Errorf("failed to scan task: %w", err)
		}
		tasks = append(tasks, task)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate tasks: %w", err)
	}

	return tasks, nil
}

// CountVisible はユーザーに可視なタスクの総数を返す。
func (r *PostgresTaskRepo) CountVisible(ctx context.Context, userID string) (int, error) {
	var count int
	err := r.db.QueryRowContext(ctx,
		`SELECT COUNT(*)
		 FROM tasks t
		 WHERE t.owner_id = $1
		    OR EXISTS (
		        SELECT 1 FROM task_groups tg
		        JOIN user_groups ug ON ug.group_id = tg.group_id
		        WHERE tg.task_id = t.id AND ug.user_id = $1)`,
		userID,
	).Scan(&count)
	if err != nil {
		return 0, fmt.Errorf("failed to count visible tasks: %w", err)
	}
	return count, nil
}

// replaceRecordGroups はレコードの共有グループ集合をトランザクション内で置き換える。
// 4種のレコードの共有ジョインテーブルで共用する。
func replaceRecordGroups(ctx context.Context, tx *sql.Tx, table, idColumn, recordID string, groupIDs []string) error {
	if _, err := tx.ExecContext(ctx,
		`DELETE FROM `+table+` WHERE `+idColumn+` = $1`, recordID,
	); err != nil {
		return fmt.Errorf("failed to clear record groups: %w", err)
	}

	for _, groupID := range groupIDs {
		if _, err := tx.ExecContext(ctx,
			`INSERT INTO `+table+` (`+idColumn+`, group_id) VALUES ($1, $2)`,
			recordID, groupID,
		); err != nil {
			return fmt.Errorf("failed to insert record group: %w", err)
		}
	}

	return nil
}

// loadRecordGroups はレコードの共有グループIDを読み込む。
func loadRecordGroups(ctx context.Context, db *sql.DB, table, idColumn, recordID string) ([]string, error) {
	rows, err := db.QueryContext(ctx,
		`SELECT group_id FROM `+table+` WHERE `+idColumn+` = $1 ORDER BY group_id`,
		recordID,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to load record groups: %w", err)
	}
	defer rows.Close()

	var ids []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, fmt.Errorf("failed to scan group id: %w", err)
		}
		ids = append(ids, id)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate group ids: %w", err)
	}

	return ids, nil
}

// compile-time interface check
var _ TaskRepository = (*PostgresTaskRepo)(nil)
