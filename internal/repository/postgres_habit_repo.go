package repository

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/dunedivision/taskhub/internal/model"
)

// PostgresHabitRepo はPostgreSQLを使用した習慣リポジトリ。
type PostgresHabitRepo struct {
	db *sql.DB
}

// NewPostgresHabitRepo はPostgresHabitRepoを生成する。
func NewPostgresHabitRepo(db *sql.DB) *PostgresHabitRepo {
	return &PostgresHabitRepo{db: db}
}

const habitColumns = `id, owner_id, name, frequency, last_done, streak, notes, created_at, updated_at`

// Create は習慣と共有グループを同一トランザクションで作成する。
func (r *PostgresHabitRepo) Create(ctx context.Context, habit *model.Habit) error {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	_, err = tx.ExecContext(ctx,
		`INSERT INTO habits (`+habitColumns+`)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)`,
		habit.ID, habit.OwnerID, habit.Name, habit.Frequency, habit.LastDone,
		habit.Streak, habit.Notes, habit.CreatedAt, habit.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to insert habit: %w", err)
	}

	if err := replaceRecordGroups(ctx, tx, "habit_groups", "habit_id", habit.ID, habit.GroupIDs); err != nil {
		return err
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit transaction: %w", err)
	}

	return nil
}

// FindByID は指定IDの習慣を共有グループID込みで取得する。見つからない場合はnilを返す。
func (r *PostgresHabitRepo) FindByID(ctx context.Context, id string) (*model.Habit, error) {
	habit := &model.Habit{}
	err := r.db.QueryRowContext(ctx,
		`SELECT `+habitColumns+` FROM habits WHERE id = $1`,
		id,
	).Scan(
		&habit.ID, &habit.OwnerID, &habit.Name, &habit.Frequency, &habit.LastDone,
		&habit.Streak, &habit.Notes, &habit.CreatedAt, &habit.UpdatedAt,
	)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to find habit: %w", err)
	}

	groupIDs, err := loadRecordGroups(ctx, r.db, "habit_groups", "habit_id", id)
	if err != nil {
		return nil, err
	}
	habit.GroupIDs = groupIDs

	return habit, nil
}

// Update は習慣と共有グループを上書き更新する。owner_id、created_atは変更しない。
func (r *PostgresHabitRepo) Update(ctx context.Context, habit *model.Habit) error {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	result, err := tx.ExecContext(ctx,
		`UPDATE habits
		 SET name = $2, frequency = $3, last_done = $4, streak = $5,
		     notes = $6, updated_at = $7
		 WHERE id = $1`,
		habit.ID, habit.Name, habit.Frequency, habit.LastDone, habit.Streak,
		habit.Notes, habit.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to update habit: %w", err)
	}
	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get rows affected: %w", err)
	}
	if rowsAffected == 0 {
		return fmt.Errorf("habit not found: %s", habit.ID)
	}

	if err := replaceRecordGroups(ctx, tx, "habit_groups", "habit_id", habit.ID, habit.GroupIDs); err != nil {
		return err
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit transaction: %w", err)
	}

	return nil
}

// Delete は指定IDの習慣を削除する。habit_groupsはCASCADE削除される。
func (r *PostgresHabitRepo) Delete(ctx context.Context, id string) error {
	result, err := r.db.ExecContext(ctx, `DELETE FROM habits WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("failed to delete habit: %w", err)
	}
	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get rows affected: %w", err)
	}
	if rowsAffected == 0 {
		return fmt.Errorf("habit not found: %s", id)
	}
	return nil
}

// ListVisible はユーザーに可視な習慣をstreak降順で返す。
func (r *PostgresHabitRepo) ListVisible(ctx context.Context, userID string, limit, offset int) ([]*model.Habit, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT `+habitColumns+`
		 FROM habits h
		 WHERE h.owner_id = $1
		    OR EXISTS (
		        SELECT 1 FROM habit_groups hg
		        JOIN user_groups ug ON ug.group_id = hg.group_id
		        WHERE hg.habit_id = h.id AND ug.user_id = $1)
		 ORDER BY h.streak DESC, h.created_at DESC
		 LIMIT $2 OFFSET $3`,
		userID, limit, offset,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to list visible habits: %w", err)
	}
	defer rows.Close()

	var habits []*model.Habit
	for rows.Next() {
		habit := &model.Habit{}
		if err := rows.Scan(
			&habit.ID, &habit.OwnerID, &habit.Name, &habit.Frequency, &habit.LastDone,
			&habit.Streak, &habit.Notes, &habit.CreatedAt, &habit.UpdatedAt,
		); err != nil {
			return nil, fmt.Errorf("failed to scan habit: %w", err)
		}
		habits = append(habits, habit)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate habits: %w", err)
	}

	return habits, nil
}

// CountVisible はユーザーに可視な習慣の総数を返す。
func (r *PostgresHabitRepo) CountVisible(ctx context.Context, userID string) (int, error) {
	var count int
	err := r.db.QueryRowContext(ctx,
		`SELECT COUNT(*)
		 FROM habits h
		 WHERE h.owner_id = $1
		    OR EXISTS (
		        SELECT 1 FROM habit_groups hg
		        JOIN user_groups ug ON ug.group_id = hg.group_id
		        WHERE hg.habit_id = h.id AND ug.user_id = $1)`,
		userID,
	).Scan(&count)
	if err != nil {
		return 0, fmt.Errorf("failed to count visible habits: %w", err)
	}
	return count, nil
}

// compile-time interface check
var _ HabitRepository = (*PostgresHabitRepo)(nil)
