package repository

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/dunedivision/taskhub/internal/model"
)

// PostgresEventRepo はPostgreSQLを使用した予定リポジトリ。
type PostgresEventRepo struct {
	db *sql.DB
}

// NewPostgresEventRepo はPostgresEventRepoを生成する。
func NewPostgresEventRepo(db *sql.DB) *PostgresEventRepo {
	return &PostgresEventRepo{db: db}
}

const eventColumns = `id, owner_id, title, event_date, location, description, reminder, tags, created_at, updated_at`

// Create は予定と共有グループを同一トランザクションで作成する。
func (r *PostgresEventRepo) Create(ctx context.Context, event *model.Event) error {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	_, err = tx.ExecContext(ctx,
		`INSERT INTO events (`+eventColumns+`)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)`,
		event.ID, event.OwnerID, event.Title, event.EventDate, event.Location,
		event.Description, event.Reminder, event.Tags, event.CreatedAt, event.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to insert event: %w", err)
	}

	if err := replaceRecordGroups(ctx, tx, "event_groups", "event_id", event.ID, event.GroupIDs); err != nil {
		return err
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit transaction: %w", err)
	}

	return nil
}

// FindByID は指定IDの予定を共有グループID込みで取得する。見つからない場合はnilを返す。
func (r *PostgresEventRepo) FindByID(ctx context.Context, id string) (*model.Event, error) {
	event := &model.Event{}
	err := r.db.QueryRowContext(ctx,
		`SELECT `+eventColumns+` FROM events WHERE id = $1`,
		id,
	).Scan(
		&event.ID, &event.OwnerID, &event.Title, &event.EventDate, &event.Location,
		&event.Description, &event.Reminder, &event.Tags, &event.CreatedAt, &event.UpdatedAt,
	)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to find event: %w", err)
	}

	groupIDs, err := loadRecordGroups(ctx, r.db, "event_groups", "event_id", id)
	if err != nil {
		return nil, err
	}
	event.GroupIDs = groupIDs

	return event, nil
}

// Update は予定と共有グループを上書き更新する。owner_id、created_atは変更しない。
func (r *PostgresEventRepo) Update(ctx context.Context, event *model.Event) error {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	result, err := tx.ExecContext(ctx,
		`UPDATE events
		 SET title = $2, event_date = $3, location = $4, description = $5,
		     reminder = $6, tags = $7, updated_at = $8
		 WHERE id = $1`,
		event.ID, event.Title, event.EventDate, event.Location, event.Description,
		event.Reminder, event.Tags, event.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to update event: %w", err)
	}
	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get rows affected: %w", err)
	}
	if rowsAffected == 0 {
		return fmt.Errorf("event not found: %s", event.ID)
	}

	if err := replaceRecordGroups(ctx, tx, "event_groups", "event_id", event.ID, event.GroupIDs); err != nil {
		return err
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit transaction: %w", err)
	}

	return nil
}

// Delete は指定IDの予定を削除する。event_groupsはCASCADE削除される。
func (r *PostgresEventRepo) Delete(ctx context.Context, id string) error {
	result, err := r.db.ExecContext(ctx, `DELETE FROM events WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("failed to delete event: %w", err)
	}
	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get rows affected: %w", err)
	}
	if rowsAffected == 0 {
		return fmt.Errorf("event not found: %s", id)
	}
	return nil
}

// ListVisible はユーザーに可視な予定をevent_date昇順で返す。
func (r *PostgresEventRepo) ListVisible(ctx context.Context, userID string, limit, offset int) ([]*model.Event, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT `+eventColumns+`
		 FROM events e
		 WHERE e.owner_id = $1
		    OR EXISTS (
		        SELECT 1 FROM event_groups eg
		        JOIN user_groups ug ON ug.group_id = eg.group_id
		        WHERE eg.event_id = e.id AND ug.user_id = $1)
		 ORDER BY e.event_date ASC
		 LIMIT $2 OFFSET $3`,
		userID, limit, offset,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to list visible events: %w", err)
	}
	defer rows.Close()

	var events []*model.Event
	for rows.Next() {
		event := &model.Event{}
		if err := rows.Scan(
			&event.ID, &event.OwnerID, &event.Title, &event.EventDate, &event.Location,
			&event.Description, &event.Reminder, &event.Tags, &event.CreatedAt, &event.UpdatedAt,
		); err != nil {
			return nil, fmt.Errorf("failed to scan event: %w", err)
		}
		events = append(events, event)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate events: %w", err)
	}

	return events, nil
}

// CountVisible はユーザーに可視な予定の総数を返す。
func (r *PostgresEventRepo) CountVisible(ctx context.Context, userID string) (int, error) {
	var count int
	err := r.db.QueryRowContext(ctx,
		`SELECT COUNT(*)
		 FROM events e
		 WHERE e.owner_id = $1
		    OR EXISTS (
		        SELECT 1 FROM event_groups eg
		        JOIN user_groups ug ON ug.group_id = eg.group_id
		        WHERE eg.event_id = e.id AND ug.user_id = $1)`,
		userID,
	).Scan(&count)
	if err != nil {
		return 0, fmt.Errorf("failed to count visible events: %w", err)
	}
	return count, nil
}

// compile-time interface check
var _ EventRepository = (*PostgresEventRepo)(nil)
