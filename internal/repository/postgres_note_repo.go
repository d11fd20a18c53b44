package repository

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/dunedivision/taskhub/internal/model"
)

// PostgresNoteRepo はPostgreSQLを使用したメモリポジトリ。
type PostgresNoteRepo struct {
	db *sql.DB
}

// NewPostgresNoteRepo はPostgresNoteRepoを生成する。
func NewPostgresNoteRepo(db *sql.DB) *PostgresNoteRepo {
	return &PostgresNoteRepo{db: db}
}

const noteColumns = `id, owner_id, title, content, tags, created_at, updated_at`

// Create はメモと共有グループを同一トランザクションで作成する。
func (r *PostgresNoteRepo) Create(ctx context.Context, note *model.Note) error {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	_, err = tx.ExecContext(ctx,
		`INSERT INTO notes (`+noteColumns+`)
		 VALUES ($1, $2, $3, $4, $5, $6, $7)`,
		note.ID, note.OwnerID, note.Title, note.Content, note.Tags,
		note.CreatedAt, note.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to insert note: %w", err)
	}

	if err := replaceRecordGroups(ctx, tx, "note_groups", "note_id", note.ID, note.GroupIDs); err != nil {
		return err
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit transaction: %w", err)
	}

	return nil
}

// FindByID は指定IDのメモを共有グループID込みで取得する。見つからない場合はnilを返す。
func (r *PostgresNoteRepo) FindByID(ctx context.Context, id string) (*model.Note, error) {
	note := &model.Note{}
	err := r.db.QueryRowContext(ctx,
		`SELECT `+noteColumns+` FROM notes WHERE id = $1`,
		id,
	).Scan(
		&note.ID, &note.OwnerID, &note.Title, &note.Content, &note.Tags,
		&note.CreatedAt, &note.UpdatedAt,
	)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to find note: %w", err)
	}

	groupIDs, err := loadRecordGroups(ctx, r.db, "note_groups", "note_id", id)
	if err != nil {
		return nil, err
	}
	note.GroupIDs = groupIDs

	return note, nil
}

// Update はメモと共有グループを上書き更新する。owner_id、created_atは変更しない。
func (r *PostgresNoteRepo) Update(ctx context.Context, note *model.Note) error {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	result, err := tx.ExecContext(ctx,
		`UPDATE notes
		 SET title = $2, content = $3, tags = $4, updated_at = $5
		 WHERE id = $1`,
		note.ID, note.Title, note.Content, note.Tags, note.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to update note: %w", err)
	}
	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get rows affected: %w", err)
	}
	if rowsAffected == 0 {
		return fmt.Errorf("note not found: %s", note.ID)
	}

	if err := replaceRecordGroups(ctx, tx, "note_groups", "note_id", note.ID, note.GroupIDs); err != nil {
		return err
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit transaction: %w", err)
	}

	return nil
}

// Delete は指定IDのメモを削除する。note_groupsはCASCADE削除される。
func (r *PostgresNoteRepo) Delete(ctx context.Context, id string) error {
	result, err := r.db.ExecContext(ctx, `DELETE FROM notes WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("failed to delete note: %w", err)
	}
	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get rows affected: %w", err)
	}
	if rowsAffected == 0 {
		return fmt.Errorf("note not found: %s", id)
	}
	return nil
}

// ListVisible はユーザーに可視なメモをcreated_at降順で返す。
func (r *PostgresNoteRepo) ListVisible(ctx context.Context, userID string, limit, offset int) ([]*model.Note, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT `+noteColumns+`
		 FROM notes n
		 WHERE n.owner_id = $1
		    OR EXISTS (
		        SELECT 1 FROM note_groups ng
		        JOIN user_groups ug ON ug.group_id = ng.group_id
		        WHERE ng.note_id = n.id AND ug.user_id = $1)
		 ORDER BY n.created_at DESC
		 LIMIT $2 OFFSET $3`,
		userID, limit, offset,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to list visible notes: %w", err)
	}
	defer rows.Close()

	var notes []*model.Note
	for rows.Next() {
		note := &model.Note{}
		if err := rows.Scan(
			&note.ID, &note.OwnerID, &note.Title, &note.Content, &note.Tags,
			&note.CreatedAt, &note.UpdatedAt,
		); err != nil {
			return nil, fmt.Errorf("failed to scan note: %w", err)
		}
		notes = append(notes, note)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate notes: %w", err)
	}

	return notes, nil
}

// CountVisible はユーザーに可視なメモの総数を返す。
func (r *PostgresNoteRepo) CountVisible(ctx context.Context, userID string) (int, error) {
	var count int
	err := r.db.QueryRowContext(ctx,
		`SELECT COUNT(*)
		 FROM notes n
		 WHERE n.owner_id = $1
		    OR EXISTS (
		        SELECT 1 FROM note_groups ng
		        JOIN user_groups ug ON ug.group_id = ng.group_id
		        WHERE ng.note_id = n.id AND ug.user_id = $1)`,
		userID,
	).Scan(&count)
	if err != nil {
		return 0, fmt.Errorf("failed to count visible notes: %w", err)
	}
	return count, nil
}

// compile-time interface check
var _ NoteRepository = (*PostgresNoteRepo)(nil)
