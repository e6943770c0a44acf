package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/lib/pq"
	"github.com/ruralpay/cartable/internal/errs"
	"github.com/ruralpay/cartable/internal/models"
)

const groupColumns = `id, title, description, enabled, created_at, updated_at`

func (q *queries) GetGroup(ctx context.Context, id string) (*models.AccountGroup, error) {
	var g models.AccountGroup
	err := q.q.QueryRowContext(ctx, `SELECT `+groupColumns+` FROM account_groups WHERE id = $1`, id).
		Scan(&g.ID, &g.Title, &g.Description, &g.Enabled, &g.CreatedAt, &g.UpdatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, errs.ErrGroupNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get group %s: %w", id, err)
	}

	members, err := q.groupMembers(ctx, []string{id})
	if err != nil {
		return nil, err
	}
	g.AccountIDs = members[id]
	return &g, nil
}

func (q *queries) ListGroups(ctx context.Context) ([]models.AccountGroup, error) {
	rows, err := q.q.QueryContext(ctx, `SELECT `+groupColumns+` FROM account_groups ORDER BY title, id`)
	if err != nil {
		return nil, fmt.Errorf("list groups: %w", err)
	}
	defer rows.Close()

	var groups []models.AccountGroup
	var ids []string
	for rows.Next() {
		var g models.AccountGroup
		if err := rows.Scan(&g.ID, &g.Title, &g.Description, &g.Enabled, &g.CreatedAt, &g.UpdatedAt); err != nil {
			return nil, err
		}
		groups = append(groups, g)
		ids = append(ids, g.ID)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	if len(ids) == 0 {
		return groups, nil
	}

	members, err := q.groupMembers(ctx, ids)
	if err != nil {
		return nil, err
	}
	for i := range groups {
		groups[i].AccountIDs = members[groups[i].ID]
	}
	return groups, nil
}

func (q *queries) groupMembers(ctx context.Context, groupIDs []string) (map[string][]string, error) {
	rows, err := q.q.QueryContext(ctx,
		`SELECT group_id, account_id FROM group_accounts WHERE group_id = ANY($1) ORDER BY account_id`,
		pq.Array(groupIDs))
	if err != nil {
		return nil, fmt.Errorf("list group members: %w", err)
	}
	defer rows.Close()

	out := make(map[string][]string, len(groupIDs))
	for rows.Next() {
		var groupID, accountID string
		if err := rows.Scan(&groupID, &accountID); err != nil {
			return nil, err
		}
		out[groupID] = append(out[groupID], accountID)
	}
	return out, rows.Err()
}

func (q *queries) CreateGroup(ctx context.Context, g *models.AccountGroup) error {
	_, err := q.q.ExecContext(ctx, `
		INSERT INTO account_groups (id, title, description, enabled, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6)
	`, g.ID, g.Title, g.Description, g.Enabled, g.CreatedAt, g.UpdatedAt)
	if err != nil {
		return fmt.Errorf("insert group: %w", err)
	}
	return nil
}

func (q *queries) UpdateGroup(ctx context.Context, g *models.AccountGroup) error {
	res, err := q.q.ExecContext(ctx, `
		UPDATE account_groups SET title = $1, description = $2, enabled = $3, updated_at = $4 WHERE id = $5
	`, g.Title, g.Description, g.Enabled, g.UpdatedAt, g.ID)
	if err != nil {
		return fmt.Errorf("update group: %w", err)
	}
	return expectOne(res, errs.ErrGroupNotFound)
}

func (q *queries) DeleteGroup(ctx context.Context, id string) error {
	res, err := q.q.ExecContext(ctx, `DELETE FROM account_groups WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("delete group: %w", err)
	}
	return expectOne(res, errs.ErrGroupNotFound)
}

func (q *queries) AddGroupAccount(ctx context.Context, groupID, accountID string) error {
	_, err := q.q.ExecContext(ctx, `INSERT INTO group_accounts (group_id, account_id) VALUES ($1, $2)`, groupID, accountID)
	if isUniqueViolation(err) {
		return errs.ErrDuplicateMember
	}
	if err != nil {
		return fmt.Errorf("add group member: %w", err)
	}
	return nil
}

func (q *queries) RemoveGroupAccount(ctx context.Context, groupID, accountID string) error {
	res, err := q.q.ExecContext(ctx, `DELETE FROM group_accounts WHERE group_id = $1 AND account_id = $2`, groupID, accountID)
	if err != nil {
		return fmt.Errorf("remove group member: %w", err)
	}
	return expectOne(res, errs.ErrAccountNotFound)
}
