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

const accountColumns = `id, title, bank_code, iban, currency, min_signatures, enabled, version, created_at, updated_at`
const signerColumns = `id, account_id, user_id, name, phone, status, created_at, updated_at`

func scanAccount(row interface{ Scan(...any) error }, a *models.Account) error {
	return row.Scan(&a.ID, &a.Title, &a.BankCode, &a.IBAN, &a.Currency, &a.MinSignatures,
		&a.Enabled, &a.Version, &a.CreatedAt, &a.UpdatedAt)
}

func scanSigner(row interface{ Scan(...any) error }, s *models.Signer) error {
	return row.Scan(&s.ID, &s.AccountID, &s.UserID, &s.Name, &s.Phone, &s.Status, &s.CreatedAt, &s.UpdatedAt)
}

func (q *queries) GetAccount(ctx context.Context, id string) (*models.Account, error) {
	return q.account(ctx, `SELECT `+accountColumns+` FROM accounts WHERE id = $1`, id)
}

func (q *queries) LockAccount(ctx context.Context, id string) (*models.Account, error) {
	return q.account(ctx, `SELECT `+accountColumns+` FROM accounts WHERE id = $1 FOR UPDATE`, id)
}

func (q *queries) account(ctx context.Context, query, id string) (*models.Account, error) {
	var a models.Account
	err := scanAccount(q.q.QueryRowContext(ctx, query, id), &a)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, errs.ErrAccountNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get account %s: %w", id, err)
	}

	signers, err := q.signers(ctx, []string{id})
	if err != nil {
		return nil, err
	}
	a.Signers = signers[id]
	return &a, nil
}

func (q *queries) ListAccounts(ctx context.Context) ([]models.Account, error) {
	rows, err := q.q.QueryContext(ctx, `SELECT `+accountColumns+` FROM accounts ORDER BY created_at, id`)
	if err != nil {
		return nil, fmt.Errorf("list accounts: %w", err)
	}
	defer rows.Close()

	var accounts []models.Account
	var ids []string
	for rows.Next() {
		var a models.Account
		if err := scanAccount(rows, &a); err != nil {
			return nil, err
		}
		accounts = append(accounts, a)
		ids = append(ids, a.ID)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	if len(ids) == 0 {
		return accounts, nil
	}

	signers, err := q.signers(ctx, ids)
	if err != nil {
		return nil, err
	}
	for i := range accounts {
		accounts[i].Signers = signers[accounts[i].ID]
	}
	return accounts, nil
}

func (q *queries) signers(ctx context.Context, accountIDs []string) (map[string][]models.Signer, error) {
	rows, err := q.q.QueryContext(ctx,
		`SELECT `+signerColumns+` FROM signers WHERE account_id = ANY($1) ORDER BY created_at, id`,
		pq.Array(accountIDs))
	if err != nil {
		return nil, fmt.Errorf("list signers: %w", err)
	}
	defer rows.Close()

	out := make(map[string][]models.Signer, len(accountIDs))
	for rows.Next() {
		var s models.Signer
		if err := scanSigner(rows, &s); err != nil {
			return nil, err
		}
		out[s.AccountID] = append(out[s.AccountID], s)
	}
	return out, rows.Err()
}

func (q *queries) CreateAccount(ctx context.Context, a *models.Account) error {
	_, err := q.q.ExecContext(ctx, `
		INSERT INTO accounts (id, title, bank_code, iban, currency, min_signatures, enabled, version, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
	`, a.ID, a.Title, a.BankCode, a.IBAN, a.Currency, a.MinSignatures, a.Enabled, a.Version, a.CreatedAt, a.UpdatedAt)
	if isUniqueViolation(err) {
		return errs.Conflict("an account with IBAN %s already exists", a.IBAN)
	}
	if err != nil {
		return fmt.Errorf("insert account: %w", err)
	}
	return nil
}

func (q *queries) UpdateAccount(ctx context.Context, a *models.Account) error {
	res, err := q.q.ExecContext(ctx, `
		UPDATE accounts
		SET title = $1, min_signatures = $2, enabled = $3, version = version + 1, updated_at = $4
		WHERE id = $5 AND version = $6
	`, a.Title, a.MinSignatures, a.Enabled, a.UpdatedAt, a.ID, a.Version)
	if err != nil {
		return fmt.Errorf("update account: %w", err)
	}
	if err := expectOne(res, errs.ErrVersionConflict); err != nil {
		return err
	}
	a.Version++
	return nil
}

func (q *queries) CreateSigner(ctx context.Context, s *models.Signer) error {
	_, err := q.q.ExecContext(ctx, `
		INSERT INTO signers (id, account_id, user_id, name, phone, status, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
	`, s.ID, s.AccountID, s.UserID, s.Name, s.Phone, s.Status, s.CreatedAt, s.UpdatedAt)
	if isUniqueViolation(err) {
		return errs.ErrDuplicateSigner
	}
	if err != nil {
		return fmt.Errorf("insert signer: %w", err)
	}
	return nil
}

func (q *queries) UpdateSigner(ctx context.Context, s *models.Signer) error {
	res, err := q.q.ExecContext(ctx, `
		UPDATE signers SET name = $1, phone = $2, status = $3, updated_at = $4 WHERE id = $5 AND account_id = $6
	`, s.Name, s.Phone, s.Status, s.UpdatedAt, s.ID, s.AccountID)
	if err != nil {
		return fmt.Errorf("update signer: %w", err)
	}
	return expectOne(res, errs.ErrSignerNotFound)
}
