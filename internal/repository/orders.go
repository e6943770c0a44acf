package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/lib/pq"
	"github.com/ruralpay/cartable/internal/errs"
	"github.com/ruralpay/cartable/internal/models"
)

const orderColumns = `id, account_id, title, description, currency, amount, status, created_by, version,
	created_at, updated_at, submitted_at, approved_at, sent_at, processed_at`
const itemColumns = `id, order_id, seq, destination_iban, beneficiary_name, amount, description, status,
	bank_reference, failure_reason, updated_at`
const approverColumns = `order_id, signer_id, user_id, name, status, decided_at, comment`
const eventColumns = `id, order_id, event_type, from_status, to_status, actor, reason, metadata, created_at`

func scanOrder(row interface{ Scan(...any) error }, o *models.PaymentOrder) error {
	err := row.Scan(&o.ID, &o.AccountID, &o.Title, &o.Description, &o.Currency, &o.Amount, &o.Status,
		&o.CreatedBy, &o.Version, &o.CreatedAt, &o.UpdatedAt, &o.SubmittedAt, &o.ApprovedAt, &o.SentAt, &o.ProcessedAt)
	if err == nil {
		o.StatusLabel = o.Status.Label()
	}
	return err
}

func (q *queries) GetOrder(ctx context.Context, id string) (*models.PaymentOrder, error) {
	o, err := q.order(ctx, `SELECT `+orderColumns+` FROM payment_orders WHERE id = $1`, id)
	if err != nil {
		return nil, err
	}
	if o.History, err = q.events(ctx, id); err != nil {
		return nil, err
	}
	return o, nil
}

func (q *queries) LockOrder(ctx context.Context, id string) (*models.PaymentOrder, error) {
	return q.order(ctx, `SELECT `+orderColumns+` FROM payment_orders WHERE id = $1 FOR UPDATE`, id)
}

func (q *queries) order(ctx context.Context, query, id string) (*models.PaymentOrder, error) {
	var o models.PaymentOrder
	err := scanOrder(q.q.QueryRowContext(ctx, query, id), &o)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, errs.ErrOrderNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get order %s: %w", id, err)
	}

	if o.Items, err = q.items(ctx, id); err != nil {
		return nil, err
	}
	if o.Approvers, err = q.approvers(ctx, id); err != nil {
		return nil, err
	}
	return &o, nil
}

func (q *queries) items(ctx context.Context, orderID string) ([]models.LineItem, error) {
	rows, err := q.q.QueryContext(ctx, `SELECT `+itemColumns+` FROM line_items WHERE order_id = $1 ORDER BY seq`, orderID)
	if err != nil {
		return nil, fmt.Errorf("list line items: %w", err)
	}
	defer rows.Close()

	var items []models.LineItem
	for rows.Next() {
		var it models.LineItem
		if err := rows.Scan(&it.ID, &it.OrderID, &it.Seq, &it.DestinationIBAN, &it.BeneficiaryName, &it.Amount,
			&it.Description, &it.Status, &it.BankReference, &it.FailureReason, &it.UpdatedAt); err != nil {
			return nil, err
		}
		items = append(items, it)
	}
	return items, rows.Err()
}

func (q *queries) approvers(ctx context.Context, orderID string) ([]models.Approver, error) {
	rows, err := q.q.QueryContext(ctx, `SELECT `+approverColumns+` FROM order_approvers WHERE order_id = $1 ORDER BY name, signer_id`, orderID)
	if err != nil {
		return nil, fmt.Errorf("list approvers: %w", err)
	}
	defer rows.Close()

	var approvers []models.Approver
	for rows.Next() {
		var a models.Approver
		if err := rows.Scan(&a.OrderID, &a.SignerID, &a.UserID, &a.Name, &a.Status, &a.DecidedAt, &a.Comment); err != nil {
			return nil, err
		}
		approvers = append(approvers, a)
	}
	return approvers, rows.Err()
}

func (q *queries) events(ctx context.Context, orderID string) ([]models.OrderEvent, error) {
	rows, err := q.q.QueryContext(ctx, `SELECT `+eventColumns+` FROM order_events WHERE order_id = $1 ORDER BY id`, orderID)
	if err != nil {
		return nil, fmt.Errorf("list order events: %w", err)
	}
	defer rows.Close()

	var events []models.OrderEvent
	for rows.Next() {
		var e models.OrderEvent
		if err := rows.Scan(&e.ID, &e.OrderID, &e.Type, &e.From, &e.To, &e.Actor, &e.Reason, &e.Metadata, &e.CreatedAt); err != nil {
			return nil, err
		}
		events = append(events, e)
	}
	return events, rows.Err()
}

// orderWhere renders f as a WHERE clause over payment_orders aliased o.
func orderWhere(f models.OrderFilter) (string, []any) {
	var conds []string
	var args []any
	add := func(cond string, v any) {
		args = append(args, v)
		conds = append(conds, fmt.Sprintf(cond, len(args)))
	}

	if f.AccountID != "" {
		add("o.account_id = $%d", f.AccountID)
	}
	if len(f.Statuses) > 0 {
		statuses := make([]string, len(f.Statuses))
		for i, s := range f.Statuses {
			statuses[i] = string(s)
		}
		add("o.status = ANY($%d)", pq.Array(statuses))
	}
	if f.From != nil {
		add("o.created_at >= $%d", *f.From)
	}
	if f.To != nil {
		add("o.created_at < $%d", *f.To)
	}
	if q := strings.TrimSpace(f.Query); q != "" {
		args = append(args, "%"+q+"%")
		n := len(args)
		conds = append(conds, fmt.Sprintf("(o.title ILIKE $%d OR o.description ILIKE $%d OR o.id ILIKE $%d)", n, n, n))
	}

	if len(conds) == 0 {
		return "", args
	}
	return " WHERE " + strings.Join(conds, " AND "), args
}

func (q *queries) ListOrders(ctx context.Context, f models.OrderFilter) (*models.OrderPage, error) {
	where, args := orderWhere(f)

	page := &models.OrderPage{Page: f.Page, PageSize: f.PageSize, Orders: []models.PaymentOrder{}}
	if err := q.q.QueryRowContext(ctx, `SELECT COUNT(*) FROM payment_orders o`+where, args...).Scan(&page.Total); err != nil {
		return nil, fmt.Errorf("count orders: %w", err)
	}

	n := len(args)
	query := `SELECT ` + orderColumns + ` FROM payment_orders o` + where +
		fmt.Sprintf(` ORDER BY o.created_at DESC, o.id LIMIT $%d OFFSET $%d`, n+1, n+2)
	rows, err := q.q.QueryContext(ctx, query, append(args, f.PageSize, f.Offset())...)
	if err != nil {
		return nil, fmt.Errorf("list orders: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var o models.PaymentOrder
		if err := scanOrder(rows, &o); err != nil {
			return nil, err
		}
		page.Orders = append(page.Orders, o)
	}
	return page, rows.Err()
}

func (q *queries) ExportRows(ctx context.Context, f models.OrderFilter) ([]models.ExportRow, error) {
	where, args := orderWhere(f)
	rows, err := q.q.QueryContext(ctx, `
		SELECT o.id, o.title, o.account_id, o.status, i.seq, i.destination_iban, i.beneficiary_name,
			i.amount, o.currency, i.status, i.bank_reference, o.created_at
		FROM line_items i JOIN payment_orders o ON o.id = i.order_id`+where+`
		ORDER BY o.created_at, o.id, i.seq`, args...)
	if err != nil {
		return nil, fmt.Errorf("export rows: %w", err)
	}
	defer rows.Close()

	var out []models.ExportRow
	for rows.Next() {
		var r models.ExportRow
		if err := rows.Scan(&r.OrderID, &r.OrderTitle, &r.AccountID, &r.OrderStatus, &r.Seq, &r.DestinationIBAN,
			&r.BeneficiaryName, &r.Amount, &r.Currency, &r.ItemStatus, &r.BankReference, &r.CreatedAt); err != nil {
			return nil, err
		}
		out = append(out, r)
	}
	return out, rows.Err()
}

func (q *queries) WaitingOrderIDs(ctx context.Context, accountID string) ([]string, error) {
	return q.ids(ctx, `SELECT id FROM payment_orders WHERE account_id = $1 AND status = $2 ORDER BY created_at, id`,
		accountID, models.OrderWaitingForOwnersApproval)
}

func (q *queries) StaleOrderIDs(ctx context.Context, cutoff time.Time, limit int) ([]string, error) {
	return q.ids(ctx, `SELECT id FROM payment_orders WHERE status = $1 AND submitted_at < $2 ORDER BY submitted_at, id LIMIT $3`,
		models.OrderWaitingForOwnersApproval, cutoff, limit)
}

func (q *queries) ids(ctx context.Context, query string, args ...any) ([]string, error) {
	rows, err := q.q.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("list order ids: %w", err)
	}
	defer rows.Close()

	var ids []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, err
		}
		ids = append(ids, id)
	}
	return ids, rows.Err()
}

func (q *queries) CreateOrder(ctx context.Context, o *models.PaymentOrder) error {
	_, err := q.q.ExecContext(ctx, `
		INSERT INTO payment_orders (id, account_id, title, description, currency, amount, status, created_by, version, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)
	`, o.ID, o.AccountID, o.Title, o.Description, o.Currency, o.Amount, o.Status, o.CreatedBy, o.Version, o.CreatedAt, o.UpdatedAt)
	if err != nil {
		return fmt.Errorf("insert order: %w", err)
	}

	for _, it := range o.Items {
		_, err := q.q.ExecContext(ctx, `
			INSERT INTO line_items (id, order_id, seq, destination_iban, beneficiary_name, amount, description, status, updated_at)
			VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
		`, it.ID, o.ID, it.Seq, it.DestinationIBAN, it.BeneficiaryName, it.Amount, it.Description, it.Status, it.UpdatedAt)
		if err != nil {
			return fmt.Errorf("insert line item %d: %w", it.Seq, err)
		}
	}
	return nil
}

func (q *queries) UpdateOrder(ctx context.Context, o *models.PaymentOrder) error {
	res, err := q.q.ExecContext(ctx, `
		UPDATE payment_orders
		SET status = $1, submitted_at = $2, approved_at = $3, sent_at = $4, processed_at = $5,
			version = version + 1, updated_at = $6
		WHERE id = $7 AND version = $8
	`, o.Status, o.SubmittedAt, o.ApprovedAt, o.SentAt, o.ProcessedAt, o.UpdatedAt, o.ID, o.Version)
	if err != nil {
		return fmt.Errorf("update order: %w", err)
	}
	if err := expectOne(res, errs.ErrVersionConflict); err != nil {
		return err
	}
	o.Version++
	o.StatusLabel = o.Status.Label()
	return nil
}

func (q *queries) CreateApprovers(ctx context.Context, orderID string, approvers []models.Approver) error {
	for _, a := range approvers {
		_, err := q.q.ExecContext(ctx, `
			INSERT INTO order_approvers (order_id, signer_id, user_id, name, status)
			VALUES ($1, $2, $3, $4, $5)
		`, orderID, a.SignerID, a.UserID, a.Name, a.Status)
		if err != nil {
			return fmt.Errorf("insert approver %s: %w", a.SignerID, err)
		}
	}
	return nil
}

func (q *queries) UpdateApprover(ctx context.Context, a *models.Approver) error {
	res, err := q.q.ExecContext(ctx, `
		UPDATE order_approvers SET status = $1, decided_at = $2, comment = $3 WHERE order_id = $4 AND signer_id = $5
	`, a.Status, a.DecidedAt, a.Comment, a.OrderID, a.SignerID)
	if err != nil {
		return fmt.Errorf("update approver: %w", err)
	}
	return expectOne(res, errs.ErrSignerNotFound)
}

func (q *queries) UpdateLineItem(ctx context.Context, it *models.LineItem) error {
	res, err := q.q.ExecContext(ctx, `
		UPDATE line_items SET status = $1, bank_reference = $2, failure_reason = $3, updated_at = $4
		WHERE id = $5 AND order_id = $6
	`, it.Status, it.BankReference, it.FailureReason, it.UpdatedAt, it.ID, it.OrderID)
	if err != nil {
		return fmt.Errorf("update line item: %w", err)
	}
	return expectOne(res, errs.ErrItemNotFound)
}

func (q *queries) AppendEvent(ctx context.Context, e *models.OrderEvent) error {
	err := q.q.QueryRowContext(ctx, `
		INSERT INTO order_events (order_id, event_type, from_status, to_status, actor, reason, metadata, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
		RETURNING id
	`, e.OrderID, e.Type, e.From, e.To, e.Actor, e.Reason, e.Metadata, e.CreatedAt).Scan(&e.ID)
	if err != nil {
		return fmt.Errorf("append order event: %w", err)
	}
	return nil
}
