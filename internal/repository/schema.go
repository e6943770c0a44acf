package repository

import "context"

const schema = `
CREATE TABLE IF NOT EXISTS accounts (
	id TEXT PRIMARY KEY,
	title TEXT NOT NULL,
	bank_code TEXT NOT NULL,
	iban TEXT NOT NULL UNIQUE,
	currency CHAR(3) NOT NULL,
	min_signatures INT NOT NULL CHECK (min_signatures >= 1),
	enabled BOOLEAN NOT NULL DEFAULT TRUE,
	version INT NOT NULL DEFAULT 1,
	created_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
	updated_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
);

CREATE TABLE IF NOT EXISTS signers (
	id TEXT PRIMARY KEY,
	account_id TEXT NOT NULL REFERENCES accounts(id),
	user_id TEXT NOT NULL,
	name TEXT NOT NULL,
	phone TEXT NOT NULL,
	status TEXT NOT NULL,
	created_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
	updated_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
	UNIQUE (account_id, user_id)
);

CREATE TABLE IF NOT EXISTS account_groups (
	id TEXT PRIMARY KEY,
	title TEXT NOT NULL,
	description TEXT NOT NULL DEFAULT '',
	enabled BOOLEAN NOT NULL DEFAULT TRUE,
	created_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
	updated_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
);

CREATE TABLE IF NOT EXISTS group_accounts (
	group_id TEXT NOT NULL REFERENCES account_groups(id) ON DELETE CASCADE,
	account_id TEXT NOT NULL REFERENCES accounts(id),
	PRIMARY KEY (group_id, account_id)
);

CREATE TABLE IF NOT EXISTS payment_orders (
	id TEXT PRIMARY KEY,
	account_id TEXT NOT NULL REFERENCES accounts(id),
	title TEXT NOT NULL,
	description TEXT NOT NULL DEFAULT '',
	currency CHAR(3) NOT NULL,
	amount NUMERIC(20, 2) NOT NULL,
	status TEXT NOT NULL,
	created_by TEXT NOT NULL,
	version INT NOT NULL DEFAULT 1,
	created_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
	updated_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
	submitted_at TIMESTAMPTZ,
	approved_at TIMESTAMPTZ,
	sent_at TIMESTAMPTZ,
	processed_at TIMESTAMPTZ
);

CREATE INDEX IF NOT EXISTS idx_payment_orders_account_status ON payment_orders (account_id, status);
CREATE INDEX IF NOT EXISTS idx_payment_orders_waiting ON payment_orders (submitted_at) WHERE status = 'WaitingForOwnersApproval';

CREATE TABLE IF NOT EXISTS line_items (
	id TEXT PRIMARY KEY,
	order_id TEXT NOT NULL REFERENCES payment_orders(id),
	seq INT NOT NULL,
	destination_iban TEXT NOT NULL,
	beneficiary_name TEXT NOT NULL,
	amount NUMERIC(20, 2) NOT NULL CHECK (amount > 0),
	description TEXT NOT NULL DEFAULT '',
	status TEXT NOT NULL,
	bank_reference TEXT NOT NULL DEFAULT '',
	failure_reason TEXT NOT NULL DEFAULT '',
	updated_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
	UNIQUE (order_id, seq)
);

CREATE TABLE IF NOT EXISTS order_approvers (
	order_id TEXT NOT NULL REFERENCES payment_orders(id),
	signer_id TEXT NOT NULL REFERENCES signers(id),
	user_id TEXT NOT NULL,
	name TEXT NOT NULL,
	status TEXT NOT NULL,
	decided_at TIMESTAMPTZ,
	comment TEXT NOT NULL DEFAULT '',
	PRIMARY KEY (order_id, signer_id)
);

CREATE TABLE IF NOT EXISTS order_events (
	id BIGSERIAL PRIMARY KEY,
	order_id TEXT NOT NULL REFERENCES payment_orders(id),
	event_type TEXT NOT NULL,
	from_status TEXT NOT NULL DEFAULT '',
	to_status TEXT NOT NULL DEFAULT '',
	actor TEXT NOT NULL,
	reason TEXT NOT NULL DEFAULT '',
	metadata JSONB,
	created_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
);

CREATE INDEX IF NOT EXISTS idx_order_events_order ON order_events (order_id, id);
`

// Migrate creates the tables when they do not exist.
func (p *Postgres) Migrate(ctx context.Context) error {
	_, err := p.db.ExecContext(ctx, schema)
	return err
}
