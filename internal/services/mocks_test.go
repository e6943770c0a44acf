package services

import (
	"context"
	"sync"
	"testing"

	"github.com/moov-io/iso20022/pkg/pacs_v08"
	"github.com/ruralpay/cartable/internal/config"
	"github.com/ruralpay/cartable/internal/logging"
	"github.com/ruralpay/cartable/internal/models"
	"github.com/ruralpay/cartable/internal/otp"
	"github.com/ruralpay/cartable/internal/repository"
	"github.com/ruralpay/cartable/internal/workflow"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"
)

type MockBankGateway struct {
	mock.Mock
}

func (m *MockBankGateway) Submit(ctx context.Context, doc *pacs_v08.FIToFICustomerCreditTransferV08) (*BankAck, error) {
	args := m.Called(ctx, doc)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*BankAck), args.Error(1)
}

// codeSink captures delivered codes by handle.
type codeSink struct {
	mu    sync.Mutex
	codes map[string]string
}

func (s *codeSink) Deliver(_ context.Context, c *models.Challenge, code string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.codes[c.Handle] = code
	return nil
}

func (s *codeSink) code(handle string) string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.codes[handle]
}

var (
	operator = models.Actor{ID: "olivia", Roles: []models.Role{models.RoleOperator}}
	alice    = models.Actor{ID: "alice", Roles: []models.Role{models.RoleSigner}}
	bob      = models.Actor{ID: "bob", Roles: []models.Role{models.RoleSigner}}
	carol    = models.Actor{ID: "carol", Roles: []models.Role{models.RoleSigner}}
	manager  = models.Actor{ID: "mia", Roles: []models.Role{models.RoleManager}}
	admin    = models.Actor{ID: "root", Roles: []models.Role{models.RoleAdmin}}
)

const accountID = "acc-1"

type fixture struct {
	store     *repository.Memory
	codes     *codeSink
	gateway   *MockBankGateway
	accounts  *AccountService
	groups    *GroupService
	orders    *OrderService
	approvals *ApprovalService
}

func newFixture(t *testing.T, machine workflow.Machine) *fixture {
	t.Helper()
	logger := logging.Wrap(zaptest.NewLogger(t))
	store := repository.NewMemory()
	d := Deps{Store: store, Machine: machine, Logger: logger}

	codes := &codeSink{codes: map[string]string{}}
	cfg := otp.DefaultConfig()
	cfg.RateLimit = 1000
	// cheap argon2 parameters keep the suite fast
	cfg.Hash = otp.HashParams{Time: 1, Memory: 1024, Threads: 1, KeyLength: 16, SaltLen: 8}
	gate := otp.NewGate(otp.NewMemoryStore(), codes, cfg, logger, nil)

	gateway := new(MockBankGateway)
	builder := NewPacs008Builder(config.BankConfig{BIC: "RPAYNGLAXXX", Name: "RuralPay", ClearingMember: "RPAYCLR"})

	f := &fixture{
		store:     store,
		codes:     codes,
		gateway:   gateway,
		accounts:  NewAccountService(d),
		groups:    NewGroupService(d),
		orders:    NewOrderService(d, gateway, builder),
		approvals: NewApprovalService(d, gate, 10),
	}
	f.seedAccount(t, 2, "alice", "bob", "carol")
	return f
}

func (f *fixture) seedAccount(t *testing.T, quorum int, users ...string) {
	t.Helper()
	ctx := context.Background()
	err := f.store.InTx(ctx, func(tx repository.Tx) error {
		err := tx.CreateAccount(ctx, &models.Account{
			ID: accountID, Title: "Operations", BankCode: "RPAYNGLA", IBAN: "DE89370400440532013000",
			Currency: "EUR", MinSignatures: quorum, Enabled: true, Version: 1,
		})
		if err != nil {
			return err
		}
		for _, u := range users {
			err := tx.CreateSigner(ctx, &models.Signer{ID: "s-" + u, AccountID: accountID, UserID: u, Name: u, Status: models.SignerEnabled})
			if err != nil {
				return err
			}
		}
		return nil
	})
	require.NoError(t, err)
}

func draftRequest() models.CreateOrderRequest {
	return models.CreateOrderRequest{
		AccountID: accountID,
		Title:     "March payroll",
		Items: []models.LineItemRequest{
			{DestinationIBAN: "GB82WEST12345698765432", BeneficiaryName: "Jane Doe", Amount: decimal.RequireFromString("100.50")},
			{DestinationIBAN: "DE89370400440532013000", BeneficiaryName: "John Roe", Amount: decimal.RequireFromString("49.50")},
		},
	}
}

func (f *fixture) waitingOrder(t *testing.T) *models.PaymentOrder {
	t.Helper()
	ctx := context.Background()
	o, err := f.orders.CreateDraft(ctx, operator, draftRequest())
	require.NoError(t, err)
	o, err = f.orders.Submit(ctx, operator, o.ID)
	require.NoError(t, err)
	return o
}

func (f *fixture) decide(t *testing.T, actor models.Actor, orderID string, decision models.Decision) (*models.PaymentOrder, error) {
	t.Helper()
	ctx := context.Background()
	c, err := f.approvals.RequestOTP(ctx, actor, models.OTPRequest{
		Operation: decision.OperationType(),
		Intent:    models.IntentSingle,
		OrderIDs:  []string{orderID},
	})
	if err != nil {
		return nil, err
	}
	return f.approvals.Decide(ctx, actor, orderID, models.DecisionRequest{
		Decision: decision,
		Handle:   c.Handle,
		Code:     f.codes.code(c.Handle),
	})
}

func (f *fixture) approvedOrder(t *testing.T) *models.PaymentOrder {
	t.Helper()
	o := f.waitingOrder(t)
	_, err := f.decide(t, alice, o.ID, models.DecisionApprove)
	require.NoError(t, err)
	o, err = f.decide(t, bob, o.ID, models.DecisionApprove)
	require.NoError(t, err)
	require.Equal(t, models.OrderOwnersApproved, o.Status)
	return o
}

func wrongCode(code string) string {
	if code[0] == '9' {
		return "0" + code[1:]
	}
	return string(code[0]+1) + code[1:]
}
