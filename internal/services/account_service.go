package services

import (
	"context"
	"fmt"
	"strconv"
	"strings"

	"github.com/ruralpay/cartable/internal/errs"
	"github.com/ruralpay/cartable/internal/models"
	"github.com/ruralpay/cartable/internal/repository"
	"github.com/ruralpay/cartable/internal/workflow"
	"go.uber.org/zap"
)

// AccountService maintains accounts, their signers and the signature quorum.
type AccountService struct {
	base
}

func NewAccountService(d Deps) *AccountService {
	return &AccountService{base: newBase(d, "accounts")}
}

func (s *AccountService) CreateAccount(ctx context.Context, actor models.Actor, req models.CreateAccountRequest) (*models.Account, error) {
	if err := requireRole(actor, models.RoleAdmin); err != nil {
		return nil, err
	}
	if !ValidIBAN(req.IBAN) {
		return nil, errs.ErrInvalidIBAN
	}
	// A new account has no signers yet, so only the lower bound applies here.
	// Submit refuses orders until enough signers are confirmed.
	if req.MinSignatures < 1 {
		return nil, errs.ErrInvalidQuorum
	}

	now := s.now()
	account := &models.Account{
		ID:            s.newID(),
		Title:         strings.TrimSpace(req.Title),
		BankCode:      req.BankCode,
		IBAN:          strings.ToUpper(strings.ReplaceAll(req.IBAN, " ", "")),
		Currency:      strings.ToUpper(req.Currency),
		MinSignatures: req.MinSignatures,
		Enabled:       true,
		Version:       1,
		CreatedAt:     now,
		UpdatedAt:     now,
	}
	err := s.store.InTx(ctx, func(tx repository.Tx) error {
		return tx.CreateAccount(ctx, account)
	})
	if err != nil {
		return nil, fmt.Errorf("create account: %w", err)
	}

	s.audit.Registry(actor.ID, account.ID, "ACCOUNT_CREATED", map[string]string{"iban": account.IBAN})
	s.log.Info("account created", zap.String("account_id", account.ID), zap.String("actor", actor.ID))
	return account, nil
}

func (s *AccountService) GetAccount(ctx context.Context, id string) (*models.Account, error) {
	return s.store.GetAccount(ctx, id)
}

func (s *AccountService) ListAccounts(ctx context.Context) ([]models.Account, error) {
	return s.store.ListAccounts(ctx)
}

// SetEnabled toggles whether the account accepts new orders.
func (s *AccountService) SetEnabled(ctx context.Context, actor models.Actor, id string, enabled bool) (*models.Account, error) {
	if err := requireRole(actor, models.RoleAdmin); err != nil {
		return nil, err
	}

	var account *models.Account
	err := s.store.InTx(ctx, func(tx repository.Tx) error {
		a, err := tx.LockAccount(ctx, id)
		if err != nil {
			return err
		}
		a.Enabled = enabled
		a.UpdatedAt = s.now()
		if err := tx.UpdateAccount(ctx, a); err != nil {
			return err
		}
		account = a
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("set account %s enabled=%t: %w", id, enabled, err)
	}

	s.audit.Registry(actor.ID, id, "ACCOUNT_ENABLED", map[string]string{"enabled": strconv.FormatBool(enabled)})
	return account, nil
}

// AddSigner attaches a user to the account. The signer counts toward quorum once confirmed.
func (s *AccountService) AddSigner(ctx context.Context, actor models.Actor, accountID string, req models.AddSignerRequest) (*models.Signer, error) {
	if err := requireRole(actor, models.RoleOperator); err != nil {
		return nil, err
	}

	now := s.now()
	signer := &models.Signer{
		ID:        s.newID(),
		AccountID: accountID,
		UserID:    req.UserID,
		Name:      strings.TrimSpace(req.Name),
		Phone:     req.Phone,
		Status:    models.SignerEnableRequested,
		CreatedAt: now,
		UpdatedAt: now,
	}
	err := s.store.InTx(ctx, func(tx repository.Tx) error {
		if _, err := tx.LockAccount(ctx, accountID); err != nil {
			return err
		}
		return tx.CreateSigner(ctx, signer)
	})
	if err != nil {
		return nil, fmt.Errorf("add signer to %s: %w", accountID, err)
	}

	s.audit.Registry(actor.ID, accountID, "SIGNER_ADDED", map[string]string{"signer_id": signer.ID, "user_id": signer.UserID})
	return signer, nil
}

func (s *AccountService) ListSigners(ctx context.Context, accountID string) ([]models.Signer, error) {
	a, err := s.store.GetAccount(ctx, accountID)
	if err != nil {
		return nil, err
	}
	return a.Signers, nil
}

// RequestEnable asks the bank to re-enable a disabled signer.
func (s *AccountService) RequestEnable(ctx context.Context, actor models.Actor, accountID, signerID string) (*models.Signer, error) {
	if err := requireRole(actor, models.RoleOperator); err != nil {
		return nil, err
	}
	return s.changeSigner(ctx, actor, accountID, signerID, "SIGNER_ENABLE_REQUESTED", func(a *models.Account, sg *models.Signer) error {
		if sg.Status != models.SignerDisabled {
			return errs.ErrSignerState
		}
		sg.Status = models.SignerEnableRequested
		return nil
	})
}

// RequestDisable takes an enabled signer out of the quorum pending bank confirmation.
func (s *AccountService) RequestDisable(ctx context.Context, actor models.Actor, accountID, signerID string) (*models.Signer, error) {
	if err := requireRole(actor, models.RoleOperator); err != nil {
		return nil, err
	}
	return s.changeSigner(ctx, actor, accountID, signerID, "SIGNER_DISABLE_REQUESTED", func(a *models.Account, sg *models.Signer) error {
		if sg.Status != models.SignerEnabled {
			return errs.ErrSignerState
		}
		if a.EnabledSigners()-1 < a.MinSignatures {
			return errs.ErrQuorumBreach
		}
		sg.Status = models.SignerDisableRequested
		return nil
	})
}

// Confirm completes a pending enable or disable request.
func (s *AccountService) Confirm(ctx context.Context, actor models.Actor, accountID, signerID string) (*models.Signer, error) {
	if err := requireRole(actor, models.RoleAdmin); err != nil {
		return nil, err
	}
	return s.changeSigner(ctx, actor, accountID, signerID, "SIGNER_CONFIRMED", func(a *models.Account, sg *models.Signer) error {
		switch sg.Status {
		case models.SignerEnableRequested:
			sg.Status = models.SignerEnabled
		case models.SignerDisableRequested:
			// the signer already stopped counting when the request was made
			if a.EnabledSigners() < a.MinSignatures {
				return errs.ErrQuorumBreach
			}
			sg.Status = models.SignerDisabled
		default:
			return errs.ErrSignerState
		}
		return nil
	})
}

// Reject declines a pending request. A declined disable request restores the signer.
func (s *AccountService) Reject(ctx context.Context, actor models.Actor, accountID, signerID string) (*models.Signer, error) {
	if err := requireRole(actor, models.RoleAdmin); err != nil {
		return nil, err
	}
	return s.changeSigner(ctx, actor, accountID, signerID, "SIGNER_REJECTED", func(_ *models.Account, sg *models.Signer) error {
		switch sg.Status {
		case models.SignerEnableRequested:
			sg.Status = models.SignerRejected
		case models.SignerDisableRequested:
			sg.Status = models.SignerEnabled
		default:
			return errs.ErrSignerState
		}
		return nil
	})
}

func (s *AccountService) changeSigner(ctx context.Context, actor models.Actor, accountID, signerID, operation string, apply func(*models.Account, *models.Signer) error) (*models.Signer, error) {
	var (
		changed models.Signer
		from    models.SignerStatus
		moved   []transition
	)
	err := s.store.InTx(ctx, func(tx repository.Tx) error {
		a, err := tx.LockAccount(ctx, accountID)
		if err != nil {
			return err
		}
		var sg *models.Signer
		for i := range a.Signers {
			if a.Signers[i].ID == signerID {
				sg = &a.Signers[i]
				break
			}
		}
		if sg == nil {
			return errs.ErrSignerNotFound
		}
		from = sg.Status
		if err := apply(a, sg); err != nil {
			return err
		}
		sg.UpdatedAt = s.now()
		if err := tx.UpdateSigner(ctx, sg); err != nil {
			return err
		}
		if sg.Status == models.SignerDisabled {
			// orders still waiting on this signer may now be decidable
			moved, err = s.reevaluate(ctx, tx, a, actor.ID, "signer "+sg.ID+" disabled")
			if err != nil {
				return err
			}
		}
		changed = *sg
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("signer %s: %w", signerID, err)
	}

	s.audit.Registry(actor.ID, accountID, operation, map[string]string{
		"signer_id": signerID,
		"from":      string(from),
		"to":        string(changed.Status),
	})
	s.publish(moved...)
	return &changed, nil
}

// reevaluate resolves every order of a that is waiting for owners.
func (s *AccountService) reevaluate(ctx context.Context, tx repository.Tx, a *models.Account, actor, reason string) ([]transition, error) {
	ids, err := tx.WaitingOrderIDs(ctx, a.ID)
	if err != nil {
		return nil, err
	}
	var moved []transition
	for _, id := range ids {
		o, err := tx.LockOrder(ctx, id)
		if err != nil {
			return nil, err
		}
		t, err := s.resolveQuorum(ctx, tx, o, a, actor, reason)
		if err != nil {
			return nil, err
		}
		if t != nil {
			moved = append(moved, *t)
		}
	}
	return moved, nil
}

// UpdateMinSignatures edits the quorum and re-evaluates every order of the account that
// is waiting for owners, all in one transaction.
func (s *AccountService) UpdateMinSignatures(ctx context.Context, actor models.Actor, accountID string, quorum int) (*models.Account, error) {
	if err := requireRole(actor, models.RoleOperator); err != nil {
		return nil, err
	}

	var (
		account *models.Account
		moved   []transition
	)
	err := s.store.InTx(ctx, func(tx repository.Tx) error {
		a, err := tx.LockAccount(ctx, accountID)
		if err != nil {
			return err
		}
		if err := workflow.ValidateQuorum(quorum, a.EnabledSigners()); err != nil {
			return err
		}
		a.MinSignatures = quorum
		a.UpdatedAt = s.now()
		if err := tx.UpdateAccount(ctx, a); err != nil {
			return err
		}

		moved, err = s.reevaluate(ctx, tx, a, actor.ID, fmt.Sprintf("minimum signatures changed to %d", quorum))
		if err != nil {
			return err
		}
		account = a
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("update min signatures of %s: %w", accountID, err)
	}

	s.audit.Registry(actor.ID, accountID, "MIN_SIGNATURES_UPDATED", map[string]string{
		"min_signatures": strconv.Itoa(quorum),
		"reevaluated":    strconv.Itoa(len(moved)),
	})
	s.publish(moved...)
	return account, nil
}
