package services

import (
	"context"
	"fmt"
	"strconv"
	"strings"

	"github.com/ruralpay/cartable/internal/models"
	"github.com/ruralpay/cartable/internal/repository"
)

type GroupService struct {
	base
}

func NewGroupService(d Deps) *GroupService {
	return &GroupService{base: newBase(d, "groups")}
}

func (s *GroupService) Create(ctx context.Context, actor models.Actor, req models.GroupRequest) (*models.AccountGroup, error) {
	if err := requireRole(actor, models.RoleOperator); err != nil {
		return nil, err
	}
	now := s.now()
	g := &models.AccountGroup{
		ID:          s.newID(),
		Title:       strings.TrimSpace(req.Title),
		Description: req.Description,
		Enabled:     true,
		AccountIDs:  []string{},
		CreatedAt:   now,
		UpdatedAt:   now,
	}
	if err := s.store.InTx(ctx, func(tx repository.Tx) error { return tx.CreateGroup(ctx, g) }); err != nil {
		return nil, fmt.Errorf("create group: %w", err)
	}
	s.audit.Registry(actor.ID, "", "GROUP_CREATED", map[string]string{"group_id": g.ID, "title": g.Title})
	return g, nil
}

func (s *GroupService) Get(ctx context.Context, id string) (*models.AccountGroup, error) {
	return s.store.GetGroup(ctx, id)
}

func (s *GroupService) List(ctx context.Context) ([]models.AccountGroup, error) {
	return s.store.ListGroups(ctx)
}

func (s *GroupService) Update(ctx context.Context, actor models.Actor, id string, req models.GroupRequest) (*models.AccountGroup, error) {
	return s.modify(ctx, actor, id, "GROUP_UPDATED", func(g *models.AccountGroup) {
		g.Title = strings.TrimSpace(req.Title)
		g.Description = req.Description
	})
}

func (s *GroupService) SetEnabled(ctx context.Context, actor models.Actor, id string, enabled bool) (*models.AccountGroup, error) {
	return s.modify(ctx, actor, id, "GROUP_ENABLED_"+strings.ToUpper(strconv.FormatBool(enabled)), func(g *models.AccountGroup) {
		g.Enabled = enabled
	})
}

func (s *GroupService) modify(ctx context.Context, actor models.Actor, id, operation string, apply func(*models.AccountGroup)) (*models.AccountGroup, error) {
	if err := requireRole(actor, models.RoleOperator); err != nil {
		return nil, err
	}
	var group *models.AccountGroup
	err := s.store.InTx(ctx, func(tx repository.Tx) error {
		g, err := tx.GetGroup(ctx, id)
		if err != nil {
			return err
		}
		apply(g)
		g.UpdatedAt = s.now()
		if err := tx.UpdateGroup(ctx, g); err != nil {
			return err
		}
		group = g
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("group %s: %w", id, err)
	}
	s.audit.Registry(actor.ID, "", operation, map[string]string{"group_id": id})
	return group, nil
}

func (s *GroupService) Delete(ctx context.Context, actor models.Actor, id string) error {
	if err := requireRole(actor, models.RoleOperator); err != nil {
		return err
	}
	if err := s.store.InTx(ctx, func(tx repository.Tx) error { return tx.DeleteGroup(ctx, id) }); err != nil {
		return fmt.Errorf("delete group %s: %w", id, err)
	}
	s.audit.Registry(actor.ID, "", "GROUP_DELETED", map[string]string{"group_id": id})
	return nil
}

func (s *GroupService) AddAccount(ctx context.Context, actor models.Actor, groupID, accountID string) (*models.AccountGroup, error) {
	return s.membership(ctx, actor, groupID, accountID, "GROUP_ACCOUNT_ADDED", func(tx repository.Tx) error {
		return tx.AddGroupAccount(ctx, groupID, accountID)
	})
}

func (s *GroupService) RemoveAccount(ctx context.Context, actor models.Actor, groupID, accountID string) (*models.AccountGroup, error) {
	return s.membership(ctx, actor, groupID, accountID, "GROUP_ACCOUNT_REMOVED", func(tx repository.Tx) error {
		return tx.RemoveGroupAccount(ctx, groupID, accountID)
	})
}

func (s *GroupService) membership(ctx context.Context, actor models.Actor, groupID, accountID, operation string, change func(repository.Tx) error) (*models.AccountGroup, error) {
	if err := requireRole(actor, models.RoleOperator); err != nil {
		return nil, err
	}
	var group *models.AccountGroup
	err := s.store.InTx(ctx, func(tx repository.Tx) error {
		if _, err := tx.GetGroup(ctx, groupID); err != nil {
			return err
		}
		if err := change(tx); err != nil {
			return err
		}
		g, err := tx.GetGroup(ctx, groupID)
		if err != nil {
			return err
		}
		group = g
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("group %s account %s: %w", groupID, accountID, err)
	}
	s.audit.Registry(actor.ID, accountID, operation, map[string]string{"group_id": groupID})
	return group, nil
}
