package mappings

import (
	"context"
	"errors"
	"log/slog"

	"github.com/google/uuid"

	"github.com/Corner-venturo/Corner-sub009/internal/accounting/reports"
)

// Service manages cash flow overrides.
type Service struct {
	repo     Repository
	fallback reports.ConventionClassifier
	logger   *slog.Logger
}

// NewService constructs the mapping service.
func NewService(repo Repository, fallback reports.ConventionClassifier, logger *slog.Logger) *Service {
	if logger == nil {
		logger = slog.Default()
	}
	return &Service{repo: repo, fallback: fallback, logger: logger}
}

// List returns the overrides of a workspace.
func (s *Service) List(ctx context.Context, workspaceID uuid.UUID) ([]Mapping, error) {
	return s.repo.List(ctx, workspaceID)
}

// Assign sets the role of an account.
func (s *Service) Assign(ctx context.Context, workspaceID, accountID uuid.UUID, rawRole string) (Mapping, error) {
	if workspaceID == uuid.Nil || accountID == uuid.Nil {
		return Mapping{}, errors.New("mappings: workspace and account required")
	}
	role, err := ParseRole(rawRole)
	if err != nil {
		return Mapping{}, err
	}
	m := Mapping{WorkspaceID: workspaceID, AccountID: accountID, Role: role}
	if err := s.repo.Upsert(ctx, m); err != nil {
		return Mapping{}, err
	}
	s.logger.Info("cash flow mapping assigned",
		slog.String("workspace_id", workspaceID.String()),
		slog.String("account_id", accountID.String()),
		slog.String("role", string(role)))
	return m, nil
}

// Remove drops the override of an account.
func (s *Service) Remove(ctx context.Context, workspaceID, accountID uuid.UUID) error {
	return s.repo.Delete(ctx, workspaceID, accountID)
}

// Classifier loads the workspace overrides into a classifier.
func (s *Service) Classifier(ctx context.Context, workspaceID uuid.UUID) (*Classifier, error) {
	items, err := s.repo.List(ctx, workspaceID)
	if err != nil {
		return nil, err
	}
	return NewClassifier(items, s.fallback), nil
}
