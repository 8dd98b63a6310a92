package scheduler

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/google/uuid"

	"wealthdash/internal/domain/finance"
	"wealthdash/internal/domain/linkeditem"
)

// ItemChecker asks the provider about one item.
type ItemChecker interface {
	GetItem(ctx context.Context, accessToken string) (*finance.ItemInfo, error)
}

// ItemTracker is the part of the linked-item service the health job uses.
type ItemTracker interface {
	ActiveItems(ctx context.Context, userID uuid.UUID) ([]*linkeditem.LinkedItem, error)
	UsersWithActiveItems(ctx context.Context) ([]uuid.UUID, error)
	MarkError(ctx context.Context, userID uuid.UUID, itemID, reason string) error
}

// ItemHealthJob checks every active item of one user with the provider and
// moves items that need re-authentication to error. MarkError notifies the
// user.
type ItemHealthJob struct {
	userID  uuid.UUID
	checker ItemChecker
	items   ItemTracker
	logger  *slog.Logger
}

func NewItemHealthJob(userID uuid.UUID, checker ItemChecker, items ItemTracker, logger *slog.Logger) *ItemHealthJob {
	if logger == nil {
		logger = slog.Default()
	}
	return &ItemHealthJob{userID: userID, checker: checker, items: items, logger: logger}
}

func (j *ItemHealthJob) UserID() string      { return j.userID.String() }
func (j *ItemHealthJob) Description() string { return "item health check" }

// Execute checks each item in turn. Transient provider failures are logged and
// do not change item status; only a store failure fails the job.
func (j *ItemHealthJob) Execute(ctx context.Context) error {
	items, err := j.items.ActiveItems(ctx, j.userID)
	if err != nil {
		return fmt.Errorf("failed to list active items: %w", err)
	}

	var errs []error
	for _, item := range items {
		if ctx.Err() != nil {
			return ctx.Err()
		}

		reason, err := j.check(ctx, item)
		if err != nil {
			j.logger.WarnContext(ctx, "item health check failed", "user_id", j.userID, "item_id", item.ItemID, "error", err)
			continue
		}
		if reason == "" {
			continue
		}
		if err := j.items.MarkError(ctx, j.userID, item.ItemID, reason); err != nil {
			errs = append(errs, fmt.Errorf("failed to mark item %s: %w", item.ItemID, err))
		}
	}
	return errors.Join(errs...)
}

// check returns the provider error code when the item needs the user, "" when
// it is healthy, or an error when the provider could not be asked.
func (j *ItemHealthJob) check(ctx context.Context, item *linkeditem.LinkedItem) (string, error) {
	info, err := j.checker.GetItem(ctx, item.AccessToken)
	if err != nil {
		if errors.Is(err, finance.ErrItemLoginRequired) {
			return finance.ErrorCode(err), nil
		}
		return "", err
	}
	if finance.RequiresUserAction(info.ErrorCode) {
		return info.ErrorCode, nil
	}
	return "", nil
}

// NewHealthJobProvider returns a JobProvider yielding one health job per user
// with active items.
func NewHealthJobProvider(checker ItemChecker, items ItemTracker, logger *slog.Logger) JobProvider {
	return func(ctx context.Context) ([]Job, error) {
		users, err := items.UsersWithActiveItems(ctx)
		if err != nil {
			return nil, fmt.Errorf("failed to list users with active items: %w", err)
		}

		jobs := make([]Job, 0, len(users))
		for _, id := range users {
			jobs = append(jobs, NewItemHealthJob(id, checker, items, logger))
		}
		return jobs, nil
	}
}
