package service

import (
	"context"
	"errors"
	"strings"

	"peer-rental-core/internal/domain"
	"peer-rental-core/internal/logger"
	"peer-rental-core/internal/repository"
)

type itemService struct {
	itemRepo repository.ItemRepository
	ledger   userLedger
	gate     Gatekeeper
}

func NewItemService(itemRepo repository.ItemRepository, userRepo repository.UserRepository, gate Gatekeeper) ItemService {
	return &itemService{
		itemRepo: itemRepo,
		ledger:   userLedger{users: userRepo},
		gate:     gate,
	}
}

func (s *itemService) CreateItem(ctx context.Context, item *domain.Item) (*domain.Item, error) {
	const op = "create_item"
	logger.EnterMethod("itemService.CreateItem", "owner", item.OwnerEmail, "name", item.Name)

	item.OwnerEmail = domain.NormalizeEmail(item.OwnerEmail)
	item.Name = strings.TrimSpace(item.Name)
	switch {
	case item.Name == "":
		return nil, domain.NewValidationError(op, "item name is required")
	case item.DailyRateCents <= 0:
		return nil, domain.NewValidationError(op, "daily rate must be positive")
	case item.DepositCents < 0:
		return nil, domain.NewValidationError(op, "deposit must not be negative")
	case item.MinRentalDays < 0 || item.MaxRentalDays < 0:
		return nil, domain.NewValidationError(op, "rental length bounds must not be negative")
	case item.MaxRentalDays > 0 && item.MaxRentalDays < item.MinRentalDays:
		return nil, domain.NewValidationError(op, "max rental days must not be below min rental days")
	}
	if item.MinRentalDays == 0 {
		item.MinRentalDays = 1
	}

	owner, err := s.ledger.get(ctx, op, item.OwnerEmail)
	if err != nil {
		return nil, err
	}
	if !owner.Active {
		return nil, domain.NewGatingFailure(op, domain.PreconditionAccountActive, "owner account is deactivated")
	}
	if item.InstantBookingEnabled {
		if err := s.gate.RequirePayoutVerified(ctx, op, item.OwnerEmail); err != nil {
			logger.ExitMethodWithError("itemService.CreateItem", err)
			return nil, err
		}
	}
	item.Available = true

	if err := s.itemRepo.Create(ctx, item); err != nil {
		logger.ExitMethodWithError("itemService.CreateItem", err)
		return nil, err
	}
	logger.ExitMethod("itemService.CreateItem", "itemID", item.ID)
	return item, nil
}

func (s *itemService) GetItem(ctx context.Context, id int32) (*domain.Item, error) {
	item, err := s.itemRepo.GetByID(ctx, id)
	if err != nil {
		return nil, lookupError("get_item", err, "item %d", id)
	}
	if err := s.effective(ctx, item); err != nil {
		return nil, err
	}
	return item, nil
}

func (s *itemService) ListMyItems(ctx context.Context, ownerEmail string) ([]domain.Item, error) {
	items, err := s.itemRepo.ListByOwner(ctx, domain.NormalizeEmail(ownerEmail))
	if err != nil {
		return nil, err
	}
	if len(items) == 0 {
		return items, nil
	}
	ok, err := s.gate.CanInstantBook(ctx, items[0].OwnerEmail)
	if err != nil {
		return nil, err
	}
	for i := range items {
		items[i].InstantBookingEnabled = items[i].InstantBookingEnabled && ok
	}
	return items, nil
}

// effective clears the instant booking flag on the returned copy while the
// owner's payout verification does not hold. The stored preference is kept.
func (s *itemService) effective(ctx context.Context, item *domain.Item) error {
	if !item.InstantBookingEnabled {
		return nil
	}
	ok, err := s.gate.CanInstantBook(ctx, item.OwnerEmail)
	if err != nil {
		return err
	}
	item.InstantBookingEnabled = ok
	return nil
}

// SetInstantBooking toggles the owner's instant booking flag. Turning it on
// requires a verified payout account right now; creation checks again later.
func (s *itemService) SetInstantBooking(ctx context.Context, itemID int32, ownerEmail string, enabled bool) (*domain.Item, error) {
	const op = "set_instant_booking"
	item, err := s.mutate(ctx, op, itemID, ownerEmail, func(item *domain.Item) error {
		if enabled {
			if err := s.gate.RequirePayoutVerified(ctx, op, item.OwnerEmail); err != nil {
				return err
			}
		}
		if item.InstantBookingEnabled == enabled {
			return errUnchanged
		}
		item.InstantBookingEnabled = enabled
		return nil
	})
	if err != nil {
		return nil, err
	}
	logger.Info("Instant booking toggled", "itemID", item.ID, "enabled", enabled)
	return item, s.effective(ctx, item)
}

func (s *itemService) SetAvailability(ctx context.Context, itemID int32, ownerEmail string, available bool) (*domain.Item, error) {
	item, err := s.mutate(ctx, "set_availability", itemID, ownerEmail, func(item *domain.Item) error {
		if item.Available == available {
			return errUnchanged
		}
		item.Available = available
		return nil
	})
	if err != nil {
		return nil, err
	}
	return item, s.effective(ctx, item)
}

// mutate applies fn to the owner's item under its version guard, retrying
// lost races.
func (s *itemService) mutate(ctx context.Context, op string, itemID int32, ownerEmail string, fn func(item *domain.Item) error) (*domain.Item, error) {
	var result *domain.Item
	err := retryWithBackoff(ctx, op, isVersionConflict, func(ctx context.Context) error {
		item, err := s.ownedItem(ctx, op, itemID, ownerEmail)
		if err != nil {
			return err
		}
		if err := fn(item); err != nil {
			if errors.Is(err, errUnchanged) {
				result = item
				return nil
			}
			return err
		}
		if err := s.itemRepo.Update(ctx, item); err != nil {
			return err
		}
		result = item
		return nil
	}, s.ledger.retry.options()...)
	if err != nil {
		if isVersionConflict(err) {
			logger.Warn("Item update lost every retry", "operation", op, "itemID", itemID)
			return nil, domain.NewConcurrencyConflict(op, err)
		}
		return nil, err
	}
	return result, nil
}

func (s *itemService) ownedItem(ctx context.Context, op string, itemID int32, ownerEmail string) (*domain.Item, error) {
	item, err := s.itemRepo.GetByID(ctx, itemID)
	if err != nil {
		return nil, lookupError(op, err, "item %d", itemID)
	}
	if item.OwnerEmail != domain.NormalizeEmail(ownerEmail) {
		return nil, domain.NewForbidden(op, "only the owner may change item %d", itemID)
	}
	return item, nil
}
