/**
 * @description
 * This file implements account resolution for incoming payment events. A
 * provider event can identify its owner three different ways depending on the
 * payment channel, so resolution walks a fixed strategy order and stops at
 * the first hit:
 *
 *  1. receiver account number (dedicated virtual account transfers)
 *  2. customer email, case-insensitive (card and checkout payments)
 *  3. user id embedded in charge metadata (app-initiated top-ups)
 */

package app

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/kudipay/wallet-service/internal/domain"
	"github.com/kudipay/wallet-service/internal/store"
)

// ErrUserNotFound is returned when no resolution strategy matched the event.
var ErrUserNotFound = errors.New("no wallet account matched the payment event")

// ResolveAccount maps a payment event to the wallet account that should be
// credited. Strategies that simply have no data to work with are skipped;
// database errors other than a miss abort resolution.
func (s *Service) ResolveAccount(ctx context.Context, event *domain.PaymentEvent) (*domain.Account, error) {
	if event.ReceiverAccountNumber != "" {
		account, err := s.repo.FindAccountByLinkedNumber(ctx, event.ReceiverAccountNumber)
		if err == nil {
			return account, nil
		}
		if !errors.Is(err, store.ErrAccountNotFound) {
			return nil, fmt.Errorf("resolve by account number: %w", err)
		}
	}

	if event.CustomerEmail != "" {
		account, err := s.repo.FindAccountByEmail(ctx, event.CustomerEmail)
		if err == nil {
			return account, nil
		}
		if !errors.Is(err, store.ErrAccountNotFound) {
			return nil, fmt.Errorf("resolve by email: %w", err)
		}
	}

	if event.EmbeddedUserID != "" {
		userID, parseErr := uuid.Parse(event.EmbeddedUserID)
		if parseErr == nil {
			account, err := s.repo.FindAccountByUserID(ctx, userID)
			if err == nil {
				return account, nil
			}
			if !errors.Is(err, store.ErrAccountNotFound) {
				return nil, fmt.Errorf("resolve by metadata user id: %w", err)
			}
		}
	}

	return nil, ErrUserNotFound
}
