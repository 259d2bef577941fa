package merchantstore

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/fystack/payment-gateway/pkg/addressbloomfilter"
	"github.com/fystack/payment-gateway/pkg/common/constant"
	"github.com/fystack/payment-gateway/pkg/common/types"
	"github.com/fystack/payment-gateway/pkg/infra"
	"github.com/samber/lo"
)

// Store owns merchant profiles, the receiving-address index and payment sessions.
type Store interface {
	SaveProfile(ctx context.Context, profile types.MerchantProfile) error
	GetProfile(ctx context.Context, accountID string) (*types.MerchantProfile, error)
	// ResolveAddress maps a receiving address on a chain to its merchant, or nil.
	ResolveAddress(ctx context.Context, chain, address string) (*types.MerchantProfile, error)
	ListAddresses(ctx context.Context) (map[string][]string, error)

	SaveSession(ctx context.Context, session types.PaymentSession) error
	GetSession(ctx context.Context, accountID, paymentID string) (*types.PaymentSession, error)
	MarkConfirmed(ctx context.Context, accountID, paymentID string, at time.Time) error
}

type kvStore struct {
	kv     infra.KVStore
	filter addressbloomfilter.WalletAddressBloomFilter
}

// New returns a store. filter may be nil, in which case every lookup hits the KV store.
func New(kv infra.KVStore, filter addressbloomfilter.WalletAddressBloomFilter) Store {
	return &kvStore{kv: kv, filter: filter}
}

func profileKey(accountID string) string {
	return constant.MerchantKeyPrefix + accountID
}

func addressKey(chain, address string) string {
	return constant.MerchantAddressPrefix + strings.ToLower(chain) + "/" + addressbloomfilter.Normalize(address)
}

func sessionKey(accountID, paymentID string) string {
	return constant.SessionKeyPrefix + accountID + "/" + paymentID
}

func (s *kvStore) SaveProfile(ctx context.Context, profile types.MerchantProfile) error {
	if len(profile.AccountID) != types.AccountIDLength {
		return fmt.Errorf("account id %q must be %d characters", profile.AccountID, types.AccountIDLength)
	}

	prev, err := s.GetProfile(ctx, profile.AccountID)
	if err != nil {
		return err
	}
	if prev != nil {
		for chain, addr := range prev.Wallets {
			if strings.EqualFold(profile.Wallets[chain], addr) {
				continue
			}
			if err := s.kv.Delete(addressKey(chain, addr)); err != nil {
				return fmt.Errorf("failed to drop stale address %s/%s: %w", chain, addr, err)
			}
		}
	}

	if err := s.kv.SetAny(profileKey(profile.AccountID), profile); err != nil {
		return fmt.Errorf("failed to save merchant %s: %w", profile.AccountID, err)
	}
	for chain, addr := range profile.Wallets {
		if err := s.kv.SetAny(addressKey(chain, addr), profile.AccountID); err != nil {
			return fmt.Errorf("failed to index address %s/%s: %w", chain, addr, err)
		}
		if s.filter != nil {
			s.filter.Add(addr, chain)
		}
	}
	return nil
}

func (s *kvStore) GetProfile(_ context.Context, accountID string) (*types.MerchantProfile, error) {
	var profile types.MerchantProfile
	found, err := s.kv.GetAny(profileKey(accountID), &profile)
	if err != nil {
		return nil, fmt.Errorf("failed to get merchant %s: %w", accountID, err)
	}
	if !found {
		return nil, nil
	}
	return &profile, nil
}

func (s *kvStore) ResolveAddress(ctx context.Context, chain, address string) (*types.MerchantProfile, error) {
	if s.filter != nil && !s.filter.Contains(address, chain) {
		return nil, nil
	}

	var accountID string
	found, err := s.kv.GetAny(addressKey(chain, address), &accountID)
	if err != nil {
		return nil, fmt.Errorf("failed to resolve %s/%s: %w", chain, address, err)
	}
	if !found || accountID == "" {
		return nil, nil
	}
	return s.GetProfile(ctx, accountID)
}

func (s *kvStore) ListAddresses(_ context.Context) (map[string][]string, error) {
	pairs, err := s.kv.List(constant.MerchantAddressPrefix)
	if err != nil {
		return nil, fmt.Errorf("failed to list merchant addresses: %w", err)
	}

	grouped := lo.GroupBy(pairs, func(p *infra.KVPair) string {
		chain, _, _ := strings.Cut(strings.TrimPrefix(p.Key, constant.MerchantAddressPrefix), "/")
		return chain
	})
	return lo.MapValues(grouped, func(ps []*infra.KVPair, chain string) []string {
		return lo.Map(ps, func(p *infra.KVPair, _ int) string {
			return strings.TrimPrefix(p.Key, constant.MerchantAddressPrefix+chain+"/")
		})
	}), nil
}

func (s *kvStore) SaveSession(_ context.Context, session types.PaymentSession) error {
	if session.AccountID == "" || session.PaymentID == "" {
		return fmt.Errorf("session requires account and payment id")
	}
	if err := s.kv.SetAny(sessionKey(session.AccountID, session.PaymentID), session); err != nil {
		return fmt.Errorf("failed to save session %s/%s: %w", session.AccountID, session.PaymentID, err)
	}
	return nil
}

func (s *kvStore) GetSession(_ context.Context, accountID, paymentID string) (*types.PaymentSession, error) {
	var session types.PaymentSession
	found, err := s.kv.GetAny(sessionKey(accountID, paymentID), &session)
	if err != nil {
		return nil, fmt.Errorf("failed to get session %s/%s: %w", accountID, paymentID, err)
	}
	if !found {
		return nil, nil
	}
	return &session, nil
}

func (s *kvStore) MarkConfirmed(ctx context.Context, accountID, paymentID string, at time.Time) error {
	session, err := s.GetSession(ctx, accountID, paymentID)
	if err != nil {
		return err
	}
	if session == nil {
		return fmt.Errorf("session %s/%s not found", accountID, paymentID)
	}
	if session.Confirmed() {
		return nil
	}
	session.ConfirmedAt = at.Unix()
	return s.SaveSession(ctx, *session)
}
