package ledger

import (
	"context"

	"github.com/shopspring/decimal"
)

type FundingTargetInput struct {
	EnvelopeID    string
	TargetType    TargetType
	TargetAmount  decimal.Decimal
	MinimumAmount *decimal.Decimal
	Description   string
	IsActive      *bool // defaults to true
}

// CreateFundingTarget attaches a planning target to an envelope.
func (s *Service) CreateFundingTarget(ctx context.Context, in FundingTargetInput) (*FundingTarget, error) {
	if !in.TargetType.Valid() {
		return nil, invalid("target_type", "unknown target type %q", in.TargetType)
	}
	amount := RoundMoney(in.TargetAmount)
	if amount.IsNegative() {
		return nil, invalid("target_amount", "must not be negative, got %s", amount)
	}
	if in.MinimumAmount != nil && in.MinimumAmount.IsNegative() {
		return nil, invalid("minimum_amount", "must not be negative, got %s", in.MinimumAmount)
	}
	active := true
	if in.IsActive != nil {
		active = *in.IsActive
	}

	var target FundingTarget
	err := s.store.WithTx(ctx, func(st Store) error {
		if _, err := loadEnvelope(ctx, st, in.EnvelopeID); err != nil {
			return err
		}
		now := s.now()
		target = FundingTarget{
			ID:            s.newID(),
			EnvelopeID:    in.EnvelopeID,
			TargetType:    in.TargetType,
			TargetAmount:  amount,
			MinimumAmount: roundPtr(in.MinimumAmount),
			Description:   in.Description,
			IsActive:      active,
			CreatedAt:     now,
			UpdatedAt:     now,
		}
		return st.InsertFundingTarget(ctx, target)
	})
	if err != nil {
		return nil, err
	}
	return &target, nil
}

func (s *Service) ListFundingTargets(ctx context.Context) ([]FundingTarget, error) {
	return s.store.ListFundingTargets(ctx)
}

// DeleteFundingTarget returns false when the target does not exist.
func (s *Service) DeleteFundingTarget(ctx context.Context, id string) (bool, error) {
	deleted := false
	err := s.store.WithTx(ctx, func(st Store) error {
		targets, err := st.ListFundingTargets(ctx)
		if err != nil {
			return err
		}
		for _, t := range targets {
			if t.ID == id {
				deleted = true
				return st.DeleteFundingTarget(ctx, id)
			}
		}
		return nil
	})
	return deleted, err
}
