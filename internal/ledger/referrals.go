package ledger

import (
	"context"

	"github.com/shopspring/decimal"
)

const (
	// ReferralCreditKZ is credited per unique referral, alongside ReferralCreditUSD
	ReferralCreditKZ = 500
	// BonusMilestone is the invitation count that unlocks the bonus notice
	BonusMilestone = 15
)

// ReferralCreditUSD is credited per unique referral
var ReferralCreditUSD = decimal.New(5, -1)

// ReferralResult describes the outcome of RecordReferral
type ReferralResult struct {
	Duplicate    bool
	Count        int
	Balance      Balance
	BonusReached bool
}

// Invitations returns the referrer's invitation sequence
func (l *Ledger) Invitations(ctx context.Context, referrerID int64) ([]Invitation, error) {
	var invites []Invitation
	if _, err := l.read(ctx, userPath(invitationsRoot, referrerID), &invites); err != nil {
		return nil, err
	}
	return invites, nil
}

// RecordReferral appends inviteeID to the referrer's invitations, credits the
// referrer and tells them about it. A repeated invitee only triggers the
// "already invited" notice.
//
// The append and the credit are separate writes: a failure between them
// leaves an invitation without its credit.
func (l *Ledger) RecordReferral(ctx context.Context, n Notifier, referrerID, inviteeID int64) (*ReferralResult, error) {
	if referrerID == inviteeID {
		l.log.Warn("self referral", "user_id", referrerID)
	}

	result := &ReferralResult{}
	invites, err := update(ctx, l, userPath(invitationsRoot, referrerID), func(cur []Invitation) ([]Invitation, bool) {
		for _, inv := range cur {
			if inv.InviteeID == inviteeID {
				result.Duplicate = true
				return cur, false
			}
		}
		result.Duplicate = false
		return append(cur, Invitation{InviteeID: inviteeID, At: l.now().UTC()}), true
	})
	if err != nil {
		return nil, err
	}

	result.Count = len(invites)

	if result.Duplicate {
		l.log.Info("duplicate referral", "referrer_id", referrerID, "invitee_id", inviteeID)
		l.notify(ctx, n, referrerID, duplicateReferralText)
		return result, nil
	}

	balance, err := l.Credit(ctx, referrerID, ReferralCreditUSD, ReferralCreditKZ)
	if err != nil {
		return nil, err
	}

	result.Balance = balance
	result.BonusReached = result.Count >= BonusMilestone

	l.log.Info("referral recorded",
		"referrer_id", referrerID,
		"invitee_id", inviteeID,
		"count", result.Count,
		"usd", balance.USD.String(),
		"kz", balance.KZ,
	)

	l.notify(ctx, n, referrerID, referralText(result))
	return result, nil
}

func (l *Ledger) notify(ctx context.Context, n Notifier, userID int64, text string) {
	if n == nil {
		return
	}
	if err := n.Notify(ctx, userID, text); err != nil {
		l.log.Error("notify user", "user_id", userID, "error", err)
	}
}
