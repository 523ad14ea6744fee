package ledger

import "strings"

// MatchTier records how a debt envelope was chosen for a cash envelope.
type MatchTier string

const (
	MatchExact      MatchTier = "exact"
	MatchSubstring  MatchTier = "substring"
	MatchUnassigned MatchTier = "unassigned"
	MatchNone       MatchTier = "none"
)

// CreditCardEnvelopePrefix is prepended to a cash envelope's name to form the
// name of its paired debt envelope.
const CreditCardEnvelopePrefix = "Credit Card "

// MatchDebtEnvelope resolves which debt envelope on card a payment from cash
// settles. Lookup order:
//
//  1. a debt envelope named exactly "Credit Card " + cash.Name
//  2. the first debt envelope (by list order) whose name contains cash.Name,
//     the Unassigned envelope excluded
//  3. the card's Unassigned debt envelope
//
// Returns (nil, MatchNone) when none apply.
func MatchDebtEnvelope(cash Envelope, card Account, debtEnvelopes []Envelope) (*Envelope, MatchTier) {
	exact := CreditCardEnvelopePrefix + cash.Name
	for i := range debtEnvelopes {
		e := &debtEnvelopes[i]
		if e.AccountID == card.ID && e.Type == EnvelopeDebt && e.Name == exact {
			return e, MatchExact
		}
	}
	if cash.Name != "" {
		for i := range debtEnvelopes {
			e := &debtEnvelopes[i]
			if e.AccountID != card.ID || e.Type != EnvelopeDebt || e.IsUnassignedFor(card) {
				continue
			}
			if strings.Contains(e.Name, cash.Name) {
				return e, MatchSubstring
			}
		}
	}
	for i := range debtEnvelopes {
		if debtEnvelopes[i].IsUnassignedFor(card) {
			return &debtEnvelopes[i], MatchUnassigned
		}
	}
	return nil, MatchNone
}
