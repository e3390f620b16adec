package keeps

import (
	"fmt"
	"net/mail"
	"time"

	"github.com/dmitrijs2005/keepr/internal/chain"
	"github.com/dmitrijs2005/keepr/internal/common"
	"github.com/dmitrijs2005/keepr/internal/envelope"
	ethcommon "github.com/ethereum/go-ethereum/common"
)

// validatedTerms is AccessTerms after parsing.
type validatedTerms struct {
	recipient ethcommon.Address
	fallback  ethcommon.Address
	unlock    time.Time
	contacts  []Contact
}

func parseAddress(field, raw string) (ethcommon.Address, error) {
	if !ethcommon.IsHexAddress(raw) {
		return ethcommon.Address{}, fmt.Errorf("%w: %s %q", common.ErrInvalidRecipientAddress, field, raw)
	}
	a := ethcommon.HexToAddress(raw)
	if a == (ethcommon.Address{}) {
		return ethcommon.Address{}, fmt.Errorf("%w: %s is the zero address", common.ErrInvalidRecipientAddress, field)
	}
	return a, nil
}

func validEmail(raw string) bool {
	a, err := mail.ParseAddress(raw)
	return err == nil && a.Address == raw
}

func validateTerms(creator ethcommon.Address, terms AccessTerms, cfg chain.Config, now time.Time) (*validatedTerms, error) {
	v := &validatedTerms{unlock: terms.UnlockTime}

	recipient, err := parseAddress("recipient", terms.Recipient)
	if err != nil {
		return nil, err
	}
	if recipient == creator {
		return nil, fmt.Errorf("%w: recipient is the creator", common.ErrInvalidRecipientAddress)
	}
	v.recipient = recipient

	if terms.Fallback != "" {
		fallback, err := parseAddress("fallback", terms.Fallback)
		if err != nil {
			return nil, err
		}
		if fallback == creator || fallback == recipient {
			return nil, fmt.Errorf("%w: fallback must differ from creator and recipient", common.ErrInvalidRecipientAddress)
		}
		v.fallback = fallback
	}

	if !cfg.CheckUnlockTime(now, terms.UnlockTime) {
		return nil, fmt.Errorf("%w: %s is not within [%s, %s] from now",
			common.ErrUnlockTimeOutOfRange, terms.UnlockTime.UTC().Format(time.RFC3339), cfg.MinUnlockDelay, cfg.MaxUnlockDelay)
	}

	if terms.RecipientEmail != "" {
		if !validEmail(terms.RecipientEmail) {
			return nil, fmt.Errorf("%w: %q", common.ErrInvalidEmail, terms.RecipientEmail)
		}
		v.contacts = append(v.contacts, Contact{Role: envelope.RoleRecipient, Address: recipient, Email: terms.RecipientEmail})
	}
	if terms.FallbackEmail != "" {
		if v.fallback == (ethcommon.Address{}) {
			return nil, fmt.Errorf("%w: fallback email without fallback address", common.ErrInvalidEmail)
		}
		if !validEmail(terms.FallbackEmail) {
			return nil, fmt.Errorf("%w: %q", common.ErrInvalidEmail, terms.FallbackEmail)
		}
		v.contacts = append(v.contacts, Contact{Role: envelope.RoleFallback, Address: v.fallback, Email: terms.FallbackEmail})
	}
	return v, nil
}
