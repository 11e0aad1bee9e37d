package models

import (
	"fmt"
)

// PartyRef identifies the customer or supplier whose balances an operation touches.
type PartyRef struct {
	Type PartyType
	ID   int
}

func CustomerParty(id int) PartyRef {
	return PartyRef{Type: PartyTypeCustomer, ID: id}
}

func SupplierParty(id int) PartyRef {
	return PartyRef{Type: PartyTypeSupplier, ID: id}
}

// partyFromPtr returns the zero PartyRef when id is nil.
func partyFromPtr(t PartyType, id *int) PartyRef {
	if id == nil || *id <= 0 {
		return PartyRef{Type: t}
	}
	return PartyRef{Type: t, ID: *id}
}

func (p PartyRef) IsSet() bool {
	return p.ID > 0
}

func (p PartyRef) IsCustomer() bool {
	return p.Type == PartyTypeCustomer
}

func (p PartyRef) table() string {
	if p.Type == PartyTypeSupplier {
		return "suppliers"
	}
	return "customers"
}

func (p PartyRef) lockKey() string {
	return fmt.Sprintf("ledger:%s:%d", p.Type, p.ID)
}

func (p PartyRef) String() string {
	return fmt.Sprintf("%s #%d", p.Type, p.ID)
}

func (p PartyRef) ptr() *int {
	if !p.IsSet() {
		return nil
	}
	id := p.ID
	return &id
}

func lockKeys(parties ...PartyRef) []string {
	keys := make([]string, 0, len(parties))
	for _, p := range parties {
		if p.IsSet() {
			keys = append(keys, p.lockKey())
		}
	}
	return keys
}
