package transform

import (
	"github.com/rs/zerolog"

	"prozorro/internal"
)

// Transformer derives the entity graph of one tender. Each call builds
// fresh entities; nothing is cached between calls.
type Transformer struct {
	reg *Registry
	log zerolog.Logger
}

func New(reg *Registry, log zerolog.Logger) *Transformer {
	return &Transformer{reg: reg, log: log}
}

// Transform maps one raw tender into its flattened entity sequence: buyer,
// buyer address, then per contract section its suppliers, item-Contracts,
// ContractAwards and supplier addresses, each category in input order.
// Entities whose derived identifier is empty are dropped with a warning;
// a missing required field fails the whole tender.
//
// The sequence is built before anything is returned, so a failing tender
// never hands a partial graph downstream.
func (t *Transformer) Transform(tender internal.Raw) ([]*internal.Entity, error) {
	buyerJS, err := tender.RequireMap("procuringEntity")
	if err != nil {
		return nil, err
	}
	buyer, buyerAddress, err := t.buildLegalEntity(buyerJS)
	if err != nil {
		return nil, err
	}
	sections, err := tender.RequireList("contracts")
	if err != nil {
		return nil, err
	}

	out := []*internal.Entity{buyer, buyerAddress}
	for _, section := range sections {
		supplierList, err := section.RequireList("suppliers")
		if err != nil {
			return nil, err
		}
		suppliers := make([]*internal.Entity, 0, len(supplierList))
		supplierAddresses := make([]*internal.Entity, 0, len(supplierList))
		for _, supplierJS := range supplierList {
			supplier, supplierAddress, err := t.buildLegalEntity(supplierJS)
			if err != nil {
				return nil, err
			}
			suppliers = append(suppliers, supplier)
			supplierAddresses = append(supplierAddresses, supplierAddress)
		}

		// the section's own items win when present and non-empty; otherwise
		// the tender-level items apply, never merged
		items := section.List("items")
		if len(items) == 0 {
			items, err = tender.RequireList("items")
			if err != nil {
				return nil, err
			}
		}

		var contracts, awards []*internal.Entity
		for _, item := range items {
			contract, err := t.buildItemContract(item, tender, section, buyer)
			if err != nil {
				return nil, err
			}
			contracts = append(contracts, contract)
			for _, supplier := range suppliers {
				award, err := t.buildContractAward(section, tender, supplier, contract)
				if err != nil {
					return nil, err
				}
				awards = append(awards, award)
			}
		}

		out = append(out, suppliers...)
		out = append(out, contracts...)
		out = append(out, awards...)
		out = append(out, supplierAddresses...)
	}

	kept := make([]*internal.Entity, 0, len(out))
	for _, e := range out {
		if e.ID == "" {
			t.log.Warn().
				Str("schema", e.Schema).
				Str("name", e.First("name")).
				Msg("dropping entity without identifier")
			continue
		}
		kept = append(kept, e)
	}
	return kept, nil
}

// Stream returns the transformed entities as a one-shot stream. Restarting
// means calling Stream again on the same input.
func (t *Transformer) Stream(tender internal.Raw) (*internal.EntityStream, error) {
	entities, err := t.Transform(tender)
	if err != nil {
		return nil, err
	}
	return internal.EntitySlice(entities), nil
}
