package transform

import (
	"prozorro/internal"
	"prozorro/internal/util"
)

func tenderURL(tenderID string) string {
	return "https://prozorro.gov.ua/tender/" + tenderID
}

// buildAddress maps the address sub-record of a buyer or supplier. The
// identity comes from (countryName, region, postalCode) alone, so two
// parties at the same address collapse to one Address downstream.
func (t *Transformer) buildAddress(party internal.Raw) (*internal.Entity, error) {
	addressJS, err := party.RequireMap("address")
	if err != nil {
		return nil, err
	}
	country, err := addressJS.RequireString("countryName")
	if err != nil {
		return nil, err
	}
	region, err := addressJS.RequireString("region")
	if err != nil {
		return nil, err
	}
	locality, err := addressJS.RequireString("locality")
	if err != nil {
		return nil, err
	}
	street, err := addressJS.RequireString("streetAddress")
	if err != nil {
		return nil, err
	}
	postal, err := addressJS.RequireString("postalCode")
	if err != nil {
		return nil, err
	}

	address := t.reg.Make(internal.SchemaAddress)
	address.ID = MakeID(country, region, postal)
	address.Add("country", country)
	address.Add("region", region)
	address.Add("city", locality)
	address.Add("street", street)
	address.Add("postalCode", postal)
	address.Add("full", util.JoinNonEmpty(", ", country, region, locality, street, postal))
	return address, nil
}

// buildLegalEntity maps a buyer or supplier record. The address is returned
// alongside the entity because it is cross-referenced, not nested.
func (t *Transformer) buildLegalEntity(party internal.Raw) (*internal.Entity, *internal.Entity, error) {
	identifier, err := party.RequireMap("identifier")
	if err != nil {
		return nil, nil, err
	}
	id, err := identifier.RequireString("id")
	if err != nil {
		return nil, nil, err
	}
	name, err := party.RequireString("name")
	if err != nil {
		return nil, nil, err
	}
	contact, err := party.RequireMap("contactPoint")
	if err != nil {
		return nil, nil, err
	}
	// the identity tolerates a missing scheme, the classification read
	// does not
	scheme, err := identifier.RequireString("scheme")
	if err != nil {
		return nil, nil, err
	}

	le := t.reg.Make(internal.SchemaLegalEntity)
	le.ID = MakeID(id, identifier.String("scheme"))
	le.Add("name", name)
	le.Add("phone", contact.String("telephone"))
	le.Add("email", contact.String("email"))
	le.Add("website", contact.String("url"))
	le.Add("registrationNumber", id)
	le.Add("classification", scheme)

	address, err := t.buildAddress(party)
	if err != nil {
		return nil, nil, err
	}
	le.AddRef("addressEntity", address)
	le.Add("country", address.First("country"))
	return le, address, nil
}

// buildItemContract maps one item of a contract section into a Contract
// entity, one per (item, section) pair.
func (t *Transformer) buildItemContract(item, tender, section internal.Raw, buyer *internal.Entity) (*internal.Entity, error) {
	id, err := item.RequireString("id")
	if err != nil {
		return nil, err
	}
	title, err := item.RequireString("description")
	if err != nil {
		return nil, err
	}
	value, err := section.RequireMap("value")
	if err != nil {
		return nil, err
	}
	amount, err := value.RequireNumber("amount")
	if err != nil {
		return nil, err
	}
	currency, err := value.RequireString("currency")
	if err != nil {
		return nil, err
	}
	status, err := section.RequireString("status")
	if err != nil {
		return nil, err
	}
	method, err := tender.RequireString("procurementMethod")
	if err != nil {
		return nil, err
	}
	classification, err := item.RequireMap("classification")
	if err != nil {
		return nil, err
	}
	clsID, err := classification.RequireString("id")
	if err != nil {
		return nil, err
	}
	clsScheme, err := classification.RequireString("scheme")
	if err != nil {
		return nil, err
	}
	clsDesc, err := classification.RequireString("description")
	if err != nil {
		return nil, err
	}
	tenderID, err := tender.RequireString("tenderID")
	if err != nil {
		return nil, err
	}

	contract := t.reg.Make(internal.SchemaContract)
	contract.ID = MakeID(id)
	contract.Add("title", title)
	contract.AddRef("authority", buyer)
	contract.Add("amount", amount)
	contract.Add("currency", currency)
	if section.Has("dateSigned") {
		// the section's dateSigned only gates the field; the value is the
		// tender-level date, as the upstream feed populates it
		date, err := tender.RequireString("date")
		if err != nil {
			return nil, err
		}
		contract.Add("contractDate", date)
	}
	contract.Add("status", status)
	contract.Add("method", method)
	if tender.Has("awardCriteria") {
		contract.Add("criteria", tender.String("awardCriteria"))
	}
	contract.Add("classification", clsID+" | "+clsScheme+" | "+clsDesc)
	contract.Add("sourceUrl", tenderURL(tenderID))
	return contract, nil
}

// buildContractAward links one supplier to one item-Contract. Only the
// supplier side of an award is modeled, hence the fixed role.
func (t *Transformer) buildContractAward(section, tender internal.Raw, supplier, contract *internal.Entity) (*internal.Entity, error) {
	recordID, err := tender.RequireString("id")
	if err != nil {
		return nil, err
	}
	tenderID, err := tender.RequireString("tenderID")
	if err != nil {
		return nil, err
	}
	value, err := section.RequireMap("value")
	if err != nil {
		return nil, err
	}
	amount, err := value.RequireNumber("amount")
	if err != nil {
		return nil, err
	}
	currency, err := value.RequireString("currency")
	if err != nil {
		return nil, err
	}
	status, err := tender.RequireString("status")
	if err != nil {
		return nil, err
	}
	owner, err := tender.RequireString("owner")
	if err != nil {
		return nil, err
	}
	modified, err := tender.RequireString("dateModified")
	if err != nil {
		return nil, err
	}
	title, err := tender.RequireString("title")
	if err != nil {
		return nil, err
	}

	award := t.reg.Make(internal.SchemaContractAward)
	award.ID = MakeID(supplier.ID, contract.ID)
	award.Add("recordId", recordID)
	award.Add("lotNumber", tenderID)
	award.AddRef("supplier", supplier)
	award.AddRef("contract", contract)
	award.Add("sourceUrl", tenderURL(tenderID))
	award.Add("amount", amount)
	award.Add("currency", currency)
	award.Add("status", status)
	award.Add("role", "supplier")

	// the section's top-level startDate/endDate keys only gate the reads;
	// the values come from the period sub-record, mirroring how the
	// upstream feed populates both together
	if section.Has("startDate") {
		period, err := section.RequireMap("period")
		if err != nil {
			return nil, err
		}
		start, err := period.RequireString("startDate")
		if err != nil {
			return nil, err
		}
		award.Add("startDate", start)
	}
	if section.Has("endDate") {
		period, err := section.RequireMap("period")
		if err != nil {
			return nil, err
		}
		end, err := period.RequireString("endDate")
		if err != nil {
			return nil, err
		}
		award.Add("endDate", end)
	}
	if section.Has("dateSigned") {
		signed, err := section.RequireString("dateSigned")
		if err != nil {
			return nil, err
		}
		award.Add("date", signed)
	}

	award.Add("publisher", owner)
	award.Add("modifiedAt", modified)
	award.Add("summary", title)
	if tender.Has("description") {
		// some source records omit the description entirely
		award.Add("description", tender.String("description"))
	}
	return award, nil
}
