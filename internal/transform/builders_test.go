package transform

import (
	"errors"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"prozorro/internal"
)

func newTestTransformer() *Transformer {
	return New(NewRegistry(), zerolog.Nop())
}

func partyFixture() internal.Raw {
	return internal.Raw{
		"name": "ТОВ Постачальник",
		"identifier": map[string]any{
			"id":     "12345678",
			"scheme": "UA-EDR",
		},
		"contactPoint": map[string]any{
			"telephone": "+380441234567",
			"email":     "sales@supplier.ua",
			"url":       "https://supplier.ua",
		},
		"address": map[string]any{
			"countryName":   "Ukraine",
			"region":        "Kyiv",
			"locality":      "",
			"streetAddress": "Khreshchatyk 1",
			"postalCode":    "01001",
		},
	}
}

func TestBuildAddressFullComposition(t *testing.T) {
	tr := newTestTransformer()
	address, err := tr.buildAddress(partyFixture())
	require.NoError(t, err)

	assert.Equal(t, "Ukraine, Kyiv, Khreshchatyk 1, 01001", address.First("full"))
	assert.Equal(t, "Ukraine", address.First("country"))
	assert.Equal(t, "01001", address.First("postalCode"))
	assert.Empty(t, address.Properties["city"], "empty locality must not become a property value")
}

func TestBuildAddressIdentityIgnoresCityAndStreet(t *testing.T) {
	tr := newTestTransformer()

	a := partyFixture()
	b := partyFixture()
	bAddr := b["address"].(map[string]any)
	bAddr["locality"] = "Kyiv City"
	bAddr["streetAddress"] = "Volodymyrska 12"

	first, err := tr.buildAddress(a)
	require.NoError(t, err)
	second, err := tr.buildAddress(b)
	require.NoError(t, err)

	assert.Equal(t, first.ID, second.ID)
}

func TestBuildAddressAbsent(t *testing.T) {
	tr := newTestTransformer()
	party := partyFixture()
	delete(party, "address")

	_, err := tr.buildAddress(party)
	var missing *internal.MissingFieldError
	require.True(t, errors.As(err, &missing))
	assert.Equal(t, "address", missing.Path)
}

func TestBuildLegalEntityPair(t *testing.T) {
	tr := newTestTransformer()
	le, address, err := tr.buildLegalEntity(partyFixture())
	require.NoError(t, err)

	assert.NotEmpty(t, le.ID)
	assert.Equal(t, "ТОВ Постачальник", le.First("name"))
	assert.Equal(t, "12345678", le.First("registrationNumber"))
	assert.Equal(t, "UA-EDR", le.First("classification"))
	assert.Equal(t, "+380441234567", le.First("phone"))
	assert.Equal(t, "sales@supplier.ua", le.First("email"))
	assert.Equal(t, "https://supplier.ua", le.First("website"))
	assert.Equal(t, "Ukraine", le.First("country"))
	assert.Equal(t, address.ID, le.First("addressEntity"))
}

func TestBuildLegalEntityOptionalContacts(t *testing.T) {
	tr := newTestTransformer()
	party := partyFixture()
	party["contactPoint"] = map[string]any{}

	le, _, err := tr.buildLegalEntity(party)
	require.NoError(t, err)

	assert.Empty(t, le.Properties["phone"])
	assert.Empty(t, le.Properties["email"])
	assert.Empty(t, le.Properties["website"])
}

func TestBuildLegalEntityMissingScheme(t *testing.T) {
	tr := newTestTransformer()
	party := partyFixture()
	party["identifier"] = map[string]any{"id": "12345678"}

	_, _, err := tr.buildLegalEntity(party)
	var missing *internal.MissingFieldError
	require.True(t, errors.As(err, &missing))
	assert.Equal(t, "scheme", missing.Path)
}

func itemFixture(id string) map[string]any {
	return map[string]any{
		"id":          id,
		"description": "Laptops",
		"classification": map[string]any{
			"id":          "30213100-6",
			"scheme":      "ДК021",
			"description": "Портативні комп'ютери",
		},
	}
}

func sectionFixture() internal.Raw {
	return internal.Raw{
		"status": "active",
		"value": map[string]any{
			"amount":   float64(150000.5),
			"currency": "UAH",
		},
		"suppliers": []any{},
	}
}

func tenderFixtureBase() internal.Raw {
	return internal.Raw{
		"id":                "f81c1b9a8e7d4b0f9a5d3c2b1a098765",
		"tenderID":          "UA-2022-03-01-000123-a",
		"title":             "Computers for schools",
		"status":            "complete",
		"owner":             "prozorro.gov.ua",
		"date":              "2022-03-02T10:00:00+02:00",
		"dateModified":      "2022-03-05T12:30:00+02:00",
		"procurementMethod": "open",
	}
}

func TestBuildItemContract(t *testing.T) {
	tr := newTestTransformer()
	tender := tenderFixtureBase()
	tender["awardCriteria"] = "lowestCost"
	section := sectionFixture()
	buyer := internal.NewEntity(internal.SchemaLegalEntity)
	buyer.ID = MakeID("00000000", "UA-EDR")

	contract, err := tr.buildItemContract(internal.Raw(itemFixture("item-1")), tender, section, buyer)
	require.NoError(t, err)

	assert.Equal(t, MakeID("item-1"), contract.ID)
	assert.Equal(t, "Laptops", contract.First("title"))
	assert.Equal(t, buyer.ID, contract.First("authority"))
	assert.Equal(t, "150000.5", contract.First("amount"))
	assert.Equal(t, "UAH", contract.First("currency"))
	assert.Equal(t, "active", contract.First("status"))
	assert.Equal(t, "open", contract.First("method"))
	assert.Equal(t, "lowestCost", contract.First("criteria"))
	assert.Equal(t, "30213100-6 | ДК021 | Портативні комп'ютери", contract.First("classification"))
	assert.Equal(t, "https://prozorro.gov.ua/tender/UA-2022-03-01-000123-a", contract.First("sourceUrl"))
	assert.Empty(t, contract.Properties["contractDate"], "no dateSigned, no contract date")
}

func TestBuildItemContractDateComesFromTender(t *testing.T) {
	tr := newTestTransformer()
	tender := tenderFixtureBase()
	section := sectionFixture()
	section["dateSigned"] = "2022-03-04T09:00:00+02:00"
	buyer := internal.NewEntity(internal.SchemaLegalEntity)
	buyer.ID = MakeID("00000000", "UA-EDR")

	contract, err := tr.buildItemContract(internal.Raw(itemFixture("item-1")), tender, section, buyer)
	require.NoError(t, err)

	// the section's signing date gates the field; the value is the tender date
	assert.Equal(t, "2022-03-02T10:00:00+02:00", contract.First("contractDate"))
	assert.Empty(t, contract.Properties["criteria"])
}

func TestBuildContractAward(t *testing.T) {
	tr := newTestTransformer()
	tender := tenderFixtureBase()
	tender["description"] = "Open procedure for school computers"
	section := sectionFixture()
	section["dateSigned"] = "2022-03-04T09:00:00+02:00"

	supplier := internal.NewEntity(internal.SchemaLegalEntity)
	supplier.ID = MakeID("12345678", "UA-EDR")
	contract := internal.NewEntity(internal.SchemaContract)
	contract.ID = MakeID("item-1")

	award, err := tr.buildContractAward(section, tender, supplier, contract)
	require.NoError(t, err)

	assert.Equal(t, MakeID(supplier.ID, contract.ID), award.ID)
	assert.Equal(t, "supplier", award.First("role"))
	assert.Equal(t, supplier.ID, award.First("supplier"))
	assert.Equal(t, contract.ID, award.First("contract"))
	assert.Equal(t, "f81c1b9a8e7d4b0f9a5d3c2b1a098765", award.First("recordId"))
	assert.Equal(t, "UA-2022-03-01-000123-a", award.First("lotNumber"))
	assert.Equal(t, "150000.5", award.First("amount"))
	assert.Equal(t, "UAH", award.First("currency"))
	assert.Equal(t, "complete", award.First("status"))
	assert.Equal(t, "2022-03-04T09:00:00+02:00", award.First("date"))
	assert.Equal(t, "prozorro.gov.ua", award.First("publisher"))
	assert.Equal(t, "2022-03-05T12:30:00+02:00", award.First("modifiedAt"))
	assert.Equal(t, "Computers for schools", award.First("summary"))
	assert.Equal(t, "Open procedure for school computers", award.First("description"))
	assert.Empty(t, award.Properties["startDate"])
	assert.Empty(t, award.Properties["endDate"])
}

func TestBuildContractAwardIdentityIgnoresUnrelatedFields(t *testing.T) {
	tr := newTestTransformer()
	supplier := internal.NewEntity(internal.SchemaLegalEntity)
	supplier.ID = MakeID("12345678", "UA-EDR")
	contract := internal.NewEntity(internal.SchemaContract)
	contract.ID = MakeID("item-1")

	first, err := tr.buildContractAward(sectionFixture(), tenderFixtureBase(), supplier, contract)
	require.NoError(t, err)

	tender := tenderFixtureBase()
	tender["title"] = "Renamed tender"
	tender["status"] = "cancelled"
	section := sectionFixture()
	section["value"] = map[string]any{"amount": float64(1), "currency": "EUR"}
	second, err := tr.buildContractAward(section, tender, supplier, contract)
	require.NoError(t, err)

	assert.Equal(t, first.ID, second.ID)
}

func TestBuildContractAwardPeriodGating(t *testing.T) {
	tr := newTestTransformer()
	supplier := internal.NewEntity(internal.SchemaLegalEntity)
	supplier.ID = MakeID("12345678", "UA-EDR")
	contract := internal.NewEntity(internal.SchemaContract)
	contract.ID = MakeID("item-1")

	// period present but no top-level keys: the gate stays closed
	section := sectionFixture()
	section["period"] = map[string]any{
		"startDate": "2022-03-04T00:00:00+02:00",
		"endDate":   "2022-12-31T00:00:00+02:00",
	}
	award, err := tr.buildContractAward(section, tenderFixtureBase(), supplier, contract)
	require.NoError(t, err)
	assert.Empty(t, award.Properties["startDate"])
	assert.Empty(t, award.Properties["endDate"])

	// top-level keys open the gate; the values come from the period
	section["startDate"] = "1970-01-01T00:00:00Z"
	section["endDate"] = "1970-01-01T00:00:00Z"
	award, err = tr.buildContractAward(section, tenderFixtureBase(), supplier, contract)
	require.NoError(t, err)
	assert.Equal(t, "2022-03-04T00:00:00+02:00", award.First("startDate"))
	assert.Equal(t, "2022-12-31T00:00:00+02:00", award.First("endDate"))

	// gate open without a period is a malformed record
	delete(section, "period")
	_, err = tr.buildContractAward(section, tenderFixtureBase(), supplier, contract)
	var missing *internal.MissingFieldError
	require.True(t, errors.As(err, &missing))
	assert.Equal(t, "period", missing.Path)
}
