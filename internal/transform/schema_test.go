package transform

import (
	"testing"

	"prozorro/internal"
)

func TestRegistryMakeUnknown(t *testing.T) {
	reg := NewRegistry()
	if reg.Make("Vessel") != nil {
		t.Fatal("unknown type must not mint an entity")
	}
}

func TestRegistryValidate(t *testing.T) {
	reg := NewRegistry()

	e := reg.Make(internal.SchemaAddress)
	e.Add("country", "Ukraine")
	if err := reg.Validate(e); err != nil {
		t.Fatal(err)
	}

	e.Add("tonnage", "12")
	if err := reg.Validate(e); err == nil {
		t.Fatal("unknown property must fail validation")
	}

	stray := internal.NewEntity("Vessel")
	if err := reg.Validate(stray); err == nil {
		t.Fatal("unknown type must fail validation")
	}
}
