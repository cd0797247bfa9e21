package transform

import (
	"fmt"

	"prozorro/internal"
)

type Kind string

const (
	KindString Kind = "string"
	KindNumber Kind = "number"
	KindDate   Kind = "date"
	KindURL    Kind = "url"
	KindRef    Kind = "ref"
)

type Definition struct {
	Name       string
	Properties map[string]Kind
}

func (d *Definition) HasProperty(name string) bool {
	_, ok := d.Properties[name]
	return ok
}

// Registry is the explicit, versioned entity model: one fixed set of entity
// types with fixed property names. Built once at process start and passed by
// reference into the transformer.
type Registry struct {
	Version string
	defs    map[string]*Definition
}

func NewRegistry() *Registry {
	defs := map[string]*Definition{
		internal.SchemaAddress: {
			Name: internal.SchemaAddress,
			Properties: map[string]Kind{
				"country":    KindString,
				"region":     KindString,
				"city":       KindString,
				"street":     KindString,
				"postalCode": KindString,
				"full":       KindString,
			},
		},
		internal.SchemaLegalEntity: {
			Name: internal.SchemaLegalEntity,
			Properties: map[string]Kind{
				"name":               KindString,
				"phone":              KindString,
				"email":              KindString,
				"website":            KindURL,
				"registrationNumber": KindString,
				"classification":     KindString,
				"addressEntity":      KindRef,
				"country":            KindString,
			},
		},
		internal.SchemaContract: {
			Name: internal.SchemaContract,
			Properties: map[string]Kind{
				"title":          KindString,
				"authority":      KindRef,
				"amount":         KindNumber,
				"currency":       KindString,
				"contractDate":   KindDate,
				"status":         KindString,
				"method":         KindString,
				"criteria":       KindString,
				"classification": KindString,
				"sourceUrl":      KindURL,
			},
		},
		internal.SchemaContractAward: {
			Name: internal.SchemaContractAward,
			Properties: map[string]Kind{
				"recordId":    KindString,
				"lotNumber":   KindString,
				"supplier":    KindRef,
				"contract":    KindRef,
				"sourceUrl":   KindURL,
				"amount":      KindNumber,
				"currency":    KindString,
				"status":      KindString,
				"role":        KindString,
				"startDate":   KindDate,
				"endDate":     KindDate,
				"date":        KindDate,
				"publisher":   KindString,
				"modifiedAt":  KindDate,
				"summary":     KindString,
				"description": KindString,
			},
		},
	}
	return &Registry{Version: "v1", defs: defs}
}

func (r *Registry) Definition(name string) (*Definition, bool) {
	def, ok := r.defs[name]
	return def, ok
}

// Make mints an empty entity of a registered type, or nil for an unknown
// type name.
func (r *Registry) Make(name string) *internal.Entity {
	if _, ok := r.defs[name]; !ok {
		return nil
	}
	return internal.NewEntity(name)
}

// Validate checks that every property set on an entity belongs to its
// type definition.
func (r *Registry) Validate(e *internal.Entity) error {
	def, ok := r.defs[e.Schema]
	if !ok {
		return fmt.Errorf("unknown entity type: %s", e.Schema)
	}
	for prop := range e.Properties {
		if !def.HasProperty(prop) {
			return fmt.Errorf("%s: unknown property %q", e.Schema, prop)
		}
	}
	return nil
}
