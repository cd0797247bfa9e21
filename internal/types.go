package internal

const (
	SchemaAddress       = "Address"
	SchemaLegalEntity   = "LegalEntity"
	SchemaContract      = "Contract"
	SchemaContractAward = "ContractAward"
)

// Entity is one node of the target graph: a type tag, a derived identifier
// and multi-valued properties. Reference-valued properties hold the id of
// the referenced entity.
type Entity struct {
	ID         string              `json:"id"`
	Schema     string              `json:"schema"`
	Properties map[string][]string `json:"properties"`
}

func NewEntity(schema string) *Entity {
	return &Entity{Schema: schema, Properties: map[string][]string{}}
}

// Add appends a property value, skipping empty values.
func (e *Entity) Add(prop, value string) {
	if value == "" {
		return
	}
	e.Properties[prop] = append(e.Properties[prop], value)
}

// AddRef links another entity by its identifier.
func (e *Entity) AddRef(prop string, other *Entity) {
	if other == nil {
		return
	}
	e.Add(prop, other.ID)
}

// First returns the first value of a property, or "".
func (e *Entity) First(prop string) string {
	values := e.Properties[prop]
	if len(values) == 0 {
		return ""
	}
	return values[0]
}

type Collection struct {
	ID        string `json:"id"`
	ForeignID string `json:"foreign_id"`
	Label     string `json:"label"`
}

// FailureRow is one side-channel index entry for a tender that could not
// be transformed.
type FailureRow struct {
	ID        int
	TenderID  string
	RecordID  string
	Reason    string
	RawPath   string
	CreatedAt string
}

type RunCounts struct {
	Processed int `json:"processed"`
	Skipped   int `json:"skipped"`
	Failed    int `json:"failed"`
	Uploaded  int `json:"uploaded"`
}
