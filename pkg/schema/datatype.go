package schema

import "reflect"

// Affinity is the SQLite storage affinity of a declared column type
type Affinity string

const (
	AffinityInteger Affinity = "INTEGER"
	AffinityText    Affinity = "TEXT"
	AffinityBlob    Affinity = "BLOB"
	AffinityReal    Affinity = "REAL"
	AffinityNumeric Affinity = "NUMERIC"
)

// DataType describes the Go type a SQL column type maps to
type DataType struct {
	// Name is the canonical SQL type name, e.g. "VARCHAR".
	Name     string
	GoType   reflect.Type
	Affinity Affinity
}

// String returns the canonical SQL name
func (d DataType) String() string {
	return d.Name
}

// IsZero reports whether the type was never resolved
func (d DataType) IsZero() bool {
	return d.Name == "" && d.GoType == nil
}
