package types

import (
	"reflect"
	"strings"
	"time"

	"github.com/mizuchilabs/sqlite-ddl/pkg/schema"
)

var (
	int64Type   = reflect.TypeFor[int64]()
	stringType  = reflect.TypeFor[string]()
	float64Type = reflect.TypeFor[float64]()
	bytesType   = reflect.TypeFor[[]byte]()
	boolType    = reflect.TypeFor[bool]()
	timeType    = reflect.TypeFor[time.Time]()
)

// sqliteTypes are the type names listed in the SQLite datatype documentation
// plus the common date and boolean spellings.
var sqliteTypes = map[string]schema.DataType{
	"INT":               {Name: "INT", GoType: int64Type, Affinity: schema.AffinityInteger},
	"INTEGER":           {Name: "INTEGER", GoType: int64Type, Affinity: schema.AffinityInteger},
	"TINYINT":           {Name: "TINYINT", GoType: int64Type, Affinity: schema.AffinityInteger},
	"SMALLINT":          {Name: "SMALLINT", GoType: int64Type, Affinity: schema.AffinityInteger},
	"MEDIUMINT":         {Name: "MEDIUMINT", GoType: int64Type, Affinity: schema.AffinityInteger},
	"BIGINT":            {Name: "BIGINT", GoType: int64Type, Affinity: schema.AffinityInteger},
	"UNSIGNED BIG INT":  {Name: "UNSIGNED BIG INT", GoType: int64Type, Affinity: schema.AffinityInteger},
	"INT2":              {Name: "INT2", GoType: int64Type, Affinity: schema.AffinityInteger},
	"INT8":              {Name: "INT8", GoType: int64Type, Affinity: schema.AffinityInteger},
	"CHARACTER":         {Name: "CHARACTER", GoType: stringType, Affinity: schema.AffinityText},
	"VARCHAR":           {Name: "VARCHAR", GoType: stringType, Affinity: schema.AffinityText},
	"VARYING CHARACTER": {Name: "VARYING CHARACTER", GoType: stringType, Affinity: schema.AffinityText},
	"NCHAR":             {Name: "NCHAR", GoType: stringType, Affinity: schema.AffinityText},
	"NATIVE CHARACTER":  {Name: "NATIVE CHARACTER", GoType: stringType, Affinity: schema.AffinityText},
	"NVARCHAR":          {Name: "NVARCHAR", GoType: stringType, Affinity: schema.AffinityText},
	"TEXT":              {Name: "TEXT", GoType: stringType, Affinity: schema.AffinityText},
	"CLOB":              {Name: "CLOB", GoType: stringType, Affinity: schema.AffinityText},
	"BLOB":              {Name: "BLOB", GoType: bytesType, Affinity: schema.AffinityBlob},
	"REAL":              {Name: "REAL", GoType: float64Type, Affinity: schema.AffinityReal},
	"DOUBLE":            {Name: "DOUBLE", GoType: float64Type, Affinity: schema.AffinityReal},
	"DOUBLE PRECISION":  {Name: "DOUBLE PRECISION", GoType: float64Type, Affinity: schema.AffinityReal},
	"FLOAT":             {Name: "FLOAT", GoType: float64Type, Affinity: schema.AffinityReal},
	"NUMERIC":           {Name: "NUMERIC", GoType: float64Type, Affinity: schema.AffinityNumeric},
	"DECIMAL":           {Name: "DECIMAL", GoType: float64Type, Affinity: schema.AffinityNumeric},
	"BOOLEAN":           {Name: "BOOLEAN", GoType: boolType, Affinity: schema.AffinityNumeric},
	"DATE":              {Name: "DATE", GoType: timeType, Affinity: schema.AffinityNumeric},
	"DATETIME":          {Name: "DATETIME", GoType: timeType, Affinity: schema.AffinityNumeric},
	"TIMESTAMP":         {Name: "TIMESTAMP", GoType: timeType, Affinity: schema.AffinityNumeric},
}

// SQLite resolves type names the way SQLite itself accepts them: known
// names map to a fixed Go type and any other name falls back to its
// affinity. With Strict set, unknown names are rejected instead.
//
// Register must not be called concurrently with ResolveType.
type SQLite struct {
	Strict bool

	overrides map[string]schema.DataType
}

// NewSQLite creates a resolver with the default type table
func NewSQLite() *SQLite {
	return &SQLite{overrides: make(map[string]schema.DataType)}
}

// Register maps a type name to a Go type, taking precedence over the
// built-in table. The affinity follows SQLite's rules for the name.
func (r *SQLite) Register(name string, goType reflect.Type) {
	key := normalizeName(name)
	if r.overrides == nil {
		r.overrides = make(map[string]schema.DataType)
	}
	r.overrides[key] = schema.DataType{Name: key, GoType: goType, Affinity: Affinity(key)}
}

// ResolveType implements ddl.TypeResolver. A column declared without a type
// resolves to a BLOB-affinity []byte.
func (r *SQLite) ResolveType(name string) (schema.DataType, bool) {
	if strings.TrimSpace(name) == "" {
		return schema.DataType{GoType: bytesType, Affinity: schema.AffinityBlob}, true
	}

	tn, err := Parse(name)
	if err != nil {
		return schema.DataType{}, false
	}
	key := tn.Name()

	if dt, ok := r.overrides[key]; ok {
		return dt, true
	}
	if dt, ok := sqliteTypes[key]; ok {
		return dt, true
	}
	if r.Strict {
		return schema.DataType{}, false
	}

	aff := Affinity(key)
	return schema.DataType{Name: key, GoType: affinityGoType(aff), Affinity: aff}, true
}

// Affinity determines the SQLite type affinity of a declared type name:
//  1. contains "INT": INTEGER
//  2. contains "CHAR", "CLOB" or "TEXT": TEXT
//  3. contains "BLOB" or is empty: BLOB
//  4. contains "REAL", "FLOA" or "DOUB": REAL
//  5. otherwise NUMERIC
func Affinity(typeName string) schema.Affinity {
	if typeName == "" {
		return schema.AffinityBlob
	}

	upper := strings.ToUpper(typeName)
	switch {
	case strings.Contains(upper, "INT"):
		return schema.AffinityInteger
	case strings.Contains(upper, "CHAR"),
		strings.Contains(upper, "CLOB"),
		strings.Contains(upper, "TEXT"):
		return schema.AffinityText
	case strings.Contains(upper, "BLOB"):
		return schema.AffinityBlob
	case strings.Contains(upper, "REAL"),
		strings.Contains(upper, "FLOA"),
		strings.Contains(upper, "DOUB"):
		return schema.AffinityReal
	}
	return schema.AffinityNumeric
}

func affinityGoType(aff schema.Affinity) reflect.Type {
	switch aff {
	case schema.AffinityInteger:
		return int64Type
	case schema.AffinityText:
		return stringType
	case schema.AffinityBlob:
		return bytesType
	}
	return float64Type
}

func normalizeName(name string) string {
	return strings.ToUpper(strings.Join(strings.Fields(name), " "))
}
