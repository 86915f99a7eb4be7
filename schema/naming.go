package schema

import (
	"crypto/sha1"
	"encoding/hex"
	"strings"
	"sync"
	"unicode/utf8"

	"github.com/jinzhu/inflection"
)

// Namer namer interface
type Namer interface {
	TableName(entity string) string
	ColumnName(table, field string) string
	ReferenceColumnName(table, field string) string
	PolymorphicTypeColumnName(table, field string) string
	IndexName(table, column string) string
	UniqueName(table, column string) string
	ForeignKeyName(table, column string) string
}

// NamingStrategy tables, columns naming strategy
type NamingStrategy struct {
	TablePrefix   string
	SingularTable bool
	// IdentifierMaxLength names longer than this are shortened with a hash, defaults to 64
	IdentifierMaxLength int
}

// TableName convert entity name to table name
func (ns NamingStrategy) TableName(entity string) string {
	if ns.SingularTable {
		return ns.TablePrefix + toDBName(entity)
	}
	return ns.TablePrefix + inflection.Plural(toDBName(entity))
}

// ColumnName convert field name to column name
func (ns NamingStrategy) ColumnName(table, field string) string {
	return toDBName(field)
}

// ReferenceColumnName column holding the primary key of a referenced entity
func (ns NamingStrategy) ReferenceColumnName(table, field string) string {
	name := toDBName(field)
	if strings.HasSuffix(name, "_id") {
		return name
	}
	return name + "_id"
}

// PolymorphicTypeColumnName column holding the subtype flag of a polymorphic reference
func (ns NamingStrategy) PolymorphicTypeColumnName(table, field string) string {
	return strings.TrimSuffix(toDBName(field), "_id") + "_type"
}

// IndexName generate index name
func (ns NamingStrategy) IndexName(table, column string) string {
	return ns.formatName("idx", table, column)
}

// UniqueName generate unique index name
func (ns NamingStrategy) UniqueName(table, column string) string {
	return ns.formatName("uni", table, column)
}

// ForeignKeyName generate foreign key constraint name
func (ns NamingStrategy) ForeignKeyName(table, column string) string {
	return ns.formatName("fk", table, column)
}

func (ns NamingStrategy) formatName(prefix, table, name string) string {
	formattedName := strings.ReplaceAll(strings.Join([]string{prefix, table, toDBName(name)}, "_"), ".", "_")

	maxLength := ns.IdentifierMaxLength
	if maxLength == 0 {
		maxLength = 64
	}

	if utf8.RuneCountInString(formattedName) > maxLength {
		h := sha1.New()
		h.Write([]byte(formattedName))
		bs := h.Sum(nil)

		formattedName = formattedName[0:maxLength-8] + hex.EncodeToString(bs)[:8]
	}
	return formattedName
}

var (
	smap sync.Map
	// https://github.com/golang/lint/blob/master/lint.go#L770
	commonInitialisms         = []string{"API", "ASCII", "CPU", "CSS", "DNS", "EOF", "GUID", "HTML", "HTTP", "HTTPS", "ID", "IP", "JSON", "LHS", "QPS", "RAM", "RHS", "RPC", "SLA", "SMTP", "SSH", "TLS", "TTL", "UID", "UI", "UUID", "URI", "URL", "UTF8", "VM", "XML", "XSRF", "XSS"}
	commonInitialismsReplacer *strings.Replacer
)

func init() {
	commonInitialismsForReplacer := make([]string, 0, len(commonInitialisms)*2)
	for _, initialism := range commonInitialisms {
		commonInitialismsForReplacer = append(commonInitialismsForReplacer, initialism, initialism[:1]+strings.ToLower(initialism[1:]))
	}
	commonInitialismsReplacer = strings.NewReplacer(commonInitialismsForReplacer...)
}

func toDBName(name string) string {
	if name == "" {
		return ""
	} else if v, ok := smap.Load(name); ok {
		return v.(string)
	}

	var (
		value                          = commonInitialismsReplacer.Replace(name)
		buf                            strings.Builder
		lastCase, nextCase, nextNumber bool // upper case == true
		curCase                        = value[0] <= 'Z' && value[0] >= 'A'
	)

	for i, v := range value[:len(value)-1] {
		nextCase = value[i+1] <= 'Z' && value[i+1] >= 'A'
		nextNumber = value[i+1] >= '0' && value[i+1] <= '9'

		if curCase {
			if lastCase && (nextCase || nextNumber) {
				buf.WriteRune(v + 32)
			} else {
				if i > 0 && value[i-1] != '_' && value[i+1] != '_' {
					buf.WriteByte('_')
				}
				buf.WriteRune(v + 32)
			}
		} else {
			buf.WriteRune(v)
		}

		lastCase = curCase
		curCase = nextCase
	}

	if curCase {
		if !lastCase && len(value) > 1 {
			buf.WriteByte('_')
		}
		buf.WriteByte(value[len(value)-1] + 32)
	} else {
		buf.WriteByte(value[len(value)-1])
	}

	result := buf.String()
	smap.Store(name, result)
	return result
}

// TypeMapper maps polymorphic subtypes to the flag stored in the type column and back
type TypeMapper interface {
	TypeFlag(entity string) string
	EntityFor(flag string) string
}

// DefaultTypeMapper stores the entity name unless an explicit flag was given
type DefaultTypeMapper struct {
	flags    map[string]string
	entities map[string]string
}

// NewTypeMapper creates a mapper from entity name to flag overrides
func NewTypeMapper(flags map[string]string) *DefaultTypeMapper {
	m := &DefaultTypeMapper{flags: map[string]string{}, entities: map[string]string{}}
	for entity, flag := range flags {
		m.flags[entity] = flag
		m.entities[flag] = entity
	}
	return m
}

func (m *DefaultTypeMapper) TypeFlag(entity string) string {
	if flag, ok := m.flags[entity]; ok {
		return flag
	}
	return entity
}

func (m *DefaultTypeMapper) EntityFor(flag string) string {
	if entity, ok := m.entities[flag]; ok {
		return entity
	}
	return flag
}
