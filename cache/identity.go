package cache

import (
	"strings"

	"gorm.io/activeobjects/utils"
)

// Identity identifies one entity: its type name and normalised primary key
type Identity struct {
	Type string
	ID   interface{}
}

var keyEscaper = strings.NewReplacer(`\`, `\\`, ":", `\:`, ",", `\,`)

// escapeKey escapes the separators of relation keys, so string keys holding "::" or "," can't
// collide with another key
func escapeKey(segment string) string {
	return keyEscaper.Replace(segment)
}

// Key stable string form, used as the identity part of cache keys
func (i Identity) Key() string {
	return escapeKey(i.Type) + KeySeparator + escapeKey(utils.ToStringKey(i.ID))
}

func (i Identity) String() string {
	return i.Type + "(" + utils.ToStringKey(i.ID) + ")"
}
