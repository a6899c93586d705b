package models

import "github.com/google/uuid"

// ensureID assigns a v4 id before insert so rows never depend on a database
// default (sqlite has none).
func ensureID(id *uuid.UUID) {
	if *id == uuid.Nil {
		*id = uuid.New()
	}
}
