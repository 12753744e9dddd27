package models

import (
	"strings"

	"github.com/google/uuid"

	"github.com/julianstephens/tally/internal/constants"
)

// NewLocalID returns a fresh device-local id for an entity the server has not seen yet
func NewLocalID() string {
	return constants.LocalIDPrefix + uuid.New().String()
}

// IsLocalID reports whether id was generated on this device and is still unconfirmed
func IsLocalID(id string) bool {
	return strings.HasPrefix(id, constants.LocalIDPrefix)
}
