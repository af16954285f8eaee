// utils/utils.go

package utils

import (
	"github.com/google/uuid"
)

func GenerateUUIDString() string {
	id := uuid.New()
	return id.String()
}
