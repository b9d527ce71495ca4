package system

import (
	"fmt"
	"strings"

	"github.com/google/uuid"
)

const (
	AcquisitionPrefix = "acq_"
)

func GenerateUUID() string {
	return uuid.New().String()
}

// GenerateAcquisitionID returns the correlation id a host hands to a session
func GenerateAcquisitionID() string {
	return fmt.Sprintf("%s%s", AcquisitionPrefix, strings.ReplaceAll(uuid.New().String(), "-", ""))
}
