package utils

import (
	"errors"
	"fmt"
	"path/filepath"
	"strings"

	"github.com/imposter-project/imposter-protocol/pkg/logger"
)

// ValidatePath resolves path against baseDir and rejects anything that escapes it
func ValidatePath(path string, baseDir string) (string, error) {
	filePath := filepath.Clean(filepath.Join(baseDir, path))

	if !strings.HasPrefix(filePath, filepath.Clean(baseDir)+string(filepath.Separator)) {
		msg := fmt.Sprintf("file path escapes base directory: %s", filePath)
		logger.Errorln(msg)
		return "", errors.New(msg)
	}
	return filePath, nil
}
