package config

import (
	"errors"
	"io/fs"
	"os"
	"regexp"
	"strings"

	"github.com/joho/godotenv"
)

// readDotEnv returns the variables defined in path. A missing file is not an error.
func readDotEnv(path string) (map[string]string, error) {
	if strings.TrimSpace(path) == "" {
		return nil, nil
	}
	vars, err := godotenv.Read(path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, nil
		}
		return nil, err
	}
	return vars, nil
}

var envRef = regexp.MustCompile(`\$\{([A-Za-z_][A-Za-z0-9_]*)\}`)

// expandEnv replaces ${VAR} references. Any other "$" is left alone, so secrets may
// contain it. The process environment wins over the .env file; unknown variables
// expand to "".
func expandEnv(data []byte, dotenv map[string]string) []byte {
	return envRef.ReplaceAllFunc(data, func(ref []byte) []byte {
		key := string(ref[2 : len(ref)-1])
		if v, ok := os.LookupEnv(key); ok {
			return []byte(v)
		}
		return []byte(dotenv[key])
	})
}
