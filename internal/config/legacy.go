package config

import (
	"bufio"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"codeberg.org/mutker/yubikill/internal/errors"
	"codeberg.org/mutker/yubikill/internal/power"
)

const legacyName = ".yubikill"

// DefaultLegacyPath is the whitespace separated "key value" file read when
// no TOML configuration exists
func DefaultLegacyPath() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return ""
	}

	return filepath.Join(home, legacyName)
}

// readLegacy parses the "delay", "i3" and "action" keys. Lines starting
// with '#' are comments.
func readLegacy(path string) (map[string]any, error) {
	errFactory := errors.New()

	f, err := os.Open(path)
	if err != nil {
		return nil, errFactory.Wrap(errors.ErrReadConfig, err)
	}
	defer f.Close()

	syntaxError := func(line int, reason string) error {
		return errFactory.WithData(errors.ErrReadConfig, struct {
			Path   string
			Line   int
			Reason string
		}{path, line, reason})
	}

	settings := make(map[string]any)
	scanner := bufio.NewScanner(f)
	for line := 1; scanner.Scan(); line++ {
		text := strings.TrimSpace(scanner.Text())
		if text == "" || strings.HasPrefix(text, "#") {
			continue
		}

		fields := strings.Fields(text)
		if len(fields) != 2 {
			return nil, syntaxError(line, "expected key and value")
		}
		key, val := fields[0], fields[1]

		switch key {
		case "delay":
			n, err := strconv.Atoi(val)
			if err != nil {
				return nil, errFactory.WithData(errors.ErrInvalidDelay, val)
			}
			settings["delay"] = n
		case "i3":
			n, err := strconv.Atoi(val)
			if err != nil {
				return nil, syntaxError(line, "i3 takes 0 or 1")
			}
			settings["notify"] = n != 0
		case "action":
			if val != power.Shutdown.String() && val != power.Hibernate.String() {
				return nil, errFactory.WithData(errors.ErrInvalidAction, val)
			}
			settings["action"] = val
		default:
			return nil, syntaxError(line, "unknown key "+key)
		}
	}
	if err := scanner.Err(); err != nil {
		return nil, errFactory.Wrap(errors.ErrReadConfig, err)
	}

	return settings, nil
}
