package migrate

import (
	"bufio"
	"bytes"
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"strings"
)

var sqlFileRe = regexp.MustCompile(`^(\d{14})_([a-z0-9_]+)\.sql$`)

const (
	annotationUp        = "-- +goose Up"
	annotationDown      = "-- +goose Down"
	annotationStmtBegin = "-- +goose StatementBegin"
	annotationStmtEnd   = "-- +goose StatementEnd"
)

// ValidateDir checks every .sql file in dir: the file name, a unique version,
// an Up section before a Down section, and balanced statement blocks.
func ValidateDir(dir string) error {
	if dir == "" {
		return fmt.Errorf("dir is required")
	}
	entries, err := os.ReadDir(dir)
	if err != nil {
		return fmt.Errorf("read dir %q: %w", dir, err)
	}

	versions := map[string]string{}
	for _, e := range entries {
		name := e.Name()
		if e.IsDir() || !strings.HasSuffix(name, ".sql") {
			continue
		}
		m := sqlFileRe.FindStringSubmatch(name)
		if m == nil {
			return fmt.Errorf("invalid migration filename %q (expected YYYYMMDDHHMMSS_name.sql)", name)
		}
		if prev, ok := versions[m[1]]; ok {
			return fmt.Errorf("duplicate migration version %s in %q and %q", m[1], prev, name)
		}
		versions[m[1]] = name

		body, err := os.ReadFile(filepath.Join(dir, name))
		if err != nil {
			return fmt.Errorf("read %q: %w", name, err)
		}
		if err := validateAnnotations(body); err != nil {
			return fmt.Errorf("migration %q: %w", name, err)
		}
	}
	return nil
}

func validateAnnotations(body []byte) error {
	var upAt, downAt, open int
	line := 0
	sc := bufio.NewScanner(bytes.NewReader(body))
	for sc.Scan() {
		line++
		switch strings.TrimSpace(sc.Text()) {
		case annotationUp:
			upAt = line
		case annotationDown:
			if open != 0 {
				return fmt.Errorf("line %d: down annotation inside an open statement block", line)
			}
			downAt = line
		case annotationStmtBegin:
			if open != 0 {
				return fmt.Errorf("line %d: nested StatementBegin", line)
			}
			open = line
		case annotationStmtEnd:
			if open == 0 {
				return fmt.Errorf("line %d: StatementEnd without StatementBegin", line)
			}
			open = 0
		}
	}
	if err := sc.Err(); err != nil {
		return err
	}
	switch {
	case upAt == 0:
		return fmt.Errorf("missing %q", annotationUp)
	case downAt == 0:
		return fmt.Errorf("missing %q", annotationDown)
	case downAt < upAt:
		return fmt.Errorf("down section precedes up section")
	case open != 0:
		return fmt.Errorf("line %d: StatementBegin never closed", open)
	}
	return nil
}
