package upgrade

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"regexp"
	"sort"
	"strconv"
	"strings"

	"gorm.io/gorm"
)

var (
	ErrNoMigrations      = errors.New("no migration scripts found")
	ErrDuplicateVersion  = errors.New("duplicate migration version")
	ErrVersionGap        = errors.New("migration versions are not contiguous")
	ErrEmptyMigration    = errors.New("empty migration script")
	ErrOutOfOrder        = errors.New("pending migration is older than an applied one")
	ErrInvalidScriptName = errors.New("invalid migration script name")
)

// scriptPattern 迁移脚本文件名: 0001_xxx.sql
var scriptPattern = regexp.MustCompile(`(?i)^(\d+)_.*\.sql$`)

// Migration 定义升级接口
type Migration interface {
	Version() string
	Description() string
	Up(db *gorm.DB, ctx context.Context) error
}

// Script is one versioned SQL file; its ledger version is the file name
type Script struct {
	Name   string
	Number int64
	SQL    string
}

var _ Migration = (*Script)(nil)

func (s *Script) Version() string { return s.Name }

// Description 文件名中版本号之后的部分
func (s *Script) Description() string {
	name := strings.TrimSuffix(s.Name, ".sql")
	if i := strings.IndexByte(name, '_'); i >= 0 {
		name = name[i+1:]
	}
	return strings.ReplaceAll(name, "_", " ")
}

// Up 在给定事务中执行脚本
func (s *Script) Up(db *gorm.DB, ctx context.Context) error {
	return db.WithContext(ctx).Exec(s.SQL).Error
}

// parseScriptNumber 解析文件名中的版本号
func parseScriptNumber(name string) (int64, bool) {
	m := scriptPattern.FindStringSubmatch(name)
	if m == nil {
		return 0, false
	}
	n, err := strconv.ParseInt(m[1], 10, 64)
	if err != nil {
		return 0, false
	}
	return n, true
}

// LoadScripts reads every versioned script at the root of fsys, sorted by number.
// A missing directory yields no scripts.
// LoadScripts 读取并按版本号排序迁移脚本
func LoadScripts(fsys fs.FS) ([]*Script, error) {
	entries, err := fs.ReadDir(fsys, ".")
	if errors.Is(err, fs.ErrNotExist) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("read migration dir: %w", err)
	}

	scripts := make([]*Script, 0, len(entries))
	for _, entry := range entries {
		if entry.IsDir() || !scriptPattern.MatchString(entry.Name()) {
			continue
		}
		n, ok := parseScriptNumber(entry.Name())
		if !ok {
			return nil, fmt.Errorf("%w: %s", ErrInvalidScriptName, entry.Name())
		}
		data, err := fs.ReadFile(fsys, entry.Name())
		if err != nil {
			return nil, fmt.Errorf("read migration %s: %w", entry.Name(), err)
		}
		scripts = append(scripts, &Script{Name: entry.Name(), Number: n, SQL: string(data)})
	}

	sort.SliceStable(scripts, func(i, j int) bool {
		if scripts[i].Number != scripts[j].Number {
			return scripts[i].Number < scripts[j].Number
		}
		return scripts[i].Name < scripts[j].Name
	})
	return scripts, nil
}

// ValidateScripts checks a sorted script list: non-empty set, unique and contiguous
// versions starting at the first one, and no blank script.
func ValidateScripts(scripts []*Script) error {
	if len(scripts) == 0 {
		return ErrNoMigrations
	}

	expected := scripts[0].Number
	seen := make(map[int64]string, len(scripts))
	for _, s := range scripts {
		if prev, ok := seen[s.Number]; ok {
			return fmt.Errorf("%w: %s and %s", ErrDuplicateVersion, prev, s.Name)
		}
		seen[s.Number] = s.Name

		if s.Number != expected {
			return fmt.Errorf("%w: expected=%d, actual=%d (%s)", ErrVersionGap, expected, s.Number, s.Name)
		}
		expected++

		if strings.TrimSpace(s.SQL) == "" {
			return fmt.Errorf("%w: %s", ErrEmptyMigration, s.Name)
		}
	}
	return nil
}

// Validate 读取并校验迁移目录
func Validate(fsys fs.FS) ([]*Script, error) {
	scripts, err := LoadScripts(fsys)
	if err != nil {
		return nil, err
	}
	if err := ValidateScripts(scripts); err != nil {
		return nil, err
	}
	return scripts, nil
}

// checkOrder rejects pending scripts numbered below the highest applied one
func checkOrder(scripts []*Script, applied map[string]bool) error {
	var maxApplied int64 = -1
	for name := range applied {
		if n, ok := parseScriptNumber(name); ok && n > maxApplied {
			maxApplied = n
		}
	}
	for _, s := range scripts {
		if applied[s.Name] {
			continue
		}
		if s.Number < maxApplied {
			return fmt.Errorf("%w: %s (latest applied version %d)", ErrOutOfOrder, s.Name, maxApplied)
		}
	}
	return nil
}
