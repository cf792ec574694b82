package file

import (
	"bufio"
	"fmt"
	"os"
	"path/filepath"
	"strings"
)

// ReadList reads a list file and returns its non-empty, non-comment lines in
// order. Lines that are empty or start with '#' after trimming are skipped.
func ReadList(path string) ([]string, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open %s: %w", path, err)
	}
	defer f.Close()

	var out []string
	scanner := bufio.NewScanner(f)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		out = append(out, line)
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("read %s: %w", path, err)
	}
	return out, nil
}

// Expand resolves input arguments into file paths. Arguments prefixed with
// '@' name a list file (see ReadList) whose entries are expanded in turn;
// arguments containing glob metacharacters are matched with filepath.Glob;
// anything else is returned as-is. Duplicates are dropped, first occurrence
// wins.
func Expand(args []string) ([]string, error) {
	var out []string
	seen := make(map[string]struct{}, len(args))
	add := func(p string) {
		if _, ok := seen[p]; ok {
			return
		}
		seen[p] = struct{}{}
		out = append(out, p)
	}

	var expand func(args []string, depth int) error
	expand = func(args []string, depth int) error {
		for _, a := range args {
			switch {
			case strings.HasPrefix(a, "@"):
				if depth > 0 {
					return fmt.Errorf("nested list file %s", a)
				}
				lines, err := ReadList(a[1:])
				if err != nil {
					return err
				}
				if err := expand(lines, depth+1); err != nil {
					return err
				}
			case strings.ContainsAny(a, "*?["):
				matches, err := filepath.Glob(a)
				if err != nil {
					return fmt.Errorf("glob %q: %w", a, err)
				}
				for _, m := range matches {
					add(m)
				}
			default:
				add(a)
			}
		}
		return nil
	}

	if err := expand(args, 0); err != nil {
		return nil, err
	}
	return out, nil
}
