// Package filecheck chains assertions about a path for tests.
package filecheck

import (
	"errors"
	"fmt"
	"os"
)

// Checker collects checks on one path.
type Checker struct {
	Path   string
	checks []func(string) error
}

// New creates a Checker for path.
func New(path string) *Checker {
	return &Checker{Path: path}
}

// Check runs every check and joins the failures.
func (c *Checker) Check() error {
	var errs []error
	for _, check := range c.checks {
		if err := check(c.Path); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

// IsFile checks that the path is a regular file.
func (c *Checker) IsFile() *Checker {
	return c.add(func(path string) error {
		info, err := stat(path)
		if err != nil {
			return err
		}
		if !info.Mode().IsRegular() {
			return fmt.Errorf("expected regular file: %s", path)
		}
		return nil
	})
}

// IsDir checks that the path is a directory.
func (c *Checker) IsDir() *Checker {
	return c.add(func(path string) error {
		info, err := stat(path)
		if err != nil {
			return err
		}
		if !info.IsDir() {
			return fmt.Errorf("expected directory: %s", path)
		}
		return nil
	})
}

// Missing checks that nothing exists at the path.
func (c *Checker) Missing() *Checker {
	return c.add(func(path string) error {
		if _, err := os.Lstat(path); err == nil {
			return fmt.Errorf("expected %s to be missing", path)
		}
		return nil
	})
}

// ModeEquals checks the permission bits.
func (c *Checker) ModeEquals(perm os.FileMode) *Checker {
	return c.add(func(path string) error {
		info, err := stat(path)
		if err != nil {
			return err
		}
		if got := info.Mode().Perm(); got != perm.Perm() {
			return fmt.Errorf("mode mismatch for %s: want %o got %o", path, perm.Perm(), got)
		}
		return nil
	})
}

// Content checks the full file content.
func (c *Checker) Content(want string) *Checker {
	return c.add(func(path string) error {
		b, err := os.ReadFile(path)
		if err != nil {
			return err
		}
		if got := string(b); got != want {
			return fmt.Errorf("file %s content mismatch\nwant:\n%q\n\ngot:\n%q", path, want, got)
		}
		return nil
	})
}

func (c *Checker) add(check func(string) error) *Checker {
	c.checks = append(c.checks, check)
	return c
}

func stat(path string) (os.FileInfo, error) {
	info, err := os.Lstat(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, fmt.Errorf("path does not exist: %s", path)
		}
		return nil, fmt.Errorf("lstat %s: %w", path, err)
	}
	return info, nil
}
