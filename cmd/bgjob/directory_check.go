package main

import (
	"errors"
	"fmt"
	"os"
	"strings"

	"golang.org/x/sys/unix"
	"golang.org/x/text/cases"
	"golang.org/x/text/language"

	"bgjob/internal/jobs"
)

type directoryCheck struct {
	Name   string `json:"name"`
	Passed bool   `json:"passed"`
	Detail string `json:"detail"`
}

// checkDirectoryAccess verifies that path is a directory the current user can
// read, write, and traverse.
func checkDirectoryAccess(name, path string) directoryCheck {
	info, err := os.Stat(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return directoryCheck{Name: name, Detail: fmt.Sprintf("%s (error: does not exist)", path)}
		}
		return directoryCheck{Name: name, Detail: fmt.Sprintf("%s (error: stat: %v)", path, err)}
	}
	if !info.IsDir() {
		return directoryCheck{Name: name, Detail: fmt.Sprintf("%s (error: is not a directory)", path)}
	}
	if err := unix.Access(path, unix.R_OK|unix.W_OK|unix.X_OK); err != nil {
		return directoryCheck{Name: name, Detail: fmt.Sprintf("%s (error: insufficient permissions: %v)", path, err)}
	}
	return directoryCheck{Name: name, Passed: true, Detail: fmt.Sprintf("%s (read/write ok)", path)}
}

func (c directoryCheck) kind() statusKind {
	if c.Passed {
		return statusOK
	}
	return statusError
}

// statusTitle renders a status for tables, e.g. "in_progress" as "In Progress".
func statusTitle(status jobs.Status) string {
	return cases.Title(language.English).String(strings.ReplaceAll(string(status), "_", " "))
}
