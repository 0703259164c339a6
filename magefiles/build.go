// Copyright (c) 2026 Petar Djukic. All rights reserved.
// SPDX-License-Identifier: MIT

package main

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/magefile/mage/mg"
	"github.com/magefile/mage/sh"
)

// Smoke builds the binary and drives it through init, import and count in
// a scratch directory.
func Smoke() error {
	mg.Deps(Build)
	dir, err := os.MkdirTemp("", "breaklinks-smoke-")
	if err != nil {
		return err
	}
	defer os.RemoveAll(dir)

	doc := filepath.Join(dir, "content.yaml")
	content := "items:\n  - id: home\n    name: Home\n  - id: page\n    name: Page\n    fields:\n      - {id: Target, type: droplink, value: home}\n"
	if err := os.WriteFile(doc, []byte(content), 0o644); err != nil {
		return err
	}

	bin, err := filepath.Abs(filepath.Join(binaryDir, binaryName))
	if err != nil {
		return err
	}
	run := func(args ...string) (string, error) {
		base := []string{"--config-dir", filepath.Join(dir, "config"), "--data-dir", filepath.Join(dir, "data")}
		return sh.Output(bin, append(base, args...)...)
	}
	if _, err := run("init"); err != nil {
		return err
	}
	if _, err := run("import", doc); err != nil {
		return err
	}
	out, err := run("count", "home")
	if err != nil {
		return err
	}
	if out != "1" {
		return fmt.Errorf("smoke: count home = %q, want 1", out)
	}
	fmt.Println("smoke test passed")
	return nil
}
