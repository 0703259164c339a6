// Package main provides build targets for the breaklinks project using Mage.
//
// Usage:
//
//	mage build          Compile the breaklinks binary to bin/
//	mage install        Install breaklinks to GOPATH/bin
//	mage clean          Remove build artifacts
//	mage test:all       Run every test
//	mage test:race      Run every test with the race detector
//	mage test:property  Run the property tests with more checks
//	mage test:cover     Write coverage to bin/coverage.out
//	mage lint           Run golangci-lint
//	mage vet            Run go vet
//	mage stats          Print Go LOC as JSON
package main

import (
	"os"
	"path/filepath"

	"github.com/magefile/mage/mg"
	"github.com/magefile/mage/sh"
)

const (
	binGo       = "go"
	binaryName  = "breaklinks"
	binaryDir   = "bin"
	cmdDir      = "./cmd/breaklinks"
	versionFlag = "github.com/mesh-intelligence/breaklinks/internal/cli.Version"
)

// Build compiles the breaklinks binary to bin/. $BREAKLINKS_VERSION, when
// set, is stamped into the binary.
func Build() error {
	if err := os.MkdirAll(binaryDir, 0o755); err != nil {
		return err
	}
	args := []string{"build", "-v", "-o", filepath.Join(binaryDir, binaryName)}
	if v := os.Getenv("BREAKLINKS_VERSION"); v != "" {
		args = append(args, "-ldflags", "-X "+versionFlag+"="+v)
	}
	return sh.RunV(binGo, append(args, cmdDir)...)
}

// Install builds and copies the binary to GOPATH/bin.
func Install() error {
	mg.Deps(Build)
	gopath, err := sh.Output(binGo, "env", "GOPATH")
	if err != nil {
		return err
	}
	src := filepath.Join(binaryDir, binaryName)
	dst := filepath.Join(gopath, "bin", binaryName)
	return sh.Copy(dst, src)
}

// Clean removes build artifacts.
func Clean() error {
	if err := os.RemoveAll(binaryDir); err != nil {
		return err
	}
	return sh.RunV(binGo, "clean")
}
