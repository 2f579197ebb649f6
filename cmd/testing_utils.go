// Package cmd contains testing utilities shared between command tests.
// This file provides helpers for isolating certificate stores, building
// package fixtures and running commands against captured output.
package cmd

import (
	"bytes"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sync"
	"testing"

	"github.com/PolarWolf314/pkgseal/internal/certificates"
	"github.com/PolarWolf314/pkgseal/internal/configs"
	logger "github.com/PolarWolf314/pkgseal/internal/logging"

	"github.com/spf13/cobra"
)

const testPassword = "secret"

var (
	testCertOnce sync.Once
	testCert     *certificates.Certificate
	testCertErr  error
)

// setupTestEnvironment points every certificate store and audit log at a
// temp directory and resets command state once the test ends.
func setupTestEnvironment(t *testing.T) {
	t.Helper()
	original := configs.Stores
	root := t.TempDir()
	configs.Stores = &configs.StoreSettings{
		UserStoresPath:    filepath.Join(root, "CurrentUser"),
		MachineStoresPath: filepath.Join(root, "LocalMachine"),
		Password:          "test-password",
		FileOnly:          true,
	}
	ResetGlobalState()
	t.Cleanup(func() {
		configs.Stores = original
		ResetGlobalState()
	})
}

// testCertificate returns a certificate shared by every test in the package.
func testCertificate(t *testing.T) *certificates.Certificate {
	t.Helper()
	testCertOnce.Do(func() {
		testCert, testCertErr = certificates.CreateSelfSigned(certificates.CreateOptions{CommonName: "cmd tests"})
	})
	if testCertErr != nil {
		t.Fatalf("CreateSelfSigned failed: %v", testCertErr)
	}
	return testCert
}

func writeTestFile(t *testing.T, path string, data []byte) {
	t.Helper()
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		t.Fatalf("Failed to create directory: %v", err)
	}
	if err := os.WriteFile(path, data, 0600); err != nil {
		t.Fatalf("Failed to write %s: %v", path, err)
	}
}

// writeTestContainer writes the shared certificate as a PKCS #12 container.
func writeTestContainer(t *testing.T, path string) {
	t.Helper()
	data, err := testCertificate(t).EncodePKCS12(testPassword)
	if err != nil {
		t.Fatalf("EncodePKCS12 failed: %v", err)
	}
	writeTestFile(t, path, data)
}

const testManifest = `[package]
id = "Cmd.Package"
output = "out"
decryptor = "tools/decryptor"

[certificate]
file = "signing.pfx"
password = %q

[[files]]
source = "src/*.txt"
destination = "content"
`

// createTestProject lays out a project with two text files and a manifest
// sealed to the shared certificate, and returns its root.
func createTestProject(t *testing.T) string {
	t.Helper()
	root := t.TempDir()
	writeTestFile(t, filepath.Join(root, "src", "readme.txt"), []byte("read me first"))
	writeTestFile(t, filepath.Join(root, "src", "license.txt"), []byte("all rights reserved"))
	writeTestFile(t, filepath.Join(root, "tools", "decryptor"), []byte("#!/bin/sh\n"))
	writeTestContainer(t, filepath.Join(root, "signing.pfx"))
	writeTestFile(t, filepath.Join(root, configs.DefaultManifestFile), []byte(fmt.Sprintf(testManifest, testPassword)))
	return root
}

// stagingDir returns where encrypt stages the files of a test project.
func stagingDir(root string) string {
	return filepath.Join(root, "out", configs.StagingDirName)
}

// createTestCLI creates a complete CLI instance that runs args with its
// output captured in stdout and stderr.
func createTestCLI(args []string, stdout, stderr io.Writer) *cobra.Command {
	Logger = logger.Logger{Out: stdout, ErrOut: stderr}

	rootCmd := &cobra.Command{
		Use:   "pkgseal",
		Short: "pkgseal - Encrypts package files for certificate holders.",
	}
	rootCmd.AddCommand(Commands()...)
	rootCmd.SetOut(stdout)
	rootCmd.SetErr(stderr)
	rootCmd.SetArgs(args)
	return rootCmd
}

// runCLI executes args and returns the combined output.
func runCLI(t *testing.T, args ...string) (string, error) {
	t.Helper()
	var out bytes.Buffer
	err := createTestCLI(args, &out, &out).Execute()
	return out.String(), err
}
