package main

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestRun_RejectsUnknownType(t *testing.T) {
	code := run(context.Background(), "xml", "somefile", false)
	assert.Equal(t, exitValidationError, code)
}

func TestRun_RejectsMissingFile(t *testing.T) {
	code := run(context.Background(), "csv", "", false)
	assert.Equal(t, exitValidationError, code)
}

func TestRun_RejectsUnreadableFile(t *testing.T) {
	dir := t.TempDir()
	code := run(context.Background(), "csv", filepath.Join(dir, "does-not-exist.csv"), false)
	assert.Equal(t, exitValidationError, code)
}

func TestAverageDocBytes_EmptyDefaultsToMinimum(t *testing.T) {
	assert.Equal(t, int64(1024), averageDocBytes(nil))
}

func TestMain_ExitCodesAreDistinct(t *testing.T) {
	codes := map[int]bool{
		exitSuccess:         true,
		exitValidationError: true,
		exitUpstreamUnavail: true,
		exitPartialFailure:  true,
	}
	assert.Len(t, codes, 4)
}

func TestRun_PanicsNeverEscapeOnMissingEnv(t *testing.T) {
	// config.Load() falls back to defaults when no environment variables
	// are set, so it must not error out before the -type/-file validation
	// even in a bare CI environment.
	os.Unsetenv("AZURE_FOUNDRY_ENDPOINT")
	code := run(context.Background(), "", "", false)
	assert.Equal(t, exitValidationError, code)
}
