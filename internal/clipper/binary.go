package clipper

import (
	"fmt"
	"os"
	"os/exec"
)

// FFmpegBinaryEnv overrides ffmpeg binary discovery.
const FFmpegBinaryEnv = "PODFLOW_FFMPEG_BINARY"

// FindFFmpeg locates the ffmpeg binary used for clip extraction.
// Search order:
//  1. PODFLOW_FFMPEG_BINARY environment variable
//  2. ./ffmpeg (current directory, useful for development)
//  3. ffmpeg on PATH (via exec.LookPath)
//
// Extraction cannot run without ffmpeg, so callers treat an error here as
// fatal at startup.
func FindFFmpeg() (string, error) {
	if envPath := os.Getenv(FFmpegBinaryEnv); envPath != "" {
		if isExecutable(envPath) {
			return envPath, nil
		}
	}

	if isExecutable("./ffmpeg") {
		return "./ffmpeg", nil
	}

	if path, err := exec.LookPath("ffmpeg"); err == nil {
		return path, nil
	}

	return "", fmt.Errorf("ffmpeg binary not found (set %s or install ffmpeg on PATH)", FFmpegBinaryEnv)
}

// isExecutable checks if a file exists and is executable by the current user.
func isExecutable(path string) bool {
	info, err := os.Stat(path)
	if err != nil {
		return false
	}
	if info.IsDir() {
		return false
	}
	return info.Mode()&0111 != 0
}
