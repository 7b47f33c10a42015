package tui

import (
	"strings"

	"github.com/atotto/clipboard"
)

func copyToClipboard(s string) error {
	return clipboard.WriteAll(strings.ReplaceAll(s, "\r\n", "\n"))
}

func readClipboard() (string, error) {
	return clipboard.ReadAll()
}
