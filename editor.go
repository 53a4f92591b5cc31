package main

import (
	"fmt"
	"io"
	"os"
	"os/exec"
	"strings"
)

const fallbackEditor = "vi"

// editorCommand picks the editor from the configuration, $VISUAL or $EDITOR,
// in that order. The result is split on whitespace so "code --wait" works.
func editorCommand(configured string) []string {
	for _, candidate := range []string{configured, os.Getenv("VISUAL"), os.Getenv("EDITOR")} {
		if fields := strings.Fields(candidate); len(fields) > 0 {
			return fields
		}
	}
	return []string{fallbackEditor}
}

func openEditor(configured, path string, stdin io.Reader, stdout, stderr io.Writer) error {
	argv := append(editorCommand(configured), path)
	cmd := exec.Command(argv[0], argv[1:]...)
	cmd.Stdin = stdin
	cmd.Stdout = stdout
	cmd.Stderr = stderr
	if err := cmd.Run(); err != nil {
		return fmt.Errorf("editor %s: %w", argv[0], err)
	}
	return nil
}
