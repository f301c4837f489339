package pty

import (
	"os"
	"path/filepath"
)

// resolveExecutable finds file the way the pseudo console launcher does:
// an existing regular file is used as given, otherwise the first regular
// file named file in one of the pathList directories wins.
func resolveExecutable(file, pathList string) (string, error) {
	if isRegularFile(file) {
		return file, nil
	}
	if !filepath.IsAbs(file) {
		for _, dir := range filepath.SplitList(pathList) {
			if dir == "" {
				continue
			}
			candidate := filepath.Join(dir, file)
			if isRegularFile(candidate) {
				return candidate, nil
			}
		}
	}
	return "", &Error{Op: "connect", Kind: ShellNotFound, Msg: "File not found: " + file}
}

func isRegularFile(name string) bool {
	st, err := os.Stat(name)
	return err == nil && st.Mode().IsRegular()
}
