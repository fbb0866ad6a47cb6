package cmd

import (
	"bufio"
	"bytes"
	"path/filepath"
	"strings"

	"github.com/mattn/go-shellwords"
	"github.com/pkg/errors"
	"github.com/shibukawa/configdir"
)

const flagsFile = "flags"

var configDirs = configdir.New("binload", "")

func configPath() string {
	folder := configDirs.QueryFolderContainsFile(flagsFile)
	if folder == nil {
		return ""
	}
	return filepath.Join(folder.Path, flagsFile)
}

// DefaultArgs returns the user's default options for a subcommand. Each line
// of the flags file is a subcommand name (or * for every subcommand) followed
// by shell-quoted arguments; # starts a comment.
func DefaultArgs(name string) ([]string, error) {
	folder := configDirs.QueryFolderContainsFile(flagsFile)
	if folder == nil {
		return nil, nil
	}
	data, err := folder.ReadFile(flagsFile)
	if err != nil {
		return nil, errors.Wrap(err, "failed to read default flags")
	}
	return parseDefaults(data, name)
}

func parseDefaults(data []byte, name string) ([]string, error) {
	var ret []string
	scanner := bufio.NewScanner(bytes.NewReader(data))
	for lineno := 1; scanner.Scan(); lineno++ {
		line := strings.TrimSpace(scanner.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		words, err := shellwords.Parse(line)
		if err != nil {
			return nil, errors.Wrapf(err, "%s:%d", flagsFile, lineno)
		}
		if len(words) == 0 || (words[0] != "*" && words[0] != name) {
			continue
		}
		ret = append(ret, words[1:]...)
	}
	return ret, errors.WithStack(scanner.Err())
}
