package aws

import (
	"bufio"
	"errors"
	"io/fs"
	"path/filepath"
	"regexp"
	"sort"
	"strings"

	"github.com/spf13/afero"

	pkgtypes "github.com/vietdv277/gpuws/pkg/types"
)

var (
	credentialsSectionRe = regexp.MustCompile(`^\[([^\]]+)\]$`)
	configSectionRe      = regexp.MustCompile(`^\[profile\s+([^\]]+)\]$`)
	configDefaultRe      = regexp.MustCompile(`^\[default\]$`)
	regionRe             = regexp.MustCompile(`^\s*region\s*=\s*(.+)$`)
)

// ListProfiles reads the profiles named in <home>/.aws/credentials and
// <home>/.aws/config. Missing files are treated as empty. The default
// profile sorts first.
func ListProfiles(fsys afero.Fs, home string) ([]pkgtypes.AWSProfile, error) {
	byName := make(map[string]*pkgtypes.AWSProfile)

	creds, err := parseSharedFile(fsys, filepath.Join(home, ".aws", "credentials"), false)
	if err != nil {
		return nil, err
	}
	for i := range creds {
		byName[creds[i].Name] = &creds[i]
	}

	confs, err := parseSharedFile(fsys, filepath.Join(home, ".aws", "config"), true)
	if err != nil {
		return nil, err
	}
	for i := range confs {
		p := confs[i]
		if existing, ok := byName[p.Name]; ok {
			if existing.Region == "" {
				existing.Region = p.Region
			}
			continue
		}
		byName[p.Name] = &p
	}

	profiles := make([]pkgtypes.AWSProfile, 0, len(byName))
	for _, p := range byName {
		profiles = append(profiles, *p)
	}

	sort.Slice(profiles, func(i, j int) bool {
		if profiles[i].Name == "default" {
			return true
		}
		if profiles[j].Name == "default" {
			return false
		}
		return profiles[i].Name < profiles[j].Name
	})

	return profiles, nil
}

// HasProfile reports whether name appears in profiles
func HasProfile(profiles []pkgtypes.AWSProfile, name string) bool {
	for _, p := range profiles {
		if p.Name == name {
			return true
		}
	}
	return false
}

// parseSharedFile reads one INI-style shared file. Config files name their
// sections "[profile x]" except for "[default]".
func parseSharedFile(fsys afero.Fs, path string, isConfig bool) ([]pkgtypes.AWSProfile, error) {
	f, err := fsys.Open(path)
	if errors.Is(err, fs.ErrNotExist) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	defer f.Close()

	source := "credentials"
	if isConfig {
		source = "config"
	}

	var (
		profiles []pkgtypes.AWSProfile
		current  *pkgtypes.AWSProfile
	)
	flush := func() {
		if current != nil {
			profiles = append(profiles, *current)
		}
	}

	scanner := bufio.NewScanner(f)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" || strings.HasPrefix(line, "#") || strings.HasPrefix(line, ";") {
			continue
		}

		if name, ok := sectionName(line, isConfig); ok {
			flush()
			current = &pkgtypes.AWSProfile{Name: name, Source: source}
			continue
		}

		if current == nil {
			continue
		}
		if m := regionRe.FindStringSubmatch(line); len(m) == 2 {
			current.Region = strings.TrimSpace(m[1])
		}
	}
	flush()

	if err := scanner.Err(); err != nil {
		return nil, err
	}
	return profiles, nil
}

func sectionName(line string, isConfig bool) (string, bool) {
	if !isConfig {
		if m := credentialsSectionRe.FindStringSubmatch(line); len(m) == 2 {
			return strings.TrimSpace(m[1]), true
		}
		return "", false
	}
	if configDefaultRe.MatchString(line) {
		return "default", true
	}
	if m := configSectionRe.FindStringSubmatch(line); len(m) == 2 {
		return strings.TrimSpace(m[1]), true
	}
	return "", false
}
