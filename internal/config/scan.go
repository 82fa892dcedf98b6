package config

import (
	"os"
	"path/filepath"
	"sort"
	"strings"

	"gopkg.in/yaml.v3"
)

// ScriptFileInfo describes a motion script found on disk.
type ScriptFileInfo struct {
	Filename string `json:"filename"`
	Name     string `json:"name"`
	Mode     string `json:"mode"`
}

type scriptHeader struct {
	Name string `yaml:"name"`
	Mode string `yaml:"mode"`
}

// ScanScripts lists the YAML scripts under dir. Unreadable files are listed
// under their file name.
func ScanScripts(dir string) ([]ScriptFileInfo, error) {
	scripts := []ScriptFileInfo{}
	if dir == "" {
		return scripts, nil
	}
	if _, err := os.Stat(dir); err != nil {
		if os.IsNotExist(err) {
			return scripts, nil
		}
		return nil, err
	}

	_ = filepath.WalkDir(dir, func(path string, d os.DirEntry, walkErr error) error {
		if walkErr != nil || d == nil || d.IsDir() {
			return nil
		}
		ext := strings.ToLower(filepath.Ext(d.Name()))
		if ext != ".yaml" && ext != ".yml" {
			return nil
		}
		rel, err := filepath.Rel(dir, path)
		if err != nil {
			rel = d.Name()
		}
		info := ScriptFileInfo{Filename: rel, Name: d.Name()}
		if header, err := readScriptHeader(path); err == nil {
			if header.Name != "" {
				info.Name = header.Name
			}
			info.Mode = header.Mode
		}
		scripts = append(scripts, info)
		return nil
	})

	sort.Slice(scripts, func(i, j int) bool {
		return scripts[i].Filename < scripts[j].Filename
	})
	return scripts, nil
}

func readScriptHeader(path string) (scriptHeader, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return scriptHeader{}, err
	}
	var header scriptHeader
	if err := yaml.Unmarshal(data, &header); err != nil {
		return scriptHeader{}, err
	}
	return header, nil
}
