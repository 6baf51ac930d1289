package config

import "os"

// APIKeySource records where a secret was picked up from.
type APIKeySource string

const (
	KeySourceEnv    APIKeySource = "env"
	KeySourceConfig APIKeySource = "config"
	KeySourceNone   APIKeySource = "none"
)

// KeyStatus describes one secret without exposing it.
type KeyStatus struct {
	Name   string       `json:"name"`
	Source APIKeySource `json:"source"`
	IsSet  bool         `json:"is_set"`
	Masked string       `json:"masked,omitempty"` // e.g., "nv-...abc"
}

// FileStatus describes one data prerequisite: a listing CSV or the bar
// cache directory.
type FileStatus struct {
	Name   string `json:"name"`
	Path   string `json:"path"`
	IsDir  bool   `json:"is_dir,omitempty"`
	Exists bool   `json:"exists"`
}

// CheckAPIKeys reports the status of the secrets the agent can use. The
// CLOVA key is optional for `serve` (each request carries its own bearer)
// but required for `ask` and for embedding-backed ticker resolution.
func CheckAPIKeys(cfg *Config) []KeyStatus {
	return []KeyStatus{
		keyStatus("CLOVA Studio API Key", cfg.LLM.APIKey, "KRXAGENT_LLM_API_KEY"),
	}
}

// CheckDataFiles reports whether the listing catalog inputs and the bar
// cache directory are in place. A missing alias CSV only disables alias
// lookups; missing listing CSVs are fatal at startup.
func CheckDataFiles(cfg *Config) []FileStatus {
	return []FileStatus{
		fileStatus("KOSPI listings", cfg.Data.KospiCSV, false),
		fileStatus("KOSDAQ listings", cfg.Data.KosdaqCSV, false),
		fileStatus("Ticker aliases", cfg.Data.AliasCSV, false),
		fileStatus("Bar cache dir", cfg.Data.CacheDir, true),
	}
}

func keyStatus(name, value, envVar string) KeyStatus {
	st := KeyStatus{Name: name, IsSet: value != ""}
	switch {
	case value == "":
		st.Source = KeySourceNone
	case os.Getenv(envVar) != "":
		st.Source = KeySourceEnv
	default:
		st.Source = KeySourceConfig
	}
	if st.IsSet {
		st.Masked = maskKey(value)
	}
	return st
}

func fileStatus(name, path string, wantDir bool) FileStatus {
	st := FileStatus{Name: name, Path: path, IsDir: wantDir}
	info, err := os.Stat(path)
	st.Exists = err == nil && info.IsDir() == wantDir
	return st
}

// maskKey shows only the first and last three characters of a secret.
func maskKey(key string) string {
	if len(key) <= 8 {
		return "***"
	}
	return key[:3] + "..." + key[len(key)-3:]
}
