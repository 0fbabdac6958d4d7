package config

import (
	"errors"
	"os"
	"path/filepath"

	"gopkg.in/yaml.v3"
)

// Credential environment variable names. These are validated up front by the
// request handler before any network call is made.
const (
	EnvExaKey      = "EXA_API_KEY"
	EnvGoogleKey   = "GOOGLE_API_KEY"
	EnvPineconeKey = "PINECONE_API_KEY"
	EnvMapsKey     = "GOOGLE_MAPS_API_KEY"
)

// ServerConfig configures the HTTP listener.
type ServerConfig struct {
	Addr string `yaml:"addr"`
}

// GeminiConfig configures the generative-language client.
type GeminiConfig struct {
	BaseURL         string  `yaml:"base_url"`
	EmbeddingModel  string  `yaml:"embedding_model"`
	GenerationModel string  `yaml:"generation_model"`
	Temperature     float64 `yaml:"temperature"`
	MaxOutputTokens int     `yaml:"max_output_tokens"`
	TimeoutSecs     int     `yaml:"timeout_secs"`
}

// SearchConfig configures the content-search provider.
type SearchConfig struct {
	BaseURL     string `yaml:"base_url"`
	NumResults  int    `yaml:"num_results"`
	TimeoutSecs int    `yaml:"timeout_secs"`
}

// MapsConfig configures the points-of-interest provider.
type MapsConfig struct {
	BaseURL        string `yaml:"base_url"`
	RadiusMeters   int    `yaml:"radius_meters"`
	MaxAttractions int    `yaml:"max_attractions"`
	TimeoutSecs    int    `yaml:"timeout_secs"`
}

// PineconeConfig contains connection details for the Pinecone vector store.
type PineconeConfig struct {
	BaseURL     string `yaml:"base_url"`
	Cloud       string `yaml:"cloud"`
	Region      string `yaml:"region"`
	TimeoutSecs int    `yaml:"timeout_secs"`
}

// VectorStoreConfig selects the vector store implementation and index names.
type VectorStoreConfig struct {
	Type        string          `yaml:"type"`
	GuidesIndex string          `yaml:"guides_index"`
	ChunksIndex string          `yaml:"chunks_index"`
	Pinecone    *PineconeConfig `yaml:"pinecone,omitempty"`
}

// ChunkerConfig configures how normalized text is split into windows.
type ChunkerConfig struct {
	ChunkSizeWords   int `yaml:"chunk_size_words"`
	OverlapWords     int `yaml:"overlap_words"`
	MinChunkChars    int `yaml:"min_chunk_chars"`
	MinDocumentWords int `yaml:"min_document_words"`
}

// AppConfig is the root application configuration structure.
type AppConfig struct {
	Server      ServerConfig      `yaml:"server"`
	Qualifier   string            `yaml:"qualifier"`
	Gemini      GeminiConfig      `yaml:"gemini"`
	Search      SearchConfig      `yaml:"search"`
	Maps        MapsConfig        `yaml:"maps"`
	VectorStore VectorStoreConfig `yaml:"vector_store"`
	Chunker     ChunkerConfig     `yaml:"chunker"`
}

// Load reads a config from a specified path. If the file does not exist, returns defaults.
func Load(path string) (*AppConfig, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return defaultConfig(), nil
		}
		return nil, err
	}
	var cfg AppConfig
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, err
	}
	applyConfigDefaults(&cfg)
	return &cfg, nil
}

// LoadDefault tries ./config.yaml first, then ~/.config/yatra/config.yaml.
// If neither exists, it returns defaults.
func LoadDefault() (*AppConfig, string, error) {
	cwdPath := "config.yaml"
	if _, err := os.Stat(cwdPath); err == nil {
		cfg, err := Load(cwdPath)
		return cfg, cwdPath, err
	}
	userPath, err := defaultUserConfigPath()
	if err != nil {
		return nil, "", err
	}
	if _, err := os.Stat(userPath); err == nil {
		cfg, err := Load(userPath)
		return cfg, userPath, err
	}
	return defaultConfig(), "", nil
}

// Save writes the config to the given path, creating directories as needed.
func Save(path string, cfg *AppConfig) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return err
	}
	data, err := yaml.Marshal(cfg)
	if err != nil {
		return err
	}
	return os.WriteFile(path, data, 0o644)
}

// MissingKeys returns the names of required credential variables that are
// unset in the environment.
func MissingKeys() []string {
	var missing []string
	for _, key := range []string{EnvExaKey, EnvGoogleKey, EnvPineconeKey, EnvMapsKey} {
		if os.Getenv(key) == "" {
			missing = append(missing, key)
		}
	}
	return missing
}

func defaultUserConfigPath() (string, error) {
	home, err := os.UserHomeDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(home, ".config", "yatra", "config.yaml"), nil
}

func defaultConfig() *AppConfig {
	cfg := &AppConfig{}
	applyConfigDefaults(cfg)
	return cfg
}

func applyConfigDefaults(cfg *AppConfig) {
	if cfg.Server.Addr == "" {
		cfg.Server.Addr = ":8080"
	}
	if cfg.Qualifier == "" {
		cfg.Qualifier = "Nepal"
	}
	if cfg.Gemini.BaseURL == "" {
		cfg.Gemini.BaseURL = "https://generativelanguage.googleapis.com/v1beta"
	}
	if cfg.Gemini.EmbeddingModel == "" {
		cfg.Gemini.EmbeddingModel = "embedding-001"
	}
	if cfg.Gemini.GenerationModel == "" {
		cfg.Gemini.GenerationModel = "gemini-2.0-flash-lite"
	}
	if cfg.Gemini.Temperature == 0 {
		cfg.Gemini.Temperature = 0.5
	}
	if cfg.Gemini.MaxOutputTokens == 0 {
		cfg.Gemini.MaxOutputTokens = 4096
	}
	if cfg.Gemini.TimeoutSecs == 0 {
		cfg.Gemini.TimeoutSecs = 60
	}
	if cfg.Search.BaseURL == "" {
		cfg.Search.BaseURL = "https://api.exa.ai"
	}
	if cfg.Search.NumResults == 0 {
		cfg.Search.NumResults = 7
	}
	if cfg.Search.TimeoutSecs == 0 {
		cfg.Search.TimeoutSecs = 30
	}
	if cfg.Maps.BaseURL == "" {
		cfg.Maps.BaseURL = "https://maps.googleapis.com/maps/api"
	}
	if cfg.Maps.RadiusMeters == 0 {
		cfg.Maps.RadiusMeters = 5000
	}
	if cfg.Maps.MaxAttractions == 0 {
		cfg.Maps.MaxAttractions = 5
	}
	if cfg.Maps.TimeoutSecs == 0 {
		cfg.Maps.TimeoutSecs = 15
	}
	if cfg.VectorStore.Type == "" {
		cfg.VectorStore.Type = "pinecone"
	}
	if cfg.VectorStore.GuidesIndex == "" {
		cfg.VectorStore.GuidesIndex = "nepal-tourism-guides"
	}
	if cfg.VectorStore.ChunksIndex == "" {
		cfg.VectorStore.ChunksIndex = "nepal-tourism-chunks"
	}
	if cfg.VectorStore.Type == "pinecone" {
		if cfg.VectorStore.Pinecone == nil {
			cfg.VectorStore.Pinecone = &PineconeConfig{}
		}
		if cfg.VectorStore.Pinecone.BaseURL == "" {
			cfg.VectorStore.Pinecone.BaseURL = "https://api.pinecone.io"
		}
		if cfg.VectorStore.Pinecone.Cloud == "" {
			cfg.VectorStore.Pinecone.Cloud = "aws"
		}
		if cfg.VectorStore.Pinecone.Region == "" {
			cfg.VectorStore.Pinecone.Region = "us-east-1"
		}
		if cfg.VectorStore.Pinecone.TimeoutSecs == 0 {
			cfg.VectorStore.Pinecone.TimeoutSecs = 30
		}
	}
	if cfg.Chunker.ChunkSizeWords == 0 {
		cfg.Chunker.ChunkSizeWords = 800
	}
	if cfg.Chunker.OverlapWords == 0 {
		cfg.Chunker.OverlapWords = 200
	}
	if cfg.Chunker.MinChunkChars == 0 {
		cfg.Chunker.MinChunkChars = 100
	}
	if cfg.Chunker.MinDocumentWords == 0 {
		cfg.Chunker.MinDocumentWords = 30
	}
}
