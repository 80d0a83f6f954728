package config

import (
	"errors"
	"fmt"
	"io"
	"log"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v2"

	"leiloes-caixa/models"
	"leiloes-caixa/parser"
)

const (
	DefaultPath       = "config/config.yaml"
	DefaultCaixaURL   = "https://venda-imoveis.caixa.gov.br/sistema/download-lista.asp"
	BackendGCS        = "gcs"
	BackendMinio      = "minio"
	BackendLocal      = "local"
	defaultFileSuffix = ".csv"
)

// ErrMissingKey is wrapped by Error when a required key is absent or empty.
var ErrMissingKey = errors.New("missing required key")

// Error is a configuration problem detected at startup.
type Error struct {
	Path string
	Key  string
	Err  error
}

func (e *Error) Error() string {
	if e.Key != "" {
		return fmt.Sprintf("config %s: %s: %v", e.Path, e.Key, e.Err)
	}
	return fmt.Sprintf("config %s: %v", e.Path, e.Err)
}

func (e *Error) Unwrap() error { return e.Err }

// Config holds all application configuration. It is built once by Load and
// handed to every component; nothing else reads the configuration file.
type Config struct {
	Bucket      string        `yaml:"gcp_bucket"`
	Estados     []string      `yaml:"estados"`
	Dialect     string        `yaml:"dialect"`
	OnBadLines  string        `yaml:"on_bad_lines"`
	Encodings   []string      `yaml:"encodings"`
	ScratchDir  string        `yaml:"scratch_dir"`
	RegionDelay time.Duration `yaml:"region_delay"`
	DatabaseURL string        `yaml:"database_url"`
	ReportPath  string        `yaml:"report_path"`

	Storage StorageConfig `yaml:"storage"`
	Fetcher FetcherConfig `yaml:"fetcher"`

	path      string
	regions   []models.RegionCode
	parseOpts parser.Options
}

// StorageConfig selects and configures the object storage backend.
type StorageConfig struct {
	Backend         string      `yaml:"backend"`
	CredentialsFile string      `yaml:"credentials_file"`
	Minio           MinioConfig `yaml:"minio"`
	Local           LocalConfig `yaml:"local"`
}

type MinioConfig struct {
	Endpoint  string `yaml:"endpoint"`
	AccessKey string `yaml:"access_key"`
	SecretKey string `yaml:"secret_key"`
	UseSSL    bool   `yaml:"use_ssl"`
}

type LocalConfig struct {
	Root string `yaml:"root"`
}

// FetcherConfig drives the browser session against the portal.
type FetcherConfig struct {
	URL             string        `yaml:"url"`
	ElementTimeout  time.Duration `yaml:"element_timeout"`
	DownloadTimeout time.Duration `yaml:"download_timeout"`
	PollInterval    time.Duration `yaml:"poll_interval"`
	FileSuffix      string        `yaml:"file_suffix"`
	Headless        bool          `yaml:"headless"`
	ChromeBin       string        `yaml:"chrome_bin"`
}

func defaults() *Config {
	return &Config{
		Dialect:     parser.DialectComma.Name,
		OnBadLines:  parser.BadLinesError.String(),
		Encodings:   []string{string(parser.UTF8), string(parser.Latin1)},
		ScratchDir:  os.TempDir(),
		RegionDelay: 2 * time.Second,
		Storage: StorageConfig{
			Backend: BackendGCS,
		},
		Fetcher: FetcherConfig{
			URL:             DefaultCaixaURL,
			ElementTimeout:  10 * time.Second,
			DownloadTimeout: 30 * time.Second,
			PollInterval:    500 * time.Millisecond,
			FileSuffix:      defaultFileSuffix,
			Headless:        true,
		},
	}
}

// Load reads the .env file (if any) and the YAML file at path, then
// validates the result. Unknown keys and missing required keys are errors.
func Load(path string) (*Config, error) {
	if err := godotenv.Load(); err != nil {
		log.Println("[config] No .env file found, falling back to system env vars")
	}

	f, err := os.Open(path)
	if err != nil {
		return nil, &Error{Path: path, Err: err}
	}
	defer f.Close()

	return parse(path, f)
}

func parse(path string, r io.Reader) (*Config, error) {
	cfg := defaults()
	cfg.path = path

	dec := yaml.NewDecoder(r)
	dec.SetStrict(true)
	if err := dec.Decode(cfg); err != nil && err != io.EOF {
		return nil, &Error{Path: path, Err: err}
	}

	cfg.applyEnv()
	if err := cfg.resolve(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (c *Config) applyEnv() {
	c.Bucket = getEnv("GCP_BUCKET", c.Bucket)
	c.DatabaseURL = getEnv("DATABASE_URL", c.DatabaseURL)
	c.Fetcher.ChromeBin = getEnv("CHROME_BIN", c.Fetcher.ChromeBin)
	c.Fetcher.Headless = getEnvBool("HEADLESS", c.Fetcher.Headless)
	c.Storage.Minio.AccessKey = getEnv("MINIO_ACCESS_KEY", c.Storage.Minio.AccessKey)
	c.Storage.Minio.SecretKey = getEnv("MINIO_SECRET_KEY", c.Storage.Minio.SecretKey)
}

func (c *Config) resolve() error {
	if strings.TrimSpace(c.Bucket) == "" {
		return &Error{Path: c.path, Key: "gcp_bucket", Err: ErrMissingKey}
	}

	regions, err := normaliseRegions(c.Estados)
	if err != nil {
		return &Error{Path: c.path, Key: "estados", Err: err}
	}
	c.regions = regions

	dialect, err := parser.ParseDialect(c.Dialect)
	if err != nil {
		return &Error{Path: c.path, Key: "dialect", Err: err}
	}
	badLines, err := parser.ParseBadLines(c.OnBadLines)
	if err != nil {
		return &Error{Path: c.path, Key: "on_bad_lines", Err: err}
	}
	if len(c.Encodings) == 0 {
		return &Error{Path: c.path, Key: "encodings", Err: ErrMissingKey}
	}
	encodings := make([]parser.Encoding, 0, len(c.Encodings))
	for _, name := range c.Encodings {
		enc, err := parser.ParseEncoding(name)
		if err != nil {
			return &Error{Path: c.path, Key: "encodings", Err: err}
		}
		encodings = append(encodings, enc)
	}
	c.parseOpts = parser.Options{Dialect: dialect, BadLines: badLines, Encodings: encodings}

	switch c.Storage.Backend {
	case BackendGCS:
	case BackendMinio:
		if c.Storage.Minio.Endpoint == "" {
			return &Error{Path: c.path, Key: "storage.minio.endpoint", Err: ErrMissingKey}
		}
	case BackendLocal:
		if c.Storage.Local.Root == "" {
			return &Error{Path: c.path, Key: "storage.local.root", Err: ErrMissingKey}
		}
	default:
		return &Error{Path: c.path, Key: "storage.backend",
			Err: fmt.Errorf("unknown backend %q (want gcs, minio or local)", c.Storage.Backend)}
	}

	c.Fetcher.FileSuffix = strings.ToLower(c.Fetcher.FileSuffix)
	if c.Fetcher.ElementTimeout <= 0 || c.Fetcher.DownloadTimeout <= 0 || c.Fetcher.PollInterval <= 0 {
		return &Error{Path: c.path, Key: "fetcher", Err: errors.New("timeouts and poll interval must be positive")}
	}
	return nil
}

// Regions returns the configured region codes, upper-cased, in file order.
func (c *Config) Regions() []models.RegionCode {
	out := make([]models.RegionCode, len(c.regions))
	copy(out, c.regions)
	return out
}

// ParserOptions returns the dialect, bad-line policy and encodings to use
// for raw exports.
func (c *Config) ParserOptions() parser.Options {
	opts := c.parseOpts
	opts.Encodings = append([]parser.Encoding(nil), c.parseOpts.Encodings...)
	return opts
}

// Path is the file the configuration was loaded from.
func (c *Config) Path() string {
	return c.path
}

// WithRegions returns a copy of c processing codes instead of the
// configured list.
func (c *Config) WithRegions(codes []string) (*Config, error) {
	regions, err := normaliseRegions(codes)
	if err != nil {
		return nil, &Error{Path: c.path, Key: "estados", Err: err}
	}
	clone := *c
	clone.Estados = append([]string(nil), codes...)
	clone.regions = regions
	return &clone, nil
}

func normaliseRegions(codes []string) ([]models.RegionCode, error) {
	regions := make([]models.RegionCode, 0, len(codes))
	for _, code := range codes {
		code = strings.ToUpper(strings.TrimSpace(code))
		if code == "" {
			continue
		}
		regions = append(regions, models.RegionCode(code))
	}
	if len(regions) == 0 {
		return nil, ErrMissingKey
	}
	return regions, nil
}

func getEnv(key, fallback string) string {
	if val := os.Getenv(key); val != "" {
		return val
	}
	return fallback
}

func getEnvBool(key string, fallback bool) bool {
	if val := os.Getenv(key); val != "" {
		b, err := strconv.ParseBool(val)
		if err == nil {
			return b
		}
	}
	return fallback
}
