package config

import (
	"errors"
	"os"
	"path/filepath"
	"time"

	toml "github.com/pelletier/go-toml/v2"
)

const (
	AppName               = "taskdeck"
	DefaultConfigFileName = "config.toml"
	DefaultDBName         = "taskdeck.db"
	DefaultLogName        = "taskdeck.log"
	DefaultBackendURL     = "http://127.0.0.1:8787"
	DefaultServerAddr     = ":8787"

	// ConfigEnv overrides the config file location.
	ConfigEnv = "TASKDECK_CONFIG"

	ModeRemote   = "remote"
	ModeEmbedded = "embedded"
)

type Keymap struct {
	Quit       string `toml:"quit"`
	Add        string `toml:"add"`
	Up         string `toml:"up"`
	Down       string `toml:"down"`
	Delete     string `toml:"delete"`
	Edit       string `toml:"edit"`
	Confirm    string `toml:"confirm"`
	Cancel     string `toml:"cancel"`
	NextField  string `toml:"next_field"`
	PrevField  string `toml:"prev_field"`
	Priority   string `toml:"priority"`
	Refresh    string `toml:"refresh"`
	SignOut    string `toml:"sign_out"`
	SwitchForm string `toml:"switch_form"`
}

type Backend struct {
	URL    string `toml:"url"`
	APIKey string `toml:"api_key"`
}

type Server struct {
	Addr      string   `toml:"addr"`
	JWTSecret string   `toml:"jwt_secret"`
	TokenTTL  Duration `toml:"token_ttl"`
}

// Features collapses the screen variants into one controller.
type Features struct {
	Edit   bool `toml:"edit"`
	Delete bool `toml:"delete"`
}

type Config struct {
	Env      string   `toml:"env"`
	LogPath  string   `toml:"log_path"`
	Mode     string   `toml:"mode"`
	DBPath   string   `toml:"db_path"`
	Backend  Backend  `toml:"backend"`
	Server   Server   `toml:"server"`
	Features Features `toml:"features"`
	Keys     Keymap   `toml:"keys"`
}

// Duration reads "1h30m" style strings from TOML.
type Duration struct {
	time.Duration
}

func (d Duration) MarshalText() ([]byte, error) {
	return []byte(d.String()), nil
}

func (d *Duration) UnmarshalText(b []byte) error {
	v, err := time.ParseDuration(string(b))
	if err != nil {
		return err
	}
	d.Duration = v
	return nil
}

// ResolveConfigPath returns $TASKDECK_CONFIG, else
// $XDG_CONFIG_HOME/taskdeck/config.toml, else ~/.config/taskdeck/config.toml.
func ResolveConfigPath() string {
	if p := os.Getenv(ConfigEnv); p != "" {
		return p
	}
	return filepath.Join(defaultDir(), DefaultConfigFileName)
}

func defaultDir() string {
	if xdg := os.Getenv("XDG_CONFIG_HOME"); xdg != "" {
		return filepath.Join(xdg, AppName)
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return AppName
	}
	return filepath.Join(home, ".config", AppName)
}

func LoadOrCreate(path string) (Config, error) {
	dir := filepath.Dir(path)
	cfg := defaultConfig(dir)
	if _, err := os.Stat(path); errors.Is(err, os.ErrNotExist) {
		if err := write(path, cfg); err != nil {
			return cfg, err
		}
		return cfg, nil
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return cfg, err
	}
	if err := toml.Unmarshal(data, &cfg); err != nil {
		return cfg, err
	}
	cfg.fillDefaults(dir)
	return cfg, cfg.Validate()
}

// Validate rejects values nothing downstream can work with.
func (c Config) Validate() error {
	switch c.Mode {
	case ModeRemote, ModeEmbedded:
	default:
		return errors.New("mode must be \"remote\" or \"embedded\"")
	}
	if c.Mode == ModeRemote && c.Backend.URL == "" {
		return errors.New("backend.url is required in remote mode")
	}
	return nil
}

func (c *Config) fillDefaults(dir string) {
	def := defaultConfig(dir)
	if c.Env == "" {
		c.Env = def.Env
	}
	if c.LogPath == "" {
		c.LogPath = def.LogPath
	}
	if c.Mode == "" {
		c.Mode = def.Mode
	}
	if c.DBPath == "" {
		c.DBPath = def.DBPath
	}
	if c.Backend.URL == "" {
		c.Backend.URL = def.Backend.URL
	}
	if c.Server.Addr == "" {
		c.Server.Addr = def.Server.Addr
	}
	if c.Server.TokenTTL.Duration <= 0 {
		c.Server.TokenTTL = def.Server.TokenTTL
	}
	k, d := &c.Keys, def.Keys
	setDefault(&k.Quit, d.Quit)
	setDefault(&k.Add, d.Add)
	setDefault(&k.Up, d.Up)
	setDefault(&k.Down, d.Down)
	setDefault(&k.Delete, d.Delete)
	setDefault(&k.Edit, d.Edit)
	setDefault(&k.Confirm, d.Confirm)
	setDefault(&k.Cancel, d.Cancel)
	setDefault(&k.NextField, d.NextField)
	setDefault(&k.PrevField, d.PrevField)
	setDefault(&k.Priority, d.Priority)
	setDefault(&k.Refresh, d.Refresh)
	setDefault(&k.SignOut, d.SignOut)
	setDefault(&k.SwitchForm, d.SwitchForm)
}

func setDefault(v *string, def string) {
	if *v == "" {
		*v = def
	}
}

func write(path string, cfg Config) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o700); err != nil {
		return err
	}
	data, err := toml.Marshal(cfg)
	if err != nil {
		return err
	}
	return os.WriteFile(path, data, 0o600)
}

func defaultConfig(dir string) Config {
	return Config{
		Env:     "local",
		LogPath: filepath.Join(dir, DefaultLogName),
		Mode:    ModeRemote,
		DBPath:  filepath.Join(dir, DefaultDBName),
		Backend: Backend{
			URL: DefaultBackendURL,
		},
		Server: Server{
			Addr:     DefaultServerAddr,
			TokenTTL: Duration{time.Hour},
		},
		Features: Features{
			Edit:   true,
			Delete: true,
		},
		Keys: Keymap{
			Quit:       "q",
			Add:        "a",
			Up:         "k",
			Down:       "j",
			Delete:     "d",
			Edit:       "e",
			Confirm:    "enter",
			Cancel:     "esc",
			NextField:  "tab",
			PrevField:  "shift+tab",
			Priority:   "ctrl+p",
			Refresh:    "r",
			SignOut:    "o",
			SwitchForm: "ctrl+s",
		},
	}
}
