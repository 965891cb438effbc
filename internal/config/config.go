// Package config loads the proxy's YAML configuration, in the same
// gopkg.in/yaml.v3-via-os.Open-and-Decode style the rest of this stack's
// servers use for their own config files.
package config

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

// Config holds the values that would otherwise be hardcoded module-level
// constants: the upstream target, the address advertised after a redirect,
// and where operator commands are read from.
type Config struct {
	// Upstream is the fixed address the proxy connects to on session
	// start, before any redirect is observed.
	Upstream string `yaml:"upstream"`

	// LocalListenIP is the address advertised to the client in a rewritten
	// redirect packet. The post-redirect listener itself binds an ephemeral
	// port on all interfaces, not this address.
	LocalListenIP string `yaml:"local_listen_ip"`

	// CommandFIFOPath is where the named pipe for operator commands is
	// created.
	CommandFIFOPath string `yaml:"command_fifo_path"`

	// ListenAddr is where the proxy accepts the game client's initial
	// connection, standing in for the real server's own listening port.
	ListenAddr string `yaml:"listen_addr"`
}

// Default matches the original client's own hardcoded target, for use
// when no config file is supplied.
func Default() Config {
	return Config{
		Upstream:        "149.56.167.128:9100",
		LocalListenIP:   "10.0.0.179",
		CommandFIFOPath: "/tmp/jxrelay.cmd",
		ListenAddr:      "0.0.0.0:9100",
	}
}

// Load reads and decodes a YAML config file, filling any field the file
// omits with its Default() value.
func Load(path string) (Config, error) {
	cfg := Default()

	f, err := os.Open(path)
	if err != nil {
		return Config{}, fmt.Errorf("config: could not open %s: %w", path, err)
	}
	defer f.Close()

	if err := yaml.NewDecoder(f).Decode(&cfg); err != nil {
		return Config{}, fmt.Errorf("config: invalid %s: %w", path, err)
	}
	return cfg, nil
}
