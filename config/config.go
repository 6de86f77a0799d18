package config

import (
	"io/ioutil"
	"sort"
	"strings"
	"time"

	"github.com/pkg/errors"
	"github.com/txn-kv-store/common"
	"gopkg.in/yaml.v2"
)

const (
	// DefaultConfigFilePath is the file path of the cluster configuration
	DefaultConfigFilePath = "config/cluster.yaml"
)

// Timeouts bounds client waits.
type Timeouts struct {
	Request time.Duration `yaml:"request"`
	Connect time.Duration `yaml:"connect"`
}

// Cluster lists the coordinator and the named storage servers.
type Cluster struct {
	Coordinator string            `yaml:"coordinator"`
	Servers     map[string]string `yaml:"servers"`
	Timeouts    Timeouts          `yaml:"timeouts"`
}

// Load reads the cluster file at path.
func Load(path string) (*Cluster, error) {
	data, err := ioutil.ReadFile(path)
	if err != nil {
		return nil, errors.Wrap(err, "read cluster config")
	}
	return Parse(data)
}

// Parse decodes a YAML (or JSON) cluster description and fills defaults.
func Parse(data []byte) (*Cluster, error) {
	c := &Cluster{}
	if err := yaml.UnmarshalStrict(data, c); err != nil {
		return nil, errors.Wrap(err, "parse cluster config")
	}
	if c.Timeouts.Request <= 0 {
		c.Timeouts.Request = common.DefaultRequestTimeout
	}
	if c.Timeouts.Connect <= 0 {
		c.Timeouts.Connect = common.DefaultConnectTimeout
	}
	if err := c.Validate(); err != nil {
		return nil, err
	}
	return c, nil
}

func (c *Cluster) Validate() error {
	if c.Coordinator == "" {
		return errors.New("cluster config: coordinator address is required")
	}
	if len(c.Servers) == 0 {
		return errors.New("cluster config: at least one server is required")
	}
	for name, addr := range c.Servers {
		if name == "" || strings.Contains(name, ".") {
			return errors.Errorf("cluster config: invalid server name %q", name)
		}
		if addr == "" {
			return errors.Errorf("cluster config: server %s has no address", name)
		}
	}
	return nil
}

// ServerNames returns the server names in sorted order.
func (c *Cluster) ServerNames() []string {
	names := make([]string, 0, len(c.Servers))
	for name := range c.Servers {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}
