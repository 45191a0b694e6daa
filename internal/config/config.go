// Package config reads and writes the bench-cfg-v1 YAML configuration file.
package config

import (
	"errors"
	"fmt"
	"os"

	"gopkg.in/yaml.v2"

	"github.com/kstaniek/go-tcan-bench/internal/logging"
)

// Version is the only configuration format understood.
const Version = "bench-cfg-v1"

const (
	DefaultHost = "localhost"
	DefaultPort = 8080
	DefaultBaud = 115200
)

var (
	ErrMissingKey         = errors.New("missing configuration key")
	ErrUnsupportedVersion = errors.New("unsupported configuration version")
	ErrUnsupportedFormat  = errors.New("unsupported format")
	ErrUnknownProfile     = errors.New("unknown profile")
)

// Bus names a CAN backend and its channel. DeviceID and Baud only matter for
// the controlled (tcan) bus and for serial adapters. DeviceID is nil when the
// key is absent; 0 is a valid offset.
type Bus struct {
	Interface string  `yaml:"interface"`
	Channel   string  `yaml:"channel"`
	DeviceID  *uint32 `yaml:"device_id,omitempty"`
	Baud      int     `yaml:"baud,omitempty"`
}

func (b Bus) String() string { return b.Interface + ":" + b.Channel }

// NamedBus is an additional bus listed under "busses".
type NamedBus struct {
	Name string `yaml:"name"`
	Bus  `yaml:",inline"`
}

// Config is an immutable, validated configuration. Build one with Builder or Deserialize.
type Config struct {
	Host   string
	Port   int
	TCAN   *Bus
	MCAN   *Bus
	Busses []NamedBus
}

// Bus looks up an additional bus by name.
func (c *Config) Bus(name string) (Bus, bool) {
	for _, b := range c.Busses {
		if b.Name == name {
			return b.Bus, true
		}
	}
	return Bus{}, false
}

// Addr is host:port of the control API.
func (c *Config) Addr() string { return fmt.Sprintf("%s:%d", c.Host, c.Port) }

// Format renders c in the named format. Only "yaml" is supported.
func (c *Config) Format(format string) ([]byte, error) {
	if format != "yaml" {
		return nil, fmt.Errorf("%w: %s", ErrUnsupportedFormat, format)
	}
	return Serialize(c)
}

type fileServer struct {
	Host string `yaml:"host"`
	Port int    `yaml:"port"`
}

type file struct {
	Version string     `yaml:"version"`
	Server  fileServer `yaml:"server"`
	TCAN    *Bus       `yaml:"tcan,omitempty"`
	MCAN    *Bus       `yaml:"mcan,omitempty"`
	Busses  []NamedBus `yaml:"busses,omitempty"`
}

// Serialize renders c as a bench-cfg-v1 document.
func Serialize(c *Config) ([]byte, error) {
	return yaml.Marshal(file{
		Version: Version,
		Server:  fileServer{Host: c.Host, Port: c.Port},
		TCAN:    c.TCAN,
		MCAN:    c.MCAN,
		Busses:  c.Busses,
	})
}

// raw mirrors file with pointers so that absent keys can be told apart from zero values.
type rawBus struct {
	Name      *string `yaml:"name"`
	Interface *string `yaml:"interface"`
	Channel   *string `yaml:"channel"`
	DeviceID  *uint32 `yaml:"device_id"`
	Baud      *int    `yaml:"baud"`
}

type raw struct {
	Version *string `yaml:"version"`
	Server  *struct {
		Host *string `yaml:"host"`
		Port *int    `yaml:"port"`
	} `yaml:"server"`
	TCAN   *rawBus  `yaml:"tcan"`
	MCAN   *rawBus  `yaml:"mcan"`
	Busses []rawBus `yaml:"busses"`
}

// Deserialize parses and validates a bench-cfg-v1 document.
func Deserialize(data []byte) (*Config, error) {
	var r raw
	if err := yaml.Unmarshal(data, &r); err != nil {
		return nil, fmt.Errorf("parse configuration: %w", err)
	}
	if r.Version == nil {
		return nil, fmt.Errorf("%w: configuration does not have a version", ErrMissingKey)
	}
	if *r.Version != Version {
		return nil, fmt.Errorf("%w: %s (supported: [%s])", ErrUnsupportedVersion, *r.Version, Version)
	}

	b := NewBuilder()
	if s := r.Server; s != nil {
		if s.Host != nil {
			b.WithHost(*s.Host)
		}
		if s.Port != nil {
			b.WithPort(*s.Port)
		}
	}
	if r.TCAN != nil {
		bus, err := r.TCAN.bus("tcan")
		if err != nil {
			return nil, err
		}
		b.tcan = &bus
	}
	if r.MCAN != nil {
		bus, err := r.MCAN.bus("mcan")
		if err != nil {
			return nil, err
		}
		b.mcan = &bus
	}
	for _, rb := range r.Busses {
		if rb.Name == nil {
			return nil, fmt.Errorf("%w: bus configuration must have a 'name' key", ErrMissingKey)
		}
		bus, err := rb.bus("bus " + *rb.Name)
		if err != nil {
			return nil, err
		}
		b.withBus(*rb.Name, bus)
	}
	return b.Build(), nil
}

func (rb *rawBus) bus(what string) (Bus, error) {
	if rb.Channel == nil {
		return Bus{}, fmt.Errorf("%w: %s configuration must have a 'channel' key", ErrMissingKey, what)
	}
	if rb.Interface == nil {
		return Bus{}, fmt.Errorf("%w: %s configuration must have an 'interface' key", ErrMissingKey, what)
	}
	bus := Bus{Interface: *rb.Interface, Channel: *rb.Channel}
	if rb.DeviceID != nil {
		id := *rb.DeviceID
		bus.DeviceID = &id
	}
	if rb.Baud != nil {
		bus.Baud = *rb.Baud
	}
	return bus, nil
}

// Load reads and deserializes the file at path.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	cfg, err := Deserialize(data)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return cfg, nil
}

// Example returns the configuration emitted for a named profile.
func Example(profile string) (*Config, error) {
	switch profile {
	case "default":
		return NewBuilder().Build(), nil
	case "teleo":
		return NewBuilder().
			WithHost(DefaultHost).
			WithPort(DefaultPort).
			WithTCAN("socketcan", "can0").
			WithMCAN("socketcan", "can1").
			Build(), nil
	default:
		return nil, fmt.Errorf("%w: %s", ErrUnknownProfile, profile)
	}
}

// Profiles lists the names accepted by Example.
func Profiles() []string { return []string{"default", "teleo"} }

// Builder assembles a Config. The zero configuration listens on localhost:8080
// and has no buses.
type Builder struct {
	host     string
	port     int
	deviceID *uint32
	tcan     *Bus
	mcan     *Bus
	busses   []NamedBus
}

func NewBuilder() *Builder { return &Builder{host: DefaultHost, port: DefaultPort} }

func (b *Builder) WithHost(host string) *Builder { b.host = host; return b }

func (b *Builder) WithPort(port int) *Builder { b.port = port; return b }

func (b *Builder) WithTCAN(iface, channel string) *Builder {
	b.tcan = &Bus{Interface: iface, Channel: channel}
	return b
}

func (b *Builder) WithMCAN(iface, channel string) *Builder {
	b.mcan = &Bus{Interface: iface, Channel: channel}
	return b
}

// WithDeviceID sets the device-id offset of the tcan bus.
func (b *Builder) WithDeviceID(id uint32) *Builder { b.deviceID = &id; return b }

// WithBus registers an additional bus. A repeated name replaces the earlier entry.
func (b *Builder) WithBus(name, iface, channel string) *Builder {
	return b.withBus(name, Bus{Interface: iface, Channel: channel})
}

func (b *Builder) withBus(name string, bus Bus) *Builder {
	for i := range b.busses {
		if b.busses[i].Name == name {
			logging.L().Warn("config_bus_overwritten", "name", name)
			b.busses[i].Bus = bus
			return b
		}
	}
	b.busses = append(b.busses, NamedBus{Name: name, Bus: bus})
	return b
}

// Registered lists the additional bus names in insertion order.
func (b *Builder) Registered() []string {
	names := make([]string, len(b.busses))
	for i, nb := range b.busses {
		names[i] = nb.Name
	}
	return names
}

func (b *Builder) Build() *Config {
	c := &Config{Host: b.host, Port: b.port}
	if b.tcan != nil {
		t := *b.tcan
		t.DeviceID = copyID(t.DeviceID)
		if b.deviceID != nil {
			t.DeviceID = copyID(b.deviceID)
		}
		c.TCAN = &t
	}
	if b.mcan != nil {
		m := *b.mcan
		m.DeviceID = copyID(m.DeviceID)
		c.MCAN = &m
	}
	c.Busses = append([]NamedBus(nil), b.busses...)
	for i := range c.Busses {
		c.Busses[i].DeviceID = copyID(c.Busses[i].DeviceID)
	}
	return c
}

func copyID(id *uint32) *uint32 {
	if id == nil {
		return nil
	}
	v := *id
	return &v
}
