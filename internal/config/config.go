// Package config loads gridsync's deployment and CLI settings.
//
// Deployment configuration (where each dataset's backend lives) is written
// in CUE and checked against an embedded schema. CLI settings (output
// format, journal location) come from flags, GRIDSYNC_* environment
// variables, an optional settings file and an optional .env file.
package config

import (
	_ "embed"
	"fmt"
	"net"
	"os"
	"sort"
	"strconv"
	"strings"
	"time"

	"cuelang.org/go/cue"
	"cuelang.org/go/cue/cuecontext"
	cueerrors "cuelang.org/go/cue/errors"
	"cuelang.org/go/cue/load"

	"github.com/roach88/gridsync/internal/backend"
	"github.com/roach88/gridsync/internal/fault"
)

//go:embed schema.cue
var schemaCUE string

// Paths are the request paths of one dataset.
type Paths struct {
	List   string `json:"list"`
	Create string `json:"create"`
	Update string `json:"update,omitempty"`
	Delete string `json:"delete,omitempty"`
	Audit  string `json:"audit,omitempty"`
}

// Common holds settings every dataset inherits.
type Common struct {
	Scheme         string            `json:"scheme"`
	Host           string            `json:"host"`
	Port           int               `json:"port"`
	TimeoutSeconds int               `json:"timeout_seconds"`
	Headers        map[string]string `json:"headers"`
}

// Dataset holds one dataset's overrides and paths.
type Dataset struct {
	Scheme         string            `json:"scheme,omitempty"`
	Host           string            `json:"host,omitempty"`
	Port           int               `json:"port,omitempty"`
	TimeoutSeconds int               `json:"timeout_seconds,omitempty"`
	Headers        map[string]string `json:"headers,omitempty"`
	Paths          Paths             `json:"paths"`
}

// Config is the validated deployment configuration.
type Config struct {
	Common   Common             `json:"common"`
	Datasets map[string]Dataset `json:"datasets"`
}

// Resolved is a dataset's configuration after merging common settings.
type Resolved struct {
	Name      string
	Endpoints backend.Endpoints
	Timeout   time.Duration
	Headers   map[string]string
}

// Load reads configuration from path, which may be a .cue file or a
// directory holding a CUE package.
func Load(path string) (*Config, error) {
	info, err := os.Stat(path)
	if err != nil {
		return nil, fault.Configuration(fmt.Sprintf("config not found: %s", path), err)
	}
	if info.IsDir() {
		return LoadDir(path)
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fault.Configuration(fmt.Sprintf("reading config %s", path), err)
	}
	return Parse(path, data)
}

// LoadDir loads the CUE package in dir.
func LoadDir(dir string) (*Config, error) {
	ctx := cuecontext.New()
	instances := load.Instances([]string{"."}, &load.Config{Dir: dir})
	if len(instances) == 0 {
		return nil, fault.Configuration("no CUE instances loaded from "+dir, nil)
	}
	inst := instances[0]
	if inst.Err != nil {
		return nil, fault.Configuration("loading CUE files", formatCUEError(inst.Err))
	}
	return decode(ctx, ctx.BuildInstance(inst))
}

// Parse compiles CUE source. filename is used in error positions.
func Parse(filename string, src []byte) (*Config, error) {
	ctx := cuecontext.New()
	return decode(ctx, ctx.CompileBytes(src, cue.Filename(filename)))
}

func decode(ctx *cue.Context, v cue.Value) (*Config, error) {
	if err := v.Err(); err != nil {
		return nil, fault.Configuration("building CUE value", formatCUEError(err))
	}

	schema := ctx.CompileString(schemaCUE, cue.Filename("schema.cue"))
	if err := schema.Err(); err != nil {
		return nil, fault.Configuration("compiling embedded schema", err)
	}

	unified := schema.LookupPath(cue.ParsePath("#Config")).Unify(v)
	if err := unified.Validate(cue.Concrete(true)); err != nil {
		return nil, fault.Configuration("invalid configuration", formatCUEError(err))
	}

	var cfg Config
	if err := unified.Decode(&cfg); err != nil {
		return nil, fault.Configuration("decoding configuration", formatCUEError(err))
	}
	if len(cfg.Datasets) == 0 {
		return nil, fault.Configuration("no datasets configured", nil)
	}
	return &cfg, nil
}

// formatCUEError flattens a CUE error list into one error with positions.
func formatCUEError(err error) error {
	errs := cueerrors.Errors(err)
	if len(errs) <= 1 {
		return err
	}
	msgs := make([]string, 0, len(errs))
	for _, e := range errs {
		msgs = append(msgs, e.Error())
	}
	return fmt.Errorf("%s", strings.Join(msgs, "; "))
}

// Names returns the configured dataset names in sorted order.
func (c *Config) Names() []string {
	names := make([]string, 0, len(c.Datasets))
	for name := range c.Datasets {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Check reports configured datasets that known does not contain.
func (c *Config) Check(known []string) error {
	set := make(map[string]struct{}, len(known))
	for _, k := range known {
		set[k] = struct{}{}
	}
	var unknown []string
	for _, name := range c.Names() {
		if _, ok := set[name]; !ok {
			unknown = append(unknown, name)
		}
	}
	if len(unknown) > 0 {
		return fault.Configuration("unknown datasets: "+strings.Join(unknown, ", "), nil)
	}
	return nil
}

// Resolve merges common settings into the named dataset's configuration.
func (c *Config) Resolve(name string) (Resolved, error) {
	ds, ok := c.Datasets[name]
	if !ok {
		return Resolved{}, fault.Configuration(fmt.Sprintf("dataset %q is not configured", name), nil)
	}

	scheme := first(ds.Scheme, c.Common.Scheme)
	host := first(ds.Host, c.Common.Host)
	port := c.Common.Port
	if ds.Port != 0 {
		port = ds.Port
	}
	timeout := c.Common.TimeoutSeconds
	if ds.TimeoutSeconds != 0 {
		timeout = ds.TimeoutSeconds
	}

	headers := make(map[string]string, len(c.Common.Headers)+len(ds.Headers))
	for k, v := range c.Common.Headers {
		headers[k] = v
	}
	for k, v := range ds.Headers {
		headers[k] = v
	}

	base := scheme + "://" + net.JoinHostPort(host, strconv.Itoa(port))
	url := func(p string) string {
		if p == "" {
			return ""
		}
		return base + p
	}

	return Resolved{
		Name: name,
		Endpoints: backend.Endpoints{
			List:   url(ds.Paths.List),
			Create: url(ds.Paths.Create),
			Update: url(ds.Paths.Update),
			Delete: url(ds.Paths.Delete),
			Audit:  url(ds.Paths.Audit),
		},
		Timeout: time.Duration(timeout) * time.Second,
		Headers: headers,
	}, nil
}

func first(vals ...string) string {
	for _, v := range vals {
		if v != "" {
			return v
		}
	}
	return ""
}
