package monitor

import (
	"fmt"
	"io"
	"path"
	"strings"

	"github.com/cavaliergopher/cpio"
	"github.com/s7r/qdev"
	"gopkg.in/yaml.v3"
)

// globalRecord is one entry of a global-defaults file.
type globalRecord struct {
	Driver   string `yaml:"driver"`
	Property string `yaml:"property"`
	Value    string `yaml:"value"`
}

// LoadGlobals reads a yaml list of {driver, property, value} records
// and registers each as a process-wide property override.
func (mon *Monitor) LoadGlobals(r io.Reader) error {
	data, err := io.ReadAll(r)
	if err != nil {
		return fmt.Errorf("monitor: read globals: %w", err)
	}

	var records []globalRecord
	if err := yaml.Unmarshal(data, &records); err != nil {
		return fmt.Errorf("monitor: parse globals: %w", err)
	}

	for _, g := range records {
		if g.Driver == "" || g.Property == "" {
			return fmt.Errorf("monitor: global record needs driver and property")
		}

		mon.m.RegisterGlobal(qdev.GlobalProperty{
			Driver:   g.Driver,
			Property: g.Property,
			Value:    g.Value,
		})
	}

	return nil
}

// LoadBundle reads a machine config bundle: a cpio archive holding an
// optional globals.yaml plus *.conf files of device_add option lines.
// Globals apply before any device is added; conf files apply in
// archive order.
func (mon *Monitor) LoadBundle(r io.Reader) error {
	type conf struct {
		name  string
		lines []string
	}

	var (
		rd      = cpio.NewReader(r)
		globals []byte
		confs   []conf
	)

	for {
		hdr, err := rd.Next()
		if err == io.EOF {
			break
		}

		if err != nil {
			return fmt.Errorf("monitor: read bundle: %w", err)
		}

		if !hdr.Mode.IsRegular() {
			continue
		}

		data, err := io.ReadAll(rd)
		if err != nil {
			return fmt.Errorf("monitor: read bundle %s: %w", hdr.Name, err)
		}

		switch {
		case path.Base(hdr.Name) == "globals.yaml":
			globals = data

		case strings.HasSuffix(hdr.Name, ".conf"):
			confs = append(confs, conf{
				name:  hdr.Name,
				lines: strings.Split(string(data), "\n"),
			})
		}
	}

	if globals != nil {
		if err := mon.LoadGlobals(strings.NewReader(string(globals))); err != nil {
			return err
		}
	}

	for _, c := range confs {
		for _, line := range c.lines {
			line = strings.TrimSpace(line)
			if line == "" || strings.HasPrefix(line, "#") {
				continue
			}

			opts, err := ParseOpts(line)
			if err != nil {
				return fmt.Errorf("monitor: bundle %s: %w", c.name, err)
			}

			if _, err := mon.m.DeviceAdd(opts); err != nil {
				opts.Release()
				return fmt.Errorf("monitor: bundle %s: device_add %q: %w", c.name, line, err)
			}
		}
	}

	return nil
}
