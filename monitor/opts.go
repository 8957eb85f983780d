package monitor

import (
	"fmt"
	"strings"

	"github.com/elliotchance/orderedmap/v2"
)

// Opts is an insertion-ordered option bag parsed from a
// key=value[,key=value...] command argument. The id option is held
// apart from the iteration set; the driver and bus keys stay in it.
type Opts struct {
	id string
	m  *orderedmap.OrderedMap[string, string]
}

// ParseOpts parses an option string. A bare leading token is
// shorthand for driver=<token>; any other bare token becomes a flag
// with the value "on", which is how the lone "?" asks for help.
func ParseOpts(s string) (*Opts, error) {
	o := &Opts{m: orderedmap.NewOrderedMap[string, string]()}

	for i, part := range strings.Split(s, ",") {
		part = strings.TrimSpace(part)
		if part == "" {
			continue
		}

		name, value, ok := strings.Cut(part, "=")
		if !ok {
			if i == 0 {
				name, value = "driver", part
			} else {
				name, value = part, "on"
			}
		}

		if name == "id" {
			o.id = value
			continue
		}

		if _, dup := o.m.Get(name); dup {
			return nil, fmt.Errorf("monitor: duplicate option %q", name)
		}

		o.m.Set(name, value)
	}

	return o, nil
}

// Get returns the value of a named option.
func (o *Opts) Get(name string) (string, bool) {
	return o.m.Get(name)
}

// ID returns the user-assigned device id, or "".
func (o *Opts) ID() string {
	return o.id
}

// Each visits every option except the id, in insertion order,
// stopping at the first error.
func (o *Opts) Each(fn func(name, value string) error) error {
	for el := o.m.Front(); el != nil; el = el.Next() {
		if err := fn(el.Key, el.Value); err != nil {
			return err
		}
	}

	return nil
}

// Release drops the bag. Using a released bag is a bug.
func (o *Opts) Release() {
	o.m = nil
}
