// Package user holds the sample programs the machine can boot.
package user

import (
	"fmt"
	"sort"

	"github.com/sarchlab/exokern/kern"
	"github.com/sarchlab/exokern/lib"
)

// DefaultDataPages is the size of the data segment of the sample programs.
const DefaultDataPages = 4

var registry = map[string]func(u *lib.User){
	"hello":      Hello,
	"yield":      Yield(5),
	"forktree":   ForkTree(3),
	"cowcheck":   COWCheck,
	"faultread":  FaultRead,
	"faultwrite": FaultWrite,
}

// Names lists the programs Lookup knows, sorted.
func Names() []string {
	names := make([]string, 0, len(registry))
	for name := range registry {
		names = append(names, name)
	}

	sort.Strings(names)

	return names
}

// Lookup returns the program with the given name.
func Lookup(name string) (kern.Program, error) {
	body, ok := registry[name]
	if !ok {
		return kern.Program{}, fmt.Errorf("user: no program named %q", name)
	}

	return Program(name, body), nil
}

// Program packs a program body with the default data segment.
func Program(name string, body func(u *lib.User)) kern.Program {
	return kern.Program{
		Name:      name,
		Entry:     lib.Main(body),
		DataPages: DefaultDataPages,
	}
}
