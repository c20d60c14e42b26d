package cliapp

import (
	"fmt"
	"reflect"

	"github.com/urfave/cli/v2"
)

// ProtectFlags returns copies of the flag definitions, so applying them to one flag set does not mutate shared flag values.
// ProtectFlags panics if any of the flag definitions cannot be protected.
func ProtectFlags(flags []cli.Flag) []cli.Flag {
	out := make([]cli.Flag, 0, len(flags))
	for _, f := range flags {
		fCopy, err := cloneFlag(f)
		if err != nil {
			panic(fmt.Errorf("failed to copy flag %q: %w", f.Names(), err))
		}
		out = append(out, fCopy)
	}
	return out
}

func cloneFlag(f cli.Flag) (cli.Flag, error) {
	v := reflect.ValueOf(f)
	if v.Kind() != reflect.Ptr || v.IsNil() {
		return nil, fmt.Errorf("flag type %T is not a pointer", f)
	}
	cp := reflect.New(v.Elem().Type())
	cp.Elem().Set(v.Elem())
	out, ok := cp.Interface().(cli.Flag)
	if !ok {
		return nil, fmt.Errorf("copy of %T is not a flag", f)
	}
	return out, nil
}
