//go:build linux

package main

import "github.com/nvkit/instmem"

func openMapper(path string) (instmem.WindowMapper, func() error, error) {
	mapper, err := instmem.OpenBARMapper(path)
	if err != nil {
		return nil, nil, err
	}

	return mapper, mapper.Close, nil
}
