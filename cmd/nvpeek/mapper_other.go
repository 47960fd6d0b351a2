//go:build !linux

package main

import (
	"github.com/nvkit/instmem"
	"github.com/pkg/errors"
)

func openMapper(path string) (instmem.WindowMapper, func() error, error) {
	return nil, nil, errors.New("aperture mapping is only supported on linux")
}
