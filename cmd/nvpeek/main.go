// Command nvpeek reads and writes single words of GPU instance memory through
// a memory-mapped aperture window. It is a bring-up aid; pointing it at a
// device the kernel is actively driving will corrupt the driver's state.
package main

import (
	"flag"
	"fmt"
	"os"
	"strconv"

	"github.com/nvkit/instmem"
	"golang.org/x/exp/slog"
)

var (
	barPath = flag.String("bar", "", "path to the device's aperture resource file")
	chipset = flag.Uint64("chipset", 0x40, "chipset id, used to pick the aperture layout")
	verbose = flag.Bool("v", false, "log every aperture operation")
)

func usage() {
	fmt.Fprintf(os.Stderr, "usage: %s -bar <resource> [-chipset N] <command>\n", os.Args[0])
	fmt.Fprintln(os.Stderr, "commands:")
	fmt.Fprintln(os.Stderr, "  read <offset>")
	fmt.Fprintln(os.Stderr, "  write <offset> <value>")
	fmt.Fprintln(os.Stderr, "  dump <offset> <words>")
	os.Exit(2)
}

func parseWord(arg string, bits int) uint64 {
	value, err := strconv.ParseUint(arg, 0, bits)
	if err != nil {
		fmt.Fprintf(os.Stderr, "can't parse %q: %s\n", arg, err)
		os.Exit(1)
	}

	return value
}

func main() {
	flag.Usage = usage
	flag.Parse()

	if *barPath == "" || flag.NArg() < 1 {
		usage()
	}

	opts := slog.HandlerOptions{Level: slog.LevelInfo}
	if *verbose {
		opts.Level = slog.LevelDebug
	}
	logger := slog.New(opts.NewTextHandler(os.Stderr))

	mapper, closeMapper, err := openMapper(*barPath)
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
	defer func() {
		_ = closeMapper()
	}()

	family := instmem.FamilyForChipset(uint32(*chipset))
	logger.Debug("opened aperture",
		slog.String("Path", *barPath),
		slog.String("Family", family.String()),
		slog.Uint64("PageSize", mapper.PageSize()))

	window, err := instmem.NewMappedWindow(mapper, family, true)
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
	defer func() {
		_ = window.Close()
	}()

	args := flag.Args()
	switch args[0] {
	case "read":
		if len(args) != 2 {
			usage()
		}

		offset := parseWord(args[1], 64)
		value, err := window.Read32(offset)
		if err != nil {
			fmt.Fprintln(os.Stderr, err)
			os.Exit(1)
		}

		fmt.Printf("%#010x\n", value)

	case "write":
		if len(args) != 3 {
			usage()
		}

		offset := parseWord(args[1], 64)
		value := uint32(parseWord(args[2], 32))

		logger.Debug("writing word",
			slog.Uint64("Offset", offset),
			slog.Uint64("Value", uint64(value)))

		err := window.Write32(offset, value)
		if err != nil {
			fmt.Fprintln(os.Stderr, err)
			os.Exit(1)
		}

	case "dump":
		if len(args) != 3 {
			usage()
		}

		offset := parseWord(args[1], 64)
		words := parseWord(args[2], 64)

		for wordIndex := uint64(0); wordIndex < words; wordIndex++ {
			wordOffset := offset + wordIndex*4

			value, err := window.Read32(wordOffset)
			if err != nil {
				fmt.Fprintln(os.Stderr, err)
				os.Exit(1)
			}

			if wordIndex%4 == 0 {
				if wordIndex != 0 {
					fmt.Println()
				}
				fmt.Printf("%#010x:", wordOffset)
			}
			fmt.Printf(" %08x", value)
		}
		fmt.Println()

	default:
		usage()
	}
}
