// c0-microsd-plus-toolkit: Flash and control a Signaloid C0-microSD+.
//
// The plus variant exposes a register file and an MMIO buffer alongside
// its non-volatile image slots. This tool inspects the flashed bitstream,
// starts and stops the SoC core, and flashes application binaries and
// bitstreams.
package main

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"log"
	"os"
	"strings"

	"github.com/go-logr/logr"
	"github.com/go-logr/stdr"
	"github.com/spf13/pflag"

	"github.com/signaloid/c0-microsd-toolkit/pkg/c0microsdplus"
	"github.com/signaloid/c0-microsd-toolkit/pkg/config"
	"github.com/signaloid/c0-microsd-toolkit/pkg/flash"
	"github.com/signaloid/c0-microsd-toolkit/pkg/sdio"
)

const appVersion = "1.0"

// Exit codes, following sysexits conventions.
const (
	ExitOK       = 0
	ExitUsage    = 64
	ExitDataErr  = 65
	ExitNoInput  = 66
	ExitSoftware = 70
	ExitNoPerm   = 77
)

func usage() {
	fmt.Fprintf(os.Stderr, `Signaloid C0-microSD-plus-toolkit. Version %s

Usage: %s <target-device> <command> [arguments]

Commands:
  info                          Print bitstream info and run CRC verification
  core (start|stop)             Start or stop the Signaloid SoC core
  config dump <file>            Save the device register state to a JSON file
  config apply <file>           Restore device registers from a JSON file
  flash-application <file>      Flash an application binary
  flash-bitstream <file>        Flash a bitstream file

Flash commands accept -p <size> to zero-pad the input to a target size
(plain bytes or with a K, M, or G suffix).
`, appVersion, os.Args[0])
}

func main() {
	os.Exit(run(os.Args[1:]))
}

func run(args []string) int {
	verbose := false
	filtered := args[:0:0]
	for _, arg := range args {
		if arg == "-v" || arg == "--verbose" {
			verbose = true
			continue
		}
		filtered = append(filtered, arg)
	}
	if len(filtered) < 2 {
		usage()
		return ExitUsage
	}

	logger := logr.Discard()
	if verbose {
		logger = stdr.New(log.New(os.Stderr, "", log.LstdFlags))
	}

	targetDevice, command := filtered[0], filtered[1]
	rest := filtered[2:]

	transport := sdio.New(targetDevice, sdio.WithLogger(logger))
	device, err := c0microsdplus.New(transport, c0microsdplus.WithLogger(logger))
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		return ExitSoftware
	}

	switch command {
	case "info":
		return runInfo(device)
	case "core":
		if len(rest) != 1 || (rest[0] != "start" && rest[0] != "stop") {
			usage()
			return ExitUsage
		}
		return runCore(device, rest[0])
	case "config":
		if len(rest) != 2 || (rest[0] != "dump" && rest[0] != "apply") {
			usage()
			return ExitUsage
		}
		return runConfig(device, targetDevice, rest[0], rest[1])
	case "flash-application":
		return runFlash(transport, device, rest, false)
	case "flash-bitstream":
		return runFlash(transport, device, rest, true)
	default:
		usage()
		return ExitUsage
	}
}

func runInfo(device *c0microsdplus.Device) int {
	fmt.Println("Reading bitstream:")
	layout := device.Layout()

	prefix, err := device.BitstreamPrefix(layout.BitstreamOffset)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\nAn error occurred, aborting.\n", err)
		return ExitDataErr
	}
	fmt.Printf("    Bitstream prefix section: %s\n", prefix)

	meta, err := c0microsdplus.ParseBitstreamMetadata(prefix)
	if err != nil {
		fmt.Println("    Unable to parse prefix for CRC verification")
		fmt.Println("Done.")
		return ExitOK
	}

	// The stored image is prefix plus delimiters, then the bitstream body.
	prefixSize := len(prefix) + 4
	pass, err := device.VerifyBitstreamCRC(layout.BitstreamOffset, prefixSize, meta.Size, meta.CRC)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\nAn error occurred, aborting.\n", err)
		return ExitSoftware
	}
	if pass {
		fmt.Println("    Bitstream CRC verification: PASS")
	} else {
		fmt.Println("    Bitstream CRC verification: FAIL")
	}
	fmt.Println("Done.")
	return ExitOK
}

func runCore(device *c0microsdplus.Device, action string) int {
	var err error
	if action == "start" {
		fmt.Println("Starting Signaloid SoC core")
		err = device.StartCore()
	} else {
		fmt.Println("Stopping Signaloid SoC core")
		err = device.StopCore()
	}
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\nAn error occurred, aborting.\n", err)
		return ExitSoftware
	}
	return ExitOK
}

func runConfig(device *c0microsdplus.Device, targetDevice, action, path string) int {
	if action == "dump" {
		snapshot, err := config.DumpFromDevice(device, targetDevice)
		if err != nil {
			fmt.Fprintf(os.Stderr, "Error: %v\nAn error occurred, aborting.\n", err)
			return ExitSoftware
		}
		if err := config.SaveToFile(snapshot, path); err != nil {
			fmt.Fprintf(os.Stderr, "Error: %v\nAn error occurred, aborting.\n", err)
			return ExitSoftware
		}
		fmt.Printf("Device configuration saved to: %s\n", path)
		return ExitOK
	}

	snapshot, err := config.LoadFromFile(path)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\nAn error occurred, aborting.\n", err)
		if errors.Is(err, os.ErrNotExist) {
			return ExitNoInput
		}
		return ExitDataErr
	}
	if err := config.ApplyToDevice(device, snapshot); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\nAn error occurred, aborting.\n", err)
		return ExitSoftware
	}
	fmt.Printf("Device configuration restored from: %s\n", path)
	return ExitOK
}

func runFlash(transport *sdio.Transport, device *c0microsdplus.Device, args []string, bitstream bool) int {
	flags := pflag.NewFlagSet("flash", pflag.ContinueOnError)
	padding := flags.StringP("padding", "p", "", "Pad input file with zeros to target size")
	if err := flags.Parse(args); err != nil {
		usage()
		return ExitUsage
	}
	if flags.NArg() != 1 {
		usage()
		return ExitUsage
	}

	fileData, err := openAndPadFile(flags.Arg(0), *padding)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\nAn error occurred, aborting.\n", err)
		switch {
		case errors.Is(err, os.ErrNotExist):
			return ExitNoInput
		case errors.Is(err, os.ErrPermission):
			return ExitNoPerm
		default:
			return ExitDataErr
		}
	}

	layout := device.Layout()
	var (
		offset int64
		opts   []flash.Option
	)
	if bitstream {
		offset = layout.BitstreamOffset
		opts = append(opts,
			flash.WithConfirm(confirmAction),
			flash.WithUnlockGate(device.UnlockBitstream, device.LockBitstream),
		)
		fmt.Println("Flashing bitstream...")
	} else {
		offset = layout.ApplicationOffset
		fmt.Println("Flashing Signaloid SoC application...")
	}
	opts = append(opts, flash.WithProgress(printProgress))

	outcome, err := flash.New(transport, opts...).Flash(context.Background(), fileData, offset)
	switch outcome {
	case flash.OutcomeSuccess:
		fmt.Println("Done.")
		return ExitOK
	case flash.OutcomeDeclined:
		fmt.Println("Aborting.")
		return ExitUsage
	default:
		fmt.Fprintf(os.Stderr, "Error: %v\nAn error occurred, aborting.\n", err)
		return ExitSoftware
	}
}

// confirmAction prompts before destructive flashes. Only an explicit
// y or n is accepted.
func confirmAction() bool {
	reader := bufio.NewReader(os.Stdin)
	for {
		fmt.Print("WARNING: This action may render the device inoperable. Proceed? (y/n): ")
		line, err := reader.ReadString('\n')
		if err != nil {
			return false
		}
		switch strings.ToLower(strings.TrimSpace(line)) {
		case "y":
			return true
		case "n":
			return false
		}
		fmt.Println("Invalid input. Please enter 'y' for yes or 'n' for no.")
	}
}

func printProgress(p flash.Progress) {
	switch p.Phase {
	case flash.PhaseWriting:
		if p.BytesWritten == p.TotalBytes {
			fmt.Printf("Attempt %d of %d: Flashing... ", p.Attempt, p.MaxAttempts)
		}
	case flash.PhaseVerifying:
		fmt.Println("Verifying...")
	}
}
