// c0-microsd-toolkit: Flash and configure a Signaloid C0-microSD.
//
// The device appears to the host as a raw block device. This tool reads
// its boot status, switches between the bootloader and Signaloid Core
// configurations, and flashes bitstreams or user data at the fixed
// offsets of the device memory map.
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

	"github.com/signaloid/c0-microsd-toolkit/pkg/c0microsd"
	"github.com/signaloid/c0-microsd-toolkit/pkg/flash"
	"github.com/signaloid/c0-microsd-toolkit/pkg/sdio"
)

const appVersion = "1.0"

// Exit codes. ExitModeSwitchRequired means nothing was written: the boot
// config switch was triggered and the operator must power cycle and retry.
const (
	ExitSuccess            = 0
	ExitFailure            = 1
	ExitModeSwitchRequired = 2
)

func main() {
	os.Exit(run())
}

func run() int {
	var (
		targetDevice = pflag.StringP("target", "t", "", "Target device path (required)")
		inputFile    = pflag.StringP("input", "b", "", "Input file for flashing (required with -u, -q, or -w)")
		flashUser    = pflag.BoolP("user-data", "u", false, "Flash user data")
		flashBoot    = pflag.BoolP("bootloader", "q", false, "Flash new Bootloader bitstream")
		flashCore    = pflag.BoolP("signaloid-core", "w", false, "Flash new Signaloid Core bitstream")
		switchMode   = pflag.BoolP("switch", "s", false, "Switch boot mode")
		force        = pflag.BoolP("force", "f", false, "Force flash sequence (do not check for bootloader)")
		verbose      = pflag.BoolP("verbose", "v", false, "Verbose output")
	)
	pflag.Parse()

	if *targetDevice == "" {
		pflag.Usage()
		fmt.Fprintln(os.Stderr, "\nError: option -t is required.")
		return ExitFailure
	}
	exclusive := 0
	for _, set := range []bool{*flashUser, *flashBoot, *flashCore, *switchMode} {
		if set {
			exclusive++
		}
	}
	if exclusive > 1 {
		fmt.Fprintln(os.Stderr, "Error: options -u, -q, -w, and -s are mutually exclusive.")
		return ExitFailure
	}

	logger := logr.Discard()
	if *verbose {
		logger = stdr.New(log.New(os.Stderr, "", log.LstdFlags))
	}

	fmt.Printf("Signaloid C0-microSD-toolkit. Version %s\n", appVersion)

	transport := sdio.New(*targetDevice, sdio.WithLogger(logger))
	device, err := c0microsd.New(transport,
		c0microsd.WithForce(*force),
		c0microsd.WithLogger(logger),
	)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		return ExitFailure
	}

	status, err := device.Status()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\nAn error occurred, aborting.\n", err)
		return ExitFailure
	}
	fmt.Println(status)

	if *switchMode {
		return switchBootConfig(device, status)
	}

	if *inputFile == "" {
		pflag.Usage()
		fmt.Fprintln(os.Stderr, "\nOption -b is required when flashing data.")
		return ExitFailure
	}

	fileData, err := os.ReadFile(*inputFile)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		return ExitFailure
	}
	fmt.Println("Filename: ", *inputFile)
	fmt.Println("File size: ", len(fileData), "bytes.")

	layout := device.Layout()
	var (
		offset      int64
		destructive bool
	)
	switch {
	case *flashBoot:
		fmt.Println("Flashing bootloader bitstream...")
		offset = layout.BootloaderBitstreamOffset
		destructive = true
	case *flashCore:
		fmt.Println("Flashing Signaloid Core bitstream...")
		offset = layout.SOCBitstreamOffset
		destructive = true
	case *flashUser:
		fmt.Println("Flashing user data...")
		offset = layout.UserDataOffset
	default:
		fmt.Println("Flashing custom user bitstream...")
		offset = layout.UserBitstreamOffset
	}

	opts := []flash.Option{
		flash.WithLogger(logger),
		flash.WithProgress(printProgress),
	}
	if !*force {
		opts = append(opts,
			flash.WithPrecheck(device.BootloaderActive),
			flash.WithModeSwitch(device.SwitchBootConfig),
		)
	}
	if destructive {
		opts = append(opts,
			flash.WithConfirm(confirmAction),
			flash.WithUnlockGate(device.UnlockBootloader, device.LockBootloader),
		)
	}

	outcome, err := flash.New(transport, opts...).Flash(context.Background(), fileData, offset)
	switch outcome {
	case flash.OutcomeSuccess:
		fmt.Println("Done.")
		return ExitSuccess
	case flash.OutcomeModeSwitchRequired:
		if err != nil {
			fmt.Fprintf(os.Stderr, "Error: %v\n", err)
			return ExitFailure
		}
		fmt.Println("Device is not in Bootloader mode. Boot config switch " +
			"triggered; power cycle the device and try again.")
		return ExitModeSwitchRequired
	case flash.OutcomeDeclined:
		fmt.Println("Aborting.")
		return ExitSuccess
	default:
		var verifyErr *flash.VerifyError
		if errors.As(err, &verifyErr) {
			fmt.Fprintf(os.Stderr, "Error: %v\n", verifyErr)
		} else if err != nil {
			fmt.Fprintf(os.Stderr, "Error: %v\nAn error occurred, aborting.\n", err)
		}
		return ExitFailure
	}
}

func switchBootConfig(device *c0microsd.Device, status c0microsd.ConfigurationStatus) int {
	switch status.Configuration {
	case c0microsd.ConfigurationBootloader:
		fmt.Println("Switching device boot mode from Bootloader to Signaloid Core...")
	case c0microsd.ConfigurationSignaloidSoC:
		fmt.Println("Switching device boot mode from Signaloid Core to Bootloader...")
	default:
		fmt.Println("Switching device boot mode...")
	}
	if err := device.SwitchBootConfig(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		return ExitFailure
	}
	fmt.Println("Device configured successfully. Power cycle the device to boot in new mode.")
	fmt.Println("Done.")
	return ExitSuccess
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
