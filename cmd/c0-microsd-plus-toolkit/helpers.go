package main

import (
	"fmt"
	"os"
	"regexp"
	"strconv"
	"strings"
)

var sizePattern = regexp.MustCompile(`^(\d+)([KMG]?)$`)

// parseSize converts a size string with an optional K, M, or G suffix
// to bytes.
func parseSize(sizeStr string) (int, error) {
	match := sizePattern.FindStringSubmatch(strings.ToUpper(sizeStr))
	if match == nil {
		return 0, fmt.Errorf("invalid padding size format %q, "+
			"use a number or a number with suffix (K, M, G)", sizeStr)
	}
	size, err := strconv.Atoi(match[1])
	if err != nil {
		return 0, fmt.Errorf("invalid padding size %q: %w", sizeStr, err)
	}
	switch match[2] {
	case "K":
		size *= 1024
	case "M":
		size *= 1024 * 1024
	case "G":
		size *= 1024 * 1024 * 1024
	}
	return size, nil
}

// openAndPadFile reads the input file and zero-pads it to padSize bytes.
// An empty padSize leaves the data as is; a padSize smaller than the file
// prints a warning and applies no padding.
func openAndPadFile(inputFile, padSize string) ([]byte, error) {
	fileData, err := os.ReadFile(inputFile)
	if err != nil {
		return nil, err
	}

	fmt.Println("Filename: ", inputFile)
	fmt.Println("File size: ", len(fileData), "bytes.")

	if padSize == "" {
		return fileData, nil
	}
	target, err := parseSize(padSize)
	if err != nil {
		return nil, err
	}
	if target > len(fileData) {
		fileData = append(fileData, make([]byte, target-len(fileData))...)
		fmt.Printf("Input file padded to %d bytes.\n", target)
	} else if target < len(fileData) {
		fmt.Println("Warning: The specified padding size is smaller than the " +
			"input file size. No padding applied.")
	}
	return fileData, nil
}
