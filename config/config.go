/*
   S370MP - Configuration for the CPU core.

   Copyright 2024, Richard Cornwell

   Permission is hereby granted, free of charge, to any person obtaining a copy
   of this software and associated documentation files (the "Software"), to deal
   in the Software without restriction, including without limitation the rights
   to use, copy, modify, merge, publish, distribute, sublicense, and/or sell
   copies of the Software, and to permit persons to whom the Software is
   furnished to do so, subject to the following conditions:

   The above copyright notice and this permission notice shall be included in
   all copies or substantial portions of the Software.

   THE SOFTWARE IS PROVIDED "AS IS", WITHOUT WARRANTY OF ANY KIND, EXPRESS OR
   IMPLIED, INCLUDING BUT NOT LIMITED TO THE WARRANTIES OF MERCHANTABILITY,
   FITNESS FOR A PARTICULAR PURPOSE AND NONINFRINGEMENT. IN NO EVENT SHALL THE
   AUTHORS OR COPYRIGHT HOLDERS BE LIABLE FOR ANY CLAIM, DAMAGES OR OTHER
   LIABILITY, WHETHER IN AN ACTION OF CONTRACT, TORT OR OTHERWISE, ARISING FROM,
   OUT OF OR IN CONNECTION WITH THE SOFTWARE OR THE USE OR OTHER DEALINGS IN THE
   SOFTWARE.

*/

// Package config holds the small set of parameters this core needs at
// startup: how many CPUs to build, how much main storage to give them,
// and how fast the simulated clock should run relative to the wall
// clock. It deliberately does not carry the device-attachment grammar
// of a full system configuration file; nothing in this core's scope
// attaches I/O devices.
package config

import (
	"bufio"
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
)

// Config is the parsed contents of a startup configuration file.
type Config struct {
	NumCPU      int
	StorageSize uint32 // Bytes.
	DragFactor  uint32 // 1 = real time, >1 slows the clock.
	LogFile     string
}

// Default returns the configuration used when no file is given.
func Default() Config {
	return Config{
		NumCPU:      1,
		StorageSize: 16 * 1024 * 1024,
		DragFactor:  1,
	}
}

// Load reads and validates a startup configuration file. The grammar is
// one "key value" pair per line, blank lines and lines starting with #
// ignored, in the same spirit as the device-attachment file this core's
// predecessor used.
func Load(path string) (Config, error) {
	file, err := os.Open(path)
	if err != nil {
		return Config{}, fmt.Errorf("opening config file: %w", err)
	}
	defer file.Close()

	cfg := Default()
	scanner := bufio.NewScanner(file)
	lineNum := 0
	for scanner.Scan() {
		lineNum++
		line := strings.TrimSpace(scanner.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		fields := strings.Fields(line)
		if len(fields) != 2 {
			return Config{}, fmt.Errorf("config line %d: expected \"key value\"", lineNum)
		}
		if err := cfg.set(fields[0], fields[1]); err != nil {
			return Config{}, fmt.Errorf("config line %d: %w", lineNum, err)
		}
	}
	if err := scanner.Err(); err != nil {
		return Config{}, fmt.Errorf("reading config file: %w", err)
	}
	return cfg, cfg.validate()
}

func (c *Config) set(key, value string) error {
	switch strings.ToLower(key) {
	case "numcpu":
		n, err := strconv.Atoi(value)
		if err != nil {
			return fmt.Errorf("numcpu: %w", err)
		}
		c.NumCPU = n
	case "storage":
		n, err := strconv.ParseUint(value, 10, 32)
		if err != nil {
			return fmt.Errorf("storage: %w", err)
		}
		c.StorageSize = uint32(n)
	case "drag":
		n, err := strconv.ParseUint(value, 10, 32)
		if err != nil {
			return fmt.Errorf("drag: %w", err)
		}
		c.DragFactor = uint32(n)
	case "logfile":
		c.LogFile = value
	default:
		return fmt.Errorf("unknown config key %q", key)
	}
	return nil
}

func (c Config) validate() error {
	if c.NumCPU < 1 || c.NumCPU > 16 {
		return errors.New("numcpu must be between 1 and 16")
	}
	if c.StorageSize == 0 {
		return errors.New("storage size must be non-zero")
	}
	return nil
}
