/*
   S370MP - Main process.

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

package main

import (
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	getopt "github.com/pborman/getopt/v2"

	"github.com/rcornwell/s370mp/command/reader"
	"github.com/rcornwell/s370mp/config"
	"github.com/rcornwell/s370mp/emu/cpu"
	logger "github.com/rcornwell/s370mp/util/logger"
)

func main() {
	optConfig := getopt.StringLong("config", 'c', "", "Configuration file")
	optNumCPU := getopt.IntLong("numcpu", 'n', 1, "Number of CPUs")
	optStorage := getopt.IntLong("storage", 'm', 16*1024*1024, "Main storage size in bytes")
	optDrag := getopt.IntLong("drag", 'd', 1, "Clock drag factor")
	optLogFile := getopt.StringLong("log", 'l', "", "Log file")
	optHelp := getopt.BoolLong("help", 'h', "Help")
	getopt.Parse()

	if *optHelp {
		getopt.Usage()
		os.Exit(0)
	}

	cfg := config.Default()
	if *optConfig != "" {
		loaded, err := config.Load(*optConfig)
		if err != nil {
			slog.Error(err.Error())
			os.Exit(1)
		}
		cfg = loaded
	}
	if getopt.IsSet("numcpu") {
		cfg.NumCPU = *optNumCPU
	}
	if getopt.IsSet("storage") {
		cfg.StorageSize = uint32(*optStorage)
	}
	if getopt.IsSet("drag") {
		cfg.DragFactor = uint32(*optDrag)
	}
	if *optLogFile != "" {
		cfg.LogFile = *optLogFile
	}

	var logFile *os.File
	if cfg.LogFile != "" {
		f, err := os.Create(cfg.LogFile)
		if err != nil {
			slog.Error(err.Error())
			os.Exit(1)
		}
		logFile = f
	}
	programLevel := new(slog.LevelVar)
	programLevel.Set(slog.LevelInfo)
	debug := false
	log := slog.New(logger.NewHandler(logFile, &slog.HandlerOptions{Level: programLevel}, &debug))
	slog.SetDefault(log)

	log.Info("S370MP started", "cpus", cfg.NumCPU, "storage", cfg.StorageSize, "drag", cfg.DragFactor)

	sys := cpu.New(cfg.NumCPU, cfg.StorageSize, cfg.DragFactor, log)
	sys.StartTimer()
	for _, c := range sys.CPUs {
		c.State = cpu.Stopped
	}

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)

	done := make(chan struct{})
	go func() {
		reader.ConsoleReader(sys)
		close(done)
	}()

	select {
	case <-sigChan:
		log.Info("got quit signal")
	case <-done:
	}

	log.Info("shutting down")
	sys.StopTimer()
}
