/*
Copyright © 2026 the GreenGrids authors.
This file is part of GreenGrids.

GreenGrids is free software: you can redistribute it and/or modify
it under the terms of the GNU General Public License as published by
the Free Software Foundation, either version 3 of the License, or
(at your option) any later version.

GreenGrids is distributed in the hope that it will be useful,
but WITHOUT ANY WARRANTY; without even the implied warranty of
MERCHANTABILITY or FITNESS FOR A PARTICULAR PURPOSE.  See the
GNU General Public License for more details.

You should have received a copy of the GNU General Public License
along with GreenGrids.  If not, see <http://www.gnu.org/licenses/>.*/

// Command greengridsweb is a web interface for the GreenGrids model.
package main

import (
	"context"
	"flag"
	"os"
	"os/signal"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/HMNS19/greengrids"
	"github.com/HMNS19/greengrids/web"
)

var logger *logrus.Logger

func init() {
	logger = logrus.StandardLogger()
	logrus.SetLevel(logrus.DebugLevel)
	logrus.SetFormatter(&logrus.TextFormatter{
		ForceColors:     true,
		FullTimestamp:   true,
		TimestampFormat: time.RFC3339Nano,
		DisableSorting:  true,
	})
}

var (
	addr     = flag.String("addr", "localhost:8080", "Address to listen on")
	dataFile = flag.String("data", "dataset.json", "Path to the survey dataset")
	year     = flag.String("year", "2025", "Default survey year")
	history  = flag.String("history", "", "Path to the run history database; empty disables history")
	cacheDir = flag.String("cache", "", "Directory for cached workflow runs; empty disables the disk cache")
)

func main() {
	flag.Parse()

	ds, err := greengrids.ReadDatasetFile(os.ExpandEnv(*dataFile))
	if err != nil {
		logger.WithError(err).Fatal("failed to read dataset")
	}

	logger.Info("setting up...")
	s, err := web.NewServer(&web.Config{
		Dataset:     ds,
		DefaultYear: *year,
		CacheDir:    os.ExpandEnv(*cacheDir),
		HistoryPath: os.ExpandEnv(*history),
	})
	if err != nil {
		logger.WithError(err).Fatal("failed to create server")
	}
	defer s.Close()
	s.Log = logger

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	logger.Infof("listening on http://%s", *addr)
	if err := s.ListenAndServe(ctx, *addr); err != nil {
		logger.WithError(err).Fatal("server failed")
	}
}
