// Copyright 2017 Google Inc.
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
// https://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

// This binary provides the antibody annotation selection server.
package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/pkg/profile"

	"github.com/maquino1985/abseq/api"
	"github.com/maquino1985/abseq/config"
	"github.com/maquino1985/abseq/internal/session"
	"github.com/maquino1985/abseq/internal/tracking"
)

var (
	port       = flag.Int("port", 0, "HTTP service port (overrides config)")
	configFile = flag.String("config", "", "optional abseq.yaml settings file")

	secure    = flag.Bool("secure", false, "serve in HTTPS-only mode and forward client bearer tokens to storage")
	httpsCert = flag.String("https_cert", "", "HTTPS certificate file")
	httpsKey  = flag.String("https_key", "", "HTTPS key file")

	datasets = flag.String("datasets", "", "local directory that dataset references resolve against; if empty, Google Cloud Storage is used")
	buckets  = flag.String("buckets", "", "if set, restricts dataset reads to a comma-separated list of buckets")

	cpuProfile = flag.Bool("cpu_profile", false, "write a CPU profile next to the binary")

	// Enable or disable anonymous usage tracking.
	//
	// If enabled, anonymous information about requests handled by the
	// server is sent to the collector endpoint below.  No sequence data or
	// user identifying information is ever sent.
	trackUsage     = flag.Bool("track_usage", false, "anonymous usage tracking")
	trackCollector = flag.String("track_collector", "https://stats.abseq.dev", "usage tracking collector endpoint")
)

func main() {
	flag.Parse()

	if *secure && (*httpsCert == "" || *httpsKey == "") {
		log.Fatalf("You must specify both -https_cert and -https_key in secure mode.")
	}
	if *cpuProfile {
		defer profile.Start(profile.CPUProfile, profile.ProfilePath(".")).Stop()
	}

	settings, err := config.Load(*configFile)
	if err != nil {
		log.Fatalf("Failed to load settings: %v", err)
	}
	if err := settings.RegisterSchemes(); err != nil {
		log.Fatalf("Failed to register color schemes: %v", err)
	}
	if *port != 0 {
		settings.Port = *port
	}
	if *datasets != "" {
		settings.Datasets = *datasets
	}
	if *buckets != "" {
		settings.Buckets = strings.Split(*buckets, ",")
	}

	newStorageClient := api.NewPublicClient
	if settings.Datasets != "" {
		newStorageClient = api.NewDirClientFunc(settings.Datasets)
	} else if *secure {
		newStorageClient = api.NewClientFromBearerToken
	}

	store := session.NewStore(time.Duration(settings.SessionTTLMinutes) * time.Minute)
	go store.Janitor(context.Background(), time.Minute)

	server := api.NewServer(newStorageClient, store)
	if len(settings.Buckets) > 0 {
		server.Whitelist(settings.Buckets)
	}

	router := gin.Default()
	if *trackUsage {
		log.Printf("Enabling anonymous usage tracking")

		client := tracking.NewClient(*trackCollector, uuid.New().String())
		router.Use(tracking.Middleware(func(events []tracking.Event) {
			if err := client.Send(events); err != nil {
				log.Printf("Failed to send %d events to collector: %v", len(events), err)
			}
		}))
	}
	server.Register(router)

	address := fmt.Sprintf(":%d", settings.Port)
	if *secure {
		if err := router.RunTLS(address, *httpsCert, *httpsKey); err != nil {
			log.Fatalf("HTTPS server returned an error: %v", err)
		}
	} else {
		if err := router.Run(address); err != nil {
			log.Fatalf("HTTP server returned an error: %v", err)
		}
	}
}
