package main

import (
	"log"
	"os"

	"github.com/GoogleCloudPlatform/functions-framework-go/funcframework"
	_ "github.com/klipach/dapper"
	"github.com/klipach/dapper/config"
)

func main() {
	port := config.DefaultPort
	if envPort := os.Getenv("PORT"); envPort != "" {
		port = envPort
	}
	log.Printf("Started on port %s", port)

	// FUNCTION_TARGET selects a single function, otherwise all are served by name
	if err := funcframework.Start(port); err != nil {
		log.Fatalf("funcframework.Start: %v\n", err)
	}

	log.Println("Done")
}
