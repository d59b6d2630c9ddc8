package main

import (
	"log"

	"crm-bridge/internal/app"
)

func main() {
	if err := app.Run(); err != nil {
		log.Fatalf("crm-bridge failed: %v", err)
	}
}
