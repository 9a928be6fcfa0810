package main

import (
	"log"

	"github.com/oneOoneData/TaxProExchange-sub003/internal/app"
)

func main() {
	a, err := app.New()
	if err != nil {
		log.Fatalf("❌ linkcheck failed to start: %v", err)
	}
	if err := a.Run(); err != nil {
		log.Fatalf("❌ linkcheck stopped with error: %v", err)
	}
}
