package main

import (
	"log"

	"github.com/thiagokokada/gitk-sync/cmd"
)

func main() {
	if err := cmd.Run(); err != nil {
		log.Fatalf("gitk-sync: %v", err)
	}
}
