package main

import (
	"os"

	"github.com/imposter-project/imposter-protocol/internal/adapter/httpserver"
)

func main() {
	var configDir string
	if len(os.Args) > 1 {
		configDir = os.Args[1]
	}
	httpserver.NewAdapter(configDir).Start()
}
