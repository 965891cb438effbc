// Command jxrelay is the proxy's entry point: it loads configuration and
// runs sessions back to back, one game client at a time.
package main

import (
	"fmt"
	"log"
	"os"

	"jx-relay/internal/config"
	"jx-relay/internal/proxy"
)

const ServerVersion = "1.0.0"

func main() {
	if len(os.Args) > 1 {
		switch os.Args[1] {
		case "-v", "--version", "--about":
			fmt.Printf("jxrelay v%s\n", ServerVersion)
			return
		}
	}

	path := "jxrelay.yaml"
	if len(os.Args) > 1 {
		path = os.Args[1]
	}

	cfg, err := config.Load(path)
	if err != nil {
		log.Printf("[Proxy] %v, falling back to defaults", err)
		cfg = config.Default()
	}

	for {
		if err := proxy.Run(cfg); err != nil {
			log.Printf("[Proxy] session ended: %v", err)
		}
	}
}
