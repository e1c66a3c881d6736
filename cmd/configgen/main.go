package main

import (
	"flag"

	"github.com/danmuck/conduit/internal/config"
	"github.com/danmuck/conduit/internal/logging"
	"github.com/rs/zerolog/log"
)

func main() {
	kind := flag.String("kind", "client", "config kind: client|server")
	output := flag.String("output", "", "output path for config template")
	validate := flag.Bool("validate", false, "validate an existing config file")
	input := flag.String("input", "", "config path for validation (defaults to per-kind cmd path)")
	force := flag.Bool("force", false, "overwrite existing config file")
	flag.Parse()

	logging.ConfigureRuntime()

	if *validate {
		path := *input
		if path == "" {
			path = defaultPath(*kind)
		}

		var err error
		switch *kind {
		case "client":
			_, err = config.LoadClientConfig(path)
		case "server":
			_, err = config.LoadServerConfig(path)
		default:
			log.Fatal().Str("kind", *kind).Msg("unknown config kind")
		}
		if err != nil {
			log.Fatal().Err(err).Str("path", path).Msg("config invalid")
		}
		log.Info().Str("kind", *kind).Str("path", path).Msg("config validated")
		return
	}

	target := *output
	if target == "" {
		target = defaultPath(*kind)
	}
	if err := config.WriteTemplate(target, *kind, *force); err != nil {
		log.Fatal().Err(err).Str("path", target).Msg("config template not written")
	}
	log.Info().Str("kind", *kind).Str("path", target).Msg("config template written")
}

func defaultPath(kind string) string {
	switch kind {
	case "client":
		return "cmd/conduitctl/config.toml"
	case "server":
		return "cmd/echoserver/config.toml"
	default:
		log.Fatal().Str("kind", kind).Msg("unknown config kind")
		return ""
	}
}
