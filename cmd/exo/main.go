package main

import (
	"fmt"
	"log/slog"
	"os"

	"github.com/tdeslauriers/portability/internal/util"
	"github.com/tdeslauriers/portability/pkg/exo"
)

func main() {
	logger := slog.Default().
		With(slog.String(util.ComponentKey, util.ComponentMain)).
		With(slog.String(util.PackageKey, util.PackageMain))

	config, err := exo.Parse(os.Args[1:])
	if err != nil {
		os.Exit(2)
	}

	exoskeleton := exo.New(*config)
	if err := exoskeleton.Execute(os.Stdout); err != nil {
		logger.Error(fmt.Sprintf("error executing exo command: %v", err))
		os.Exit(1)
	}
}
