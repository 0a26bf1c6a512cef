package main

import (
	"github.com/mbenning/stagehand/internal/cli"
	"github.com/mbenning/stagehand/internal/metrics"
)

func main() {
	metrics.EmitBuildInfo()
	cli.Execute()
}
