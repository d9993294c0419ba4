package main

import (
	"github.com/mchmarny/riskprep/pkg/cli"
)

func main() {
	cli.Execute()
}
