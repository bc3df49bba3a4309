package main

import (
	"github.com/tansive/unifictl/internal/cli"
	"github.com/tansive/unifictl/internal/common/logtrace"
)

func init() {
	logtrace.InitLogger()
}

func main() {
	cli.Execute()
}
