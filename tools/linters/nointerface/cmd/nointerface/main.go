package main

import (
	"github.com/Ragavinnay/CLI-based-background-job-queue-system/tools/linters/nointerface"
	"golang.org/x/tools/go/analysis/singlechecker"
)

func main() {
	singlechecker.Main(nointerface.Analyzer)
}
