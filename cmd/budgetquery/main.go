package main

import (
	"os"

	"github.com/malbeclabs/budgetquery/internal/cli"
)

func main() {
	os.Exit(int(cli.Run()))
}
