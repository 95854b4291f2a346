package main

import (
	"context"
	"os"

	"salm/portal/internal/cli"
)

func main() {
	os.Exit(cli.Main(context.Background(), os.Args[1:], os.Stderr))
}
