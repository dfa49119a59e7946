package main

import (
	"fmt"
	"os"

	"github.com/joho/godotenv"

	"adforge/cmd/adforge/commands"
)

func main() {
	_ = godotenv.Load()
	if err := commands.NewRootCmd().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
