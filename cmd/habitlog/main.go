package main

import (
	"errors"
	"fmt"
	"log"
	"os"

	"github.com/phillip-england/habitlog/internal/habitcli"
)

func main() {
	if err := habitcli.Execute(os.Args[1:]); err != nil {
		if errors.Is(err, habitcli.ErrUsage) {
			fmt.Fprintln(os.Stderr, err)
			fmt.Fprintln(os.Stderr)
			habitcli.PrintUsage(os.Stderr)
			os.Exit(2)
		}
		log.Fatal(err)
	}
}
