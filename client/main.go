// Command client serves only the HTML form; it is "habitlog run client".
package main

import (
	"errors"
	"fmt"
	"log"
	"os"

	"github.com/phillip-england/habitlog/internal/habitcli"
)

func main() {
	args := append([]string{"run", "client"}, os.Args[1:]...)
	if err := habitcli.Execute(args); err != nil {
		if errors.Is(err, habitcli.ErrUsage) {
			fmt.Fprintln(os.Stderr, err)
			fmt.Fprintln(os.Stderr, "usage: client [--env-file .env]")
			os.Exit(2)
		}
		log.Fatal(err)
	}
}
