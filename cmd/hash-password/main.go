// Command hash-password prints an AUTH_USERS entry for one operator.
//
//	hash-password ana@call.com 's3cret'
package main

import (
	"fmt"
	"os"

	authsvc "github.com/alanyang/agent-queue/internal/service/auth"
)

func main() {
	if len(os.Args) != 3 {
		fmt.Fprintln(os.Stderr, "usage: hash-password <email> <password>")
		os.Exit(2)
	}
	hash, err := authsvc.HashPassword(os.Args[2])
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
	fmt.Printf("%s:%s\n", os.Args[1], hash)
}
