package main

import (
	"fmt"
	"os"
)

func main() {
	fmt.Println("starting")
	defer fmt.Println("never printed")

	if len(os.Args) > 1 {
		os.Exit(2) // want "os.Exit call is forbidden in main function"
	}

	go func() {
		os.Exit(0)
	}()

	os.Exit(1) // want "os.Exit call is forbidden in main function"
}

func helper() {
	os.Exit(3)
}
