package main

import (
	"fmt"
	"os"

	"github.com/joho/godotenv"
)

func main() {
	_ = godotenv.Load()

	if len(os.Args) < 2 {
		printUsage()
		os.Exit(1)
	}

	var err error
	switch os.Args[1] {
	case "register":
		err = runRegister(os.Args[2:])
	case "identify":
		err = runIdentify(os.Args[2:])
	case "clear":
		err = runClear(os.Args[2:])
	case "serve":
		err = runServe(os.Args[2:])
	default:
		printUsage()
		os.Exit(1)
	}

	if err != nil {
		if uerr, ok := err.(*usageError); ok {
			fmt.Fprintln(os.Stderr, uerr.Error())
			os.Exit(1)
		}
		fmt.Fprintln(os.Stderr, "error:", err)
		os.Exit(2)
	}
}

func printUsage() {
	fmt.Println("usage: audiomark <command>")
	fmt.Println()
	fmt.Println("commands:")
	fmt.Println("  register --algo X [--store KIND] [--config FILE] PATH...")
	fmt.Println("                                                     fingerprint and store reference audio")
	fmt.Println("                                                     (PATH may be a file or a directory, walked recursively)")
	fmt.Println("  identify --algo X [--store KIND] [--config FILE] [--start mm:ss --end mm:ss] FILE")
	fmt.Println("                                                     identify a query clip")
	fmt.Println("  clear [--store KIND] [--config FILE]               drop the entire index")
	fmt.Println("  serve [--config FILE] [--proto http] [-p 8080]     start the HTTP API")
}

// usageError signals exit code 1 (user error) per spec.md §6's CLI exit
// code contract, distinct from exit code 2 (internal error).
type usageError struct{ msg string }

func (e *usageError) Error() string { return e.msg }
