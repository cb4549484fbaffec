package main

import (
	"flag"
	"fmt"
	"log"
	"os"
)

const VERSION = "1.0.0-go"

var (
	HEADER1 = "This software is for use on amateur radio networks only,"
	HEADER2 = "it is to be used for educational purposes only."
)

func usage() {
	fmt.Fprintf(os.Stderr, "Usage:\n")
	fmt.Fprintf(os.Stderr, "  mbedecode serve [-config file]\n")
	fmt.Fprintf(os.Stderr, "  mbedecode decode (-index N | -ratep S) [-in file] [-out file.wav] [-play] [-quality Q]\n")
	fmt.Fprintf(os.Stderr, "  mbedecode version\n")
}

func main() {
	log.SetFlags(log.LstdFlags | log.Lshortfile)

	if len(os.Args) < 2 {
		usage()
		os.Exit(2)
	}

	var err error
	switch os.Args[1] {
	case "serve":
		err = runServe(os.Args[2:])
	case "decode":
		err = runDecode(os.Args[2:])
	case "version", "-version", "--version", "-v":
		fmt.Printf("mbedecode v%s\n", VERSION)
		fmt.Println(HEADER1)
		fmt.Println(HEADER2)
		return
	case "help", "-h", "--help":
		usage()
		return
	default:
		usage()
		os.Exit(2)
	}

	if err != nil {
		if err == flag.ErrHelp {
			return
		}
		log.Fatalf("%s: %v", os.Args[1], err)
	}
}

// getDefaultConfig returns the default configuration file path
func getDefaultConfig() string {
	if _, err := os.Stat("mbedecode.yaml"); err == nil {
		return "mbedecode.yaml"
	}

	systemConfig := "/etc/mbedecode.yaml"
	if _, err := os.Stat(systemConfig); err == nil {
		return systemConfig
	}

	return "mbedecode.yaml"
}
