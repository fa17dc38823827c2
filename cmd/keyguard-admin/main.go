package main

import (
	"fmt"
	"os"
)

func main() {
	if len(os.Args) < 2 {
		printUsage()
		os.Exit(1)
	}

	command := os.Args[1]

	switch command {
	case "token-mint":
		if err := tokenMintCommand(os.Args[2:]); err != nil {
			fmt.Fprintf(os.Stderr, "token-mint failed: %v\n", err)
			os.Exit(1)
		}
	case "token-inspect":
		if err := tokenInspectCommand(os.Args[2:]); err != nil {
			fmt.Fprintf(os.Stderr, "token-inspect failed: %v\n", err)
			os.Exit(1)
		}
	case "keyid":
		if err := keyIDCommand(os.Args[2:]); err != nil {
			fmt.Fprintf(os.Stderr, "keyid failed: %v\n", err)
			os.Exit(1)
		}
	default:
		fmt.Fprintf(os.Stderr, "Unknown command: %s\n", command)
		printUsage()
		os.Exit(1)
	}
}

func printUsage() {
	fmt.Println("Keyguard Admin Tool")
	fmt.Println()
	fmt.Println("Usage:")
	fmt.Println("  keyguard-admin <command> [options]")
	fmt.Println()
	fmt.Println("Commands:")
	fmt.Println("  token-mint     Build and MAC a hardware auth token (test environments)")
	fmt.Println("  token-inspect  Decode a serialized auth token and print its fields")
	fmt.Println("  keyid          Derive the 64-bit key identifier for a key blob file")
	fmt.Println()
	fmt.Println("Run 'keyguard-admin <command> -h' for command options.")
}
