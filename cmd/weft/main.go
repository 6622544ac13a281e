// Package main provides the Weft CLI.
package main

import (
	"fmt"
	"os"

	"github.com/weft-ml/weft/adapter"
	"github.com/weft-ml/weft/tensor"
)

const version = "v0.1.0-dev"

func main() {
	if len(os.Args) < 2 {
		usage()
		return
	}

	switch os.Args[1] {
	case "version":
		fmt.Printf("Weft %s\n", version)
	case "inspect":
		if len(os.Args) < 3 {
			fmt.Fprintln(os.Stderr, "usage: weft inspect <checkpoint>")
			os.Exit(2)
		}
		if err := inspect(os.Args[2]); err != nil {
			fmt.Fprintf(os.Stderr, "weft: %v\n", err)
			os.Exit(1)
		}
	default:
		usage()
		os.Exit(2)
	}
}

func usage() {
	fmt.Printf("Weft - Runtime Weight-Adapter Engine\n")
	fmt.Printf("Version: %s\n\n", version)
	fmt.Println("Commands:")
	fmt.Println("  version              Show version")
	fmt.Println("  inspect <checkpoint> List the layers of an adapter checkpoint")
}

func inspect(path string) error {
	set, err := adapter.Load(path, tensor.CPU, tensor.Float32)
	if err != nil {
		return err
	}

	fmt.Printf("%s: %d layers, %d bytes\n", set.Name(), set.Len(), set.EstimateSizeBytes())
	for _, key := range set.Keys() {
		layer, _ := set.Layer(key)
		if rank, ok := layer.Rank(); ok {
			fmt.Printf("  %-60s rank %-4d %d bytes\n", key, rank, layer.EstimateSizeBytes())
		} else {
			fmt.Printf("  %-60s full      %d bytes\n", key, layer.EstimateSizeBytes())
		}
	}
	return nil
}
